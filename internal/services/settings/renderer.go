package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// allowedTemplateVars is the closed whitelist of template variables. Unknown
// names are rejected when the template is validated, not at render time.
var allowedTemplateVars = map[string]bool{
	"label_id":           true,
	"sport":              true,
	"sport_type":         true,
	"start_time":         true,
	"start_local":        true,
	"duration_seconds":   true,
	"duration_formatted": true,
	"distance_km":        true,
	"distance_m":         true,
	"name":               true,
	"calories":           true,
}

// templateField is one parsed {name} or {name:format} reference.
type templateField struct {
	name string
	spec string
}

// templateSegment is either literal text or a field reference.
type templateSegment struct {
	literal string
	field   *templateField
}

// TemplateRenderer interpolates a closed set of variables into a template.
// The grammar is {name} or {name:format_spec}; no attribute access, no
// expressions. Construction fails on unknown variables or unbalanced braces.
type TemplateRenderer struct {
	template string
	segments []templateSegment
}

// NewTemplateRenderer parses and validates a template.
func NewTemplateRenderer(template string) (*TemplateRenderer, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if seg.field != nil && !allowedTemplateVars[seg.field.name] {
			return nil, fmt.Errorf("template variable '%s' is not allowed. Allowed: %s",
				seg.field.name, strings.Join(sortedVars(), ", "))
		}
	}
	return &TemplateRenderer{template: template, segments: segments}, nil
}

func sortedVars() []string {
	vars := make([]string, 0, len(allowedTemplateVars))
	for v := range allowedTemplateVars {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func parseTemplate(template string) ([]templateSegment, error) {
	var segments []templateSegment
	var literal strings.Builder

	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch ch {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				literal.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unbalanced '{' at position %d", i)
			}
			ref := template[i+1 : i+end]
			name, spec := ref, ""
			if colon := strings.IndexByte(ref, ':'); colon >= 0 {
				name, spec = ref[:colon], ref[colon+1:]
			}
			if name == "" {
				return nil, fmt.Errorf("empty field reference at position %d", i)
			}
			if literal.Len() > 0 {
				segments = append(segments, templateSegment{literal: literal.String()})
				literal.Reset()
			}
			segments = append(segments, templateSegment{field: &templateField{name: name, spec: spec}})
			i += end
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("unbalanced '}' at position %d", i)
		default:
			literal.WriteByte(ch)
		}
	}
	if literal.Len() > 0 {
		segments = append(segments, templateSegment{literal: literal.String()})
	}
	return segments, nil
}

// Render interpolates the context. Rendering is total: missing keys become
// the empty string, and any formatting surprise falls back to the raw
// template rather than surfacing an error.
func (r *TemplateRenderer) Render(context map[string]interface{}) string {
	var out strings.Builder
	for _, seg := range r.segments {
		if seg.field == nil {
			out.WriteString(seg.literal)
			continue
		}
		value, ok := context[seg.field.name]
		if !ok || value == nil {
			continue
		}
		formatted, err := formatValue(value, seg.field.spec)
		if err != nil {
			return r.template
		}
		out.WriteString(formatted)
	}
	return out.String()
}

// strftimeToLayout maps the strftime directives templates use onto Go's
// reference layout.
var strftimeToLayout = strings.NewReplacer(
	"%Y", "2006",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%y", "06",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
	"%p", "PM",
	"%%", "%",
)

func formatValue(value interface{}, spec string) (string, error) {
	if t, ok := value.(time.Time); ok {
		if spec == "" {
			return t.Format("2006-01-02 15:04:05"), nil
		}
		return t.Format(strftimeToLayout.Replace(spec)), nil
	}

	if spec == "" {
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	}

	// Numeric specs of the form [.N]f, d.
	switch v := value.(type) {
	case float64:
		if strings.HasSuffix(spec, "f") {
			precision := -1
			if dot := strings.IndexByte(spec, '.'); dot >= 0 {
				p, err := strconv.Atoi(spec[dot+1 : len(spec)-1])
				if err != nil {
					return "", fmt.Errorf("bad format spec %q", spec)
				}
				precision = p
			}
			return strconv.FormatFloat(v, 'f', precision, 64), nil
		}
		if spec == "d" {
			return strconv.FormatInt(int64(v), 10), nil
		}
	case int:
		if spec == "d" {
			return strconv.Itoa(v), nil
		}
	}

	return "", fmt.Errorf("format spec %q does not apply to %T", spec, value)
}
