// Package settings manages the singleton transfer policy document and the
// metadata template rendering it configures.
package settings

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// Service validates, merges and persists transfer settings.
type Service struct {
	store    interfaces.SettingsStore
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a settings service over the given store.
func NewService(store interfaces.SettingsStore, logger arbor.ILogger) *Service {
	v := validator.New()
	// Report field paths by json tag so validation errors match the wire
	// shape of the document.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		store:    store,
		validate: v,
		logger:   logger,
	}
}

// Get returns the current settings, falling back to defaults when nothing
// has been saved.
func (s *Service) Get(ctx context.Context) (*models.TransferSettings, error) {
	return s.store.GetSettings(ctx)
}

// Save deep-merges the patch into the current settings, validates the result
// field by field, and commits only when the error map is empty. The returned
// map is keyed by json field path.
func (s *Service) Save(ctx context.Context, patch models.SettingsPatch) (*models.TransferSettings, map[string]string, error) {
	current, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, nil, err
	}

	merged := current.Clone()
	fieldErrors := map[string]string{}
	applyPatch(&merged, patch, fieldErrors)

	s.validateSettings(&merged, fieldErrors)
	if len(fieldErrors) > 0 {
		return nil, fieldErrors, nil
	}

	// The writer owns the schema version.
	merged.Version = models.SettingsVersion

	if err := s.store.SaveSettings(ctx, merged); err != nil {
		return nil, nil, err
	}

	s.logger.Info().Msg("Saved transfer settings")
	return &merged, nil, nil
}

func applyPatch(settings *models.TransferSettings, patch models.SettingsPatch, fieldErrors map[string]string) {
	if patch.Concurrency != nil {
		settings.Concurrency = *patch.Concurrency
	}
	if patch.Retry != nil {
		if patch.Retry.MaxAttempts != nil {
			settings.Retry.MaxAttempts = *patch.Retry.MaxAttempts
		}
		if patch.Retry.BaseDelaySeconds != nil {
			settings.Retry.BaseDelaySeconds = *patch.Retry.BaseDelaySeconds
		}
		if patch.Retry.MaxDelaySeconds != nil {
			settings.Retry.MaxDelaySeconds = *patch.Retry.MaxDelaySeconds
		}
	}
	if patch.Naming != nil {
		if patch.Naming.TitleTemplate != nil {
			settings.Naming.TitleTemplate = *patch.Naming.TitleTemplate
		}
		if patch.Naming.DescriptionTemplate != nil {
			settings.Naming.DescriptionTemplate = *patch.Naming.DescriptionTemplate
		}
	}
	if patch.Privacy != nil && patch.Privacy.Visibility != nil {
		settings.Privacy.Visibility = *patch.Privacy.Visibility
	}
	if patch.Gear != nil {
		if patch.Gear.Enabled != nil {
			settings.Gear.Enabled = *patch.Gear.Enabled
		}
		if patch.Gear.GearID != nil {
			settings.Gear.GearID = *patch.Gear.GearID
		}
	}
	if patch.SportMap != nil {
		mapping := make(map[int]string, len(*patch.SportMap))
		for key, value := range *patch.SportMap {
			code, err := strconv.Atoi(key)
			if err != nil {
				fieldErrors["sport_mapping"] = fmt.Sprintf("Key %q is not a sport code", key)
				return
			}
			mapping[code] = value
		}
		settings.SportMapping = mapping
	}
}

func (s *Service) validateSettings(settings *models.TransferSettings, fieldErrors map[string]string) {
	if err := s.validate.Struct(settings); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fieldErrors[fieldPath(fe)] = validationMessage(fe)
			}
		} else {
			fieldErrors["settings"] = err.Error()
		}
	}

	if _, err := NewTemplateRenderer(settings.Naming.TitleTemplate); err != nil {
		fieldErrors["naming.title_template"] = err.Error()
	}
	if _, err := NewTemplateRenderer(settings.Naming.DescriptionTemplate); err != nil {
		fieldErrors["naming.description_template"] = err.Error()
	}
}

// fieldPath strips the root struct name from the validator namespace,
// yielding paths like "retry.max_attempts".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if dot := strings.IndexByte(ns, '.'); dot >= 0 {
		return ns[dot+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("Failed validation: %s", fe.Tag())
	}
}

// PreviewResult is the dry-run output for one activity: the rendered strings,
// the metadata patch the worker would apply, and the template context used.
type PreviewResult struct {
	Rendered map[string]string      `json:"rendered"`
	Patch    map[string]interface{} `json:"patch"`
	Context  map[string]interface{} `json:"context"`
}

// Preview renders the naming templates for an activity and assembles the
// intended post-upload metadata patch. Pure; never mutates state.
func (s *Service) Preview(ctx context.Context, activity models.SourceActivity, override *models.TransferSettings) (*PreviewResult, error) {
	settings := override
	if settings == nil {
		current, err := s.store.GetSettings(ctx)
		if err != nil {
			return nil, err
		}
		settings = current
	}

	templateContext := BuildTemplateContext(activity)

	// An unset template renders nothing and contributes nothing to the patch.
	title := ""
	if settings.Naming.TitleTemplate != "" {
		title = s.renderTemplate(settings.Naming.TitleTemplate, templateContext, activity.Name)
	}
	description := ""
	if settings.Naming.DescriptionTemplate != "" {
		description = s.renderTemplate(settings.Naming.DescriptionTemplate, templateContext, "")
	}

	patch := map[string]interface{}{}
	if title != "" {
		patch["activityName"] = title
	}
	if description != "" {
		patch["description"] = description
	}
	if settings.Privacy.Visibility != "default" {
		patch["privacy"] = map[string]string{"typeKey": settings.Privacy.Visibility}
	}
	if settings.Gear.Enabled && settings.Gear.GearID != "" {
		patch["gear_id"] = settings.Gear.GearID
	}

	return &PreviewResult{
		Rendered: map[string]string{"title": title, "description": description},
		Patch:    patch,
		Context:  templateContext,
	}, nil
}

// RenderTitle renders the title template of the given settings for an
// activity, falling back to the activity's own name.
func (s *Service) RenderTitle(settings models.TransferSettings, activity models.SourceActivity) string {
	return s.renderTemplate(settings.Naming.TitleTemplate, BuildTemplateContext(activity), activity.Name)
}

func (s *Service) renderTemplate(template string, templateContext map[string]interface{}, fallback string) string {
	if template == "" {
		return fallback
	}
	renderer, err := NewTemplateRenderer(template)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stored template failed validation, using fallback")
		return fallback
	}
	return renderer.Render(templateContext)
}
