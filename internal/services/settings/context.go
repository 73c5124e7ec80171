package settings

import (
	"fmt"
	"math"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/models"
)

// BuildTemplateContext assembles the whitelisted variable map for one source
// activity. Unparseable start times leave start_time/start_local absent so
// the renderer substitutes empty strings.
func BuildTemplateContext(activity models.SourceActivity) map[string]interface{} {
	context := map[string]interface{}{
		"label_id":   activity.LabelID,
		"sport":      models.SportName(activity.SportType),
		"sport_type": activity.SportType,
		"name":       activity.Name,
		"calories":   activity.Calories,
	}

	if t, err := common.ParseFlexibleTime(string(activity.StartTime)); err == nil {
		context["start_time"] = t
		context["start_local"] = t
	}

	durationSeconds := activity.Duration
	context["duration_seconds"] = durationSeconds
	context["duration_formatted"] = formatDuration(int(durationSeconds))

	distanceM := activity.Distance
	context["distance_m"] = distanceM
	context["distance_km"] = math.Round(distanceM/1000.0*100) / 100

	return context
}

func formatDuration(totalSeconds int) string {
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
