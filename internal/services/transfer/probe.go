package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/stridesync/stridesync/internal/common"
	"github.com/stridesync/stridesync/internal/interfaces"
	"github.com/stridesync/stridesync/internal/models"
)

// DuplicateProbe resolves ambiguous uploads (empty import result) by
// searching the sink's activity list for an existing activity whose start
// time falls within the configured window.
type DuplicateProbe struct {
	Window     time.Duration
	SearchDays int
	logger     arbor.ILogger
}

// NewDuplicateProbe builds a probe with the configured window and search
// span.
func NewDuplicateProbe(window time.Duration, searchDays int, logger arbor.ILogger) *DuplicateProbe {
	if searchDays < 0 {
		searchDays = 0
	}
	return &DuplicateProbe{
		Window:     window,
		SearchDays: searchDays,
		logger:     logger,
	}
}

// Confirm returns the id of the nearest matching sink activity within the
// window, or false when nothing qualifies. Ties on identical deltas keep the
// earlier candidate.
func (p *DuplicateProbe) Confirm(ctx context.Context, sink interfaces.SinkClient, startTime string) (string, bool) {
	target, err := common.ParseFlexibleTime(startTime)
	if err != nil {
		p.logger.Warn().Str("start_time", startTime).Msg("Cannot parse start time for duplicate probe")
		return "", false
	}

	searchStart := target.AddDate(0, 0, -p.SearchDays)
	searchEnd := target.AddDate(0, 0, p.SearchDays)

	activities, err := sink.ListActivities(ctx, searchStart, searchEnd)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Duplicate probe activity search failed")
		return "", false
	}

	bestID := ""
	var bestDelta time.Duration
	for _, act := range activities {
		actStart, ok := sinkActivityStart(act)
		if !ok {
			continue
		}
		delta := target.Sub(actStart)
		if delta < 0 {
			delta = -delta
		}
		if delta <= p.Window && (bestID == "" || delta < bestDelta) {
			bestID = act.ActivityID
			bestDelta = delta
		}
	}

	if bestID == "" {
		return "", false
	}

	p.logger.Warn().
		Str("activity_id", bestID).
		Dur("delta", bestDelta).
		Msg("Ambiguous upload confirmed as duplicate")
	return bestID, true
}

// sinkActivityStart extracts a usable start time from a sink activity list
// entry, preferring the local timestamp, then GMT, then the epoch field.
func sinkActivityStart(act models.SinkActivity) (time.Time, bool) {
	if act.StartTimeLocal != "" {
		if t, err := common.ParseFlexibleTime(act.StartTimeLocal); err == nil {
			return t, true
		}
	}
	if act.StartTimeGMT != "" {
		if t, err := common.ParseFlexibleTime(act.StartTimeGMT); err == nil {
			return t, true
		}
	}
	if act.BeginTimestamp != 0 {
		if t, err := common.ParseFlexibleTime(fmt.Sprintf("%d", act.BeginTimestamp)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
