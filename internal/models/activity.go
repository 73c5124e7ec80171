package models

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON value that may arrive as a string or a number.
// The source platform sends start times as epoch integers; stored items and
// templates treat them as opaque strings until the time parser runs.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// SourceActivity is the minimal view of a source platform activity used to
// enqueue transfer items and build template contexts.
type SourceActivity struct {
	LabelID   string     `json:"labelId"`
	SportType int        `json:"sportType"`
	Name      string     `json:"name"`
	StartTime FlexString `json:"startTime"`
	Duration  float64    `json:"duration,omitempty"`
	Distance  float64    `json:"distance,omitempty"`
	Calories  float64    `json:"calorie,omitempty"`
}

// SinkActivity is an entry from the sink's activity list, consumed by the
// duplicate probe.
type SinkActivity struct {
	ActivityID     string `json:"activityId"`
	Name           string `json:"activityName,omitempty"`
	StartTimeLocal string `json:"startTimeLocal,omitempty"`
	StartTimeGMT   string `json:"startTimeGMT,omitempty"`
	BeginTimestamp int64  `json:"beginTimestamp,omitempty"`
}

// GearEntry is one item from the sink's gear list.
type GearEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
