package events

import (
	"encoding/json"
	"strings"
)

// FrameType classifies the frames the push channel carries. Data frames
// announce activity changes and trigger a sync pass; control frames are
// channel bookkeeping and never reach the pipeline.
type FrameType string

// Canonical frame types
const (
	FrameActivityCreated FrameType = "activity_created"
	FrameActivityUpdated FrameType = "activity_updated"
	FrameActivityDeleted FrameType = "activity_deleted"

	FrameHeartbeat  FrameType = "heartbeat"
	FrameSubscribed FrameType = "subscribed"
)

// NormalizeFrameType maps a wire type string to its canonical form.
// Accepts dotted, snake_case and bare-verb variants. Unknown types
// return empty and false.
func NormalizeFrameType(t string) (FrameType, bool) {
	switch strings.ToLower(t) {
	case "activity_created", "activity.created", "created":
		return FrameActivityCreated, true
	case "activity_updated", "activity.updated", "updated":
		return FrameActivityUpdated, true
	case "activity_deleted", "activity.deleted", "deleted":
		return FrameActivityDeleted, true
	case "heartbeat", "ping":
		return FrameHeartbeat, true
	case "subscribed", "ack":
		return FrameSubscribed, true
	default:
		return "", false
	}
}

// IsDataFrame reports whether a frame type announces an activity change.
func IsDataFrame(t FrameType) bool {
	switch t {
	case FrameActivityCreated, FrameActivityUpdated, FrameActivityDeleted:
		return true
	}
	return false
}

// ShouldSync peeks at a raw frame's type field and reports whether the
// frame belongs in the sync pipeline. Control frames are filtered out
// here. Frames with no type field pass through (data frames may omit
// it), as do frames the pipeline itself needs to validate: unknown
// types and payloads that don't parse.
func ShouldSync(raw []byte) bool {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return true
	}
	if head.Type == "" {
		return true
	}
	ft, ok := NormalizeFrameType(head.Type)
	if !ok {
		return true
	}
	return IsDataFrame(ft)
}
