package models

import (
	"time"
)

// EventSummary is a display-only descriptor for one raw event that
// contributed to an activity. The sync core treats it as opaque.
type EventSummary struct {
	Label     string `json:"label"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// ActivityRecord is one summarized activity from the backend.
//
// Version is a global sequence number: strictly increasing in creation
// order across the entire backend dataset, never duplicated between two
// distinct activities. It is the basis for incremental sync.
type ActivityRecord struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	StartTime      int64          `json:"startTime"` // milliseconds since epoch
	EndTime        int64          `json:"endTime"`
	EventSummaries []EventSummary `json:"eventSummaries,omitempty"`
	SourceEventIDs []string       `json:"sourceEventIds,omitempty"`
	Version        int64          `json:"version"`

	// IsNew drives the entrance highlight in the TUI. It is set by the
	// sync core when an activity first enters the window and is not part
	// of backend identity.
	IsNew bool `json:"-"`
}

// Start returns the activity's start time as a time.Time in local time.
func (a ActivityRecord) Start() time.Time {
	return time.UnixMilli(a.StartTime)
}

// End returns the activity's end time as a time.Time in local time.
func (a ActivityRecord) End() time.Time {
	return time.UnixMilli(a.EndTime)
}

// DateBucket groups activities by local calendar date.
// Activities are ordered descending by StartTime (most recent first),
// and no two activities within a bucket share the same ID.
type DateBucket struct {
	Date       string           `json:"date"` // YYYY-MM-DD, local time zone
	Activities []ActivityRecord `json:"activities"`
}

// DateKey derives the YYYY-MM-DD bucket key for an epoch-millisecond
// timestamp, in the local time zone.
func DateKey(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02")
}

// BucketActivities groups activities into date buckets keyed by local
// start date. Within each bucket activities are ordered as given; callers
// that need most-recent-first ordering sort afterwards (the merge engine
// re-sorts regardless of input order).
func BucketActivities(activities []ActivityRecord) []DateBucket {
	if len(activities) == 0 {
		return nil
	}

	index := make(map[string]int)
	var buckets []DateBucket
	for _, a := range activities {
		key := DateKey(a.StartTime)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, DateBucket{Date: key})
		}
		buckets[i].Activities = append(buckets[i].Activities, a)
	}
	return buckets
}
