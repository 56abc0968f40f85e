package record

import "time"

// TimeFormat is the ISO-8601 layout used for every timestamp written to a
// record file.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime formats `t` in UTC using TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// UsageRecord is one observed coding-assistant session.
type UsageRecord struct {
	// SessionID is the record identifier. It's either provided by the usage
	// source, or synthesized from the project path and start time.
	SessionID string `json:"sessionId"`

	// ProjectPath is the working directory of the session. It may be empty
	// if the source didn't know it.
	ProjectPath string `json:"projectPath"`

	InputTokens         int64    `json:"inputTokens"`
	OutputTokens        int64    `json:"outputTokens"`
	CacheCreationTokens int64    `json:"cacheCreationTokens,omitempty"`
	CacheReadTokens     int64    `json:"cacheReadTokens,omitempty"`
	TotalTokens         int64    `json:"totalTokens,omitempty"`
	TotalCost           float64  `json:"totalCost"`
	ModelsUsed          []string `json:"modelsUsed,omitempty"`

	StartTime    string `json:"startTime,omitempty"`
	LastActivity string `json:"lastActivity"`

	// SyncedAt is the time the record was last (re)written by Merge.
	SyncedAt string `json:"syncedAt"`
}

// Tokens returns the total number of tokens used by the session. The
// source-provided total is preferred when it's set.
func (r UsageRecord) Tokens() int64 {
	if r.TotalTokens > 0 {
		return r.TotalTokens
	}
	return r.InputTokens + r.OutputTokens + r.CacheCreationTokens + r.CacheReadTokens
}

// Observation is a session as reported by the usage source, normalized to a
// single shape. Field name variations in the source output are resolved
// before an Observation is created.
type Observation struct {
	SessionID           string
	ProjectPath         string
	StartTime           string
	LastActivity        string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	TotalTokens         int64
	TotalCost           float64
	ModelsUsed          []string
}

// SyncEvent is an entry in the sync log of a RecordSet.
type SyncEvent struct {
	Timestamp       string `json:"timestamp"`
	NewSessions     int    `json:"newSessions"`
	UpdatedSessions int    `json:"updatedSessions"`
	TotalSessions   int    `json:"totalSessions"`
}

// RecordSet is the durable collection of records owned by one machine.
type RecordSet struct {
	Sessions map[string]UsageRecord `json:"sessions"`
	Syncs    []SyncEvent            `json:"syncs"`
	LastSync string                 `json:"lastSync"`
}

// NewRecordSet returns an empty RecordSet.
func NewRecordSet() RecordSet {
	return RecordSet{
		Sessions: map[string]UsageRecord{},
		Syncs:    []SyncEvent{},
	}
}

// Clone returns a copy of the record set that doesn't share any maps or
// slices with the original.
func (set RecordSet) Clone() RecordSet {
	clone := RecordSet{
		Sessions: make(map[string]UsageRecord, len(set.Sessions)),
		Syncs:    append([]SyncEvent{}, set.Syncs...),
		LastSync: set.LastSync,
	}
	for id, r := range set.Sessions {
		r.ModelsUsed = append([]string(nil), r.ModelsUsed...)
		clone.Sessions[id] = r
	}
	return clone
}
