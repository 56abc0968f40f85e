package record

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// placeholderProjects are the project paths the usage source reports when it
// couldn't determine where a session ran.
var placeholderProjects = map[string]struct{}{
	"":                {},
	"Unknown Project": {},
	"unknown":         {},
}

// MergeReport summarizes the result of a Merge.
type MergeReport struct {
	New     int
	Updated int
	Total   int
}

func (r MergeReport) String() string {
	return fmt.Sprintf("%d new, %d updated, %d total sessions", r.New, r.Updated, r.Total)
}

// RecordID returns the merge key for an observation. The source-provided
// session ID is used when present. Otherwise the ID is synthesized from the
// project path and the start time, which together identify a session on a
// single machine.
func RecordID(obs Observation) string {
	if obs.SessionID != "" {
		return obs.SessionID
	}
	return obs.ProjectPath + "/" + obs.StartTime
}

// ProjectPath returns the project path to store for an observation. If the
// source didn't provide a usable path, it's decoded from the session ID,
// which encodes the working directory with `-` in place of each path
// separator (e.g. `-Users-alice-code-api` is `/Users/alice/code/api`).
func ProjectPath(obs Observation) string {
	if _, ok := placeholderProjects[obs.ProjectPath]; !ok {
		return obs.ProjectPath
	}

	if obs.SessionID == "" {
		return obs.ProjectPath
	}
	return strings.ReplaceAll(obs.SessionID, "-", "/")
}

// Merge applies the observations to `existing` and returns the resulting
// record set. `existing` isn't modified.
//
// Each observation fully replaces the stored record with the same ID. The
// only field that isn't derived from the observation is SyncedAt, which is
// set to `now` for every merged record. Merging the same observations twice
// therefore yields the same sessions apart from SyncedAt and LastSync.
//
// A sync event is appended to the log even if there were no observations.
func Merge(existing RecordSet, incoming []Observation, now time.Time) (RecordSet, MergeReport) {
	merged := existing.Clone()
	syncedAt := FormatTime(now)

	var report MergeReport
	for _, obs := range incoming {
		id := RecordID(obs)
		if obs.SessionID == "" && (obs.ProjectPath == "" || obs.StartTime == "") {
			log.WithFields(log.Fields{
				"id":          id,
				"projectPath": obs.ProjectPath,
				"startTime":   obs.StartTime,
			}).Warn("Session has no ID, and no project path or start time to " +
				"identify it. It's merged with other sessions that share its ID.")
		}
		if _, ok := merged.Sessions[id]; ok {
			report.Updated++
		} else {
			report.New++
		}
		merged.Sessions[id] = newRecord(id, obs, syncedAt)
	}
	report.Total = len(merged.Sessions)

	merged.Syncs = append(merged.Syncs, SyncEvent{
		Timestamp:       syncedAt,
		NewSessions:     report.New,
		UpdatedSessions: report.Updated,
		TotalSessions:   report.Total,
	})
	merged.LastSync = syncedAt
	return merged, report
}

func newRecord(id string, obs Observation, syncedAt string) UsageRecord {
	return UsageRecord{
		SessionID:           id,
		ProjectPath:         ProjectPath(obs),
		InputTokens:         nonNegative(obs.InputTokens),
		OutputTokens:        nonNegative(obs.OutputTokens),
		CacheCreationTokens: nonNegative(obs.CacheCreationTokens),
		CacheReadTokens:     nonNegative(obs.CacheReadTokens),
		TotalTokens:         nonNegative(obs.TotalTokens),
		TotalCost:           nonNegativeCost(obs.TotalCost),
		ModelsUsed:          append([]string(nil), obs.ModelsUsed...),
		StartTime:           obs.StartTime,
		LastActivity:        obs.LastActivity,
		SyncedAt:            syncedAt,
	}
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func nonNegativeCost(c float64) float64 {
	if c < 0 {
		return 0
	}
	return c
}
