package source

import (
	"bytes"
	"encoding/json"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

// Different versions of the usage tool name their fields differently. Each
// list is tried in order, and the first key that's present with a usable
// value wins.
var (
	sessionIDKeys     = []string{"sessionId", "session_id", "id"}
	projectPathKeys   = []string{"projectPath", "project_path", "project"}
	startTimeKeys     = []string{"startTime", "start_time", "firstActivity", "first_activity"}
	lastActivityKeys  = []string{"lastActivity", "last_activity", "endTime", "end_time", "timestamp"}
	inputTokensKeys   = []string{"inputTokens", "input_tokens"}
	outputTokensKeys  = []string{"outputTokens", "output_tokens"}
	cacheCreationKeys = []string{"cacheCreationTokens", "cache_creation_tokens", "cacheCreationInputTokens", "cache_creation_input_tokens"}
	cacheReadKeys     = []string{"cacheReadTokens", "cache_read_tokens", "cacheReadInputTokens", "cache_read_input_tokens"}
	totalTokensKeys   = []string{"totalTokens", "total_tokens"}
	costKeys          = []string{"totalCost", "total_cost", "cost", "costUSD", "cost_usd"}
	modelsKeys        = []string{"modelsUsed", "models_used", "models"}
)

type rawSession map[string]json.RawMessage

// ParseSessions parses the JSON output of the usage tool. The output is
// either an object with a `sessions` array, or the array itself. Empty
// output means there were no sessions.
func ParseSessions(data []byte) ([]record.Observation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var sessions []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &sessions); err != nil {
			return nil, errors.WithContext(err, "unmarshal sessions")
		}
	} else {
		var report map[string]json.RawMessage
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, errors.WithContext(err, "unmarshal report")
		}

		rawSessions, ok := report["sessions"]
		if !ok {
			return nil, errors.MissingFieldError{Field: "sessions"}
		}
		if err := json.Unmarshal(rawSessions, &sessions); err != nil {
			return nil, errors.WithContext(err, "unmarshal sessions")
		}
	}

	var observations []record.Observation
	for i, rawJSON := range sessions {
		var raw rawSession
		if err := json.Unmarshal(rawJSON, &raw); err != nil || raw == nil {
			log.WithField("index", i).Warn("Ignoring session that isn't a JSON object")
			continue
		}
		observations = append(observations, raw.observation())
	}
	return observations, nil
}

func (raw rawSession) observation() record.Observation {
	return record.Observation{
		SessionID:           raw.stringField(sessionIDKeys),
		ProjectPath:         raw.stringField(projectPathKeys),
		StartTime:           raw.stringField(startTimeKeys),
		LastActivity:        raw.stringField(lastActivityKeys),
		InputTokens:         raw.intField(inputTokensKeys),
		OutputTokens:        raw.intField(outputTokensKeys),
		CacheCreationTokens: raw.intField(cacheCreationKeys),
		CacheReadTokens:     raw.intField(cacheReadKeys),
		TotalTokens:         raw.intField(totalTokensKeys),
		TotalCost:           raw.floatField(costKeys),
		ModelsUsed:          raw.stringsField(modelsKeys),
	}
}

// lookup unmarshals the first key in `keys` that can be decoded into `dst`.
func (raw rawSession) lookup(keys []string, dst interface{}) bool {
	for _, key := range keys {
		val, ok := raw[key]
		if !ok || string(val) == "null" {
			continue
		}
		if err := json.Unmarshal(val, dst); err == nil {
			return true
		}
	}
	return false
}

func (raw rawSession) stringField(keys []string) string {
	var s string
	raw.lookup(keys, &s)
	return s
}

func (raw rawSession) floatField(keys []string) float64 {
	var f float64
	if !raw.lookup(keys, &f) || math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}

func (raw rawSession) intField(keys []string) int64 {
	return int64(math.Round(raw.floatField(keys)))
}

func (raw rawSession) stringsField(keys []string) []string {
	var s []string
	raw.lookup(keys, &s)
	return s
}
