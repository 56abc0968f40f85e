package record

import (
	"bytes"
	"encoding/json"

	"github.com/sidkik/ccledger/pkg/errors"
)

// Parse decodes the contents of a record file. Empty files, malformed JSON
// and files without a sessions object are rejected, since they're usually
// the result of a partially written or partially synced file.
func Parse(data []byte) (RecordSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return RecordSet{}, errors.New("empty record file")
	}

	var set RecordSet
	if err := json.Unmarshal(data, &set); err != nil {
		return RecordSet{}, errors.WithContext(err, "unmarshal")
	}

	if set.Sessions == nil {
		return RecordSet{}, errors.MissingFieldError{Field: "sessions"}
	}
	if set.Syncs == nil {
		set.Syncs = []SyncEvent{}
	}
	return set, nil
}

// Marshal encodes a record set in the record file format.
func Marshal(set RecordSet) ([]byte, error) {
	if set.Sessions == nil {
		set.Sessions = map[string]UsageRecord{}
	}
	if set.Syncs == nil {
		set.Syncs = []SyncEvent{}
	}
	return json.MarshalIndent(set, "", "  ")
}
