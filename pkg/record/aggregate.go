package record

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// OwnedRecord is a UsageRecord tagged with the machine that recorded it.
type OwnedRecord struct {
	UsageRecord
	MachineID string
}

// Aggregate combines the record sets of all machines into a single view
// keyed by record ID.
//
// Record IDs are derived from machine-local data, so the same ID showing up
// on two machines isn't expected. If it happens anyway, machines are applied
// in lexical order and the last one wins.
func Aggregate(sets map[string]RecordSet) map[string]OwnedRecord {
	var machineIDs []string
	for id := range sets {
		machineIDs = append(machineIDs, id)
	}
	sort.Strings(machineIDs)

	view := map[string]OwnedRecord{}
	for _, machineID := range machineIDs {
		for id, r := range sets[machineID].Sessions {
			if prev, ok := view[id]; ok && prev.MachineID != machineID {
				log.WithFields(log.Fields{
					"session":  id,
					"previous": prev.MachineID,
					"machine":  machineID,
				}).Debug("Session recorded by multiple machines")
			}
			view[id] = OwnedRecord{UsageRecord: r, MachineID: machineID}
		}
	}
	return view
}

// GroupBy selects the key that Summarize groups records by.
type GroupBy string

const (
	// ByProject groups records by their project path.
	ByProject GroupBy = "project"

	// ByMachine groups records by the machine that recorded them.
	ByMachine GroupBy = "machine"
)

func (g GroupBy) key(r OwnedRecord) string {
	if g == ByMachine {
		return r.MachineID
	}
	return r.ProjectPath
}

// Summary is the usage of a group of records.
type Summary struct {
	Key          string
	Sessions     int
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	TotalCost    float64

	// LastActivity is the latest LastActivity of any record in the group.
	LastActivity string
}

// Summarize groups the aggregated view and totals each group. The summaries
// are sorted by cost, most expensive first.
func Summarize(view map[string]OwnedRecord, by GroupBy) []Summary {
	groups := map[string]*Summary{}
	for _, r := range view {
		key := by.key(r)
		summary, ok := groups[key]
		if !ok {
			summary = &Summary{Key: key}
			groups[key] = summary
		}

		summary.Sessions++
		summary.InputTokens += r.InputTokens
		summary.OutputTokens += r.OutputTokens
		summary.TotalTokens += r.Tokens()
		summary.TotalCost += r.TotalCost
		// ISO-8601 timestamps in the same format sort lexically.
		if r.LastActivity > summary.LastActivity {
			summary.LastActivity = r.LastActivity
		}
	}

	summaries := make([]Summary, 0, len(groups))
	for _, summary := range groups {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalCost != summaries[j].TotalCost {
			return summaries[i].TotalCost > summaries[j].TotalCost
		}
		return summaries[i].Key < summaries[j].Key
	})
	return summaries
}
