// Package trace renders curation sessions as canonical JSON for golden
// comparison. A snapshot holds the full history log plus the final
// resolved selection; two runs of the same scenario produce identical
// bytes or they are not the same scenario.
package trace

import (
	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/wizard"
)

// Snapshot is the deterministic record of one session.
type Snapshot struct {
	Scenario string
	Entries  []*wizard.Entry
	Final    wizard.SelectionState
}

// Capture builds a snapshot from a finished session's history and
// resolved state.
func Capture(scenario string, entries []*wizard.Entry, final wizard.SelectionState) Snapshot {
	return Snapshot{Scenario: scenario, Entries: entries, Final: final}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	events := make([]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		events = append(events, eventMap(e))
	}
	return MarshalCanonical(map[string]any{
		"scenario": s.Scenario,
		"events":   events,
		"final":    stateMap(s.Final),
	})
}

// eventMap flattens one history entry. Empty task fields are omitted;
// outcome fields keep the same treatment except selected, which stays
// even when empty because a cleared selection is an outcome.
func eventMap(e *wizard.Entry) map[string]any {
	m := map[string]any{
		"seq":    e.Seq,
		"action": e.Kind.String(),
		"target": e.Target.String(),
	}
	if e.Token != "" {
		m["flow"] = e.Token
	}
	if len(e.Clusters) > 0 {
		m["clusters"] = idList(e.Clusters)
	}
	if len(e.Elements) > 0 {
		m["elements"] = elementList(e.Elements)
	}
	if e.Field != "" {
		m["field"] = e.Field
	}
	if e.Value != "" {
		m["value"] = e.Value
	}
	if e.Quiet {
		m["quiet"] = true
	}
	if sel := e.Outcome.Selection; sel != nil {
		m["selected"] = idList(sel.Selected)
		if sel.Next != nil {
			m["next"] = int64(*sel.Next)
		}
	}
	if up := e.Outcome.Update; up != nil {
		if len(up.Added) > 0 {
			m["added"] = idList(up.Added)
		}
		if len(up.Deleted) > 0 {
			m["deleted"] = idList(up.Deleted)
		}
		if len(up.MetadataChanged) > 0 {
			m["changed"] = idList(up.MetadataChanged)
		}
		if up.Replay {
			m["replay"] = true
		}
	}
	return m
}

func stateMap(st wizard.SelectionState) map[string]any {
	m := map[string]any{
		"primary":   idList(st.Primary),
		"secondary": idList(st.Secondary),
	}
	if st.PrimaryNext != nil {
		m["primary_next"] = int64(*st.PrimaryNext)
	}
	if st.SecondaryNext != nil {
		m["secondary_next"] = int64(*st.SecondaryNext)
	}
	return m
}

func idList(ids []cluster.ID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func elementList(elems []cluster.Element) []any {
	out := make([]any, len(elems))
	for i, el := range elems {
		out[i] = int64(el)
	}
	return out
}
