package cluster

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// GroupField is the reserved metadata field. Group values drive row
// masking on the selection surfaces and are what "move" writes.
const GroupField = "group"

var (
	// ErrUnknownField rejects access to an unregistered metadata field.
	ErrUnknownField = errors.New("unknown metadata field")
	// ErrDuplicateField rejects registering a field name twice.
	ErrDuplicateField = errors.New("duplicate metadata field")
	// ErrNoTargets rejects a metadata write with no cluster ids.
	ErrNoTargets = errors.New("metadata write needs at least one cluster")
)

// FieldSpec declares a metadata field and its default value.
type FieldSpec struct {
	Name    string
	Default string
}

// Metadata is the per-cluster metadata store. Fields are registered at
// construction; the reserved group field is always present. Values equal
// to the field default are not stored.
//
// Metadata is not safe for concurrent use.
type Metadata struct {
	fields map[string]FieldSpec
	order  []string
	values map[string]map[ID]string
}

// NewMetadata builds a store with the given fields. The group field is
// prepended automatically when not declared.
func NewMetadata(fields ...FieldSpec) (*Metadata, error) {
	m := &Metadata{
		fields: make(map[string]FieldSpec, len(fields)+1),
		values: make(map[string]map[ID]string, len(fields)+1),
	}
	declared := slices.ContainsFunc(fields, func(f FieldSpec) bool { return f.Name == GroupField })
	if !declared {
		fields = append([]FieldSpec{{Name: GroupField}}, fields...)
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.New("metadata field name must not be empty")
		}
		if _, ok := m.fields[f.Name]; ok {
			return nil, fmt.Errorf("field %q: %w", f.Name, ErrDuplicateField)
		}
		m.fields[f.Name] = f
		m.order = append(m.order, f.Name)
		m.values[f.Name] = make(map[ID]string)
	}
	return m, nil
}

// Fields returns the field names in registration order.
func (m *Metadata) Fields() []string {
	return slices.Clone(m.order)
}

// HasField reports whether name is registered.
func (m *Metadata) HasField(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// DefaultValue returns the default for a registered field, "" otherwise.
func (m *Metadata) DefaultValue(field string) string {
	return m.fields[field].Default
}

// Get returns the value of field for id, falling back to the field
// default when unset.
func (m *Metadata) Get(field string, id ID) string {
	if v, ok := m.values[field][id]; ok {
		return v
	}
	return m.fields[field].Default
}

// Set writes value to field for every id and returns the metadata
// outcome. Writing the field default clears the stored value.
func (m *Metadata) Set(field string, ids []ID, value string) (UpdateInfo, error) {
	if !m.HasField(field) {
		return UpdateInfo{}, fmt.Errorf("field %q: %w", field, ErrUnknownField)
	}
	if len(ids) == 0 {
		return UpdateInfo{}, fmt.Errorf("field %q: %w", field, ErrNoTargets)
	}
	changed := SortedIDs(UniqueIDs(ids))
	for _, id := range changed {
		m.write(field, id, value)
	}
	return UpdateInfo{
		Kind:            OpMetadata,
		Field:           field,
		MetadataChanged: changed,
		MetadataValue:   value,
	}, nil
}

// ApplyDescendants propagates metadata from retired clusters to the
// clusters that inherited their elements. A new cluster inherits a
// field when its ancestors agree on one non-default value; on conflict
// the largest ancestor's value wins, and the field stays default when
// the largest ancestor has none. Inherited writes are not recorded as
// outcomes; the surrounding mutation's checkpoint covers them.
func (m *Metadata) ApplyDescendants(descendants map[ID][]ID, largestOld ID) {
	if len(descendants) == 0 {
		return
	}
	olds := make([]ID, 0, len(descendants))
	for old := range descendants {
		olds = append(olds, old)
	}
	slices.Sort(olds)

	for _, field := range m.order {
		def := m.fields[field].Default
		candidates := make(map[ID]map[ID]string)
		for _, old := range olds {
			v := m.Get(field, old)
			if v == def {
				continue
			}
			for _, nw := range descendants[old] {
				if candidates[nw] == nil {
					candidates[nw] = make(map[ID]string)
				}
				candidates[nw][old] = v
			}
		}
		for nw, byOld := range candidates {
			values := make(map[string]struct{}, len(byOld))
			for _, v := range byOld {
				values[v] = struct{}{}
			}
			switch {
			case len(values) == 1:
				for _, v := range byOld {
					m.write(field, nw, v)
					break
				}
			default:
				if v, ok := byOld[largestOld]; ok {
					m.write(field, nw, v)
				}
			}
		}
	}
}

// Values returns the non-default values of field, keyed by cluster id.
func (m *Metadata) Values(field string) map[ID]string {
	return maps.Clone(m.values[field])
}

func (m *Metadata) write(field string, id ID, value string) {
	if value == m.fields[field].Default {
		delete(m.values[field], id)
		return
	}
	m.values[field][id] = value
}

type metaState struct {
	values map[string]map[ID]string
}

func (m *Metadata) snapshot() metaState {
	values := make(map[string]map[ID]string, len(m.values))
	for field, byID := range m.values {
		values[field] = maps.Clone(byID)
	}
	return metaState{values: values}
}

func (m *Metadata) restore(s metaState) {
	m.values = make(map[string]map[ID]string, len(s.values))
	for field, byID := range s.values {
		m.values[field] = maps.Clone(byID)
	}
}
