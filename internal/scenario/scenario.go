package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/curation"
)

// Scenario is one declarative curation session: a dataset, similarity
// rankings, the trigger steps to run, and expectations over the final
// state.
type Scenario struct {
	// Name uniquely identifies the scenario. Golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// FlowToken, when set, stamps every trigger with this one token.
	// When empty, triggers receive sequential "flow-NNNN" tokens.
	FlowToken string `yaml:"flow_token,omitempty"`

	// Fields declares metadata fields beyond the reserved group field.
	// Fields appearing under dataset labels are registered implicitly.
	Fields []string `yaml:"fields,omitempty"`

	// Dataset declares the clusters the session curates.
	Dataset Dataset `yaml:"dataset"`

	// Similarity ranks candidate clusters per cluster id, best first.
	// When set it replaces whatever the dataset file provides. Rankings
	// may name clusters that only exist later in the run; candidates
	// without a live row are dropped at refresh time.
	Similarity map[int64][]int64 `yaml:"similarity,omitempty"`

	// Steps is the trigger sequence, executed in order.
	Steps []Step `yaml:"steps"`

	// Expect is checked after the last step settles.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Dataset declares the session's clusters, either inline or as a path
// to a SQLite dataset file. Exactly one of the two forms must be used;
// the inline form may also carry explicit labels.
type Dataset struct {
	// Path points at a dataset file, resolved relative to the scenario
	// file when not absolute.
	Path string `yaml:"path,omitempty"`

	// Clusters declares the clusters inline.
	Clusters []ClusterSpec `yaml:"clusters,omitempty"`

	// Labels holds explicit metadata values, keyed by field then
	// cluster id. The group field is allowed here.
	Labels map[string]map[int64]string `yaml:"labels,omitempty"`
}

// ClusterSpec declares one inline cluster through its explicit element
// ids or a bare element count, never both. Counted clusters receive
// consecutive element ids after the highest explicit one.
type ClusterSpec struct {
	ID       int64   `yaml:"id"`
	Elements []int64 `yaml:"elements,omitempty"`
	Count    int     `yaml:"count,omitempty"`
}

// Step is one trigger. Action selects the verb; the remaining fields
// carry its arguments and must match the verb's shape.
type Step struct {
	Action   string  `yaml:"action"`
	Clusters []int64 `yaml:"clusters,omitempty"`
	Elements []int64 `yaml:"elements,omitempty"`
	Group    string  `yaml:"group,omitempty"`
	Field    string  `yaml:"field,omitempty"`
	Value    string  `yaml:"value,omitempty"`
	Scope    string  `yaml:"scope,omitempty"`
}

// Step actions, mirroring the curator's trigger surface.
const (
	ActionSelect       = "select"
	ActionClickSimilar = "click_similar"
	ActionNext         = "next"
	ActionPrevious     = "previous"
	ActionNextBest     = "next_best"
	ActionPreviousBest = "previous_best"
	ActionReset        = "reset"
	ActionMerge        = "merge"
	ActionSplit        = "split"
	ActionMove         = "move"
	ActionLabel        = "label"
	ActionUndo         = "undo"
	ActionRedo         = "redo"
	ActionSave         = "save"
	ActionWait         = "wait"
)

// Expect is the final-state expectation block. Absent fields are not
// checked. Selection lists compare order-sensitively; an explicitly
// empty list asserts an empty selection.
type Expect struct {
	// Primary and Secondary are the resolved selections per surface.
	Primary   []int64 `yaml:"primary,omitempty"`
	Secondary []int64 `yaml:"secondary,omitempty"`

	// PrimaryNext and SecondaryNext are the surfaces' next candidates.
	PrimaryNext   *int64 `yaml:"primary_next,omitempty"`
	SecondaryNext *int64 `yaml:"secondary_next,omitempty"`

	// Groups maps cluster ids to their expected group value.
	Groups map[int64]string `yaml:"groups,omitempty"`

	// Labels maps field names to expected per-cluster values.
	Labels map[string]map[int64]string `yaml:"labels,omitempty"`

	// History is the expected history log length.
	History *int `yaml:"history,omitempty"`

	// Notifications is the expected selection-changed broadcast count.
	Notifications *int `yaml:"notifications,omitempty"`
}

// Load reads and validates a scenario file. Strict YAML decoding and
// the embedded CUE schema reject malformed documents before semantic
// checks reject what a schema cannot see, such as a dataset that is
// both inline and file-backed. A relative dataset path is resolved
// against the scenario file's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSchema(path, data); err != nil {
		return nil, err
	}

	if s.Dataset.Path != "" && !filepath.IsAbs(s.Dataset.Path) {
		s.Dataset.Path = filepath.Join(filepath.Dir(path), s.Dataset.Path)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks what the schema cannot: mutually exclusive
// dataset forms, duplicate declarations, and step arguments that
// contradict their verb.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if err := validateFields(s.Fields); err != nil {
		return err
	}
	if err := validateDataset(&s.Dataset); err != nil {
		return err
	}

	for i := range s.Steps {
		if err := validateStep(i, s.Steps[i]); err != nil {
			return err
		}
	}

	// For inline datasets every label target and label-step field is
	// checkable now. File-backed datasets carry their own fields, so
	// those checks wait until the store is opened.
	if s.Dataset.Path == "" {
		if err := validateInlineRefs(s); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(fields []string) error {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f == "" {
			return fmt.Errorf("fields[%d]: name must not be empty", i)
		}
		if f == cluster.GroupField {
			return fmt.Errorf("fields[%d]: the %s field is implicit", i, cluster.GroupField)
		}
		if _, ok := seen[f]; ok {
			return fmt.Errorf("fields[%d]: duplicate field %q", i, f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func validateDataset(d *Dataset) error {
	if d.Path != "" {
		if len(d.Clusters) > 0 || len(d.Labels) > 0 {
			return fmt.Errorf("dataset: path excludes inline clusters and labels")
		}
		if _, err := os.Stat(d.Path); os.IsNotExist(err) {
			return fmt.Errorf("dataset file not found: %s", d.Path)
		}
		return nil
	}
	if len(d.Clusters) == 0 {
		return fmt.Errorf("dataset: either path or clusters is required")
	}

	ids := make(map[int64]struct{}, len(d.Clusters))
	elements := make(map[int64]int64)
	for i, cs := range d.Clusters {
		if _, ok := ids[cs.ID]; ok {
			return fmt.Errorf("dataset.clusters[%d]: duplicate cluster %d", i, cs.ID)
		}
		ids[cs.ID] = struct{}{}
		if len(cs.Elements) > 0 && cs.Count > 0 {
			return fmt.Errorf("dataset.clusters[%d]: elements and count are mutually exclusive", i)
		}
		for _, el := range cs.Elements {
			if prev, ok := elements[el]; ok {
				return fmt.Errorf("dataset.clusters[%d]: element %d already in cluster %d", i, el, prev)
			}
			elements[el] = cs.ID
		}
	}

	for field, byID := range d.Labels {
		if field == "" {
			return fmt.Errorf("dataset.labels: field name must not be empty")
		}
		for id := range byID {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("dataset.labels[%s]: unknown cluster %d", field, id)
			}
		}
	}
	return nil
}

// stepShapes lists, per action, which step fields the verb consumes.
// Fields outside the shape fail validation so a typo fails loudly
// instead of silently not mattering.
var stepShapes = map[string]struct {
	clusters, elements, group, field, value, scope bool
}{
	ActionSelect:       {clusters: true},
	ActionClickSimilar: {clusters: true},
	ActionNext:         {},
	ActionPrevious:     {},
	ActionNextBest:     {},
	ActionPreviousBest: {},
	ActionReset:        {},
	ActionMerge:        {clusters: true},
	ActionSplit:        {elements: true},
	ActionMove:         {group: true, scope: true},
	ActionLabel:        {field: true, value: true, scope: true},
	ActionUndo:         {},
	ActionRedo:         {},
	ActionSave:         {},
	ActionWait:         {},
}

func validateStep(i int, step Step) error {
	if step.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", i)
	}
	shape, ok := stepShapes[step.Action]
	if !ok {
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}

	switch {
	case !shape.clusters && len(step.Clusters) > 0:
		return fmt.Errorf("steps[%d]: %s does not take clusters", i, step.Action)
	case !shape.elements && len(step.Elements) > 0:
		return fmt.Errorf("steps[%d]: %s does not take elements", i, step.Action)
	case !shape.group && step.Group != "":
		return fmt.Errorf("steps[%d]: %s does not take a group", i, step.Action)
	case !shape.field && step.Field != "":
		return fmt.Errorf("steps[%d]: %s does not take a field", i, step.Action)
	case !shape.value && step.Value != "":
		return fmt.Errorf("steps[%d]: %s does not take a value", i, step.Action)
	case !shape.scope && step.Scope != "":
		return fmt.Errorf("steps[%d]: %s does not take a scope", i, step.Action)
	}

	switch step.Action {
	case ActionSelect, ActionClickSimilar:
		if len(step.Clusters) == 0 {
			return fmt.Errorf("steps[%d]: %s requires clusters", i, step.Action)
		}
	case ActionMerge:
		if len(step.Clusters) == 1 {
			return fmt.Errorf("steps[%d]: merge requires at least two clusters", i)
		}
	case ActionSplit:
		if len(step.Elements) == 0 {
			return fmt.Errorf("steps[%d]: split requires elements", i)
		}
	case ActionMove:
		if step.Group == "" {
			return fmt.Errorf("steps[%d]: move requires a group", i)
		}
	case ActionLabel:
		if step.Field == "" {
			return fmt.Errorf("steps[%d]: label requires a field", i)
		}
		if step.Field == cluster.GroupField {
			return fmt.Errorf("steps[%d]: the %s field is reserved, use move", i, cluster.GroupField)
		}
	}

	if step.Scope != "" {
		if _, err := curation.ParseScope(step.Scope); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

// validateInlineRefs cross-checks label steps against the fields an
// inline dataset will register.
func validateInlineRefs(s *Scenario) error {
	known := make(map[string]struct{}, len(s.Fields)+len(s.Dataset.Labels))
	for _, f := range s.Fields {
		known[f] = struct{}{}
	}
	for f := range s.Dataset.Labels {
		known[f] = struct{}{}
	}

	for i, step := range s.Steps {
		if step.Action != ActionLabel {
			continue
		}
		if _, ok := known[step.Field]; !ok {
			return fmt.Errorf("steps[%d]: label field %q is not declared", i, step.Field)
		}
	}

	if s.Expect == nil {
		return nil
	}
	fields := make([]string, 0, len(s.Expect.Labels))
	for f := range s.Expect.Labels {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	for _, f := range fields {
		if f == cluster.GroupField {
			return fmt.Errorf("expect.labels: use expect.groups for the %s field", cluster.GroupField)
		}
		if _, ok := known[f]; !ok {
			return fmt.Errorf("expect.labels: field %q is not declared", f)
		}
	}
	return nil
}
