package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/curation"
	"github.com/roach88/curator/internal/dataset"
	"github.com/roach88/curator/internal/testutil"
	"github.com/roach88/curator/internal/trace"
	"github.com/roach88/curator/internal/wizard"
)

// Result captures a single scenario run.
type Result struct {
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	Errors        []string `json:"errors,omitempty"`
	Notifications int      `json:"notifications"`

	// Snapshot is the canonical trace of the run, used for golden
	// comparisons and trace output.
	Snapshot trace.Snapshot `json:"-"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// RunOption configures a scenario run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes the curator's log output during the run.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// Run executes the scenario and evaluates its expectations. The
// returned error reports infrastructure failures only; step and
// expectation failures land in the result.
func Run(ctx context.Context, s *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	result := NewResult(s.Name)

	sess, err := newSession(ctx, s, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	defer sess.Close()

	removeNotify := sess.cur.OnSelectionChanged(func(curation.SelectionChange) {
		result.Notifications++
	})
	defer removeNotify()

	if sess.store != nil {
		removeSave := sess.cur.OnSaveRequest(func(req curation.SaveRequest) {
			if err := sess.store.SaveSnapshot(ctx, req.Groups, req.Labels); err != nil {
				result.AddError(fmt.Sprintf("save snapshot: %v", err))
			}
		})
		defer removeSave()
	}

	for i, step := range s.Steps {
		if err := runStep(ctx, sess.cur, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Action, err))
			break
		}
	}

	if err := sess.cur.Wait(ctx); err != nil {
		result.AddError(fmt.Sprintf("wait: %v", err))
	}

	evaluate(result, s.Expect, sess.cur)
	result.Snapshot = trace.Capture(s.Name, sess.cur.History(), sess.cur.Resolve())
	return result, nil
}

// session wires a curator over an inline dataset or a SQLite store.
type session struct {
	cur   *curation.Curator
	store *dataset.Store
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

func newSession(ctx context.Context, s *Scenario, logger *slog.Logger) (*session, error) {
	var (
		sess     session
		members  map[cluster.ID][]cluster.Element
		labels   map[string]map[cluster.ID]string
		rankings map[cluster.ID][]curation.Candidate
	)

	if s.Dataset.Path != "" {
		store, err := dataset.Open(s.Dataset.Path)
		if err != nil {
			return nil, err
		}
		contents, err := store.Load(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		sess.store = store
		members = contents.Members
		labels = contents.Labels
		rankings = neighborRankings(contents.Similarity)
	} else {
		members = inlineMembers(s.Dataset.Clusters)
		labels = inlineLabels(s.Dataset.Labels)
	}

	// Scenario rankings replace the dataset's wholesale.
	if len(s.Similarity) > 0 {
		rankings = inlineRankings(s.Similarity)
	}

	assign, err := cluster.NewAssignment(members)
	if err != nil {
		sess.Close()
		return nil, err
	}
	meta, err := cluster.NewMetadata(fieldSpecs(s.Fields, labels)...)
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := applyLabels(meta, labels); err != nil {
		sess.Close()
		return nil, err
	}

	var gen wizard.TokenGenerator
	if s.FlowToken != "" {
		gen = testutil.NewFixedFlowGenerator(s.FlowToken)
	} else {
		gen = wizard.NewFixedGenerator("flow")
	}

	cur, err := curation.New(assign, meta,
		curation.WithLogger(logger),
		curation.WithSimilarity(func(id cluster.ID) []curation.Candidate {
			return rankings[id]
		}),
		curation.WithTokenGenerator(gen),
	)
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.cur = cur
	return &sess, nil
}

// inlineMembers expands inline cluster declarations. Counted clusters
// receive consecutive element ids after the highest explicit one, in
// declaration order.
func inlineMembers(specs []ClusterSpec) map[cluster.ID][]cluster.Element {
	next := cluster.Element(0)
	for _, cs := range specs {
		for _, el := range cs.Elements {
			if e := cluster.Element(el); e >= next {
				next = e + 1
			}
		}
	}

	members := make(map[cluster.ID][]cluster.Element, len(specs))
	for _, cs := range specs {
		elems := make([]cluster.Element, 0, max(len(cs.Elements), cs.Count))
		for _, el := range cs.Elements {
			elems = append(elems, cluster.Element(el))
		}
		for range cs.Count {
			elems = append(elems, next)
			next++
		}
		members[cluster.ID(cs.ID)] = elems
	}
	return members
}

func inlineLabels(in map[string]map[int64]string) map[string]map[cluster.ID]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[cluster.ID]string, len(in))
	for field, byID := range in {
		vals := make(map[cluster.ID]string, len(byID))
		for id, v := range byID {
			vals[cluster.ID(id)] = v
		}
		out[field] = vals
	}
	return out
}

// inlineRankings converts ranked id lists to scored candidates with
// synthetic descending scores.
func inlineRankings(in map[int64][]int64) map[cluster.ID][]curation.Candidate {
	out := make(map[cluster.ID][]curation.Candidate, len(in))
	for id, ranked := range in {
		cands := make([]curation.Candidate, len(ranked))
		for i, c := range ranked {
			cands[i] = curation.Candidate{ID: cluster.ID(c), Score: float64(len(ranked) - i)}
		}
		out[cluster.ID(id)] = cands
	}
	return out
}

func neighborRankings(in map[cluster.ID][]dataset.Neighbor) map[cluster.ID][]curation.Candidate {
	out := make(map[cluster.ID][]curation.Candidate, len(in))
	for id, neighbors := range in {
		cands := make([]curation.Candidate, len(neighbors))
		for i, n := range neighbors {
			cands[i] = curation.Candidate{ID: n.ID, Score: n.Score}
		}
		out[id] = cands
	}
	return out
}

// fieldSpecs merges declared fields with the fields labels introduce.
// Declared fields keep their order; label-only fields follow, sorted.
func fieldSpecs(declared []string, labels map[string]map[cluster.ID]string) []cluster.FieldSpec {
	specs := make([]cluster.FieldSpec, 0, len(declared)+len(labels))
	seen := make(map[string]struct{}, len(declared)+len(labels))
	for _, f := range declared {
		specs = append(specs, cluster.FieldSpec{Name: f})
		seen[f] = struct{}{}
	}

	extra := make([]string, 0, len(labels))
	for f := range labels {
		if _, ok := seen[f]; ok || f == cluster.GroupField {
			continue
		}
		extra = append(extra, f)
	}
	slices.Sort(extra)
	for _, f := range extra {
		specs = append(specs, cluster.FieldSpec{Name: f})
	}
	return specs
}

// applyLabels seeds metadata values one cluster at a time, in sorted
// order so failures are deterministic.
func applyLabels(meta *cluster.Metadata, labels map[string]map[cluster.ID]string) error {
	fields := make([]string, 0, len(labels))
	for f := range labels {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	for _, field := range fields {
		byID := labels[field]
		ids := make([]cluster.ID, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if _, err := meta.Set(field, []cluster.ID{id}, byID[id]); err != nil {
				return fmt.Errorf("label %s of cluster %d: %w", field, id, err)
			}
		}
	}
	return nil
}

func runStep(ctx context.Context, cur *curation.Curator, step Step) error {
	switch step.Action {
	case ActionSelect:
		return cur.Select(toIDs(step.Clusters)...)
	case ActionClickSimilar:
		return cur.SelectSimilar(toIDs(step.Clusters)...)
	case ActionNext:
		return cur.Next()
	case ActionPrevious:
		return cur.Previous()
	case ActionNextBest:
		return cur.NextBest()
	case ActionPreviousBest:
		return cur.PreviousBest()
	case ActionReset:
		return cur.Reset()
	case ActionMerge:
		return cur.Merge(ctx, toIDs(step.Clusters)...)
	case ActionSplit:
		return cur.Split(ctx, toElements(step.Elements)...)
	case ActionMove:
		scope, err := stepScope(step.Scope)
		if err != nil {
			return err
		}
		return cur.Move(ctx, step.Group, scope)
	case ActionLabel:
		scope, err := stepScope(step.Scope)
		if err != nil {
			return err
		}
		return cur.Label(ctx, step.Field, step.Value, scope)
	case ActionUndo:
		return cur.Undo(ctx)
	case ActionRedo:
		return cur.Redo(ctx)
	case ActionSave:
		return cur.RequestSave(ctx)
	case ActionWait:
		return cur.Wait(ctx)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// stepScope defaults an absent scope to the best match.
func stepScope(s string) (curation.Scope, error) {
	if s == "" {
		return curation.ScopeBest, nil
	}
	return curation.ParseScope(s)
}

func toIDs(in []int64) []cluster.ID {
	out := make([]cluster.ID, len(in))
	for i, v := range in {
		out[i] = cluster.ID(v)
	}
	return out
}

func toElements(in []int64) []cluster.Element {
	out := make([]cluster.Element, len(in))
	for i, v := range in {
		out[i] = cluster.Element(v)
	}
	return out
}

// evaluate checks the expectation block against the settled curator.
func evaluate(result *Result, expect *Expect, cur *curation.Curator) {
	if expect == nil {
		return
	}
	st := cur.Resolve()

	if expect.Primary != nil {
		checkSelection(result, "primary selection", expect.Primary, st.Primary)
	}
	if expect.Secondary != nil {
		checkSelection(result, "secondary selection", expect.Secondary, st.Secondary)
	}
	checkNext(result, "primary next", expect.PrimaryNext, st.PrimaryNext)
	checkNext(result, "secondary next", expect.SecondaryNext, st.SecondaryNext)

	meta := cur.Metadata()
	for _, id := range sortedKeys(expect.Groups) {
		want := expect.Groups[id]
		if got := meta.Get(cluster.GroupField, cluster.ID(id)); got != want {
			result.AddError(fmt.Sprintf("group of cluster %d: want %q, got %q", id, want, got))
		}
	}

	for _, field := range sortedFields(expect.Labels) {
		if !meta.HasField(field) {
			result.AddError(fmt.Sprintf("label field %q not registered", field))
			continue
		}
		byID := expect.Labels[field]
		for _, id := range sortedKeys(byID) {
			want := byID[id]
			if got := meta.Get(field, cluster.ID(id)); got != want {
				result.AddError(fmt.Sprintf("label %s of cluster %d: want %q, got %q", field, id, want, got))
			}
		}
	}

	if expect.History != nil {
		if got := len(cur.History()); got != *expect.History {
			result.AddError(fmt.Sprintf("history length: want %d, got %d", *expect.History, got))
		}
	}
	if expect.Notifications != nil && result.Notifications != *expect.Notifications {
		result.AddError(fmt.Sprintf("notifications: want %d, got %d", *expect.Notifications, result.Notifications))
	}
}

func checkSelection(result *Result, what string, want []int64, got []cluster.ID) {
	if slices.Equal(toIDs(want), got) {
		return
	}
	result.AddError(fmt.Sprintf("%s: want %v, got %v", what, want, got))
}

func checkNext(result *Result, what string, want *int64, got *cluster.ID) {
	if want == nil {
		return
	}
	if got == nil {
		result.AddError(fmt.Sprintf("%s: want %d, got none", what, *want))
		return
	}
	if cluster.ID(*want) != *got {
		result.AddError(fmt.Sprintf("%s: want %d, got %d", what, *want, *got))
	}
}

func sortedKeys(m map[int64]string) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sortedFields(m map[string]map[int64]string) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}
