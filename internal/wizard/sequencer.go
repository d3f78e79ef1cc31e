package wizard

import (
	"context"
	"log/slog"
	"sync"
)

// CompletionMode fixes, at registration time, how a target's tasks
// report completion. The mode is resolved once; nothing is inspected
// per call.
type CompletionMode int

const (
	// CallbackCompletion hands the runner an explicit complete callback
	// it must invoke exactly once, synchronously or later.
	CallbackCompletion CompletionMode = iota + 1

	// NotificationCompletion captures the first notification from the
	// registration's Source after Start as the task's outcome, then
	// unsubscribes immediately.
	NotificationCompletion
)

// CompleteFunc reports a task's outcome.
type CompleteFunc func(Outcome)

// Notifier is the outcome channel of a notification-completion target.
// The remove function must be idempotent and callable while an emit is
// in flight.
type Notifier interface {
	OnOutcome(fn func(Outcome)) (remove func())
}

// Registration describes how one target's tasks run and complete.
// Exactly the fields matching Mode may be set.
type Registration struct {
	Mode CompletionMode

	// Run executes a task under CallbackCompletion.
	Run func(Task, CompleteFunc) error

	// Start launches a task under NotificationCompletion; its outcome
	// arrives through Source.
	Start func(Task) error

	// Source supplies outcomes under NotificationCompletion.
	Source Notifier
}

// Sequencer owns the task queue and the history log and drains them:
// pop one task, execute it, await its completion, append the outcome,
// enqueue the derived follow-ups, repeat until the queue empties. The
// whole follow-up chain of a trigger resolves before control returns
// to it.
//
// Exactly one task is ever mid-execution; Process is re-entrant and
// returns immediately while one is. There is no cancellation: every
// enqueued task eventually executes, and the sequencer waits
// indefinitely for a completion signal.
type Sequencer struct {
	queue    *taskQueue
	log      *Log
	resolver *Resolver
	rules    *RuleSet
	tokens   TokenGenerator
	logger   *slog.Logger
	regs     map[Target]Registration

	mu        sync.Mutex
	executing bool
	flow      string
	failure   error
	settled   chan struct{}
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithLogger sets the sequencer's logger; the log and rules share it.
func WithLogger(logger *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.logger = logger }
}

// WithTokenGenerator replaces the UUIDv7 flow token source, typically
// with a FixedGenerator in tests.
func WithTokenGenerator(gen TokenGenerator) SequencerOption {
	return func(s *Sequencer) { s.tokens = gen }
}

// NewSequencer creates an idle sequencer with an empty queue and log.
func NewSequencer(opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		queue:  newTaskQueue(),
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
		regs:   make(map[Target]Registration),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = NewLog(s.logger)
	s.resolver = NewResolver(s.log)
	s.rules = NewRuleSet(s.log, s.resolver, s.logger)
	return s
}

// Log returns the history log.
func (s *Sequencer) Log() *Log { return s.log }

// Resolver returns the selection-state resolver over the log.
func (s *Sequencer) Resolver() *Resolver { return s.resolver }

// Register installs the registration for one target. Registrations
// whose fields do not match their mode are rejected here, not when a
// task runs.
func (s *Sequencer) Register(target Target, reg Registration) error {
	switch target {
	case TargetPrimary, TargetSecondary, TargetCoordinator:
	default:
		return newBadRegistrationError(target, "unknown target")
	}
	switch reg.Mode {
	case CallbackCompletion:
		if reg.Run == nil {
			return newBadRegistrationError(target, "callback completion needs Run")
		}
		if reg.Start != nil || reg.Source != nil {
			return newBadRegistrationError(target, "callback completion takes only Run")
		}
	case NotificationCompletion:
		if reg.Start == nil || reg.Source == nil {
			return newBadRegistrationError(target, "notification completion needs Start and Source")
		}
		if reg.Run != nil {
			return newBadRegistrationError(target, "notification completion does not take Run")
		}
	default:
		return newBadRegistrationError(target, "unknown completion mode")
	}
	s.regs[target] = reg
	return nil
}

// Enqueue validates a task, stamps a flow token when it has none, and
// appends it to the queue. Nothing executes synchronously here.
func (s *Sequencer) Enqueue(t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Token == "" {
		t.Token = s.tokens.Generate()
	}
	s.queue.Enqueue(t)
	s.logger.Debug("task enqueued",
		"kind", t.Kind.String(), "target", t.Target.String(), "token", t.Token)
	return nil
}

// Submit enqueues a task and drains the queue.
func (s *Sequencer) Submit(t Task) error {
	if err := s.Enqueue(t); err != nil {
		return err
	}
	return s.Process()
}

// Process drains the queue. While a task is already executing it
// returns immediately; the in-flight completion resumes the drain.
// Runner errors propagate to the caller; errors raised inside a drain
// resumed by an asynchronous completion surface on the next Process or
// Wait call.
func (s *Sequencer) Process() error {
	s.mu.Lock()
	if s.executing {
		s.mu.Unlock()
		return nil
	}
	task, ok := s.queue.TryDequeue()
	if !ok {
		err := s.failure
		s.failure = nil
		s.settleLocked()
		s.mu.Unlock()
		return err
	}
	s.executing = true
	s.flow = task.Token
	s.mu.Unlock()

	if err := s.dispatch(task); err != nil {
		s.mu.Lock()
		s.executing = false
		s.settleIfFinishedLocked()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.executing {
		// Completion is still pending; it will resume the drain.
		return nil
	}
	err := s.failure
	s.failure = nil
	return err
}

// Finished reports whether the queue is empty and nothing is executing.
func (s *Sequencer) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.executing && s.queue.Len() == 0
}

// Wait blocks cooperatively until the sequencer is finished or ctx
// expires, and surfaces any failure recorded by an asynchronous drain.
func (s *Sequencer) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.executing && s.queue.Len() == 0 {
			err := s.failure
			s.failure = nil
			s.mu.Unlock()
			return err
		}
		if s.settled == nil {
			s.settled = make(chan struct{})
		}
		ch := s.settled
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Record appends a surface-originated entry to the history log without
// deriving follow-ups. Surfaces report their selection changes through
// it, so user clicks and task-driven selections share one record shape
// and consecutive duplicates collapse. An echo recorded while a task is
// executing inherits that task's flow token.
func (s *Sequencer) Record(task Task, out Outcome) {
	s.mu.Lock()
	if task.Token == "" && s.executing {
		task.Token = s.flow
	}
	s.mu.Unlock()
	s.log.Append(task, out)
}

func (s *Sequencer) dispatch(t Task) error {
	reg, ok := s.regs[t.Target]
	if !ok {
		return newNoRegistrationError(t)
	}
	s.logger.Debug("task running",
		"kind", t.Kind.String(), "target", t.Target.String(), "token", t.Token)

	switch reg.Mode {
	case CallbackCompletion:
		var once sync.Once
		return reg.Run(t, func(out Outcome) {
			once.Do(func() { s.complete(t, out) })
		})

	default: // NotificationCompletion, enforced at Register
		var (
			once   sync.Once
			remove func()
		)
		remove = reg.Source.OnOutcome(func(out Outcome) {
			once.Do(func() {
				remove()
				s.complete(t, out)
			})
		})
		if err := reg.Start(t); err != nil {
			// Consume the once so a late notification cannot complete
			// a task that already failed.
			once.Do(remove)
			return err
		}
		return nil
	}
}

// complete appends the outcome, enqueues the derived follow-ups under
// the completed task's token, and resumes the drain.
func (s *Sequencer) complete(task Task, out Outcome) {
	entry, appended := s.log.Append(task, out)
	s.logger.Debug("task completed",
		"kind", task.Kind.String(), "target", task.Target.String(),
		"seq", entry.Seq, "appended", appended)

	for _, f := range s.rules.FollowUps(entry) {
		f.Token = task.Token
		if err := s.Enqueue(f); err != nil {
			s.recordFailure(err)
		}
	}

	s.mu.Lock()
	s.executing = false
	s.mu.Unlock()

	if err := s.Process(); err != nil {
		s.recordFailure(err)
	}
}

func (s *Sequencer) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		s.failure = err
	}
}

func (s *Sequencer) settleLocked() {
	if s.settled != nil {
		close(s.settled)
		s.settled = nil
	}
}

func (s *Sequencer) settleIfFinishedLocked() {
	if !s.executing && s.queue.Len() == 0 {
		s.settleLocked()
	}
}
