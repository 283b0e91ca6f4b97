package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/observability"
)

// Mode selects why a merge is happening and therefore how the user is asked about it.
type Mode string

const (
	// ModePromote merges an anonymous identity's data into the account it was upgraded to.
	ModePromote Mode = "promote"
	// ModeImport merges a backup file into the current account.
	ModeImport Mode = "import"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePromote || m == ModeImport
}

// Prompt is the text of one yes/no question put to the user.
type Prompt struct {
	Mode       Mode
	Message    string
	Collisions []string
}

// Prompter resolves the two confirmation gates. Implementations may block on user input;
// returning an error aborts the flow without writes.
type Prompter interface {
	ConfirmMerge(ctx context.Context, p Prompt) (bool, error)
	// ConfirmCollisionMerge returns true to merge colliding activities and false to keep them separate.
	ConfirmCollisionMerge(ctx context.Context, p Prompt) (bool, error)
}

// Refresher is notified once a merge has completed.
type Refresher interface {
	Refresh(ctx context.Context, sess domain.Session, mode Mode, res *Result) error
}

// Locker serialises merges for one owner. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, ownerID string) (func(), error)
}

// Status is the terminal state of a confirmation flow.
type Status string

const (
	StatusDone      Status = "done"
	StatusNotNeeded Status = "not_needed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Outcome is what a flow run ended with.
type Outcome struct {
	Status     Status   `json:"status"`
	Policy     string   `json:"policy,omitempty"`
	Collisions []string `json:"collisions,omitempty"`
	Result     *Result  `json:"result,omitempty"`
}

// Merged reports true when the merge executed or was not needed, false when cancelled or failed.
func (o Outcome) Merged() bool {
	return o.Status == StatusDone || o.Status == StatusNotNeeded
}

var prompts = map[Mode]string{
	ModePromote: "This account already has data. Merge the data recorded before signing in into it?",
	ModeImport:  "Merge the backup into your current data?",
}

const collisionPrompt = "Some activities exist on both sides. Merge their records into the existing activities? Choose no to keep them separate."

// FlowOption configures optional behaviour for the Flow.
type FlowOption func(*Flow)

// WithFlowLogger overrides the flow logger.
func WithFlowLogger(logger zerolog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithRefresher sets the collaborator signalled when a merge completes.
func WithRefresher(r Refresher) FlowOption {
	return func(f *Flow) {
		f.refresher = r
	}
}

// WithLocker sets the owner lock held while collisions are computed and the batch is written.
func WithLocker(l Locker) FlowOption {
	return func(f *Flow) {
		f.locker = l
	}
}

// Flow sequences the merge confirmation gates around planning and execution.
type Flow struct {
	repo      Repository
	executor  *Executor
	refresher Refresher
	locker    Locker
	logger    zerolog.Logger
}

// NewFlow constructs a Flow writing through executor.
func NewFlow(repo Repository, executor *Executor, opts ...FlowOption) *Flow {
	f := &Flow{repo: repo, executor: executor, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run asks whether to merge in at all, resolves collisions with the user, and executes the merge
// into sess.OwnerID. The returned error is set only for StatusFailed.
func (f *Flow) Run(ctx context.Context, sess domain.Session, prompter Prompter, in Dataset, mode Mode) (Outcome, error) {
	out, err := f.run(ctx, sess, prompter, in, mode)
	observability.RecordMergeOutcome(string(mode), string(out.Status))
	return out, err
}

func (f *Flow) run(ctx context.Context, sess domain.Session, prompter Prompter, in Dataset, mode Mode) (Outcome, error) {
	if !mode.Valid() {
		return Outcome{Status: StatusFailed}, fmt.Errorf("unknown merge mode %q", mode)
	}
	if in.Empty() {
		return Outcome{Status: StatusNotNeeded}, nil
	}

	ok, err := prompter.ConfirmMerge(ctx, Prompt{Mode: mode, Message: prompts[mode]})
	if err != nil {
		return f.fail(sess, mode, fmt.Errorf("confirm merge: %w", err))
	}
	if !ok {
		f.logger.Info().Str("evt.name", "merge.cancelled").Str("owner_id", sess.OwnerID).Str("mode", string(mode)).Msg("merge declined")
		return Outcome{Status: StatusCancelled}, nil
	}

	if f.locker != nil {
		unlock, err := f.locker.Lock(ctx, sess.OwnerID)
		if err != nil {
			return f.fail(sess, mode, fmt.Errorf("lock owner: %w", err))
		}
		defer unlock()
	}

	current, err := f.repo.ListActivities(ctx, sess.OwnerID)
	if err != nil {
		return f.fail(sess, mode, fmt.Errorf("load current activities: %w", err))
	}
	currentNames := make([]string, 0, len(current))
	for _, a := range current {
		currentNames = append(currentNames, a.Name)
	}

	policy := PolicyMerge
	collisions := PlanCollisions(in.Names(), currentNames)
	if len(collisions) > 0 {
		merge, err := prompter.ConfirmCollisionMerge(ctx, Prompt{Mode: mode, Message: collisionPrompt, Collisions: collisions})
		if err != nil {
			return f.fail(sess, mode, fmt.Errorf("confirm collisions: %w", err))
		}
		if !merge {
			policy = PolicySplit
		}
	}

	res, err := f.executor.Execute(ctx, sess, in, currentNames, CollisionNames(collisions, policy))
	if err != nil {
		out, ferr := f.fail(sess, mode, err)
		out.Result = res
		return out, ferr
	}

	if f.refresher != nil {
		if err := f.refresher.Refresh(ctx, sess, mode, res); err != nil {
			f.logger.Warn().Str("evt.name", "merge.refresh_failed").Str("owner_id", sess.OwnerID).Err(err).Msg("refresh signal not delivered")
		}
	}
	return Outcome{Status: StatusDone, Policy: policy.String(), Collisions: collisions, Result: res}, nil
}

func (f *Flow) fail(sess domain.Session, mode Mode, err error) (Outcome, error) {
	f.logger.Error().Str("evt.name", "merge.failed").Str("owner_id", sess.OwnerID).Str("mode", string(mode)).Err(err).Msg("merge failed")
	return Outcome{Status: StatusFailed}, err
}

// StaticPrompter answers both gates with fixed decisions, for requests that carry them up front.
type StaticPrompter struct {
	Confirm         bool
	MergeCollisions bool
}

// ConfirmMerge implements Prompter.
func (p StaticPrompter) ConfirmMerge(context.Context, Prompt) (bool, error) {
	return p.Confirm, nil
}

// ConfirmCollisionMerge implements Prompter.
func (p StaticPrompter) ConfirmCollisionMerge(context.Context, Prompt) (bool, error) {
	return p.MergeCollisions, nil
}

// IsWriteFailure reports whether err came from a failed write of a merge batch.
func IsWriteFailure(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
