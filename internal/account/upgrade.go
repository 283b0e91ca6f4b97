// Package account promotes anonymous identities to permanent accounts and merges their data.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/identity"
	"example.com/activitytimer/internal/merge"
)

// ErrPromotionFailed wraps every identity-provider failure other than an already-claimed credential.
var ErrPromotionFailed = errors.New("identity promotion failed")

// Provider is the identity provider port.
type Provider interface {
	Link(ctx context.Context, anonID string, cred identity.Credential) (domain.Identity, error)
	SignIn(ctx context.Context, cred identity.Credential) (domain.Identity, error)
}

// Source reads the data an anonymous identity leaves behind.
type Source interface {
	ListActivities(ctx context.Context, ownerID string) ([]domain.Activity, error)
	ListRecords(ctx context.Context, ownerID, activityName string) ([]domain.Record, error)
}

// Reserver schedules an identity's data for deletion.
type Reserver interface {
	Reserve(ctx context.Context, identityID string) (domain.Reservation, error)
}

// Runner is the merge confirmation flow.
type Runner interface {
	Run(ctx context.Context, sess domain.Session, prompter merge.Prompter, in merge.Dataset, mode merge.Mode) (merge.Outcome, error)
}

// Result describes how an upgrade ended. Promoted is true when the anonymous identity itself
// became permanent.
type Result struct {
	Identity domain.Identity `json:"identity"`
	Promoted bool            `json:"promoted"`
	Reserved bool            `json:"reserved"`
	Merge    *merge.Outcome  `json:"merge,omitempty"`
}

// Upgrader runs the anonymous-to-permanent account upgrade.
type Upgrader struct {
	provider Provider
	source   Source
	reserver Reserver
	flow     Runner
	logger   zerolog.Logger
}

// NewUpgrader constructs an Upgrader.
func NewUpgrader(provider Provider, source Source, reserver Reserver, flow Runner, logger zerolog.Logger) *Upgrader {
	return &Upgrader{provider: provider, source: source, reserver: reserver, flow: flow, logger: logger}
}

// Upgrade links cred to current. When the credential already belongs to another account the caller
// is switched to that account, and an anonymous caller's data is reserved for deletion and offered
// for merging into it.
//
// The reservation is written before signing in and is kept even when the merge is declined.
func (u *Upgrader) Upgrade(ctx context.Context, current domain.Identity, cred identity.Credential, prompter merge.Prompter) (Result, error) {
	linked, err := u.provider.Link(ctx, current.ID, cred)
	if err == nil {
		u.logger.Info().Str("evt.name", "account.promoted").Str("identity_id", linked.ID).Msg("anonymous identity promoted")
		return Result{Identity: linked, Promoted: true}, nil
	}
	if !errors.Is(err, domain.ErrCredentialAlreadyClaimed) {
		return Result{}, fmt.Errorf("%w: %v", ErrPromotionFailed, err)
	}

	u.logger.Warn().Str("evt.name", "account.already_claimed").Str("identity_id", current.ID).Msg("credential belongs to another account; switching")

	var (
		in       merge.Dataset
		reserved bool
	)
	if current.Anonymous {
		if in, err = u.load(ctx, current.ID); err != nil {
			return Result{}, err
		}
		if _, err := u.reserver.Reserve(ctx, current.ID); err != nil {
			return Result{}, err
		}
		reserved = true
	}

	target, err := u.provider.SignIn(ctx, cred)
	if err != nil {
		return Result{Reserved: reserved}, fmt.Errorf("%w: sign in: %v", ErrPromotionFailed, err)
	}

	res := Result{Identity: target, Reserved: reserved}
	if in.Empty() {
		return res, nil
	}

	out, err := u.flow.Run(ctx, domain.Session{OwnerID: target.ID}, prompter, in, merge.ModePromote)
	res.Merge = &out
	return res, err
}

func (u *Upgrader) load(ctx context.Context, ownerID string) (merge.Dataset, error) {
	acts, err := u.source.ListActivities(ctx, ownerID)
	if err != nil {
		return merge.Dataset{}, fmt.Errorf("load anonymous activities: %w", err)
	}
	recs, err := u.source.ListRecords(ctx, ownerID, "")
	if err != nil {
		return merge.Dataset{}, fmt.Errorf("load anonymous records: %w", err)
	}
	return merge.Dataset{Activities: acts, Records: recs}, nil
}
