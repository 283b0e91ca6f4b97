package account

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/identity"
	"example.com/activitytimer/internal/merge"
	"example.com/activitytimer/internal/persistence/memory"
	"example.com/activitytimer/internal/reservation"
	"example.com/activitytimer/internal/store"
)

type stubProvider struct {
	linkErr   error
	signInErr error
	target    domain.Identity
	signIns   int
}

func (p *stubProvider) Link(_ context.Context, anonID string, _ identity.Credential) (domain.Identity, error) {
	if p.linkErr != nil {
		return domain.Identity{}, p.linkErr
	}
	return domain.Identity{ID: anonID}, nil
}

func (p *stubProvider) SignIn(context.Context, identity.Credential) (domain.Identity, error) {
	p.signIns++
	if p.signInErr != nil {
		return domain.Identity{}, p.signInErr
	}
	return p.target, nil
}

type harness struct {
	repo     *store.Repository
	upgrader *Upgrader
	provider *stubProvider
}

func newHarness(t *testing.T, provider *stubProvider) *harness {
	t.Helper()
	repo := store.New(memory.NewStore())
	flow := merge.NewFlow(repo, merge.NewExecutor(repo))
	reserver := reservation.NewService(repo, zerolog.Nop())
	return &harness{
		repo:     repo,
		provider: provider,
		upgrader: NewUpgrader(provider, repo, reserver, flow, zerolog.Nop()),
	}
}

func (h *harness) seed(t *testing.T, owner, activity string, secs float64) {
	t.Helper()
	ctx := context.Background()
	sess := domain.Session{OwnerID: owner}
	if _, err := h.repo.FindActivity(ctx, owner, activity); errors.Is(err, domain.ErrActivityNotFound) {
		_, err := h.repo.InsertActivity(ctx, sess, domain.Activity{Name: activity})
		require.NoError(t, err)
	}
	_, err := h.repo.InsertRecord(ctx, sess, domain.Record{ActivityName: activity, RecordedAt: "2024-01-01 10:00", ElapsedSeconds: secs})
	require.NoError(t, err)
}

var cred = identity.Credential{Provider: "google", Token: "tok"}

func TestUpgradeLinkSucceedsWithoutMerge(t *testing.T) {
	h := newHarness(t, &stubProvider{})
	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{})
	require.NoError(t, err)
	assert.True(t, res.Promoted)
	assert.Nil(t, res.Merge)
	assert.Zero(t, h.provider.signIns)
}

func TestUpgradeAlreadyClaimedMergesAnonymousData(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: domain.ErrCredentialAlreadyClaimed, target: domain.Identity{ID: "perm-1"}})
	h.seed(t, "anon-1", "Run", 100)
	h.seed(t, "perm-1", "Run", 200)

	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{Confirm: true, MergeCollisions: true})
	require.NoError(t, err)
	assert.Equal(t, "perm-1", res.Identity.ID)
	assert.True(t, res.Reserved)
	require.NotNil(t, res.Merge)
	assert.Equal(t, merge.StatusDone, res.Merge.Status)

	recs, err := h.repo.ListRecords(context.Background(), "perm-1", "Run")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	pending, err := h.repo.ListReservations(context.Background(), domain.ReservationPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "anon-1", pending[0].IdentityID)
}

func TestUpgradeDeclinedMergeKeepsReservation(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: domain.ErrCredentialAlreadyClaimed, target: domain.Identity{ID: "perm-1"}})
	h.seed(t, "anon-1", "Run", 100)

	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{Confirm: false})
	require.NoError(t, err)
	assert.Equal(t, merge.StatusCancelled, res.Merge.Status)

	recs, err := h.repo.ListRecords(context.Background(), "perm-1", "")
	require.NoError(t, err)
	assert.Empty(t, recs)

	pending, err := h.repo.ListReservations(context.Background(), domain.ReservationPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestUpgradeNoAnonymousDataSkipsFlow(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: domain.ErrCredentialAlreadyClaimed, target: domain.Identity{ID: "perm-1"}})
	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{Confirm: true})
	require.NoError(t, err)
	assert.Nil(t, res.Merge)
	assert.True(t, res.Reserved)
}

func TestUpgradePermanentCallerSwitchesWithoutReserve(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: domain.ErrCredentialAlreadyClaimed, target: domain.Identity{ID: "perm-2"}})
	h.seed(t, "perm-1", "Run", 100)

	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "perm-1"}, cred, merge.StaticPrompter{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, "perm-2", res.Identity.ID)
	assert.False(t, res.Reserved)
	assert.Nil(t, res.Merge)
}

func TestUpgradeOtherFailureNeverMerges(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: errors.New("provider down")})
	h.seed(t, "anon-1", "Run", 100)

	_, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{Confirm: true})
	require.ErrorIs(t, err, ErrPromotionFailed)
	assert.Zero(t, h.provider.signIns)

	pending, err := h.repo.ListReservations(context.Background(), domain.ReservationPending, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpgradeSignInFailureLeavesReservation(t *testing.T) {
	h := newHarness(t, &stubProvider{linkErr: domain.ErrCredentialAlreadyClaimed, signInErr: errors.New("popup closed")})
	h.seed(t, "anon-1", "Run", 100)

	res, err := h.upgrader.Upgrade(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true}, cred, merge.StaticPrompter{Confirm: true})
	require.ErrorIs(t, err, ErrPromotionFailed)
	assert.True(t, res.Reserved)
}
