package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/persistence/memory"
	"example.com/activitytimer/internal/store"
)

var sess = domain.Session{OwnerID: "owner-1"}

func newService(t *testing.T) (*Service, *store.Repository) {
	t.Helper()
	repo := store.New(memory.NewStore())
	svc := NewService(repo, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.Local) }
	return svc, repo
}

func TestCreateActivityRejectsDuplicate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	act, err := svc.CreateActivity(ctx, sess, " Plank ", domain.RecordOrderDesc)
	require.NoError(t, err)
	assert.Equal(t, "Plank", act.Name)
	assert.NotEmpty(t, act.ID)

	_, err = svc.CreateActivity(ctx, sess, "Plank", "")
	require.ErrorIs(t, err, domain.ErrDuplicateActivity)

	_, err = svc.CreateActivity(ctx, domain.Session{OwnerID: "owner-2"}, "Plank", "")
	require.NoError(t, err)
}

func TestCreateActivityRejectsEmptyName(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateActivity(context.Background(), sess, "  ", "")
	require.ErrorIs(t, err, domain.ErrValidationSkipped)
}

func TestSaveRecordRequiresActivityAndStampsTime(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SaveRecord(ctx, sess, domain.Record{ActivityName: "Run", ElapsedSeconds: 10})
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	_, err = svc.CreateActivity(ctx, sess, "Run", "")
	require.NoError(t, err)
	rec, err := svc.SaveRecord(ctx, sess, domain.Record{ActivityName: "Run", ElapsedSeconds: 10, OwnerID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04 05:06:07", rec.RecordedAt)
	assert.Equal(t, "owner-1", rec.OwnerID)
}

func TestDeleteActivityCascadesToOwnRecordsOnly(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	other := domain.Session{OwnerID: "owner-2"}

	for _, s := range []domain.Session{sess, other} {
		_, err := svc.CreateActivity(ctx, s, "Run", "")
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := svc.SaveRecord(ctx, s, domain.Record{ActivityName: "Run", ElapsedSeconds: float64(i)})
			require.NoError(t, err)
		}
	}

	n, err := svc.DeleteActivity(ctx, sess, "Run")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.FindActivity(ctx, "owner-1", "Run")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	left, err := repo.ListRecords(ctx, "owner-1", "")
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := repo.ListRecords(ctx, "owner-2", "Run")
	require.NoError(t, err)
	assert.Len(t, kept, 3)
}

func TestEditMemoAndDeleteRecordCheckOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, sess, "Run", "")
	require.NoError(t, err)
	rec, err := svc.SaveRecord(ctx, sess, domain.Record{ActivityName: "Run", ElapsedSeconds: 10})
	require.NoError(t, err)

	_, err = svc.EditMemo(ctx, domain.Session{OwnerID: "intruder"}, rec.ID, "mine now")
	require.ErrorIs(t, err, domain.ErrRecordNotFound)

	updated, err := svc.EditMemo(ctx, sess, rec.ID, "windy")
	require.NoError(t, err)
	assert.Equal(t, "windy", updated.Memo)

	require.ErrorIs(t, svc.DeleteRecord(ctx, domain.Session{OwnerID: "intruder"}, rec.ID), domain.ErrRecordNotFound)
	require.NoError(t, svc.DeleteRecord(ctx, sess, rec.ID))

	recs, err := svc.ListRecords(ctx, sess, "Run", SortTimeAsc)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStandingsFollowRecordOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateActivity(ctx, sess, "Sprint", domain.RecordOrderAsc)
	require.NoError(t, err)
	_, err = svc.CreateActivity(ctx, sess, "Plank", domain.RecordOrderDesc)
	require.NoError(t, err)

	times := []float64{30, 10, 50, 20, 40}
	for i, secs := range times {
		at := time.Date(2024, 1, i+1, 8, 0, 0, 0, time.Local).Format(RecordedAtLayout)
		for _, act := range []string{"Sprint", "Plank"} {
			_, err := svc.SaveRecord(ctx, sess, domain.Record{ActivityName: act, ElapsedSeconds: secs, RecordedAt: at})
			require.NoError(t, err)
		}
	}

	sprint, err := svc.Standings(ctx, sess, "Sprint", 0)
	require.NoError(t, err)
	require.Len(t, sprint.Best, DefaultStandingsSize)
	assert.Equal(t, []float64{10, 20, 30}, elapsed(sprint.Best))
	require.NotNil(t, sprint.Latest)
	assert.Equal(t, 40.0, sprint.Latest.ElapsedSeconds)

	plank, err := svc.Standings(ctx, sess, "Plank", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 40}, elapsed(plank.Best))

	require.NoError(t, svc.SetRecordOrder(ctx, sess, "Plank", domain.RecordOrderAsc))
	plank, err = svc.Standings(ctx, sess, "Plank", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, elapsed(plank.Best))
}

func TestSetRecordOrderRejectsUnknown(t *testing.T) {
	svc, _ := newService(t)
	require.ErrorIs(t, svc.SetRecordOrder(context.Background(), sess, "Run", "sideways"), domain.ErrValidationSkipped)
}

func elapsed(recs []domain.Record) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ElapsedSeconds)
	}
	return out
}
