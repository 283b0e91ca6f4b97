package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activitytimer/internal/bootstrap"
	"example.com/activitytimer/internal/config"
	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/merge"
)

type harness struct {
	t   *testing.T
	svc *bootstrap.Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc, err := bootstrap.New(context.Background(), config.Config{StoreDriver: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	return &harness{t: t, svc: svc}
}

// run executes timerctl with args, feeding stdin and returning stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := &App{
		In:  strings.NewReader(stdin),
		Out: &out,
		Connect: func(context.Context) (*bootstrap.Services, error) {
			return h.svc, nil
		},
	}
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) seed(owner, activity string, recs ...domain.Record) {
	h.t.Helper()
	ctx := context.Background()
	sess := domain.Session{OwnerID: owner}
	_, err := h.svc.Repo.InsertActivity(ctx, sess, domain.Activity{Name: activity})
	require.NoError(h.t, err)
	for _, rec := range recs {
		rec.ActivityName = activity
		_, err := h.svc.Repo.InsertRecord(ctx, sess, rec)
		require.NoError(h.t, err)
	}
}

func (h *harness) names(owner string) []string {
	h.t.Helper()
	acts, err := h.svc.Repo.ListActivities(context.Background(), owner)
	require.NoError(h.t, err)
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.Name)
	}
	return out
}

func (h *harness) exportTo(owner string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), "backup.json")
	_, err := h.run("", "export", "--owner", owner, "--out", path)
	require.NoError(h.t, err)
	return path
}

func TestExportWritesBackupToStdout(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 61.5, RecordedAt: "2024-03-01 07:00:00", Memo: "windy"})

	out, err := h.run("", "export", "--owner", "anon")
	require.NoError(t, err)

	assert.Contains(t, out, `"version": 1`)
	assert.Contains(t, out, `"name": "Run"`)
	assert.Contains(t, out, `"memo": "windy"`)
}

func TestImportCopiesBackupIntoOwner(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 61.5, RecordedAt: "2024-03-01 07:00:00"})
	path := h.exportTo("anon")

	out, err := h.run("", "import", "--owner", "me", "--file", path, "--yes")
	require.NoError(t, err)

	assert.Contains(t, out, "status: done")
	assert.Contains(t, out, "records added: 1")
	assert.Equal(t, []string{"Run"}, h.names("me"))
}

func TestImportAsksAndSplitsCollisions(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 30, RecordedAt: "2024-03-01 07:00:00"})
	h.seed("me", "Run")
	path := h.exportTo("anon")

	out, err := h.run("y\nn\n", "import", "--owner", "me", "--file", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Activities on both sides: Run")
	assert.Contains(t, out, "collision policy: split")
	assert.Contains(t, out, "renamed: Run -> Run(1)")
	assert.ElementsMatch(t, []string{"Run", "Run(1)"}, h.names("me"))
}

func TestImportMergeCollisionsFlagSkipsQuestion(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 30, RecordedAt: "2024-03-01 07:00:00"})
	h.seed("me", "Run")
	path := h.exportTo("anon")

	out, err := h.run("", "import", "--owner", "me", "--file", path, "--yes", "--merge-collisions")
	require.NoError(t, err)

	assert.NotContains(t, out, "Activities on both sides")
	assert.Contains(t, out, "collision policy: merge")
	assert.Equal(t, []string{"Run"}, h.names("me"))
}

func TestImportDeclinedWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 30, RecordedAt: "2024-03-01 07:00:00"})
	path := h.exportTo("anon")

	out, err := h.run("n\n", "import", "--owner", "me", "--file", path)
	require.NoError(t, err)

	assert.Contains(t, out, "status: cancelled")
	assert.Empty(t, h.names("me"))
}

func TestImportRequiresOneSource(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "import", "--owner", "me")
	require.Error(t, err)

	_, err = h.run("", "import", "--owner", "me", "--file", "x.json", "--latest")
	require.Error(t, err)
}

func TestArchiveWithoutBucket(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "export", "--owner", "me", "--archive")
	require.ErrorIs(t, err, bootstrap.ErrNoArchive)

	_, err = h.run("", "import", "--owner", "me", "--latest")
	require.ErrorIs(t, err, bootstrap.ErrNoArchive)
}

func TestPurgeDeletesReservedData(t *testing.T) {
	h := newHarness(t)
	h.seed("anon", "Run", domain.Record{ElapsedSeconds: 30, RecordedAt: "2024-03-01 07:00:00"})
	_, err := h.svc.Reservation.Reserve(context.Background(), "anon")
	require.NoError(t, err)

	out, err := h.run("", "purge", "--batch", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "purged 1 reservations")
	assert.Empty(t, h.names("anon"))
}

func TestLinePrompterTreatsEndOfInputAsNo(t *testing.T) {
	var out bytes.Buffer
	p := newLinePrompter(strings.NewReader(""), &out)

	ok, err := p.ConfirmMerge(context.Background(), merge.Prompt{Message: "Merge?"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Merge? [y/N]: ", out.String())
}

func TestLinePrompterAcceptsYes(t *testing.T) {
	p := newLinePrompter(strings.NewReader(" YES \n"), &bytes.Buffer{})

	ok, err := p.ConfirmCollisionMerge(context.Background(), merge.Prompt{Message: "Merge?", Collisions: []string{"Run"}})
	require.NoError(t, err)
	assert.True(t, ok)
}
