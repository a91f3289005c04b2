package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/entireio/shadow/cmd/shadow/cli/testutil"
	"github.com/entireio/shadow/cmd/shadow/cli/trailers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_NoChanges(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	res, err := sg.Save(context.Background(), "nothing", SaveOptions{})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, sg.Checkpoints())
	assert.Empty(t, rec.eventsOf(KindCheckpoint))
}

func TestSave_AllowEmpty(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	res, err := sg.Save(context.Background(), "marker", SaveOptions{AllowEmpty: true, SuppressMessage: true})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{res.Hash}, sg.Checkpoints())

	events := rec.eventsOf(KindCheckpoint)
	require.Len(t, events, 1)
	ev, ok := events[0].(CheckpointEvent)
	require.True(t, ok)
	assert.True(t, ev.SuppressMessage)
	assert.Equal(t, sg.BaseHash(), ev.FromHash)
}

func TestSave_AppendsOneCheckpoint(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "a.txt", "v2")
	res, err := sg.Save(context.Background(), "edit 1", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Equal(t, []string{res.Hash}, sg.Checkpoints())
	events := rec.eventsOf(KindCheckpoint)
	require.Len(t, events, 1)
	ev, ok := events[0].(CheckpointEvent)
	require.True(t, ok)
	assert.Equal(t, res.Hash, ev.ToHash)
	assert.Equal(t, sg.BaseHash(), ev.FromHash)
	assert.False(t, ev.SuppressMessage)

	msg := testutil.CommitMessage(t, sg.CheckpointsDir(), res.Hash)
	task, ok := trailers.ParseTask(msg)
	require.True(t, ok)
	assert.Equal(t, "t1", task)
	assert.Equal(t, "edit 1", trailers.Subject(msg))

	// The next checkpoint chains from the previous one.
	testutil.WriteFile(t, workspace, "b.txt", "new")
	res2, err := sg.Save(context.Background(), "edit 2", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, res2)
	assert.Equal(t, res.Hash, res2.FromHash)
	assert.Len(t, sg.Checkpoints(), 2)
}

func TestSave_IgnoresExcludedFiles(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "node_modules/pkg/index.js", "module.exports = 1")
	testutil.WriteFile(t, workspace, "debug.log", "noise")
	testutil.WriteFile(t, workspace, "image.png", "binary")

	res, err := sg.Save(context.Background(), "noise only", SaveOptions{})
	require.NoError(t, err)
	assert.Nil(t, res, "excluded files must not produce a checkpoint")
}

// breakObjectStore replaces the shadow repository's object directory with a
// plain file so every object write fails.
func breakObjectStore(t *testing.T, sg *ShadowGit) {
	t.Helper()
	objects := filepath.Join(sg.CheckpointsDir(), ".git", "objects")
	require.NoError(t, os.RemoveAll(objects))
	require.NoError(t, os.WriteFile(objects, []byte("not a directory"), 0o600))
}

func TestSave_FailureEmitsErrorAndKeepsSequence(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "a.txt", "v2")
	c1, err := sg.Save(context.Background(), "edit 1", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c1)

	breakObjectStore(t, sg)
	testutil.WriteFile(t, workspace, "a.txt", "v3")
	res, err := sg.Save(context.Background(), "edit 2", SaveOptions{AllowEmpty: true})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{c1.Hash}, sg.Checkpoints())
	assert.Len(t, rec.eventsOf(KindCheckpoint), 1)
	errs := rec.eventsOf(KindError)
	require.Len(t, errs, 1)
	ev, ok := errs[0].(ErrorEvent)
	require.True(t, ok)
	assert.ErrorIs(t, err, ev.Err)
}

func TestRestore_FailureEmitsErrorAndKeepsSequence(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "a.txt", "v2")
	c1, err := sg.Save(context.Background(), "edit 1", SaveOptions{})
	require.NoError(t, err)
	testutil.WriteFile(t, workspace, "a.txt", "v3")
	c2, err := sg.Save(context.Background(), "edit 2", SaveOptions{})
	require.NoError(t, err)

	breakObjectStore(t, sg)
	err = sg.Restore(context.Background(), c1.Hash)

	require.Error(t, err)
	assert.Equal(t, []string{c1.Hash, c2.Hash}, sg.Checkpoints())
	assert.Len(t, rec.eventsOf(KindError), 1)
	assert.Empty(t, rec.eventsOf(KindRestore))
}

func TestRestore_Scenario(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()
	base := sg.BaseHash()
	require.NotEmpty(t, base)

	testutil.WriteFile(t, workspace, "a.txt", "v2")
	c1, err := sg.Save(ctx, "edit 1", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c1)

	testutil.WriteFile(t, workspace, "a.txt", "v3")
	c2, err := sg.Save(ctx, "edit 2", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c2)
	require.Equal(t, []string{c1.Hash, c2.Hash}, sg.Checkpoints())

	require.NoError(t, sg.Restore(ctx, c1.Hash))
	assert.Equal(t, "v2", testutil.ReadFile(t, workspace, "a.txt"))
	assert.Equal(t, []string{c1.Hash}, sg.Checkpoints())

	restores := rec.eventsOf(KindRestore)
	require.Len(t, restores, 1)
	ev, ok := restores[0].(RestoreEvent)
	require.True(t, ok)
	assert.Equal(t, c1.Hash, ev.CommitHash)
}

func TestRestore_TruncatesAfterSecondEntry(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "0")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()

	var hashes []string
	for _, v := range []string{"1", "2", "3", "4"} {
		testutil.WriteFile(t, workspace, "a.txt", v)
		res, err := sg.Save(ctx, "edit "+v, SaveOptions{})
		require.NoError(t, err)
		require.NotNil(t, res)
		hashes = append(hashes, res.Hash)
	}

	require.NoError(t, sg.Restore(ctx, hashes[1]))
	assert.Equal(t, hashes[:2], sg.Checkpoints())
	assert.Equal(t, "2", testutil.ReadFile(t, workspace, "a.txt"))
}

func TestRestore_RoundTripRemovesUntrackedFiles(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "saved")
	res, err := sg.Save(ctx, "save", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)

	testutil.WriteFile(t, workspace, "a.txt", "scribbled")
	testutil.WriteFile(t, workspace, "new/file.txt", "untracked")
	testutil.WriteFile(t, workspace, "keep.log", "excluded")

	require.NoError(t, sg.Restore(ctx, res.Hash))
	assert.Equal(t, "saved", testutil.ReadFile(t, workspace, "a.txt"))
	assert.False(t, testutil.FileExists(workspace, "new/file.txt"))
	assert.True(t, testutil.FileExists(workspace, "keep.log"), "excluded files survive a restore")
}

func TestRestore_BaseLeavesSequence(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "v2")
	c1, err := sg.Save(ctx, "edit", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c1)

	require.NoError(t, sg.Restore(ctx, sg.BaseHash()))
	assert.Equal(t, "v1", testutil.ReadFile(t, workspace, "a.txt"))
	assert.Equal(t, []string{c1.Hash}, sg.Checkpoints())
}

func TestRestore_UnknownHash(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "v1")
	sg, rec := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "a.txt", "unsaved")
	err := sg.Restore(context.Background(), "0123456789abcdef0123456789abcdef01234567")
	require.Error(t, err)
	assert.Equal(t, "unsaved", testutil.ReadFile(t, workspace, "a.txt"), "a failed restore leaves files alone")
	assert.Len(t, rec.eventsOf(KindError), 1)
	assert.Empty(t, rec.eventsOf(KindRestore))
}

func TestDiff_WorkingTree(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "original\n")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	testutil.WriteFile(t, workspace, "a.txt", "original\nchanged\n")
	diffs, err := sg.Diff(context.Background(), DiffOptions{})
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	d := diffs[0]
	assert.Equal(t, "a.txt", d.Relative)
	assert.Equal(t, sg.absPath("a.txt"), d.Absolute)
	assert.Equal(t, "original\n", d.Before.Text)
	assert.Equal(t, "original\nchanged\n", d.After.Text)
	require.NoError(t, d.Before.Err)
	require.NoError(t, d.After.Err)
	assert.Equal(t, 1, d.Additions)
	assert.Equal(t, 0, d.Deletions)
}

func TestDiff_AddedAndDeletedFiles(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "gone.txt", "bye\n")
	testutil.WriteFile(t, workspace, "same.txt", "same\n")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)

	require.NoError(t, os.Remove(filepath.Join(workspace, "gone.txt")))
	testutil.WriteFile(t, workspace, "src/new.txt", "hello\n")

	diffs, err := sg.Diff(context.Background(), DiffOptions{})
	require.NoError(t, err)
	require.Len(t, diffs, 2)

	assert.Equal(t, "gone.txt", diffs[0].Relative)
	assert.Equal(t, "bye\n", diffs[0].Before.Text)
	assert.Empty(t, diffs[0].After.Text)
	require.Error(t, diffs[0].After.Err, "deleted file cannot be read")
	assert.Equal(t, 1, diffs[0].Deletions)

	assert.Equal(t, "src/new.txt", diffs[1].Relative)
	assert.Empty(t, diffs[1].Before.Text)
	require.Error(t, diffs[1].Before.Err, "new file has no before side")
	assert.Equal(t, "hello\n", diffs[1].After.Text)
}

func TestDiff_BetweenCheckpoints(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	testutil.WriteFile(t, workspace, "a.txt", "one\n")
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "two\n")
	c1, err := sg.Save(ctx, "c1", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c1)

	testutil.WriteFile(t, workspace, "a.txt", "three\n")
	testutil.WriteFile(t, workspace, "b.txt", "b\n")
	c2, err := sg.Save(ctx, "c2", SaveOptions{})
	require.NoError(t, err)
	require.NotNil(t, c2)

	diffs, err := sg.Diff(ctx, DiffOptions{From: c1.Hash, To: c2.Hash})
	require.NoError(t, err)
	require.Len(t, diffs, 2)
	assert.Equal(t, "a.txt", diffs[0].Relative)
	assert.Equal(t, "two\n", diffs[0].Before.Text)
	assert.Equal(t, "three\n", diffs[0].After.Text)
	assert.Equal(t, 1, diffs[0].Additions)
	assert.Equal(t, 1, diffs[0].Deletions)
	assert.Equal(t, "b.txt", diffs[1].Relative)
	assert.Equal(t, "b\n", diffs[1].After.Text)

	// Default From is the root commit.
	all, err := sg.Diff(ctx, DiffOptions{To: c2.Hash})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "one\n", all[0].Before.Text)
}

func TestHistory_Limit(t *testing.T) {
	t.Parallel()
	workspace, storage := testutil.NewWorkspace(t)
	sg, _ := initTestShadow(t, workspace, storage, "t1", ScopeTask)
	ctx := context.Background()

	for _, v := range []string{"1", "2", "3"} {
		testutil.WriteFile(t, workspace, "a.txt", v)
		_, err := sg.Save(ctx, "edit "+v, SaveOptions{})
		require.NoError(t, err)
	}

	history, err := sg.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "edit 3", history[0].Message)
	assert.Equal(t, "edit 2", history[1].Message)
}
