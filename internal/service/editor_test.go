package service

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/testutil"
	"github.com/alexanderramin/bookable/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = time.Second

func syncRunner(f func()) { f() }

func openTestEditor(t *testing.T, env *testEnv, ref string, opts ...EditorOption) (*EditorSession, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	base := []EditorOption{
		WithEditorClock(clk),
		WithEditorIDs(testutil.SequentialIDs("e")),
		WithAutosaveConfig(autosave.Config{Debounce: testDebounce, MaxRetries: 1, RetryBaseDelay: time.Second}),
		WithAutosaveOptions(autosave.WithRunner(syncRunner)),
	}
	s, err := OpenEditor(context.Background(), env.svc, ref, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clk
}

func firstOfKind(t *testing.T, root *domain.Node, kind domain.NodeKind) *domain.Node {
	t.Helper()
	nodes := tree.GetNodesByKind(root, kind)
	require.NotEmpty(t, nodes)
	return nodes[0]
}

func stored(t *testing.T, env *testEnv, id string) *domain.FormConfig {
	t.Helper()
	f, err := env.forms.GetByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

func TestOpenEditor_StartsClean(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")

	s, _ := openTestEditor(t, env, "salon")
	assert.Equal(t, form.ID, s.FormID())
	assert.False(t, s.AutosaveState().IsDirty)
	assert.Empty(t, s.Pending())

	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, form.InternalName, local.InternalName)
	assert.Equal(t, 1, local.Version)
}

func TestOpenEditor_UnknownForm(t *testing.T) {
	env := setup(t)
	_, err := OpenEditor(context.Background(), env.svc, "missing")
	assert.Error(t, err)
}

func TestEditor_EditAutosavesAfterDebounce(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, clk := openTestEditor(t, env, "salon")

	edit, err := s.AddGroup("root", "Colour")
	require.NoError(t, err)
	assert.NotEmpty(t, edit.OpID)
	assert.NotEmpty(t, edit.ID)
	assert.True(t, s.AutosaveState().IsDirty)
	assert.Len(t, s.Pending(), 1)

	clk.Advance(testDebounce)

	assert.False(t, s.AutosaveState().IsDirty)
	assert.Empty(t, s.Pending(), "saved operations are confirmed")
	got := stored(t, env, form.ID)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, tree.FindByID(got.ServiceTree, edit.ID))
	assert.Equal(t, "Colour", tree.FindByID(got.ServiceTree, edit.ID).Label)
}

func TestEditor_RapidEditsSaveOnce(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, clk := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	for _, label := range []string{"A", "AB", "ABC"} {
		_, err := s.Rename(svc.ID, label)
		require.NoError(t, err)
		clk.Advance(testDebounce / 2)
	}
	clk.Advance(testDebounce)

	got := stored(t, env, form.ID)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "ABC", tree.FindByID(got.ServiceTree, svc.ID).Label)
}

func TestEditor_SaveNow(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")

	name := "Salon Two"
	_, err := s.UpdateMetadata(MetadataPatch{Name: &name})
	require.NoError(t, err)
	require.NoError(t, s.SaveNow(context.Background()))

	assert.Equal(t, "Salon Two", stored(t, env, form.ID).InternalName)
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, 2, local.Version)
}

func TestEditor_MaxDepth(t *testing.T) {
	env := setup(t)
	importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon", WithMaxDepth(2))

	outer, err := s.AddGroup("root", "Outer")
	require.NoError(t, err)
	inner, err := s.AddGroup(outer.ID, "Inner")
	require.NoError(t, err)

	_, err = s.AddGroup(inner.ID, "Too deep")
	assert.ErrorIs(t, err, ErrMaxDepth)

	// Services never count toward group depth.
	_, err = s.AddService(inner.ID, "Cut", domain.ServiceDetails{})
	assert.NoError(t, err)
}

func TestEditor_MoveRespectsMaxDepth(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon", WithMaxDepth(2))
	haircuts := firstOfKind(t, form.ServiceTree, domain.NodeGroup)

	outer, err := s.AddGroup("root", "Outer")
	require.NoError(t, err)
	nested, err := s.AddGroup(outer.ID, "Nested")
	require.NoError(t, err)

	// Haircuts is one group level; under Nested it would sit at depth 3.
	_, err = s.MoveNode(haircuts.ID, nested.ID)
	assert.ErrorIs(t, err, ErrMaxDepth)

	_, err = s.MoveNode(haircuts.ID, outer.ID)
	require.NoError(t, err)
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, outer.ID, tree.FindParent(local.ServiceTree, haircuts.ID).ID)
}

func TestEditor_RemoveAndReorder(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	haircuts := firstOfKind(t, form.ServiceTree, domain.NodeGroup)

	extra, err := s.AddGroup("root", "Extra")
	require.NoError(t, err)
	_, err = s.ReorderChildren("root", []string{extra.ID, haircuts.ID})
	require.NoError(t, err)

	local, err := s.Form()
	require.NoError(t, err)
	require.Len(t, local.ServiceTree.Children, 2)
	assert.Equal(t, extra.ID, local.ServiceTree.Children[0].ID)

	_, err = s.RemoveNode(extra.ID)
	require.NoError(t, err)
	local, err = s.Form()
	require.NoError(t, err)
	assert.Nil(t, tree.FindByID(local.ServiceTree, extra.ID))

	_, err = s.ReorderChildren("root", []string{"bogus"})
	assert.ErrorIs(t, err, tree.ErrNotPermutation)
}

func TestEditor_QuestionEdits(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)
	group := firstOfKind(t, form.ServiceTree, domain.NodeGroup)

	added, err := s.AddQuestion(svc.ID, testutil.NewTestQuestion("notes", testutil.WithQuestionID("")))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID, "missing question ids are generated")

	q := testutil.NewTestQuestion("notes", testutil.WithQuestionID(added.ID), testutil.WithLabel("Notes for us"))
	_, err = s.UpdateQuestion(svc.ID, q)
	require.NoError(t, err)

	local, err := s.Form()
	require.NoError(t, err)
	qs := tree.FindByID(local.ServiceTree, svc.ID).AdditionalQuestions
	require.Len(t, qs, 1)
	assert.Equal(t, "Notes for us", qs[0].Label)

	_, err = s.AddQuestion(group.ID, testutil.NewTestQuestion("x"))
	assert.ErrorIs(t, err, ErrNotService)
	_, err = s.RemoveQuestion(svc.ID, "missing")
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = s.RemoveQuestion(svc.ID, added.ID)
	require.NoError(t, err)
	local, err = s.Form()
	require.NoError(t, err)
	assert.Empty(t, tree.FindByID(local.ServiceTree, svc.ID).AdditionalQuestions)
}

func TestEditor_SetBaseQuestions(t *testing.T) {
	env := setup(t)
	importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")

	_, err := s.SetBaseQuestions([]domain.Question{
		testutil.NewTestQuestion("email", testutil.WithQuestionID("")),
		testutil.NewTestQuestion("phone", testutil.WithQuestionID("")),
	})
	require.NoError(t, err)

	local, err := s.Form()
	require.NoError(t, err)
	require.Len(t, local.BaseQuestions, 2)
	for _, q := range local.BaseQuestions {
		assert.NotEmpty(t, q.ID)
	}
}

func TestEditor_Undo(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	rename, err := s.Rename(svc.ID, "Renamed")
	require.NoError(t, err)
	require.True(t, s.AutosaveState().IsDirty)

	require.NoError(t, s.Undo(rename.OpID))
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, svc.Label, tree.FindByID(local.ServiceTree, svc.ID).Label)
	assert.False(t, s.AutosaveState().IsDirty, "undo back to saved content is clean")
	assert.Empty(t, s.Pending())
}

func TestEditor_InvalidEditOnLiveFormIsNotSaved(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	_, err := env.svc.SetEnabled(context.Background(), "salon", true)
	require.NoError(t, err)
	s, clk := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	_, err = s.Rename(svc.ID, "")
	require.NoError(t, err, "edits apply locally even when invalid")
	res, err := s.Validate()
	require.NoError(t, err)
	assert.False(t, res.IsValid)

	clk.Advance(testDebounce)
	st := s.AutosaveState()
	assert.True(t, st.IsDirty)
	assert.ErrorIs(t, st.Err, autosave.ErrSaveBlocked)
	assert.Equal(t, 1, stored(t, env, form.ID).Version)
}

func TestEditor_SyncMergesRemoteChangeWithLocalEdit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	_, err := s.Rename(svc.ID, "Local label")
	require.NoError(t, err)

	remote := autosave.DocumentFromForm(form)
	remote.PrimaryColor = "#000000"
	server, err := env.svc.SaveDocument(ctx, form.ID, remote)
	require.NoError(t, err)

	require.NoError(t, s.Sync(ctx, server))
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, "#000000", local.PrimaryColor)
	assert.Equal(t, "Local label", tree.FindByID(local.ServiceTree, svc.ID).Label)
	assert.Equal(t, 2, local.Version)
	assert.Empty(t, s.Pending(), "merge clears pending operations")
	assert.True(t, s.AutosaveState().IsDirty, "merged content still needs saving")
}

func TestEditor_SyncIgnoresKnownVersions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	_, err := s.Rename(svc.ID, "Mine")
	require.NoError(t, err)
	require.NoError(t, s.Sync(ctx, form), "version 1 is already known")

	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, "Mine", tree.FindByID(local.ServiceTree, svc.ID).Label)
	assert.Len(t, s.Pending(), 1)
}

func TestEditor_SyncAfterOwnSaveKeepsLocalEdits(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	// Our save becomes version 2, then another writer makes version 3.
	_, err := s.Rename(svc.ID, "Saved by us")
	require.NoError(t, err)
	require.NoError(t, s.SaveNow(ctx))

	latest := stored(t, env, form.ID)
	remote := autosave.DocumentFromForm(latest)
	remote.Theme = domain.ThemeDark
	server, err := env.svc.SaveDocument(ctx, form.ID, remote)
	require.NoError(t, err)

	_, err = s.Rename(svc.ID, "Unsaved")
	require.NoError(t, err)
	require.NoError(t, s.Sync(ctx, server))

	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, local.Theme)
	assert.Equal(t, "Unsaved", tree.FindByID(local.ServiceTree, svc.ID).Label)
}

func TestEditor_SyncWithoutLocalChangesIsClean(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")

	remote := autosave.DocumentFromForm(form)
	remote.InternalName = "Remote name"
	server, err := env.svc.SaveDocument(ctx, form.ID, remote)
	require.NoError(t, err)

	require.NoError(t, s.Sync(ctx, server))
	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, "Remote name", local.InternalName)
	assert.False(t, s.AutosaveState().IsDirty)
}

func TestEditor_SubscribeAutosave(t *testing.T) {
	env := setup(t)
	form := importSalon(t, env, "salon")
	s, clk := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	var statuses []autosave.Status
	unsubscribe := s.SubscribeAutosave(func(st autosave.State) { statuses = append(statuses, st.Status) })
	defer unsubscribe()

	_, err := s.Rename(svc.ID, "New")
	require.NoError(t, err)
	clk.Advance(testDebounce)

	assert.Equal(t, []autosave.Status{autosave.StatusDirty, autosave.StatusSaving, autosave.StatusIdle}, statuses)
}

func TestEditor_ClosedSessionRejectsEdits(t *testing.T) {
	env := setup(t)
	importSalon(t, env, "salon")
	s, _ := openTestEditor(t, env, "salon")
	s.Close()

	_, err := s.AddGroup("root", "Late")
	assert.ErrorIs(t, err, autosave.ErrClosed)
}

// commitHookForms runs onCommit once, right after the wrapped SaveDocument
// has committed and before the session hears about it.
type commitHookForms struct {
	FormService
	onCommit func()
}

func (f *commitHookForms) SaveDocument(ctx context.Context, id string, doc autosave.Document) (*domain.FormConfig, error) {
	saved, err := f.FormService.SaveDocument(ctx, id, doc)
	if err == nil && f.onCommit != nil {
		hook := f.onCommit
		f.onCommit = nil
		hook()
	}
	return saved, err
}

func TestEditor_SyncDuringSaveKeepsLaterEdit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	form := importSalon(t, env, "salon")
	forms := &commitHookForms{FormService: env.svc}
	env.svc = forms
	s, _ := openTestEditor(t, env, "salon")
	svc := firstOfKind(t, form.ServiceTree, domain.NodeService)

	_, err := s.Rename(svc.ID, "A")
	require.NoError(t, err)

	// A poll lands after "A" is committed but before the save returns, while
	// the user has already typed "B".
	forms.onCommit = func() {
		_, err := s.Rename(svc.ID, "B")
		require.NoError(t, err)
		fetched, err := s.Fetcher().Fetch(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, fetched.Version)
		require.NoError(t, s.Sync(ctx, fetched))
	}
	require.NoError(t, s.SaveNow(ctx))

	local, err := s.Form()
	require.NoError(t, err)
	assert.Equal(t, "B", tree.FindByID(local.ServiceTree, svc.ID).Label)
	assert.Equal(t, 2, local.Version)
	assert.True(t, s.AutosaveState().IsDirty, "B is not saved yet")
	assert.Len(t, s.Pending(), 1, "only the B rename is unconfirmed")

	require.NoError(t, s.SaveNow(ctx))
	got := stored(t, env, form.ID)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "B", tree.FindByID(got.ServiceTree, svc.ID).Label)
}

func TestEditor_DuplicateQuestionIDsSurviveEdits(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	svc := testutil.NewTestService("Cut", testutil.WithNodeID("cut"), testutil.WithQuestions(
		testutil.NewTestQuestion("length", testutil.WithQuestionID("q")),
		testutil.NewTestQuestion("notes", testutil.WithQuestionID("q")),
	))
	form := testutil.NewTestForm("Salon", testutil.WithSlug("salon"), testutil.WithTree(testutil.NewTestRoot(svc)))
	require.NoError(t, env.forms.Create(ctx, form))

	s, _ := openTestEditor(t, env, "salon")
	local, err := s.Form()
	require.NoError(t, err)
	require.Len(t, tree.FindByID(local.ServiceTree, "cut").AdditionalQuestions, 2)

	_, err = s.Rename("cut", "Trim")
	require.NoError(t, err)
	require.NoError(t, s.SaveNow(ctx))

	qs := tree.FindByID(stored(t, env, form.ID).ServiceTree, "cut").AdditionalQuestions
	require.Len(t, qs, 2)
	assert.Equal(t, "length", qs[0].Name)
	assert.Equal(t, "notes", qs[1].Name)

	_, err = s.RemoveQuestion("cut", "q")
	assert.ErrorIs(t, err, ErrDuplicateQuestion)
	_, err = s.AddQuestion("cut", testutil.NewTestQuestion("extra", testutil.WithQuestionID("q")))
	assert.ErrorIs(t, err, ErrDuplicateQuestion)
}
