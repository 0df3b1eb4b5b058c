package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Salon", testutil.WithSlug("salon"), testutil.WithTheme(domain.ThemeDark))
	require.NoError(t, repo.Create(ctx, form))
	assert.Equal(t, 1, form.Version, "new forms start at version 1")

	fetched, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, fetched.ID)
	assert.Equal(t, "Salon", fetched.InternalName)
	assert.Equal(t, "salon", fetched.Slug)
	assert.Equal(t, domain.ThemeDark, fetched.Theme)
	assert.Equal(t, form.ServiceTree, fetched.ServiceTree)
	assert.Equal(t, form.BaseQuestions, fetched.BaseQuestions)
	assert.False(t, fetched.IsEnabled)
	assert.Nil(t, fetched.PublishedAt)
	assert.True(t, form.CreatedAt.Equal(fetched.CreatedAt))
}

func TestFormRepo_EmptyGroupsSurviveRoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	root := testutil.NewTestRoot(
		testutil.NewTestGroup("Soon", nil),
		testutil.NewTestService("Cut"),
	)
	form := testutil.NewTestForm("Salon", testutil.WithTree(root))
	require.NoError(t, repo.Create(ctx, form))

	fetched, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, root, fetched.ServiceTree)
	assert.NotNil(t, fetched.ServiceTree.Children[0].Children)
}

func TestFormRepo_GetBySlug(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Spa", testutil.WithSlug("day-spa"))
	require.NoError(t, repo.Create(ctx, form))

	fetched, err := repo.GetBySlug(ctx, "Day-Spa")
	require.NoError(t, err)
	assert.Equal(t, form.ID, fetched.ID)
}

func TestFormRepo_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetBySlug(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "nonexistent"), ErrNotFound)
	assert.ErrorIs(t, repo.SetEnabled(ctx, "nonexistent", true, time.Now()), ErrNotFound)
}

func TestFormRepo_DuplicateSlug(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestForm("A", testutil.WithSlug("same"))))
	err := repo.Create(ctx, testutil.NewTestForm("B", testutil.WithSlug("same")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `slug "same" is already in use`)
}

func TestFormRepo_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestForm("Zeta", testutil.WithSlug("zeta"))))
	require.NoError(t, repo.Create(ctx, testutil.NewTestForm("Alpha", testutil.WithSlug("alpha"), testutil.Enabled())))

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].InternalName, "ordered by name")
	assert.True(t, all[0].IsEnabled)
	assert.Equal(t, 1, all[1].Version)

	enabled, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "alpha", enabled[0].Slug)
}

func TestFormRepo_UpdateBumpsVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Salon")
	require.NoError(t, repo.Create(ctx, form))

	form.InternalName = "Salon Deluxe"
	form.ServiceTree = testutil.NewTestRoot(testutil.NewTestService("Shave"))
	require.NoError(t, repo.Update(ctx, form, 1))
	assert.Equal(t, 2, form.Version)

	fetched, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salon Deluxe", fetched.InternalName)
	assert.Equal(t, 2, fetched.Version)
	assert.Equal(t, "Shave", fetched.ServiceTree.Children[0].Label)
}

func TestFormRepo_UpdateVersionConflict(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Salon")
	require.NoError(t, repo.Create(ctx, form))
	require.NoError(t, repo.Update(ctx, form, 1))

	stale := *form
	err := repo.Update(ctx, &stale, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "at version 2, expected 1")
	assert.Equal(t, 2, stale.Version, "failed update leaves the version alone")

	missing := testutil.NewTestForm("Ghost")
	assert.ErrorIs(t, repo.Update(ctx, missing, 1), ErrNotFound)
}

func TestFormRepo_SetEnabled(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Salon")
	require.NoError(t, repo.Create(ctx, form))

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetEnabled(ctx, form.ID, true, at))

	fetched, err := repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsEnabled)
	require.NotNil(t, fetched.PublishedAt)
	assert.True(t, at.Equal(*fetched.PublishedAt))
	assert.Equal(t, 1, fetched.Version, "publishing is not a content change")

	require.NoError(t, repo.SetEnabled(ctx, form.ID, false, at.Add(time.Hour)))
	fetched, err = repo.GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsEnabled)
	require.NotNil(t, fetched.PublishedAt)
	assert.True(t, at.Equal(*fetched.PublishedAt), "disabling keeps the last publish time")
}

func TestFormRepo_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteFormRepo(db)
	ctx := context.Background()

	form := testutil.NewTestForm("Salon")
	require.NoError(t, repo.Create(ctx, form))
	require.NoError(t, repo.Delete(ctx, form.ID))

	_, err := repo.GetByID(ctx, form.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
