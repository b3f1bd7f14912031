package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
	"github.com/trezcool/pathways/storage/database/inmem"
	testutil "github.com/trezcool/pathways/tests"
)

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewCatalogRepository(inmemdb.Open())

	onboarding, err := repo.CreatePath(ctx, catalog.Path{Name: "Onboarding"})
	require.NoError(t, err)
	sales, err := repo.CreatePath(ctx, catalog.Path{Name: "Sales"})
	require.NoError(t, err)

	_, err = repo.CreatePath(ctx, catalog.Path{Name: "Onboarding"})
	assert.Equal(t, catalog.ErrPathExists, err)
	_, err = repo.UpdatePath(ctx, catalog.Path{ID: sales.ID, Name: "Onboarding"})
	assert.Equal(t, catalog.ErrPathExists, err)

	basics, err := repo.CreateCategory(ctx, catalog.Category{PathID: onboarding.ID, Name: "Basics"})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, catalog.Category{PathID: onboarding.ID, Name: "Basics"})
	assert.Equal(t, catalog.ErrCategoryExists, err)
	// category names are unique per path
	_, err = repo.CreateCategory(ctx, catalog.Category{PathID: sales.ID, Name: "Basics"})
	assert.NoError(t, err)
	_, err = repo.CreateCategory(ctx, catalog.Category{PathID: "nope", Name: "Basics"})
	assert.Equal(t, catalog.ErrPathNotFound, err)

	got, err := repo.GetCategory(ctx, catalog.CategoryFilter{PathID: onboarding.ID, Name: "Basics"})
	require.NoError(t, err)
	assert.Equal(t, basics.ID, got.ID)

	mat, err := repo.CreateMaterial(ctx, catalog.Material{CategoryID: basics.ID, Name: "Welcome", Type: catalog.MaterialVideo})
	require.NoError(t, err)
	_, err = repo.CreateMaterial(ctx, catalog.Material{CategoryID: "nope", Name: "Welcome"})
	assert.Equal(t, catalog.ErrCategoryNotFound, err)

	updated, err := repo.UpdateMaterial(ctx, catalog.Material{ID: mat.ID, CategoryID: "ignored", Name: "Hello", Type: catalog.MaterialLink})
	require.NoError(t, err)
	assert.Equal(t, basics.ID, updated.CategoryID)
	assert.Equal(t, "Hello", updated.Name)

	t.Run("delete path cascades", func(t *testing.T) {
		require.NoError(t, repo.DeletePath(ctx, onboarding.ID))

		_, err := repo.GetCategory(ctx, catalog.CategoryFilter{ID: basics.ID})
		assert.Equal(t, catalog.ErrCategoryNotFound, err)
		_, err = repo.GetMaterial(ctx, mat.ID)
		assert.Equal(t, catalog.ErrMaterialNotFound, err)

		cats, err := repo.QueryCategories(ctx, "")
		require.NoError(t, err)
		assert.Len(t, cats, 1)
		assert.Equal(t, catalog.ErrPathNotFound, repo.DeletePath(ctx, onboarding.ID))
	})
}

func TestBranchRepository(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	repo := inmemdb.NewBranchRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)

	uptown := testutil.CreateBranch(t, repo, "Uptown", "")
	downtown := testutil.CreateBranch(t, repo, "Downtown", "North")

	_, err := repo.CreateBranch(ctx, branch.Branch{Name: "Uptown"})
	assert.Equal(t, branch.ErrNameExists, err)

	branches, err := repo.QueryBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Downtown", branches[0].Name)

	got, err := repo.GetBranch(ctx, branch.GetFilter{Name: "Uptown"})
	require.NoError(t, err)
	assert.Equal(t, uptown.ID, got.ID)

	testutil.CreateUser(t, usrRepo, "Ada Lee", "ada", "ada@training.local", "", user.RoleStaff, downtown.ID)
	assert.Equal(t, branch.ErrInUse, repo.DeleteBranch(ctx, downtown.ID))
	assert.NoError(t, repo.DeleteBranch(ctx, uptown.ID))
	assert.Equal(t, branch.ErrNotFound, repo.DeleteBranch(ctx, uptown.ID))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.Open())

	ada := testutil.CreateUser(t, repo, "Ada Lee", "ada", "ada@training.local", testutil.StrongPassword, user.RoleAdmin, "")

	_, err := repo.CreateUser(ctx, user.User{Username: "ada", Email: "other@training.local"})
	assert.Equal(t, user.ErrUsernameExists, err)
	_, err = repo.CreateUser(ctx, user.User{Username: "other", Email: "ada@training.local"})
	assert.Equal(t, user.ErrEmailExists, err)

	assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "ada", ""))
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "ada", "ada@training.local", ada))

	// a zero password hash keeps the stored one
	ada.Name = "Ada King"
	ada.PasswordHash = nil
	updated, err := repo.UpdateUser(ctx, ada)
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword(testutil.StrongPassword))

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"", "ada@training.local"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", got.Name)

	n, err := repo.DeleteUsersByID(ctx, ada.ID, "nope")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: ada.ID})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestProgressRepository(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewProgressRepository(inmemdb.Open())
	now := time.Now().UTC()

	for _, c := range []progress.Completion{
		{UserID: "u2", PathID: "p1", CategoryID: "c1", CompletedAt: now},
		{UserID: "u1", PathID: "p1", CategoryID: "c2", CompletedAt: now.Add(time.Minute)},
		{UserID: "u1", PathID: "p1", CategoryID: "c1", CompletedAt: now},
		{UserID: "u1", PathID: "p1", CategoryID: "c1", CompletedAt: now}, // upsert
	} {
		_, err := repo.SetCompletion(ctx, c)
		require.NoError(t, err)
	}

	all, err := repo.QueryCompletions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.QueryCompletions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c1", mine[0].CategoryID)
	assert.Equal(t, "c2", mine[1].CategoryID)

	require.NoError(t, repo.DeleteCompletion(ctx, "u1", "c1"))
	require.NoError(t, repo.DeleteCompletion(ctx, "u1", "c1"))
	mine, err = repo.QueryCompletions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
