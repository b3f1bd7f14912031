package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/storage/database/inmem"
)

func TestService_Tree(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(inmemdb.NewCatalogRepository(inmemdb.Open()))

	sales, err := svc.CreatePath(ctx, catalog.NewPath{Name: "Sales"})
	require.NoError(t, err)
	onboarding, err := svc.CreatePath(ctx, catalog.NewPath{Name: "Onboarding"})
	require.NoError(t, err)

	tools, err := svc.CreateCategory(ctx, onboarding.ID, catalog.NewCategory{Name: "Tools"})
	require.NoError(t, err)
	basics, err := svc.CreateCategory(ctx, onboarding.ID, catalog.NewCategory{Name: "Basics"})
	require.NoError(t, err)

	_, err = svc.CreateMaterial(ctx, basics.ID, catalog.NewMaterial{Name: "Welcome", Type: "VIDEO"})
	require.NoError(t, err)
	_, err = svc.CreateMaterial(ctx, basics.ID, catalog.NewMaterial{Name: "Handbook", Type: "other"})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, "nope", catalog.NewCategory{Name: "Basics"})
	assert.Equal(t, catalog.ErrPathNotFound, err)
	_, err = svc.CreateMaterial(ctx, "nope", catalog.NewMaterial{Name: "Welcome"})
	assert.Equal(t, catalog.ErrCategoryNotFound, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, onboarding.ID, tree[0].ID)
	assert.Equal(t, sales.ID, tree[1].ID)
	assert.Empty(t, tree[1].Categories)
	assert.NotNil(t, tree[1].Categories)
	assert.Equal(t, 2, catalog.NumCategories(tree))

	cats := tree[0].Categories
	require.Len(t, cats, 2)
	assert.Equal(t, basics.ID, cats[0].ID)
	assert.Equal(t, tools.ID, cats[1].ID)
	assert.Empty(t, cats[1].Materials)

	mats := cats[0].Materials
	require.Len(t, mats, 2)
	assert.Equal(t, "Handbook", mats[0].Name)
	assert.Equal(t, catalog.MaterialDocument, mats[0].Type)
	assert.Equal(t, "Welcome", mats[1].Name)
	assert.Equal(t, catalog.MaterialVideo, mats[1].Type)
}

func TestService_Rename(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(inmemdb.NewCatalogRepository(inmemdb.Open()))

	path, err := svc.CreatePath(ctx, catalog.NewPath{Name: "Onboarding"})
	require.NoError(t, err)
	_, err = svc.CreatePath(ctx, catalog.NewPath{Name: "Sales"})
	require.NoError(t, err)

	_, err = svc.RenamePath(ctx, path.ID, catalog.NewPath{Name: "Sales"})
	assert.Equal(t, catalog.ErrPathExists, err)
	_, err = svc.RenamePath(ctx, "nope", catalog.NewPath{Name: "Intro"})
	assert.Equal(t, catalog.ErrPathNotFound, err)

	renamed, err := svc.RenamePath(ctx, path.ID, catalog.NewPath{Name: "Intro"})
	require.NoError(t, err)
	assert.Equal(t, "Intro", renamed.Name)

	found, err := svc.FindPath(ctx, "Intro")
	require.NoError(t, err)
	assert.Equal(t, path.ID, found.ID)

	cat, err := svc.CreateCategory(ctx, path.ID, catalog.NewCategory{Name: "Basics"})
	require.NoError(t, err)
	mat, err := svc.CreateMaterial(ctx, cat.ID, catalog.NewMaterial{Name: "Welcome", Type: "link", URL: "https://example.com"})
	require.NoError(t, err)

	// unknown types keep the current one
	mat, err = svc.UpdateMaterial(ctx, mat.ID, catalog.NewMaterial{Name: "Hello", Type: "podcast"})
	require.NoError(t, err)
	assert.Equal(t, catalog.MaterialLink, mat.Type)
	assert.Empty(t, mat.URL)
}

func TestParseMaterialType(t *testing.T) {
	tests := []struct {
		in     string
		want   catalog.MaterialType
		wantOK bool
	}{
		{" Video ", catalog.MaterialVideo, true},
		{"document", catalog.MaterialDocument, true},
		{"LINK", catalog.MaterialLink, true},
		{"other", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := catalog.ParseMaterialType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
