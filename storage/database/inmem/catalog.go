package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/pathways/core/catalog"
)

type catalogRepository struct {
	db *catalogTables
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db.catalog}
}

// Paths

func (repo *catalogRepository) pathNameTaken(name, exclID string) bool {
	for _, p := range repo.db.paths {
		if p.Name == name && p.ID != exclID {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) QueryPaths(_ context.Context) ([]catalog.Path, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	paths := make([]catalog.Path, 0, len(repo.db.paths))
	for _, p := range repo.db.paths {
		paths = append(paths, *p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Name < paths[j].Name })
	return paths, nil
}

func (repo *catalogRepository) GetPath(_ context.Context, filter catalog.PathFilter) (catalog.Path, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.db.paths[filter.ID]; ok {
			return *p, nil
		}
		return catalog.Path{}, catalog.ErrPathNotFound
	}
	if filter.Name != "" {
		for _, p := range repo.db.paths {
			if p.Name == filter.Name {
				return *p, nil
			}
		}
	}
	return catalog.Path{}, catalog.ErrPathNotFound
}

func (repo *catalogRepository) CreatePath(_ context.Context, path catalog.Path) (catalog.Path, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.pathNameTaken(path.Name, "") {
		return catalog.Path{}, catalog.ErrPathExists
	}
	path.ID = newID()
	path.Categories = nil
	repo.db.paths[path.ID] = &path
	return path, nil
}

func (repo *catalogRepository) UpdatePath(_ context.Context, path catalog.Path) (catalog.Path, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.paths[path.ID]
	if !ok {
		return catalog.Path{}, catalog.ErrPathNotFound
	}
	if repo.pathNameTaken(path.Name, path.ID) {
		return catalog.Path{}, catalog.ErrPathExists
	}
	orig.Name = path.Name
	orig.UpdatedAt = path.UpdatedAt
	return *orig, nil
}

func (repo *catalogRepository) DeletePath(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.paths[id]; !ok {
		return catalog.ErrPathNotFound
	}
	for catID, c := range repo.db.categories {
		if c.PathID == id {
			repo.deleteCategory(catID)
		}
	}
	delete(repo.db.paths, id)
	return nil
}

// Categories

func (repo *catalogRepository) categoryNameTaken(pathID, name, exclID string) bool {
	for _, c := range repo.db.categories {
		if c.PathID == pathID && c.Name == name && c.ID != exclID {
			return true
		}
	}
	return false
}

func (repo *catalogRepository) QueryCategories(_ context.Context, pathID string) ([]catalog.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]catalog.Category, 0)
	for _, c := range repo.db.categories {
		if pathID == "" || c.PathID == pathID {
			cats = append(cats, *c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *catalogRepository) GetCategory(_ context.Context, filter catalog.CategoryFilter) (catalog.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if c, ok := repo.db.categories[filter.ID]; ok {
			return *c, nil
		}
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	if filter.PathID != "" && filter.Name != "" {
		for _, c := range repo.db.categories {
			if c.PathID == filter.PathID && c.Name == filter.Name {
				return *c, nil
			}
		}
	}
	return catalog.Category{}, catalog.ErrCategoryNotFound
}

func (repo *catalogRepository) CreateCategory(_ context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.paths[cat.PathID]; !ok {
		return catalog.Category{}, catalog.ErrPathNotFound
	}
	if repo.categoryNameTaken(cat.PathID, cat.Name, "") {
		return catalog.Category{}, catalog.ErrCategoryExists
	}
	cat.ID = newID()
	cat.Materials = nil
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *catalogRepository) UpdateCategory(_ context.Context, cat catalog.Category) (catalog.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.categories[cat.ID]
	if !ok {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	if repo.categoryNameTaken(orig.PathID, cat.Name, cat.ID) {
		return catalog.Category{}, catalog.ErrCategoryExists
	}
	orig.Name = cat.Name
	orig.UpdatedAt = cat.UpdatedAt
	return *orig, nil
}

func (repo *catalogRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	repo.deleteCategory(id)
	return nil
}

// deleteCategory removes a category and its materials. The caller holds the lock.
func (repo *catalogRepository) deleteCategory(id string) {
	for matID, m := range repo.db.materials {
		if m.CategoryID == id {
			delete(repo.db.materials, matID)
		}
	}
	delete(repo.db.categories, id)
}

// Materials

func (repo *catalogRepository) QueryMaterials(_ context.Context, categoryID string) ([]catalog.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	mats := make([]catalog.Material, 0)
	for _, m := range repo.db.materials {
		if categoryID == "" || m.CategoryID == categoryID {
			mats = append(mats, *m)
		}
	}
	sort.Slice(mats, func(i, j int) bool { return mats[i].Name < mats[j].Name })
	return mats, nil
}

func (repo *catalogRepository) GetMaterial(_ context.Context, id string) (catalog.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return *m, nil
	}
	return catalog.Material{}, catalog.ErrMaterialNotFound
}

func (repo *catalogRepository) CreateMaterial(_ context.Context, mat catalog.Material) (catalog.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[mat.CategoryID]; !ok {
		return catalog.Material{}, catalog.ErrCategoryNotFound
	}
	mat.ID = newID()
	repo.db.materials[mat.ID] = &mat
	return mat, nil
}

func (repo *catalogRepository) UpdateMaterial(_ context.Context, mat catalog.Material) (catalog.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.materials[mat.ID]
	if !ok {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	mat.CategoryID = orig.CategoryID
	mat.CreatedAt = orig.CreatedAt
	repo.db.materials[mat.ID] = &mat
	return mat, nil
}

func (repo *catalogRepository) DeleteMaterial(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return catalog.ErrMaterialNotFound
	}
	delete(repo.db.materials, id)
	return nil
}
