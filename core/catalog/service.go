package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrPathNotFound     = errors.New("path not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrMaterialNotFound = errors.New("material not found")
	ErrPathExists       = errors.New("a path with this name already exists")
	ErrCategoryExists   = errors.New("a category with this name already exists in this path")
)

type (
	Repository interface {
		QueryPaths(ctx context.Context) ([]Path, error)
		GetPath(ctx context.Context, filter PathFilter) (Path, error)
		CreatePath(ctx context.Context, path Path) (Path, error)
		UpdatePath(ctx context.Context, path Path) (Path, error)
		// DeletePath also deletes the path's categories and their materials.
		DeletePath(ctx context.Context, id string) error

		// QueryCategories lists the categories of pathID, or all categories if pathID is empty.
		QueryCategories(ctx context.Context, pathID string) ([]Category, error)
		GetCategory(ctx context.Context, filter CategoryFilter) (Category, error)
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		// DeleteCategory also deletes the category's materials.
		DeleteCategory(ctx context.Context, id string) error

		// QueryMaterials lists the materials of categoryID, or all materials if categoryID is empty.
		QueryMaterials(ctx context.Context, categoryID string) ([]Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		UpdateMaterial(ctx context.Context, mat Material) (Material, error)
		DeleteMaterial(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Tree returns all paths, with their categories and materials, sorted by name.
func (svc *Service) Tree(ctx context.Context) ([]Path, error) {
	paths, err := svc.repo.QueryPaths(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying paths")
	}
	cats, err := svc.repo.QueryCategories(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	mats, err := svc.repo.QueryMaterials(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}

	matsByCat := make(map[string][]Material, len(cats))
	for _, m := range mats {
		matsByCat[m.CategoryID] = append(matsByCat[m.CategoryID], m)
	}
	catsByPath := make(map[string][]Category, len(paths))
	for _, c := range cats {
		c.Materials = matsByCat[c.ID]
		if c.Materials == nil {
			c.Materials = []Material{}
		}
		sort.Slice(c.Materials, func(i, j int) bool { return c.Materials[i].Name < c.Materials[j].Name })
		catsByPath[c.PathID] = append(catsByPath[c.PathID], c)
	}
	for i := range paths {
		paths[i].Categories = catsByPath[paths[i].ID]
		if paths[i].Categories == nil {
			paths[i].Categories = []Category{}
		}
		sort.Slice(paths[i].Categories, func(a, b int) bool {
			return paths[i].Categories[a].Name < paths[i].Categories[b].Name
		})
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Name < paths[j].Name })
	return paths, nil
}

func (svc *Service) GetPath(ctx context.Context, id string) (Path, error) {
	return svc.repo.GetPath(ctx, PathFilter{ID: id})
}

// FindPath finds a path by its exact name, once cleaned.
func (svc *Service) FindPath(ctx context.Context, name string) (Path, error) {
	return svc.repo.GetPath(ctx, PathFilter{Name: core.CleanString(name)})
}

func (svc *Service) CreatePath(ctx context.Context, np NewPath) (Path, error) {
	now := NowFunc().UTC()
	return svc.repo.CreatePath(ctx, Path{Name: core.CleanString(np.Name), CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) RenamePath(ctx context.Context, id string, np NewPath) (Path, error) {
	path, err := svc.repo.GetPath(ctx, PathFilter{ID: id})
	if err != nil {
		return Path{}, err
	}
	path.Name = core.CleanString(np.Name)
	path.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdatePath(ctx, path)
}

func (svc *Service) DeletePath(ctx context.Context, id string) error {
	return svc.repo.DeletePath(ctx, id)
}

func (svc *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return svc.repo.GetCategory(ctx, CategoryFilter{ID: id})
}

// FindCategory finds a category of pathID by its exact name, once cleaned.
func (svc *Service) FindCategory(ctx context.Context, pathID, name string) (Category, error) {
	return svc.repo.GetCategory(ctx, CategoryFilter{PathID: pathID, Name: core.CleanString(name)})
}

func (svc *Service) CreateCategory(ctx context.Context, pathID string, nc NewCategory) (Category, error) {
	if _, err := svc.repo.GetPath(ctx, PathFilter{ID: pathID}); err != nil {
		return Category{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreateCategory(ctx, Category{PathID: pathID, Name: core.CleanString(nc.Name), CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) RenameCategory(ctx context.Context, id string, nc NewCategory) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, CategoryFilter{ID: id})
	if err != nil {
		return Category{}, err
	}
	cat.Name = core.CleanString(nc.Name)
	cat.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateCategory(ctx, cat)
}

func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	return svc.repo.DeleteCategory(ctx, id)
}

func (svc *Service) CreateMaterial(ctx context.Context, categoryID string, nm NewMaterial) (Material, error) {
	if _, err := svc.repo.GetCategory(ctx, CategoryFilter{ID: categoryID}); err != nil {
		return Material{}, err
	}
	now := NowFunc().UTC()
	return svc.repo.CreateMaterial(ctx, Material{
		CategoryID: categoryID,
		Name:       core.CleanString(nm.Name),
		Type:       MaterialTypeOr(nm.Type, MaterialDocument),
		URL:        nm.URL,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) UpdateMaterial(ctx context.Context, id string, nm NewMaterial) (Material, error) {
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	mat.Name = core.CleanString(nm.Name)
	mat.Type = MaterialTypeOr(nm.Type, mat.Type)
	mat.URL = nm.URL
	mat.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateMaterial(ctx, mat)
}

func (svc *Service) DeleteMaterial(ctx context.Context, id string) error {
	return svc.repo.DeleteMaterial(ctx, id)
}
