package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pathways/core/catalog"
)

const (
	pathColumns     = `id, name, created_at, updated_at`
	categoryColumns = `id, path_id, name, created_at, updated_at`
	materialColumns = `id, category_id, name, type, url, created_at, updated_at`
)

type pathRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r pathRow) path() catalog.Path {
	return catalog.Path{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
}

type categoryRow struct {
	ID        string    `db:"id"`
	PathID    string    `db:"path_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r categoryRow) category() catalog.Category {
	return catalog.Category{
		ID:        r.ID,
		PathID:    r.PathID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type materialRow struct {
	ID         string      `db:"id"`
	CategoryID string      `db:"category_id"`
	Name       string      `db:"name"`
	Type       string      `db:"type"`
	URL        null.String `db:"url"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func toMaterialRow(m catalog.Material) materialRow {
	return materialRow{
		ID:         m.ID,
		CategoryID: m.CategoryID,
		Name:       m.Name,
		Type:       string(m.Type),
		URL:        null.NewString(m.URL, m.URL != ""),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

func (r materialRow) material() catalog.Material {
	return catalog.Material{
		ID:         r.ID,
		CategoryID: r.CategoryID,
		Name:       r.Name,
		Type:       catalog.MaterialType(r.Type),
		URL:        r.URL.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type catalogRepository struct {
	db sqlx.ExtContext
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db sqlx.ExtContext) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) QueryPaths(ctx context.Context) ([]catalog.Path, error) {
	var rows []pathRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, `SELECT `+pathColumns+` FROM path ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying paths")
	}
	paths := make([]catalog.Path, 0, len(rows))
	for _, r := range rows {
		paths = append(paths, r.path())
	}
	return paths, nil
}

func (repo *catalogRepository) GetPath(ctx context.Context, filter catalog.PathFilter) (catalog.Path, error) {
	w := &whereBuilder{}
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return catalog.Path{}, catalog.ErrPathNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Name != "":
		w.add("name = ?", filter.Name)
	default:
		return catalog.Path{}, catalog.ErrPathNotFound
	}

	var row pathRow
	q := repo.db.Rebind(`SELECT ` + pathColumns + ` FROM path` + w.String())
	if err := sqlx.GetContext(ctx, repo.db, &row, q, w.args...); err != nil {
		return catalog.Path{}, trapNoRowsErr(err, catalog.ErrPathNotFound, "finding path")
	}
	return row.path(), nil
}

func (repo *catalogRepository) CreatePath(ctx context.Context, path catalog.Path) (catalog.Path, error) {
	path.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO path (`+pathColumns+`) VALUES ($1, $2, $3, $4)`,
		path.ID, path.Name, path.CreatedAt.UTC(), path.UpdatedAt.UTC())
	if err != nil {
		if _, ok := pqError(err, uniqueViolation); ok {
			return catalog.Path{}, catalog.ErrPathExists
		}
		return catalog.Path{}, errors.Wrap(err, "inserting path")
	}
	return path, nil
}

func (repo *catalogRepository) UpdatePath(ctx context.Context, path catalog.Path) (catalog.Path, error) {
	if !validID(path.ID) {
		return catalog.Path{}, catalog.ErrPathNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE path SET name = $2, updated_at = $3 WHERE id = $1`,
		path.ID, path.Name, path.UpdatedAt.UTC())
	if err != nil {
		if _, ok := pqError(err, uniqueViolation); ok {
			return catalog.Path{}, catalog.ErrPathExists
		}
		return catalog.Path{}, errors.Wrap(err, "updating path")
	}
	if err = checkRowsAffected(res, catalog.ErrPathNotFound); err != nil {
		return catalog.Path{}, err
	}
	return path, nil
}

func (repo *catalogRepository) DeletePath(ctx context.Context, id string) error {
	if !validID(id) {
		return catalog.ErrPathNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM path WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting path")
	}
	return checkRowsAffected(res, catalog.ErrPathNotFound)
}

func (repo *catalogRepository) QueryCategories(ctx context.Context, pathID string) ([]catalog.Category, error) {
	w := &whereBuilder{}
	if pathID != "" {
		if !validID(pathID) {
			return []catalog.Category{}, nil
		}
		w.add("path_id = ?", pathID)
	}
	var rows []categoryRow
	q := repo.db.Rebind(`SELECT ` + categoryColumns + ` FROM category` + w.String() + ` ORDER BY name`)
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]catalog.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, r.category())
	}
	return cats, nil
}

func (repo *catalogRepository) GetCategory(ctx context.Context, filter catalog.CategoryFilter) (catalog.Category, error) {
	w := &whereBuilder{}
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return catalog.Category{}, catalog.ErrCategoryNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.PathID != "" && filter.Name != "":
		if !validID(filter.PathID) {
			return catalog.Category{}, catalog.ErrCategoryNotFound
		}
		w.add("path_id = ? AND name = ?", filter.PathID, filter.Name)
	default:
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}

	var row categoryRow
	q := repo.db.Rebind(`SELECT ` + categoryColumns + ` FROM category` + w.String())
	if err := sqlx.GetContext(ctx, repo.db, &row, q, w.args...); err != nil {
		return catalog.Category{}, trapNoRowsErr(err, catalog.ErrCategoryNotFound, "finding category")
	}
	return row.category(), nil
}

func trapCategoryErr(err error, msg string) error {
	if _, ok := pqError(err, uniqueViolation); ok {
		return catalog.ErrCategoryExists
	}
	if _, ok := pqError(err, foreignKeyViolation); ok {
		return catalog.ErrPathNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	cat.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO category (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		cat.ID, cat.PathID, cat.Name, cat.CreatedAt.UTC(), cat.UpdatedAt.UTC())
	if err != nil {
		return catalog.Category{}, trapCategoryErr(err, "inserting category")
	}
	return cat, nil
}

func (repo *catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	if !validID(cat.ID) {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	res, err := repo.db.ExecContext(ctx,
		`UPDATE category SET name = $2, updated_at = $3 WHERE id = $1`,
		cat.ID, cat.Name, cat.UpdatedAt.UTC())
	if err != nil {
		return catalog.Category{}, trapCategoryErr(err, "updating category")
	}
	if err = checkRowsAffected(res, catalog.ErrCategoryNotFound); err != nil {
		return catalog.Category{}, err
	}
	return cat, nil
}

func (repo *catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	if !validID(id) {
		return catalog.ErrCategoryNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM category WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return checkRowsAffected(res, catalog.ErrCategoryNotFound)
}

func (repo *catalogRepository) QueryMaterials(ctx context.Context, categoryID string) ([]catalog.Material, error) {
	w := &whereBuilder{}
	if categoryID != "" {
		if !validID(categoryID) {
			return []catalog.Material{}, nil
		}
		w.add("category_id = ?", categoryID)
	}
	var rows []materialRow
	q := repo.db.Rebind(`SELECT ` + materialColumns + ` FROM material` + w.String() + ` ORDER BY name`)
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	mats := make([]catalog.Material, 0, len(rows))
	for _, r := range rows {
		mats = append(mats, r.material())
	}
	return mats, nil
}

func (repo *catalogRepository) GetMaterial(ctx context.Context, id string) (catalog.Material, error) {
	if !validID(id) {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	var row materialRow
	err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+materialColumns+` FROM material WHERE id = $1`, id)
	if err != nil {
		return catalog.Material{}, trapNoRowsErr(err, catalog.ErrMaterialNotFound, "finding material")
	}
	return row.material(), nil
}

func (repo *catalogRepository) CreateMaterial(ctx context.Context, mat catalog.Material) (catalog.Material, error) {
	mat.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO material (`+materialColumns+`)
		VALUES (:id, :category_id, :name, :type, :url, :created_at, :updated_at)`,
		toMaterialRow(mat))
	if err != nil {
		if _, ok := pqError(err, foreignKeyViolation); ok {
			return catalog.Material{}, catalog.ErrCategoryNotFound
		}
		return catalog.Material{}, errors.Wrap(err, "inserting material")
	}
	return mat, nil
}

func (repo *catalogRepository) UpdateMaterial(ctx context.Context, mat catalog.Material) (catalog.Material, error) {
	if !validID(mat.ID) {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE material SET name = :name, type = :type, url = :url, updated_at = :updated_at
		WHERE id = :id`,
		toMaterialRow(mat))
	if err != nil {
		return catalog.Material{}, errors.Wrap(err, "updating material")
	}
	if err = checkRowsAffected(res, catalog.ErrMaterialNotFound); err != nil {
		return catalog.Material{}, err
	}
	return mat, nil
}

func (repo *catalogRepository) DeleteMaterial(ctx context.Context, id string) error {
	if !validID(id) {
		return catalog.ErrMaterialNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM material WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return checkRowsAffected(res, catalog.ErrMaterialNotFound)
}
