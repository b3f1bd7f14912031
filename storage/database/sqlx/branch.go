package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/user"
)

const branchColumns = `id, name, region, manager_id, created_at, updated_at`

type branchRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Region    null.String `db:"region"`
	ManagerID null.String `db:"manager_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toBranchRow(b branch.Branch) branchRow {
	return branchRow{
		ID:        b.ID,
		Name:      b.Name,
		Region:    null.NewString(b.Region, b.Region != ""),
		ManagerID: null.NewString(b.ManagerID, b.ManagerID != ""),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func (r branchRow) branch() branch.Branch {
	return branch.Branch{
		ID:        r.ID,
		Name:      r.Name,
		Region:    r.Region.String,
		ManagerID: r.ManagerID.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type branchRepository struct {
	db sqlx.ExtContext
}

var _ branch.Repository = (*branchRepository)(nil) // interface compliance check

func NewBranchRepository(db sqlx.ExtContext) branch.Repository {
	return &branchRepository{db: db}
}

func trapBranchErr(err error, msg string) error {
	if _, ok := pqError(err, uniqueViolation); ok {
		return branch.ErrNameExists
	}
	if _, ok := pqError(err, foreignKeyViolation); ok {
		return user.ErrNotFound // manager
	}
	return errors.Wrap(err, msg)
}

func (repo *branchRepository) QueryBranches(ctx context.Context) ([]branch.Branch, error) {
	var rows []branchRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, `SELECT `+branchColumns+` FROM branch ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	branches := make([]branch.Branch, 0, len(rows))
	for _, r := range rows {
		branches = append(branches, r.branch())
	}
	return branches, nil
}

func (repo *branchRepository) GetBranch(ctx context.Context, filter branch.GetFilter) (branch.Branch, error) {
	w := &whereBuilder{}
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return branch.Branch{}, branch.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Name != "":
		w.add("name = ?", filter.Name)
	default:
		return branch.Branch{}, branch.ErrNotFound
	}

	var row branchRow
	q := repo.db.Rebind(`SELECT ` + branchColumns + ` FROM branch` + w.String())
	if err := sqlx.GetContext(ctx, repo.db, &row, q, w.args...); err != nil {
		return branch.Branch{}, trapNoRowsErr(err, branch.ErrNotFound, "finding branch")
	}
	return row.branch(), nil
}

func (repo *branchRepository) CreateBranch(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	b.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO branch (`+branchColumns+`)
		VALUES (:id, :name, :region, :manager_id, :created_at, :updated_at)`,
		toBranchRow(b))
	if err != nil {
		return branch.Branch{}, trapBranchErr(err, "inserting branch")
	}
	return b, nil
}

func (repo *branchRepository) UpdateBranch(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	if !validID(b.ID) {
		return branch.Branch{}, branch.ErrNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE branch SET name = :name, region = :region, manager_id = :manager_id, updated_at = :updated_at
		WHERE id = :id`,
		toBranchRow(b))
	if err != nil {
		return branch.Branch{}, trapBranchErr(err, "updating branch")
	}
	if err = checkRowsAffected(res, branch.ErrNotFound); err != nil {
		return branch.Branch{}, err
	}
	return b, nil
}

func (repo *branchRepository) DeleteBranch(ctx context.Context, id string) error {
	if !validID(id) {
		return branch.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM branch WHERE id = $1`, id)
	if err != nil {
		if _, ok := pqError(err, foreignKeyViolation); ok {
			return branch.ErrInUse
		}
		return errors.Wrap(err, "deleting branch")
	}
	return checkRowsAffected(res, branch.ErrNotFound)
}
