package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
)

const completionColumns = `user_id, path_id, category_id, completed_at`

type completionRow struct {
	UserID      string    `db:"user_id"`
	PathID      string    `db:"path_id"`
	CategoryID  string    `db:"category_id"`
	CompletedAt time.Time `db:"completed_at"`
}

func (r completionRow) completion() progress.Completion {
	return progress.Completion{
		UserID:      r.UserID,
		PathID:      r.PathID,
		CategoryID:  r.CategoryID,
		CompletedAt: r.CompletedAt.UTC(),
	}
}

type progressRepository struct {
	db sqlx.ExtContext
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db sqlx.ExtContext) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) SetCompletion(ctx context.Context, c progress.Completion) (progress.Completion, error) {
	if !validID(c.UserID) {
		return progress.Completion{}, user.ErrNotFound
	}
	if !validID(c.CategoryID) {
		return progress.Completion{}, catalog.ErrCategoryNotFound
	}
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO user_progress (`+completionColumns+`)
		VALUES (:user_id, :path_id, :category_id, :completed_at)
		ON CONFLICT (user_id, category_id) DO UPDATE
		SET path_id = EXCLUDED.path_id, completed_at = EXCLUDED.completed_at`,
		completionRow{
			UserID:      c.UserID,
			PathID:      c.PathID,
			CategoryID:  c.CategoryID,
			CompletedAt: c.CompletedAt.UTC(),
		})
	if err != nil {
		if pqErr, ok := pqError(err, foreignKeyViolation); ok {
			if pqErr.Constraint == "user_progress_user_id_fkey" {
				return progress.Completion{}, user.ErrNotFound
			}
			return progress.Completion{}, catalog.ErrCategoryNotFound
		}
		return progress.Completion{}, errors.Wrap(err, "saving completion")
	}
	return c, nil
}

func (repo *progressRepository) DeleteCompletion(ctx context.Context, userID, categoryID string) error {
	if !validID(userID) || !validID(categoryID) {
		return nil
	}
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM user_progress WHERE user_id = $1 AND category_id = $2`, userID, categoryID)
	return errors.Wrap(err, "deleting completion")
}

func (repo *progressRepository) QueryCompletions(ctx context.Context, userIDs ...string) ([]progress.Completion, error) {
	w := &whereBuilder{}
	if len(userIDs) > 0 {
		valid := make([]string, 0, len(userIDs))
		for _, id := range userIDs {
			if validID(id) {
				valid = append(valid, id)
			}
		}
		if len(valid) == 0 {
			return []progress.Completion{}, nil
		}
		w.add("user_id IN (?)", valid)
	}

	q, args, err := sqlx.In(`SELECT `+completionColumns+` FROM user_progress`+w.String(), w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building completions query")
	}
	var rows []completionRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying completions")
	}
	completions := make([]progress.Completion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, r.completion())
	}
	return completions, nil
}
