package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/pathways/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) SetCompletion(_ context.Context, c progress.Completion) (progress.Completion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[completionKey{c.UserID, c.CategoryID}] = &c
	return c, nil
}

func (repo *progressRepository) DeleteCompletion(_ context.Context, userID, categoryID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, completionKey{userID, categoryID})
	return nil
}

func (repo *progressRepository) QueryCompletions(_ context.Context, userIDs ...string) ([]progress.Completion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	completions := make([]progress.Completion, 0)
	for _, c := range repo.db.table {
		if len(wanted) == 0 || wanted[c.UserID] {
			completions = append(completions, *c)
		}
	}
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].UserID != completions[j].UserID {
			return completions[i].UserID < completions[j].UserID
		}
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})
	return completions, nil
}
