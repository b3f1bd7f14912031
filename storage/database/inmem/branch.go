package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/pathways/core/branch"
)

type branchRepository struct {
	db    *branchTable
	users *userTable
}

var _ branch.Repository = (*branchRepository)(nil)

func NewBranchRepository(db *DB) branch.Repository {
	return &branchRepository{db: db.branch, users: db.user}
}

func (repo *branchRepository) nameTaken(name, exclID string) bool {
	for _, b := range repo.db.table {
		if b.Name == name && b.ID != exclID {
			return true
		}
	}
	return false
}

func (repo *branchRepository) QueryBranches(_ context.Context) ([]branch.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	branches := make([]branch.Branch, 0, len(repo.db.table))
	for _, b := range repo.db.table {
		branches = append(branches, *b)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (repo *branchRepository) GetBranch(_ context.Context, filter branch.GetFilter) (branch.Branch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if b, ok := repo.db.table[filter.ID]; ok {
			return *b, nil
		}
		return branch.Branch{}, branch.ErrNotFound
	}
	if filter.Name != "" {
		for _, b := range repo.db.table {
			if b.Name == filter.Name {
				return *b, nil
			}
		}
	}
	return branch.Branch{}, branch.ErrNotFound
}

func (repo *branchRepository) CreateBranch(_ context.Context, b branch.Branch) (branch.Branch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.nameTaken(b.Name, "") {
		return branch.Branch{}, branch.ErrNameExists
	}
	b.ID = newID()
	repo.db.table[b.ID] = &b
	return b, nil
}

func (repo *branchRepository) UpdateBranch(_ context.Context, b branch.Branch) (branch.Branch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[b.ID]
	if !ok {
		return branch.Branch{}, branch.ErrNotFound
	}
	if repo.nameTaken(b.Name, b.ID) {
		return branch.Branch{}, branch.ErrNameExists
	}
	b.CreatedAt = orig.CreatedAt
	repo.db.table[b.ID] = &b
	return b, nil
}

func (repo *branchRepository) DeleteBranch(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return branch.ErrNotFound
	}

	repo.users.RLock()
	defer repo.users.RUnlock()
	for _, usr := range repo.users.table {
		if usr.BranchID == id {
			return branch.ErrInUse
		}
	}
	delete(repo.db.table, id)
	return nil
}
