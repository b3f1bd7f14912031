package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
)

var newID = func() string { return uuid.New().String() } // mockable

type (
	// DB is a record store kept in memory. Each table is guarded by its own lock.
	DB struct {
		user     *userTable
		branch   *branchTable
		catalog  *catalogTables
		progress *progressTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	branchTable struct {
		sync.RWMutex
		table map[string]*branch.Branch
	}

	// catalogTables share one lock so that cascading deletes are atomic.
	catalogTables struct {
		sync.RWMutex
		paths      map[string]*catalog.Path
		categories map[string]*catalog.Category
		materials  map[string]*catalog.Material
	}

	progressTable struct {
		sync.RWMutex
		table map[completionKey]*progress.Completion
	}

	completionKey struct {
		userID, categoryID string
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		branch: &branchTable{table: make(map[string]*branch.Branch)},
		catalog: &catalogTables{
			paths:      make(map[string]*catalog.Path),
			categories: make(map[string]*catalog.Category),
			materials:  make(map[string]*catalog.Material),
		},
		progress: &progressTable{table: make(map[completionKey]*progress.Completion)},
	}
}
