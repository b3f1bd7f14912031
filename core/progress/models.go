package progress

import (
	"math"
	"time"

	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
)

// Completion marks a category of a path as completed by a user.
type Completion struct {
	UserID      string    `json:"user_id"`
	PathID      string    `json:"path_id"`
	CategoryID  string    `json:"category_id"`
	CompletedAt time.Time `json:"completed_at"` // UTC
}

type key struct {
	userID, pathID, categoryID string
}

// Set indexes completions by user, path and category.
type Set map[key]struct{}

func NewSet(completions []Completion) Set {
	set := make(Set, len(completions))
	for _, c := range completions {
		set[key{c.UserID, c.PathID, c.CategoryID}] = struct{}{}
	}
	return set
}

func (s Set) Has(userID, pathID, categoryID string) bool {
	_, ok := s[key{userID, pathID, categoryID}]
	return ok
}

type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewProgress computes the completion percentage, rounded half up. It is 0 when total is 0.
func NewProgress(completed, total int) Progress {
	p := Progress{Completed: completed, Total: total}
	if total > 0 {
		p.Percentage = int(math.Floor(float64(completed)/float64(total)*100 + .5))
	}
	return p
}

// ForUser counts the categories of paths completed by userID.
func ForUser(paths []catalog.Path, done Set, userID string) Progress {
	var completed, total int
	for _, p := range paths {
		for _, c := range p.Categories {
			total++
			if done.Has(userID, p.ID, c.ID) {
				completed++
			}
		}
	}
	return NewProgress(completed, total)
}

type StaffProgress struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Progress
}

type BranchProgress struct {
	BranchID   string          `json:"branch_id"`
	StaffCount int             `json:"staff_count"`
	Staff      []StaffProgress `json:"staff"`
	Progress
}

// ForBranch aggregates the progress of the staff users of branchID. Managers and admins are not counted.
func ForBranch(paths []catalog.Path, done Set, users []user.User, branchID string) BranchProgress {
	bp := BranchProgress{BranchID: branchID, Staff: []StaffProgress{}}
	var completed, total int
	for _, usr := range users {
		if usr.BranchID != branchID || usr.Role != user.RoleStaff {
			continue
		}
		up := ForUser(paths, done, usr.ID)
		completed += up.Completed
		total += up.Total
		bp.Staff = append(bp.Staff, StaffProgress{UserID: usr.ID, Name: usr.Name, Username: usr.Username, Progress: up})
	}
	bp.StaffCount = len(bp.Staff)
	bp.Progress = NewProgress(completed, total)
	return bp
}
