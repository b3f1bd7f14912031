package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		// SetCompletion inserts c, or refreshes CompletedAt if the user already completed the category.
		SetCompletion(ctx context.Context, c Completion) (Completion, error)
		DeleteCompletion(ctx context.Context, userID, categoryID string) error
		// QueryCompletions lists the completions of userIDs, or of every user if none is given.
		QueryCompletions(ctx context.Context, userIDs ...string) ([]Completion, error)
	}

	Service struct {
		repo       Repository
		catalogSvc *catalog.Service
		userSvc    *user.Service
	}
)

func NewService(repo Repository, catalogSvc *catalog.Service, userSvc *user.Service) *Service {
	return &Service{repo: repo, catalogSvc: catalogSvc, userSvc: userSvc}
}

// SetCompleted marks categoryID as completed (or not) by userID.
func (svc *Service) SetCompleted(ctx context.Context, userID, categoryID string, completed bool) error {
	cat, err := svc.catalogSvc.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if !completed {
		return svc.repo.DeleteCompletion(ctx, userID, cat.ID)
	}
	_, err = svc.repo.SetCompletion(ctx, Completion{
		UserID:      userID,
		PathID:      cat.PathID,
		CategoryID:  cat.ID,
		CompletedAt: NowFunc().UTC(),
	})
	return err
}

// Toggle flips the completion of categoryID for userID and returns the new state.
func (svc *Service) Toggle(ctx context.Context, userID, categoryID string) (bool, error) {
	cat, err := svc.catalogSvc.GetCategory(ctx, categoryID)
	if err != nil {
		return false, err
	}
	completions, err := svc.repo.QueryCompletions(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "querying completions")
	}
	completed := !NewSet(completions).Has(userID, cat.PathID, cat.ID)
	return completed, svc.SetCompleted(ctx, userID, categoryID, completed)
}

type UserProgress struct {
	Progress
	Completions []Completion `json:"completions"`
}

func (svc *Service) ForUser(ctx context.Context, userID string) (UserProgress, error) {
	paths, err := svc.catalogSvc.Tree(ctx)
	if err != nil {
		return UserProgress{}, err
	}
	completions, err := svc.repo.QueryCompletions(ctx, userID)
	if err != nil {
		return UserProgress{}, errors.Wrap(err, "querying completions")
	}
	if completions == nil {
		completions = []Completion{}
	}
	return UserProgress{
		Progress:    ForUser(paths, NewSet(completions), userID),
		Completions: completions,
	}, nil
}

func (svc *Service) ForBranch(ctx context.Context, branchID string) (BranchProgress, error) {
	paths, err := svc.catalogSvc.Tree(ctx)
	if err != nil {
		return BranchProgress{}, err
	}
	staff, err := svc.userSvc.Query(ctx, &user.QueryFilter{BranchID: branchID, Roles: []user.Role{user.RoleStaff}})
	if err != nil {
		return BranchProgress{}, errors.Wrap(err, "querying staff")
	}
	ids := make([]string, 0, len(staff))
	for _, usr := range staff {
		ids = append(ids, usr.ID)
	}
	var completions []Completion
	if len(ids) > 0 {
		if completions, err = svc.repo.QueryCompletions(ctx, ids...); err != nil {
			return BranchProgress{}, errors.Wrap(err, "querying completions")
		}
	}
	return ForBranch(paths, NewSet(completions), staff, branchID), nil
}
