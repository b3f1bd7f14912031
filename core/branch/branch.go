package branch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound   = errors.New("branch not found")
	ErrNameExists = errors.New("a branch with this name already exists")
	ErrInUse      = errors.New("branch still has users")
)

type Branch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	ManagerID string    `json:"manager_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type GetFilter struct {
	ID   string
	Name string
}

// NewBranch contains information needed to create a new Branch.
type NewBranch struct {
	Name      string `json:"name" validate:"required,max=200"`
	Region    string `json:"region" validate:"max=200"`
	ManagerID string `json:"manager_id"`
}

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Region = core.CleanString(nb.Region)
	nb.ManagerID = core.CleanString(nb.ManagerID)
	return validate.Struct(nb)
}

type (
	Repository interface {
		QueryBranches(ctx context.Context) ([]Branch, error)
		// GetBranch finds a branch by ID or by its exact Name.
		GetBranch(ctx context.Context, filter GetFilter) (Branch, error)
		// CreateBranch fails with ErrNameExists if the name is already taken.
		CreateBranch(ctx context.Context, b Branch) (Branch, error)
		UpdateBranch(ctx context.Context, b Branch) (Branch, error)
		// DeleteBranch fails with ErrInUse while users belong to the branch.
		DeleteBranch(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Query(ctx context.Context) ([]Branch, error) {
	return svc.repo.QueryBranches(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Branch, error) {
	return svc.repo.GetBranch(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByName(ctx context.Context, name string) (Branch, error) {
	return svc.repo.GetBranch(ctx, GetFilter{Name: core.CleanString(name)})
}

func (svc *Service) Create(ctx context.Context, nb NewBranch) (Branch, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateBranch(ctx, Branch{
		Name:      core.CleanString(nb.Name),
		Region:    core.CleanString(nb.Region),
		ManagerID: nb.ManagerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) SetManager(ctx context.Context, id, managerID string) (Branch, error) {
	b, err := svc.repo.GetBranch(ctx, GetFilter{ID: id})
	if err != nil {
		return Branch{}, err
	}
	b.ManagerID = managerID
	b.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateBranch(ctx, b)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteBranch(ctx, id)
}
