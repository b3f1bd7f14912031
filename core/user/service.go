package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, user User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, user User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	// IdentityProvider creates login identities along with their profile.
	IdentityProvider interface {
		CreateIdentity(ctx context.Context, nu NewUser) (User, error)
	}

	Service struct {
		repo       Repository
		branchRepo branch.Repository
		validate   *validator.Validate
	}
)

var _ IdentityProvider = (*Service)(nil)

func NewService(repo Repository, branchRepo branch.Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, branchRepo: branchRepo, validate: validate}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) checkBranch(ctx context.Context, nu NewUser) error {
	if !nu.Role.NeedsBranch() {
		return nil
	}
	if _, err := svc.branchRepo.GetBranch(ctx, branch.GetFilter{ID: nu.BranchID}); err != nil {
		if errors.Cause(err) == branch.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "branch_id", Error: err.Error()})
		}
		return errors.Wrap(err, "fetching branch")
	}
	return nil
}

// CreateIdentity validates nu against the password policy and the existing users, then creates an active User.
func (svc *Service) CreateIdentity(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}
	if err := svc.checkBranch(ctx, nu); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Role.NeedsBranch() {
		usr.BranchID = nu.BranchID
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

// ResetPassword sets a new password on usr, applying the password policy.
func (svc *Service) ResetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	nu := NewUser{
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		Password: pwd,
		Role:     usr.Role,
		BranchID: usr.BranchID,
	}
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.IsActive = true
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
