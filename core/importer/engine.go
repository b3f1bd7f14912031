package importer

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
)

// engine reconciles the records of one import, one row at a time and in input order.
// Find-or-create on paths and categories is only safe because rows never run concurrently.
type engine struct {
	catalogSvc *catalog.Service
	branchSvc  *branch.Service
	identities user.IdentityProvider
	validate   *validator.Validate
	translator ut.Translator
	opts       Options
}

func (e *engine) run(ctx context.Context, kind Kind, records []Record) (Report, error) {
	rep := newReport(kind, e.opts.MaxErrors)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		var err error
		switch kind {
		case KindMaterials:
			err = e.importMaterial(ctx, rec.Row)
		case KindBranches:
			err = e.importBranch(ctx, rec.Row)
		case KindUsers:
			err = e.importUser(ctx, rec.Row)
		default:
			return rep, ErrUnknownKind
		}

		o := Outcome{Line: rec.Line, Err: err}
		if err != nil {
			o.Reason = core.ErrorMessage(err, e.translator)
		}
		rep.add(o)
		if e.opts.OnRow != nil {
			e.opts.OnRow(o)
		}
	}
	return rep, nil
}

func (e *engine) importMaterial(ctx context.Context, row Row) error {
	mr := materialRow(row, e.opts.DefaultMaterialType)
	if err := e.validate.Struct(mr); err != nil {
		return err
	}

	path, err := e.catalogSvc.FindPath(ctx, mr.Path)
	if errors.Cause(err) == catalog.ErrPathNotFound {
		path, err = e.catalogSvc.CreatePath(ctx, catalog.NewPath{Name: mr.Path})
	}
	if err != nil {
		return errors.Wrapf(err, "resolving path %q", mr.Path)
	}

	cat, err := e.catalogSvc.FindCategory(ctx, path.ID, mr.Category)
	if errors.Cause(err) == catalog.ErrCategoryNotFound {
		cat, err = e.catalogSvc.CreateCategory(ctx, path.ID, catalog.NewCategory{Name: mr.Category})
	}
	if err != nil {
		return errors.Wrapf(err, "resolving category %q", mr.Category)
	}

	_, err = e.catalogSvc.CreateMaterial(ctx, cat.ID, catalog.NewMaterial{
		Name: mr.Name,
		Type: string(mr.Type),
		URL:  mr.URL,
	})
	return errors.Wrapf(err, "creating material %q", mr.Name)
}

// importBranch creates a branch for every row; the store rejects duplicate names.
func (e *engine) importBranch(ctx context.Context, row Row) error {
	br := branchRow(row)
	if err := e.validate.Struct(br); err != nil {
		return err
	}
	_, err := e.branchSvc.Create(ctx, branch.NewBranch{Name: br.Name, Region: br.Region})
	return err
}

func (e *engine) importUser(ctx context.Context, row Row) error {
	ur := userRow(row)
	if err := e.validate.Struct(ur); err != nil {
		return err
	}
	ur.normalize()

	var branchID string
	if ur.Role.NeedsBranch() {
		b, err := e.branchSvc.GetByName(ctx, ur.Branch)
		if err != nil {
			return errors.Wrapf(err, "resolving branch %q", ur.Branch)
		}
		branchID = b.ID
	}

	_, err := e.identities.CreateIdentity(ctx, user.NewUser{
		Name:     ur.Name,
		Username: ur.Username,
		Email:    user.LoginFor(ur.Username, e.opts.LoginDomain),
		Password: ur.Password,
		Role:     ur.Role,
		BranchID: branchID,
	})
	return err
}
