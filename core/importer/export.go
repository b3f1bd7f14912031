package importer

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/user"
)

var errNoUserLister = errors.New("no user lister configured")

// Export writes the records of kind to w as CSV, in the format Import reads back.
// Users are exported without passwords.
func (svc *Service) Export(ctx context.Context, kind Kind, w io.Writer) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	rows, err := svc.exportRows(ctx, kind)
	if err != nil {
		return errors.Wrapf(err, "exporting %s", kind)
	}
	return WriteCSV(w, kind.Header(), rows)
}

func (svc *Service) exportRows(ctx context.Context, kind Kind) ([]Row, error) {
	switch kind {
	case KindMaterials:
		tree, err := svc.deps.CatalogSvc.Tree(ctx)
		if err != nil {
			return nil, err
		}
		var rows []Row
		for _, p := range tree {
			for _, c := range p.Categories {
				for _, m := range c.Materials {
					rows = append(rows, MaterialRow{
						Path:     p.Name,
						Category: c.Name,
						Name:     m.Name,
						Type:     m.Type,
						URL:      m.URL,
					}.Row())
				}
			}
		}
		return rows, nil

	case KindBranches:
		branches, err := svc.deps.BranchSvc.Query(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(branches))
		for _, b := range branches {
			rows = append(rows, BranchRow{Name: b.Name, Region: b.Region}.Row())
		}
		return rows, nil

	default: // KindUsers
		if svc.deps.Users == nil {
			return nil, errNoUserLister
		}
		branches, err := svc.deps.BranchSvc.Query(ctx)
		if err != nil {
			return nil, err
		}
		branchNames := make(map[string]string, len(branches))
		for _, b := range branches {
			branchNames[b.ID] = b.Name
		}
		users, err := svc.deps.Users.Query(ctx, nil, core.DBOrdering{Field: "username", Ascending: true})
		if err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(users))
		for _, u := range users {
			rows = append(rows, UserRow{
				Name:     u.Name,
				Username: u.Username,
				Role:     u.Role,
				Branch:   branchNames[u.BranchID],
			}.Row())
		}
		return rows, nil
	}
}

var _ UserLister = (*user.Service)(nil)
