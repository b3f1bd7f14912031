package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/user"
)

var NowFunc = time.Now // mockable

// Kind selects the validation rules and the reconciliation pipeline of an import.
type Kind string

// Kinds
const (
	KindMaterials Kind = "materials"
	KindBranches  Kind = "branches"
	KindUsers     Kind = "users"
)

var (
	Kinds = []Kind{KindMaterials, KindBranches, KindUsers}

	ErrUnknownKind = errors.New("unknown import kind")
)

func ParseKind(s string) (Kind, error) {
	s = core.CleanString(s, true /* lower */)
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Header returns the column names of kind, as expected by imports and produced by exports.
func (k Kind) Header() []string {
	switch k {
	case KindMaterials:
		return MaterialsHeader
	case KindBranches:
		return BranchesHeader
	case KindUsers:
		return UsersHeader
	}
	return nil
}

type Options struct {
	// DefaultMaterialType is used for materials whose type is missing or unknown.
	DefaultMaterialType catalog.MaterialType
	// LoginDomain is appended to usernames without "@" to build logins.
	LoginDomain string
	// MaxErrors caps the failure messages kept in a Report.
	MaxErrors int
	// ReportRecipients get the summary of every import by email.
	ReportRecipients []mail.Address
	// OnRow, if set, is called after each row.
	OnRow func(Outcome)
}

func OptionsFromConfig(conf core.ImportConfig) Options {
	return Options{
		DefaultMaterialType: catalog.MaterialTypeOr(conf.DefaultMaterialType, catalog.MaterialDocument),
		LoginDomain:         conf.LoginDomain,
		MaxErrors:           conf.MaxReportErrors,
		ReportRecipients:    core.ParseAddresses(conf.ReportRecipients...),
	}
}

// UserLister lists the users to export.
type UserLister interface {
	Query(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error)
}

type Deps struct {
	CatalogSvc *catalog.Service
	BranchSvc  *branch.Service
	Identities user.IdentityProvider
	Users      UserLister // exports only
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	MailSvc    core.EmailService // optional
}

type Service struct {
	deps Deps
	opts Options
}

func NewService(deps Deps, opts Options) *Service {
	if _, ok := catalog.ParseMaterialType(string(opts.DefaultMaterialType)); !ok {
		opts.DefaultMaterialType = catalog.MaterialDocument
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	return &Service{deps: deps, opts: opts}
}

// Import parses text and imports its rows as kind.
func (svc *Service) Import(ctx context.Context, kind Kind, text string) (Report, error) {
	return svc.ImportReader(ctx, kind, strings.NewReader(text))
}

func (svc *Service) ImportReader(ctx context.Context, kind Kind, r io.Reader) (Report, error) {
	tbl, err := ParseTable(r)
	if err != nil {
		return Report{}, err
	}
	return svc.ImportTable(ctx, kind, tbl)
}

// ImportTable imports the records of tbl as kind, one at a time.
// Fatal errors (unknown kind, no data rows) return no report. A failing row only fails itself.
// If ctx is done between two rows, the import stops: the returned report counts the rows
// processed so far and the error is ctx.Err().
func (svc *Service) ImportTable(ctx context.Context, kind Kind, tbl Table) (Report, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Report{}, err
	}
	if len(tbl.Records) == 0 {
		return Report{}, &ParseError{Err: ErrNoRows}
	}

	opts := svc.opts
	if onRow, ok := onRowFromContext(ctx); ok {
		opts.OnRow = onRow
	}
	eng := engine{
		catalogSvc: svc.deps.CatalogSvc,
		branchSvc:  svc.deps.BranchSvc,
		identities: svc.deps.Identities,
		validate:   svc.deps.Validate,
		translator: svc.deps.Translator,
		opts:       opts,
	}

	start := NowFunc()
	rep, err := eng.run(ctx, kind, tbl.Records)
	elapsed := NowFunc().Sub(start).Seconds()

	status := "ok"
	switch {
	case err != nil:
		status = "canceled"
	case rep.Succeeded == 0:
		status = "failed"
	}
	recordImport(rep, status, elapsed)
	svc.logReport(rep, status)
	if err != nil {
		return rep, errors.Wrap(err, "import interrupted")
	}
	svc.mailReport(rep)
	return rep, nil
}

func (svc *Service) logReport(rep Report, status string) {
	if svc.deps.Logger == nil {
		return
	}
	extras := map[string]interface{}{
		"kind":      rep.Kind,
		"status":    status,
		"succeeded": rep.Succeeded,
		"failed":    rep.Failed,
		"errors":    rep.Messages(),
	}
	if rep.Failed > 0 {
		svc.deps.Logger.Warn(rep.Summary(), extras)
	} else {
		svc.deps.Logger.Info(rep.Summary(), extras)
	}
}

// mailReport emails the summary to the report recipients, with every failed row attached as csv.
func (svc *Service) mailReport(rep Report) {
	if svc.deps.MailSvc == nil || len(svc.opts.ReportRecipients) == 0 {
		return
	}
	body := new(strings.Builder)
	_, _ = fmt.Fprintln(body, rep.Summary())
	for _, msg := range rep.Messages() {
		_, _ = fmt.Fprintln(body, "  "+msg)
	}
	msg := &core.EmailMessage{
		To:      svc.opts.ReportRecipients,
		Subject: fmt.Sprintf("%s import report", rep.Kind),
		BodyStr: body.String(),
	}
	if rep.Failed > 0 {
		if err := svc.attachFailures(msg, rep); err != nil && svc.deps.Logger != nil {
			svc.deps.Logger.Error(fmt.Sprintf("attaching %s import failures: %v", rep.Kind, err), err)
		}
	}
	svc.deps.MailSvc.SendMessages(msg)
}

func (svc *Service) attachFailures(msg *core.EmailMessage, rep Report) error {
	buf := new(bytes.Buffer)
	if err := rep.WriteFailures(buf); err != nil {
		return err
	}
	return msg.Attach(buf, fmt.Sprintf("%s-import-failures.csv", rep.Kind), "text/csv")
}

type onRowKey struct{}

// WithOnRow returns a copy of ctx carrying a per-call progress callback, overriding Options.OnRow.
func WithOnRow(ctx context.Context, fn func(Outcome)) context.Context {
	return context.WithValue(ctx, onRowKey{}, fn)
}

func onRowFromContext(ctx context.Context) (func(Outcome), bool) {
	fn, ok := ctx.Value(onRowKey{}).(func(Outcome))
	return fn, ok && fn != nil
}
