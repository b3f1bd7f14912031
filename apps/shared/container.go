package shared

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/importer"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
	emailsvc "github.com/trezcool/pathways/services/email"
	logsvc "github.com/trezcool/pathways/services/logger"
	"github.com/trezcool/pathways/storage/database"
	"github.com/trezcool/pathways/storage/database/inmem"
	"github.com/trezcool/pathways/storage/database/sqlx"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineInMemory = "inmem"
)

// Container holds the application services, wired from a Config.
type Container struct {
	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	MailSvc    core.EmailService

	CatalogSvc  *catalog.Service
	BranchSvc   *branch.Service
	UserSvc     *user.Service
	ProgressSvc *progress.Service
	ImportSvc   *importer.Service

	db *sqlx.DB // nil for the in-memory engine
}

func NewLogger(conf *core.Config, prefix string) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

// NewValidator returns the validator with every package validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	importer.InitValidators(validate, translator)
	return validate, translator
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

type repositories struct {
	user     user.Repository
	branch   branch.Repository
	catalog  catalog.Repository
	progress progress.Repository
}

// setUpDB creates and migrates the postgres database if needed.
func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewContainer wires the services on the database engine of conf.
func NewContainer(ctx context.Context, conf *core.Config, logger core.Logger) (*Container, error) {
	c := &Container{
		Conf:     conf,
		Logger:   logger,
		DBLogger: NewLogger(conf, "DB"),
	}
	c.Validate, c.Translator = NewValidator()
	c.MailSvc = newEmailService(conf, logger)

	if conf.CommonPasswordsFile != "" {
		if err := user.LoadCommonPasswords(conf.CommonPasswordsFile); err != nil {
			return nil, errors.Wrap(err, "loading common passwords")
		}
	}

	var repos repositories
	switch conf.Database.Engine {
	case EngineInMemory:
		db := inmemdb.Open()
		repos = repositories{
			user:     inmemdb.NewUserRepository(db),
			branch:   inmemdb.NewBranchRepository(db),
			catalog:  inmemdb.NewCatalogRepository(db),
			progress: inmemdb.NewProgressRepository(db),
		}
	case EnginePostgres:
		db, err := setUpDB(ctx, conf)
		if err != nil {
			return nil, errors.Wrap(err, "setting up database")
		}
		c.db = db
		repos = repositories{
			user:     sqlxrepos.NewUserRepository(db),
			branch:   sqlxrepos.NewBranchRepository(db),
			catalog:  sqlxrepos.NewCatalogRepository(db),
			progress: sqlxrepos.NewProgressRepository(db),
		}
	default:
		return nil, fmt.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	c.CatalogSvc = catalog.NewService(repos.catalog)
	c.BranchSvc = branch.NewService(repos.branch)
	c.UserSvc = user.NewService(repos.user, repos.branch, c.Validate)
	c.ProgressSvc = progress.NewService(repos.progress, c.CatalogSvc, c.UserSvc)
	c.ImportSvc = importer.NewService(importer.Deps{
		CatalogSvc: c.CatalogSvc,
		BranchSvc:  c.BranchSvc,
		Identities: c.UserSvc,
		Users:      c.UserSvc,
		Validate:   c.Validate,
		Translator: c.Translator,
		Logger:     logger,
		MailSvc:    c.MailSvc,
	}, importer.OptionsFromConfig(conf.Import))
	return c, nil
}

// DB returns the postgres database, or nil for the in-memory engine.
func (c *Container) DB() *sqlx.DB {
	return c.db
}

func (c *Container) Close() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		c.DBLogger.Error(fmt.Sprintf("closing database: %v", err), err)
	}
}
