package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/importer"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
)

type (
	Options struct {
		Address        string
		AppName        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool

		// SecretKey signs and verifies the HS256 bearer tokens.
		SecretKey          string
		JWTExpirationDelta time.Duration
	}

	ServerDeps struct {
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		CatalogSvc  *catalog.Service
		BranchSvc   *branch.Service
		UserSvc     *user.Service
		ProgressSvc *progress.Service
		ImportSvc   *importer.Service
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		opts     Options
		deps     ServerDeps
		auth     authConfig
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts Options, deps ServerDeps) Server {
	s := &server{
		opts:     opts,
		deps:     deps,
		auth:     newAuthConfig(opts),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(s.auth)

	registerUserAPI(v1, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerCatalogAPI(v1, jwt, s.deps.CatalogSvc, s.deps.Validate)
	registerBranchAPI(v1, jwt, s.deps.BranchSvc, s.deps.ProgressSvc, s.deps.Validate)
	registerProgressAPI(v1, jwt, s.deps.ProgressSvc)
	registerImportAPI(v1, jwt, s.deps.ImportSvc)
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

// Start serves until Shutdown or Close; any other failure is sent to Errors.
func (s *server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.AppName+" API!")
}
