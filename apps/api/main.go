package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	echoapi "github.com/trezcool/pathways/apps/api/echo"
	"github.com/trezcool/pathways/apps/shared"
	"github.com/trezcool/pathways/core"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "API")

	c, err := shared.NewContainer(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up dependencies: %v", err), err)
	}
	defer c.Close()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.Options{
			Address:            conf.Server.Host,
			AppName:            conf.AppName,
			Debug:              conf.Debug,
			TestMode:           conf.TestMode,
			DisableReqLogs:     conf.Server.DisableReqLogs,
			SecretKey:          conf.SecretKey,
			JWTExpirationDelta: conf.Server.JWTExpirationDelta,
		},
		echoapi.ServerDeps{
			Logger:      logger,
			Validate:    c.Validate,
			Translator:  c.Translator,
			CatalogSvc:  c.CatalogSvc,
			BranchSvc:   c.BranchSvc,
			UserSvc:     c.UserSvc,
			ProgressSvc: c.ProgressSvc,
			ImportSvc:   c.ImportSvc,
		},
	)

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
