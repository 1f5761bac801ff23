package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/user"
)

type app struct {
	dig.In

	Conf          *core.Config
	APILogger     core.Logger
	DBLoggerParam dig_container.DBLoggerParam
	DB            *sqlx.DB
	Redis         *redis.Client
	Validate      *validator.Validate
	Translator    ut.Translator
	Recorder      *activity.Recorder
	Server        *echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(a app) {
	conf, apiLogger, server := a.Conf, a.APILogger, a.Server

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.InitValidators(a.Validate, a.Translator)
	user.InitValidators(a.Validate, a.Translator)

	core.ParseEmailTemplates(conf, apiLogger)

	user.LoadCommonPasswords(apiLogger)

	dbLogger := a.DBLoggerParam.Logger
	defer func() {
		if a.DB == nil {
			return
		}
		if err := a.DB.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	defer func() {
		if a.Redis != nil {
			_ = a.Redis.Close()
		}
	}()
	defer apiLogger.Info("Application stopped")

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
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// pending activity logs are written before the store goes away
		if err := a.Recorder.Close(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not flush activity logs: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
