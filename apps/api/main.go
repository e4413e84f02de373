package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/classroom/apps/api/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/schedule"
	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
	"github.com/trezcool/classroom/core/video"
	emailsvc "github.com/trezcool/classroom/services/email"
	logsvc "github.com/trezcool/classroom/services/logger"
	inmemdb "github.com/trezcool/classroom/storage/database/inmem"
	sqlxrepos "github.com/trezcool/classroom/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up repositories
	var (
		usrRepo    user.Repository
		eventsRepo session.EventRepository
	)
	if conf.Database.InMemory {
		db := inmemdb.Open()
		usrRepo = inmemdb.NewUserRepository(db)
		eventsRepo = inmemdb.NewSessionEventRepository(db)
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Error(fmt.Sprintf("failed to close: %v", err), err)
			}
		}()
		usrRepo = sqlxrepos.NewUserRepository(db)
		eventsRepo = sqlxrepos.NewSessionEventRepository(db)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(log.New(os.Stdout, "", 0), logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	registry, err := session.NewRegistry(
		session.ConfigFrom(conf.Session),
		eventsRepo,
		logger,
		session.WithCheckInterval(conf.Session.CheckInterval),
		session.WithScheduler(schedule.New(schedule.WithLogger(logger)).Named("session")),
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session registry: %v", err), err)
	}

	tokens := video.NewSignedTokenSource(conf.SecretKey, conf.Video.StreamTokenTTL, nil)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, false)

	user.LoadCommonPasswords(logger)

	videoSvc, err := video.NewService(video.ConfigFrom(conf), tokens, validate, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up video service: %v", err), err)
	}
	registry.OnEnd(videoSvc.CloseSession)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("sessions", expvar.Func(func() interface{} { return registry.Len() }))
	expvar.Publish("video_views", expvar.Func(func() interface{} { return videoSvc.Len() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			Registry:   registry,
			VideoSvc:   videoSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// end the tracked sessions, which closes their video views
		registry.Close(ctx)
	}
	videoSvc.Close()
}
