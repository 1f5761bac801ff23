package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/dashboard"
	"github.com/trezcool/shule/core/enrollment"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/update"
	"github.com/trezcool/shule/core/user"
)

type (
	// Enroller admits new students.
	Enroller interface {
		Enroll(ctx context.Context, ne enrollment.NewEnrollment, actor string) (*enrollment.Enrollment, error)
	}

	// Recorder records audit entries without blocking.
	Recorder interface {
		Record(description, actor string)
	}

	ServerDeps struct {
		dig.In

		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		UserSvc      user.ServiceInterface
		StudentSvc   student.ServiceInterface
		GuardianSvc  guardian.ServiceInterface
		TeacherSvc   teacher.ServiceInterface
		SubjectSvc   subject.ServiceInterface
		ReportSvc    report.ServiceInterface
		UpdateSvc    update.ServiceInterface
		ActivitySvc  activity.ServiceInterface
		DashboardSvc dashboard.ServiceInterface
		Enroller     Enroller
		Recorder     Recorder
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		jwtConf  middleware.JWTConfig
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		jwtConf:    newJWTConfig(deps.Conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HideBanner = true

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home(conf))
	if conf.Media.Dir != "" {
		s.app.Static(conf.Media.BaseURL, conf.Media.Dir)
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.jwtConf)

	registerAuthAPI(v1, jwt, s)
	registerAdminAPI(v1, jwt, s)
	registerStudentAPI(v1, jwt, s)
	registerTeacherAPI(v1, jwt, s)
	registerSubjectAPI(v1, jwt, s)
	registerGuardianAPI(v1, jwt, s)
	registerReportAPI(v1, jwt, s)
	registerUpdateAPI(v1, jwt, s)
	registerActivityAPI(v1, jwt, s)
}

// Start listens on Server.Host; failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// record hands an audit entry to the Recorder and drops the cached dashboard summary.
func (s *Server) record(ctx echo.Context, description string) {
	s.Recorder.Record(description, actorName(ctx))
	s.DashboardSvc.Invalidate(ctx.Request().Context())
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+" API!")
	}
}
