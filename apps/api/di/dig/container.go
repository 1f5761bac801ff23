package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
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
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	mediasvc "github.com/trezcool/shule/services/media"
	"github.com/trezcool/shule/storage/cache"
	"github.com/trezcool/shule/storage/database"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	boiledrepos "github.com/trezcool/shule/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

const engineInMem = "inmem"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is every repository of one backend, sharing one connection handle.
type Storage struct {
	dig.Out

	DB         *sqlx.DB // nil for the in-memory engine
	Tx         core.Transactor
	Users      user.Repository
	Guardians  guardian.Repository
	Teachers   teacher.Repository
	Subjects   subject.Repository
	Students   student.Repository
	Reports    report.Repository
	Updates    update.Repository
	Activities activity.Repository
	Sequence   enrollment.Sequencer `name:"dbSequencer"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == engineInMem {
		loggerParam.Logger.Info("using the in-memory store; data is lost on exit")
		db := inmemdb.Open()
		return Storage{
			Tx:         inmemdb.NewTransactor(db),
			Users:      inmemdb.NewUserRepository(db),
			Guardians:  inmemdb.NewGuardianRepository(db),
			Teachers:   inmemdb.NewTeacherRepository(db),
			Subjects:   inmemdb.NewSubjectRepository(db),
			Students:   inmemdb.NewStudentRepository(db),
			Reports:    inmemdb.NewReportRepository(db),
			Updates:    inmemdb.NewUpdateRepository(db),
			Activities: inmemdb.NewActivityRepository(db),
			Sequence:   inmemdb.NewSequenceRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(db); err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		DB:         db,
		Tx:         database.NewTransactor(db),
		Users:      boiledrepos.NewUserRepository(db),
		Guardians:  sqlxrepos.NewGuardianRepository(db),
		Teachers:   sqlxrepos.NewTeacherRepository(db),
		Subjects:   sqlxrepos.NewSubjectRepository(db),
		Students:   sqlxrepos.NewStudentRepository(db),
		Reports:    sqlxrepos.NewReportRepository(db),
		Updates:    sqlxrepos.NewUpdateRepository(db),
		Activities: boiledrepos.NewActivityRepository(db),
		Sequence:   sqlxrepos.NewSequenceRepository(db),
	}
}

// newRedis returns nil when no Redis server is configured or it cannot be reached.
func newRedis(conf *core.Config, logger core.Logger) *redis.Client {
	if !conf.Redis.Enabled() {
		return nil
	}
	client, err := cache.Open(context.Background(), conf)
	if err != nil {
		logger.Error(fmt.Sprintf("redis unavailable, running without it: %v", err), err)
		return nil
	}
	return client
}

func newCache(client *redis.Client) core.Cache {
	if client == nil {
		return nil
	}
	return cache.NewRedisCache(client)
}

type sequencerParams struct {
	dig.In
	Conf     *core.Config
	Redis    *redis.Client
	Students student.Repository
	DBSeq    enrollment.Sequencer `name:"dbSequencer"`
}

func newSequencer(p sequencerParams) enrollment.Sequencer {
	if p.Conf.Redis.Sequencer && p.Redis != nil {
		return cache.NewRedisSequencer(p.Redis, p.Students)
	}
	return p.DBSeq
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newMediaStore(conf *core.Config) update.MediaStore {
	return mediasvc.NewDiskStore(conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newDashboardService(
	students student.Repository,
	teachers teacher.Repository,
	activities activity.Repository,
	c core.Cache,
	logger core.Logger,
	conf *core.Config,
) *dashboard.Service {
	return dashboard.NewService(students, teachers, activities, c, logger, conf)
}

type orchestratorParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Tx          core.Transactor
	Guardians   guardian.ServiceInterface
	Students    student.Repository
	Teachers    teacher.Repository
	Subjects    subject.Repository
	Sequencer   enrollment.Sequencer
	MailSvc     core.EmailService
	Recorder    *activity.Recorder
}

func newOrchestrator(p orchestratorParams) *enrollment.Orchestrator {
	return enrollment.NewOrchestrator(enrollment.OrchestratorDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Tx:          p.Tx,
		Assignments: enrollment.NewAssignmentResolver(p.Teachers, p.Subjects),
		Guardians:   p.Guardians,
		Students:    p.Students,
		Teachers:    p.Teachers,
		IDs:         enrollment.NewIDGenerator(p.Sequencer),
		Notifier:    enrollment.NewEmailNotifier(p.MailSvc),
		Recorder:    p.Recorder,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// storage
	must(c.Provide(newStorage))
	must(c.Provide(newRedis))
	must(c.Provide(newCache))
	must(c.Provide(newSequencer))
	must(c.Provide(newEmailService))
	must(c.Provide(newMediaStore))

	// services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(guardian.NewService, dig.As(new(guardian.ServiceInterface))))
	must(c.Provide(student.NewService, dig.As(new(student.ServiceInterface))))
	must(c.Provide(teacher.NewService, dig.As(new(teacher.ServiceInterface))))
	must(c.Provide(subject.NewService, dig.As(new(subject.ServiceInterface))))
	must(c.Provide(report.NewService, dig.As(new(report.ServiceInterface))))
	must(c.Provide(update.NewService, dig.As(new(update.ServiceInterface))))
	must(c.Provide(activity.NewService, dig.As(new(activity.ServiceInterface))))
	must(c.Provide(activity.NewRecorder))
	must(c.Provide(func(r *activity.Recorder) echoapi.Recorder { return r }))
	must(c.Provide(newDashboardService, dig.As(new(dashboard.ServiceInterface))))
	must(c.Provide(newOrchestrator, dig.As(new(echoapi.Enroller))))

	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
