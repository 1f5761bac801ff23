package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
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
	mediasvc "github.com/trezcool/shule/services/media"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// testApp is a Server over a fresh in-memory store.
type testApp struct {
	conf     *core.Config
	server   *Server
	recorder *activity.Recorder
	mail     core.EmailService

	usrRepo      user.Repository
	guardianRepo guardian.Repository
	teacherRepo  teacher.Repository
	subjectRepo  subject.Repository
	studentRepo  student.Repository
	reportRepo   report.Repository
	activityRepo activity.Repository
}

// setup builds the app; mailSvc defaults to a silent console service.
func setup(t *testing.T, mailSvc ...core.EmailService) *testApp {
	t.Helper()

	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()

	var mail core.EmailService = emailsvc.NewConsoleServiceMock(conf, logger)
	if len(mailSvc) > 0 {
		mail = mailSvc[0]
	}

	// set up DB & repos
	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	ta := &testApp{
		conf:         conf,
		mail:         mail,
		usrRepo:      inmemdb.NewUserRepository(db),
		guardianRepo: inmemdb.NewGuardianRepository(db),
		teacherRepo:  inmemdb.NewTeacherRepository(db),
		subjectRepo:  inmemdb.NewSubjectRepository(db),
		studentRepo:  inmemdb.NewStudentRepository(db),
		reportRepo:   inmemdb.NewReportRepository(db),
		activityRepo: inmemdb.NewActivityRepository(db),
	}

	// set up services
	ta.recorder = activity.NewRecorder(ta.activityRepo, logger, conf)
	t.Cleanup(func() { _ = ta.recorder.Close(context.Background()) })

	usrSvc := user.NewService(ta.usrRepo, conf, mail)
	guardianSvc := guardian.NewService(ta.guardianRepo)
	orchestrator := enrollment.NewOrchestrator(enrollment.OrchestratorDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Tx:          tx,
		Assignments: enrollment.NewAssignmentResolver(ta.teacherRepo, ta.subjectRepo),
		Guardians:   guardianSvc,
		Students:    ta.studentRepo,
		Teachers:    ta.teacherRepo,
		IDs:         enrollment.NewIDGenerator(inmemdb.NewSequenceRepository(db)),
		Notifier:    enrollment.NewEmailNotifier(mail),
		Recorder:    ta.recorder,
	})

	// set up server
	ta.server = NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		StudentSvc:   student.NewService(ta.studentRepo, guardianSvc, tx),
		GuardianSvc:  guardianSvc,
		TeacherSvc:   teacher.NewService(ta.teacherRepo, usrSvc, tx),
		SubjectSvc:   subject.NewService(ta.subjectRepo, ta.teacherRepo, tx),
		ReportSvc:    report.NewService(ta.reportRepo, ta.teacherRepo),
		UpdateSvc:    update.NewService(inmemdb.NewUpdateRepository(db), mediasvc.NewDiskStore(conf), conf),
		ActivitySvc:  activity.NewService(ta.activityRepo),
		DashboardSvc: dashboard.NewService(ta.studentRepo, ta.teacherRepo, ta.activityRepo, nil, logger, conf),
		Enroller:     orchestrator,
		Recorder:     ta.recorder,
	})
	return ta
}

func (ta *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) {
	ta.server.ServeHTTP(rec, req)
}

// logs waits for pending activity entries and returns every entry, newest first.
func (ta *testApp) logs(t *testing.T) []activity.Log {
	t.Helper()
	if err := ta.recorder.Flush(context.Background()); err != nil {
		t.Fatalf("recorder.Flush() failed: %v", err)
	}
	logs, err := ta.activityRepo.QueryLogs(context.Background(), 1000)
	if err != nil {
		t.Fatalf("QueryLogs() failed: %v", err)
	}
	return logs
}

func (ta *testApp) createUser(t *testing.T, name, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, ta.usrRepo, name, uname, uname+"@test.cd", "", roles, true)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshalObj(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshalObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, ta *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			ta.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
