package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_teacherApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	tchrUsr := ta.createUser(t, "Mme Tshala", "tshala", user.RoleTeacher)
	stdUsr := ta.createUser(t, "Kid", "kiddo", user.RoleStudent)
	adminToken := getToken(t, ta.conf, admin)
	teacherToken := getToken(t, ta.conf, tchrUsr)

	tshala := testutil.CreateTeacher(t, ta.teacherRepo, "Mme Tshala", "tshala@test.cd", testutil.Teaches("French", "3"))
	kabila := testutil.CreateTeacher(t, ta.teacherRepo, "Mr Kabila", "kabila@test.cd", testutil.Teaches("Math", "5"))
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", path: "/v1/teachers", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Students are not staff", path: "/v1/teachers", token: getToken(t, ta.conf, stdUsr), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "List", path: "/v1/teachers", token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, []teacher.Teacher{tshala, kabila})},
		{name: "Filter by grade", path: "/v1/teachers?grade=5", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []teacher.Teacher{kabila})},
		{name: "Search", path: "/v1/teachers?search=tsha", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []teacher.Teacher{tshala})},
		{name: "Retrieve", path: "/v1/teachers/" + kabila.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, kabila)},
		{
			name: "Unknown teacher", path: "/v1/teachers/nope", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "teacher not found"}),
		},
		{
			name: "Teachers cannot add teachers", method: http.MethodPost, path: "/v1/teachers", token: teacherToken,
			body: []byte(`{"name": "X", "email": "x@test.cd"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Invalid data", method: http.MethodPost, path: "/v1/teachers", token: adminToken,
			body: []byte(`{"name": " ", "email": "nope", "subjects": [{"subjectName": "Math"}]}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"name":              "this field is required",
				"email":             "email must be a valid email address",
				"subjects[0].grade": "this field is required",
			}),
		},
		{
			name: "Blank name on update", method: http.MethodPut, path: "/v1/teachers/" + kabila.ID, token: adminToken,
			body: []byte(`{"name": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "this field cannot be blank"}),
		},
		{
			name: "Duplicate email", method: http.MethodPost, path: "/v1/teachers", token: adminToken,
			body: []byte(`{"name": "Other Kabila", "email": "KABILA@test.cd"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": teacher.ErrEmailExists.Error()}),
		},
		{name: "Dashboard is for teachers", path: "/v1/teachers/dashboard", token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
	}
	runHTTPTests(t, ta, tests)

	t.Run("Create with account", func(t *testing.T) {
		body := []byte(`{"name": "Mr Lumumba", "email": "Lumumba@test.cd", "phone": " +243 990 000 001 ",
			"password": "` + strongPwd + `", "subjects": [{"subjectName": "History", "grade": "6"}, {"subjectName": "History", "grade": "6"}]}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/teachers", adminToken, body)
		ta.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got teacher.Teacher
		unmarshalObj(t, rec, &got)
		assert.Equal(t, "lumumba@test.cd", got.Email)
		assert.Equal(t, "+243 990 000 001", got.Phone)
		require.Len(t, got.Subjects, 1)
		assert.Equal(t, "History", got.Subjects[0].SubjectName)

		usr, err := ta.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "lumumba@test.cd"})
		require.NoError(t, err)
		assert.True(t, usr.IsTeacher())
	})

	t.Run("Update replaces assignments", func(t *testing.T) {
		body := []byte(`{"phone": "0990000002", "subjects": [{"subjectName": "Math", "grade": "5"}, {"subjectName": "Math", "grade": "6"}]}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/teachers/"+tshala.ID, adminToken, body)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got teacher.Teacher
		unmarshalObj(t, rec, &got)
		assert.Equal(t, "Mme Tshala", got.Name)
		assert.Equal(t, "0990000002", got.Phone)
		assert.True(t, got.Teaches("5"))
		assert.True(t, got.Teaches("6"))
		assert.False(t, got.Teaches("3"))
	})

	t.Run("Dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teachers/dashboard", teacherToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got TeacherDashboard
		unmarshalObj(t, rec, &got)
		assert.Equal(t, tshala.ID, got.Teacher.ID)
		assert.Empty(t, got.Students)

		// a teacher account without a teacher record
		orphan := ta.createUser(t, "Orphan", "orphan", user.RoleTeacher)
		req, rec = newAuthRequest(http.MethodGet, "/v1/teachers/dashboard", getToken(t, ta.conf, orphan))
		ta.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/teachers/"+kabila.ID, adminToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/teachers/"+kabila.ID, adminToken)
		ta.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Mutations are recorded", func(t *testing.T) {
		logs := ta.logs(t)
		require.Len(t, logs, 3)
		for _, l := range logs {
			assert.Equal(t, "admin", l.Actor)
		}
	})
}

func Test_teacherApi_assignSubject(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	adminToken := getToken(t, ta.conf, admin)
	tchr := testutil.CreateTeacher(t, ta.teacherRepo, "Mr Kabila", "kabila@test.cd")
	math := testutil.CreateSubject(t, ta.subjectRepo, "Math", "5")
	path := "/v1/teachers/" + tchr.ID + "/subjects/" + math.ID

	tests := []httpTest{
		{
			name: "Unassign before assign", method: http.MethodDelete, path: path, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "teacher is not assigned to this subject"}),
		},
		{
			name: "Unknown subject", method: http.MethodPut, path: "/v1/teachers/" + tchr.ID + "/subjects/nope", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "subject not found"}),
		},
		{
			name: "Unknown teacher", method: http.MethodPut, path: "/v1/teachers/nope/subjects/" + math.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "teacher not found"}),
		},
	}
	runHTTPTests(t, ta, tests)

	// assigning twice is a no-op
	for i := 0; i < 2; i++ {
		req, rec := newAuthRequest(http.MethodPut, path, adminToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got teacher.Teacher
		unmarshalObj(t, rec, &got)
		require.Len(t, got.Subjects, 1)
		assert.Equal(t, "Math", got.Subjects[0].SubjectName)
		assert.Equal(t, "5", got.Subjects[0].Grade)
	}
	s, err := ta.subjectRepo.GetSubject(context.Background(), math.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tchr.ID}, s.Teachers)

	req, rec := newAuthRequest(http.MethodDelete, path, adminToken)
	ta.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got teacher.Teacher
	unmarshalObj(t, rec, &got)
	assert.Empty(t, got.Subjects)
	s, err = ta.subjectRepo.GetSubject(context.Background(), math.ID)
	require.NoError(t, err)
	assert.Empty(t, s.Teachers)
}

func Test_subjectApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	tchrUsr := ta.createUser(t, "Teacher", "teacher", user.RoleTeacher)
	adminToken := getToken(t, ta.conf, admin)
	teacherToken := getToken(t, ta.conf, tchrUsr)
	tchr := testutil.CreateTeacher(t, ta.teacherRepo, "Mr Kabila", "kabila@test.cd")
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	var created subject.Subject
	t.Run("Create with teachers", func(t *testing.T) {
		body := []byte(`{"name": " Science ", "grade": "4", "teachers": ["` + tchr.ID + `"]}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/subjects", adminToken, body)
		ta.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshalObj(t, rec, &created)
		assert.Equal(t, "Science", created.Name)
		assert.Equal(t, []string{tchr.ID}, created.Teachers)

		got, err := ta.teacherRepo.GetTeacher(context.Background(), teacher.GetFilter{ID: tchr.ID})
		require.NoError(t, err)
		assert.True(t, got.Teaches("4"))
	})

	t.Run("Create with unknown teacher", func(t *testing.T) {
		body := []byte(`{"name": "Art", "grade": "4", "teachers": ["nope"]}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/subjects", adminToken, body)
		ta.do(req, rec)
		require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

		subjects, err := ta.subjectRepo.QuerySubjects(context.Background(), &subject.QueryFilter{Grade: "4"})
		require.NoError(t, err)
		assert.Len(t, subjects, 1) // rolled back
	})

	other := testutil.CreateSubject(t, ta.subjectRepo, "Math", "5")
	other, err := ta.subjectRepo.GetSubject(context.Background(), other.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "List is staff only", path: "/v1/subjects", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "List", path: "/v1/subjects", token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, []subject.Subject{other, created})},
		{name: "Filter by grade", path: "/v1/subjects?grade=5", token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, []subject.Subject{other})},
		{name: "Retrieve", path: "/v1/subjects/" + created.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, created)},
		{
			name: "Teachers cannot write", method: http.MethodPost, path: "/v1/subjects", token: teacherToken,
			body: []byte(`{"name": "Art", "grade": "4"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Missing grade", method: http.MethodPost, path: "/v1/subjects", token: adminToken,
			body: []byte(`{"name": "Art"}`), wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"grade": "this field is required"}),
		},
		{
			name: "Blank name", method: http.MethodPut, path: "/v1/subjects/" + other.ID, token: adminToken,
			body: []byte(`{"name": "  "}`), wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"name": "this field cannot be blank"}),
		},
		{name: "Rename", method: http.MethodPut, path: "/v1/subjects/" + other.ID, token: adminToken, body: []byte(`{"name": "Maths"}`), wantCode: http.StatusOK},
		{name: "Delete", method: http.MethodDelete, path: "/v1/subjects/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "Delete again", method: http.MethodDelete, path: "/v1/subjects/" + other.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "subject not found"}),
		},
	}
	runHTTPTests(t, ta, tests)
}
