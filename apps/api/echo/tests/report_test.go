package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_reportApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	kabilaUsr := testutil.CreateUser(t, ta.usrRepo, "Mr Kabila", "kabila", "kabila@test.cd", "", []string{user.RoleTeacher}, true)
	tshalaUsr := testutil.CreateUser(t, ta.usrRepo, "Mme Tshala", "tshala", "tshala@test.cd", "", []string{user.RoleTeacher}, true)
	stdUsr := ta.createUser(t, "Kid", "kiddo", user.RoleStudent)
	kabila := testutil.CreateTeacher(t, ta.teacherRepo, "Mr Kabila", "kabila@test.cd")
	testutil.CreateTeacher(t, ta.teacherRepo, "Mme Tshala", "tshala@test.cd")

	adminToken := getToken(t, ta.conf, admin)
	kabilaToken := getToken(t, ta.conf, kabilaUsr)
	tshalaToken := getToken(t, ta.conf, tshalaUsr)
	studentToken := getToken(t, ta.conf, stdUsr)
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "Teachers cannot create", method: http.MethodPost, path: "/v1/reports", token: kabilaToken,
			body: []byte(`{"title": "Broken window"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Missing assignee", method: http.MethodPost, path: "/v1/reports", token: adminToken,
			body: []byte(`{"title": "Broken window"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"assignedTo": "this field is required"}),
		},
		{
			name: "Unknown assignee", method: http.MethodPost, path: "/v1/reports", token: adminToken,
			body: []byte(`{"title": "Broken window", "assignedTo": "nope"}`), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "teacher not found"}),
		},
		{
			name: "Empty search", path: "/v1/reports/search?query=%20", token: studentToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "query parameter is required"}),
		},
		{
			name: "No match", path: "/v1/reports/search?query=window", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "no reports match the query"}),
		},
	}
	runHTTPTests(t, ta, tests)

	req, rec := newAuthRequest(http.MethodPost, "/v1/reports", adminToken,
		[]byte(`{"title": " Broken window ", "description": "Room 5B", "assignedTo": "`+kabila.ID+`"}`))
	ta.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rpt report.Report
	unmarshalObj(t, rec, &rpt)
	assert.Equal(t, "Broken window", rpt.Title)
	assert.Equal(t, report.StatusPending, rpt.Status)
	assert.Equal(t, kabila.ID, rpt.AssignedTo)

	path := "/v1/reports/" + rpt.ID
	tests = []httpTest{
		{name: "Retrieve", path: path, token: studentToken, wantCode: http.StatusOK, wantData: marshalObj(t, rpt)},
		{name: "Search by title", path: "/v1/reports/search?query=WINDOW", token: studentToken, wantCode: http.StatusOK, wantData: marshalObj(t, []report.Report{rpt})},
		{name: "Search by ID", path: "/v1/reports/search?query=" + rpt.ID, token: studentToken, wantCode: http.StatusOK, wantData: marshalObj(t, []report.Report{rpt})},
		{
			name: "Unknown report", path: "/v1/reports/nope", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "report not found"}),
		},
		{
			name: "Students cannot update", method: http.MethodPut, path: path, token: studentToken,
			body: []byte(`{"status": "completed"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Other teachers cannot update", method: http.MethodPut, path: path, token: tshalaToken,
			body: []byte(`{"status": "completed"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Invalid status", method: http.MethodPut, path: path, token: kabilaToken,
			body: []byte(`{"status": "done"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"status": "status must be one of [pending in-progress completed]"}),
		},
	}
	runHTTPTests(t, ta, tests)

	t.Run("Assignee updates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, kabilaToken, []byte(`{"status": "in-progress"}`))
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got report.Report
		unmarshalObj(t, rec, &got)
		assert.Equal(t, report.StatusInProgress, got.Status)
		assert.Equal(t, rpt.Title, got.Title)
	})

	t.Run("Admin updates", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, adminToken, []byte(`{"status": "completed", "description": "Fixed"}`))
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got report.Report
		unmarshalObj(t, rec, &got)
		assert.Equal(t, report.StatusCompleted, got.Status)
		assert.Equal(t, "Fixed", got.Description)
	})

	t.Run("Unassigned once the teacher is gone", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/teachers/"+kabila.ID, adminToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodPut, path, kabilaToken, []byte(`{"status": "pending"}`))
		ta.do(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
