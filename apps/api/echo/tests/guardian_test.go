package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/user"
)

func Test_guardianApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	tchr := ta.createUser(t, "Teacher", "teacher", user.RoleTeacher)
	adminToken := getToken(t, ta.conf, admin)
	teacherToken := getToken(t, ta.conf, tchr)
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	create := func(t *testing.T, body string) (guardian.Guardian, int) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/guardians", adminToken, []byte(body))
		ta.do(req, rec)
		var g guardian.Guardian
		if rec.Code < http.StatusBadRequest {
			unmarshalObj(t, rec, &g)
		}
		return g, rec.Code
	}

	amani, code := create(t, `{"name": "Mama Amani", "relationship": "Mother", "phone": "0990000001", "email": "Amani@test.cd"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "amani@test.cd", amani.Email)
	assert.Empty(t, amani.Students)

	t.Run("Same contact is found, not duplicated", func(t *testing.T) {
		g, code := create(t, `{"name": "Amani M.", "relationship": "Aunt", "phone": " 0990000001 ", "email": "amani@test.cd"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, amani.ID, g.ID)
		assert.Equal(t, "Mama Amani", g.Name)
	})

	t.Run("Same phone, other email is a new guardian", func(t *testing.T) {
		g, code := create(t, `{"name": "Papa Amani", "relationship": "Father", "phone": "0990000001", "email": "papa@test.cd"}`)
		require.Equal(t, http.StatusCreated, code)
		assert.NotEqual(t, amani.ID, g.ID)
	})

	t.Run("An ID in the body is ignored", func(t *testing.T) {
		_, code := create(t, `{"id": "`+amani.ID+`"}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	tests := []httpTest{
		{name: "Auth required", path: "/v1/guardians", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Search", path: "/v1/guardians?search=mama", token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, []guardian.Guardian{amani})},
		{name: "Retrieve", path: "/v1/guardians/" + amani.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marshalObj(t, amani)},
		{
			name: "Unknown guardian", path: "/v1/guardians/nope", token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "guardian not found"}),
		},
		{
			name: "Teachers cannot add guardians", method: http.MethodPost, path: "/v1/guardians", token: teacherToken,
			body: []byte(`{"name": "X", "relationship": "Uncle", "phone": "1"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Missing fields", method: http.MethodPost, path: "/v1/guardians", token: adminToken, body: []byte(`{"email": "x@test.cd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"name":         "this field is required",
				"relationship": "this field is required",
				"phone":        "this field is required",
			}),
		},
		{
			name: "Update to a taken contact", method: http.MethodPut, path: "/v1/guardians/" + amani.ID, token: adminToken,
			body: []byte(`{"email": "papa@test.cd"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": guardian.ErrContactExists.Error()}),
		},
		{
			name: "Blank relationship", method: http.MethodPut, path: "/v1/guardians/" + amani.ID, token: adminToken,
			body: []byte(`{"relationship": " "}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"relationship": "this field cannot be blank"}),
		},
	}
	runHTTPTests(t, ta, tests)

	t.Run("Update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/guardians/"+amani.ID, adminToken, []byte(`{"phone": "0990000009"}`))
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got guardian.Guardian
		unmarshalObj(t, rec, &got)
		assert.Equal(t, "0990000009", got.Phone)
		assert.Equal(t, "Mama Amani", got.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, ta.guardianRepo.LinkStudent(context.Background(), amani.ID, "student-1"))

		req, rec := newAuthRequest(http.MethodDelete, "/v1/guardians/"+amani.ID, adminToken)
		ta.do(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "guardian still has enrolled students"}),
		}, rec)

		require.NoError(t, ta.guardianRepo.UnlinkStudent(context.Background(), amani.ID, "student-1"))
		req, rec = newAuthRequest(http.MethodDelete, "/v1/guardians/"+amani.ID, adminToken)
		ta.do(req, rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/guardians/"+amani.ID, adminToken)
		ta.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Mutations are recorded", func(t *testing.T) {
		// 2 creations, 1 update, 1 deletion
		assert.Len(t, ta.logs(t), 4)
	})
}
