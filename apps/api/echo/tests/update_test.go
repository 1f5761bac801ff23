package tests

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/update"
	"github.com/trezcool/shule/core/user"
)

// smallest valid PNG header
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, filename string, file []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, rec := newAuthRequest(http.MethodPost, path, token, body.Bytes())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, rec
}

func Test_updateApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	tchr := ta.createUser(t, "Teacher", "teacher", user.RoleTeacher)
	adminToken := getToken(t, ta.conf, admin)
	fields := map[string]string{"title": "Sports day", "content": "All pupils meet at the stadium.", "category": "Event"}

	tests := []httpTest{
		{name: "Empty feed", path: "/v1/updates", wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/updates",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "Admins only", method: http.MethodPost, path: "/v1/updates", token: getToken(t, ta.conf, tchr),
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Invalid data", method: http.MethodPost, path: "/v1/updates", token: adminToken,
			body: []byte(`{"title": "Hi", "content": "short", "category": "Gossip", "image": "not a url"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"content":  "content must be at least 10 characters in length",
				"category": "category must be one of [News Announcement Event]",
				"image":    "image must be a valid URL",
			}),
		},
		{
			name: "Image required", method: http.MethodPost, path: "/v1/updates", token: adminToken,
			body: []byte(`{"title": "Hi", "content": "School reopens on Monday.", "category": "News"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"image": "an image file or URL is required"}),
		},
	}
	runHTTPTests(t, ta, tests)

	t.Run("JSON with image URL", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/updates", adminToken,
			[]byte(`{"title": "Reopening", "content": "School reopens on Monday.", "category": "News", "image": "https://cdn.test.cd/a.jpg"}`))
		ta.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got update.Update
		unmarshalObj(t, rec, &got)
		assert.Equal(t, "https://cdn.test.cd/a.jpg", got.Image)
		assert.Equal(t, update.CategoryNews, got.Category)
	})

	t.Run("Multipart upload", func(t *testing.T) {
		req, rec := newMultipartRequest(t, "/v1/updates", adminToken, fields, "stadium.PNG", pngBytes)
		ta.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got update.Update
		unmarshalObj(t, rec, &got)
		assert.Equal(t, "Sports day", got.Title)
		require.True(t, strings.HasPrefix(got.Image, ta.conf.Media.BaseURL+"/updates/"), got.Image)
		assert.True(t, strings.HasSuffix(got.Image, ".png"))

		// served back as a static file
		req, rec = newRequest(http.MethodGet, got.Image)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, pngBytes, rec.Body.Bytes())
	})

	t.Run("Only images are accepted", func(t *testing.T) {
		req, rec := newMultipartRequest(t, "/v1/updates", adminToken, fields, "evil.png", []byte("#!/bin/sh\necho pwned\n"))
		ta.do(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"image": "only image files are allowed"}),
		}, rec)
	})

	t.Run("Feed is public and filtered by category", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/updates")
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var all []update.Update
		unmarshalObj(t, rec, &all)
		require.Len(t, all, 2)
		assert.Equal(t, "Sports day", all[0].Title) // newest first

		req, rec = newRequest(http.MethodGet, "/v1/updates?category=News")
		ta.do(req, rec)
		var news []update.Update
		unmarshalObj(t, rec, &news)
		require.Len(t, news, 1)
		assert.Equal(t, "Reopening", news[0].Title)
	})
}

func Test_activityApi(t *testing.T) {
	ta := setup(t)
	admin := ta.createUser(t, "Admin", "admin", user.RoleAdmin)
	tchr := ta.createUser(t, "Teacher", "teacher", user.RoleTeacher)
	adminToken := getToken(t, ta.conf, admin)

	for _, name := range []string{"Art", "Music", "Sport"} {
		req, rec := newAuthRequest(http.MethodPost, "/v1/subjects", adminToken, []byte(`{"name": "`+name+`", "grade": "1"}`))
		ta.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	require.Len(t, ta.logs(t), 3)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/activities", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admins only", path: "/v1/activities", token: getToken(t, ta.conf, tchr),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	}
	runHTTPTests(t, ta, tests)

	t.Run("Limit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/activities?limit=2", adminToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var logs []activity.Log
		unmarshalObj(t, rec, &logs)
		require.Len(t, logs, 2)
		for _, l := range logs {
			assert.Equal(t, "admin", l.Actor)
			assert.True(t, strings.HasPrefix(l.Description, "Added subject "), l.Description)
		}
	})

	t.Run("Invalid limit falls back to default", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/activities?limit=-1", adminToken)
		ta.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var logs []activity.Log
		unmarshalObj(t, rec, &logs)
		assert.Len(t, logs, 3)
	})
}
