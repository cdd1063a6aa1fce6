package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	teacher      = attendance.Caller{ID: "t1", Email: "t1@school.test", IsTeacher: true}
	otherTeacher = attendance.Caller{ID: "t2", Email: "t2@school.test", IsTeacher: true}
	student      = attendance.Caller{ID: "s-alice", IsStudent: true}
	student2     = attendance.Caller{ID: "s-bob", IsStudent: true}
)

func createSession(t *testing.T, requireLocation bool) attendance.Session {
	t.Helper()
	sess, err := svc.CreateSession(context.Background(), teacher, attendance.NewSession{
		ClassID:         "math-101",
		Date:            time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		EndTime:         "10:00",
		RequireLocation: requireLocation,
	})
	if err != nil {
		t.Fatalf("createSession(): %v", err)
	}
	return sess
}

func issueToken(t *testing.T, sessionID string) string {
	t.Helper()
	token, err := svc.IssueToken(context.Background(), teacher, sessionID)
	if err != nil {
		t.Fatalf("issueToken(): %v", err)
	}
	return token
}

func TestAttendanceApiAccess(t *testing.T) {
	sess := createSession(t, false)

	tests := []httpTest{
		{
			name: "sessions require authentication", method: http.MethodPost, path: "/v1/sessions",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "check-in requires authentication", method: http.MethodPost, path: "/v1/checkin",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "students cannot manage sessions", method: http.MethodPost, path: "/v1/sessions",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "teachers cannot check in", method: http.MethodPost, path: "/v1/checkin",
			token:    getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "non-owner teacher cannot view a session", method: http.MethodGet, path: "/v1/sessions/" + sess.ID,
			token:    getToken(t, otherTeacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestSessionCreateApi(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		body := marchallObj(t, attendance.NewSession{
			ClassID: "hist-202", Date: time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "10:00",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var sess attendance.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, teacher.ID, sess.TeacherID)
		assert.Equal(t, attendance.StatusActive, sess.Status)
	})

	t.Run("invalid time of day", func(t *testing.T) {
		body := marchallObj(t, attendance.NewSession{
			ClassID: "hist-202", Date: time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
			StartTime: "9am", EndTime: "10:00",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"start_time": "must be a valid HH:MM time"}),
		}, rec)
	})
}

func TestSessionTokenApi(t *testing.T) {
	sess := createSession(t, false)

	t.Run("minted for owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/token", getToken(t, teacher))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		assert.NotEmpty(t, resp["token"])
	})

	t.Run("denied for non-owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/token", getToken(t, otherTeacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("unknown session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/nope/token", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "session not found"}),
		}, rec)
	})
}

func TestCheckInApi(t *testing.T) {
	sess := createSession(t, false)
	qr := issueToken(t, sess.ID)

	doCheckIn := func(t *testing.T, caller attendance.Caller, body []byte) (*attendance.CheckInResult, int) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkin", getToken(t, caller), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return nil, rec.Code
		}
		res := new(attendance.CheckInResult)
		if err := json.Unmarshal(rec.Body.Bytes(), res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		return res, rec.Code
	}

	t.Run("checked in", func(t *testing.T) {
		body := marchallObj(t, attendance.CheckInRequest{Token: qr})
		res, code := doCheckIn(t, student, body)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
		assert.False(t, res.Already)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("retry is informational", func(t *testing.T) {
		body := marchallObj(t, attendance.CheckInRequest{Token: qr})
		res, code := doCheckIn(t, student, body)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
		assert.True(t, res.Already)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("forged code", func(t *testing.T) {
		body := marchallObj(t, attendance.CheckInRequest{Token: "bm90LWEtdG9rZW4"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkin", getToken(t, student2), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired code"}),
		}, rec)
	})

	t.Run("missing code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkin", getToken(t, student2), []byte("{}"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"token": "token is a required field"}),
		}, rec)
	})
}

func TestSessionEndApi(t *testing.T) {
	sess := createSession(t, false)
	qr := issueToken(t, sess.ID)

	endBody := marchallObj(t, map[string]bool{"success": true})

	t.Run("ended", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/end", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: endBody}, rec)
	})

	t.Run("ending again is a no-op", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions/"+sess.ID+"/end", getToken(t, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: endBody}, rec)
	})

	t.Run("late check-in", func(t *testing.T) {
		body := marchallObj(t, attendance.CheckInRequest{Token: qr})
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkin", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusGone,
			wantData: marchallObj(t, httpErr{Error: "session has expired"}),
		}, rec)
	})
}

func TestSessionRetrieveApi(t *testing.T) {
	sess := createSession(t, false)
	qr := issueToken(t, sess.ID)

	body := marchallObj(t, attendance.CheckInRequest{Token: qr})
	req, rec := newAuthRequest(http.MethodPost, "/v1/checkin", getToken(t, student), body)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/sessions/"+sess.ID, getToken(t, teacher))
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var view attendance.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	assert.Equal(t, sess.ID, view.ID)
	assert.Equal(t, 1, view.CheckedInCount)
	assert.Equal(t, []string{student.ID}, view.CheckedInStudents)
}
