package echoapi

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
)

func newLiveTestServer(t *testing.T) (*core.Config, *attendance.Service, *httptest.Server) {
	t.Helper()

	conf := &core.Config{
		AppName:   "Mahudhurio",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Attendance: core.AttendanceConfig{
			TokenTTL:           time.Minute,
			SchoolLatitude:     -1.9441,
			SchoolLongitude:    30.0619,
			SchoolRadiusMeters: 500,
			CheckInRateLimit:   1000,
			CheckInRateWindow:  time.Minute,
			SessionRateLimit:   1000,
			SessionRateWindow:  time.Minute,
		},
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))

	svc, err := attendance.NewService(
		conf,
		inmemdb.NewAttendanceRepository(),
		inmemdb.NewThrottleRepository(),
		inmemdb.NewLocationRepository(),
		emailsvc.NewConsoleServiceMock(conf),
		logger,
	)
	if err != nil {
		t.Fatalf("attendance.NewService(): %v", err)
	}

	srv := NewServer("", nil, &Deps{Conf: conf, Logger: logger, AttendanceSvc: svc})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return conf, svc, ts
}

func wsHeader(t *testing.T, conf *core.Config, caller attendance.Caller) http.Header {
	t.Helper()
	token, err := GenerateToken(conf, NewClaims(conf, caller))
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func liveURL(ts *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + sessionID + "/live"
}

func TestSessionLiveFeed(t *testing.T) {
	defer func(d time.Duration) { livePushInterval = d }(livePushInterval)
	livePushInterval = 20 * time.Millisecond

	conf, svc, ts := newLiveTestServer(t)
	ctx := context.Background()

	owner := attendance.Caller{ID: "t1", Email: "t1@school.test", IsTeacher: true}
	scanner := attendance.Caller{ID: "s-alice", IsStudent: true}

	sess, err := svc.CreateSession(ctx, owner, attendance.NewSession{
		ClassID: "math-101", Date: time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	qr, err := svc.IssueToken(ctx, owner, sess.ID)
	if err != nil {
		t.Fatalf("IssueToken(): %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(liveURL(ts, sess.ID), wsHeader(t, conf, owner))
	if err != nil {
		t.Fatalf("dialing live feed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// initial push carries the current view
	var view attendance.SessionView
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("reading initial push: %v", err)
	}
	if view.ID != sess.ID || view.CheckedInCount != 0 {
		t.Fatalf("initial view = %+v, want session %s with empty ledger", view, sess.ID)
	}

	// a student scans; the feed picks up the new count
	if _, err := svc.CheckIn(ctx, scanner, "10.0.0.1", qr, nil); err != nil {
		t.Fatalf("CheckIn(): %v", err)
	}
	for view.CheckedInCount == 0 {
		if err := conn.ReadJSON(&view); err != nil {
			t.Fatalf("waiting for check-in push: %v", err)
		}
	}
	if view.CheckedInCount != 1 || view.CheckedInStudents[0] != scanner.ID {
		t.Errorf("pushed view = %+v, want %s checked in", view, scanner.ID)
	}

	// the feed pushes the expired view once, then terminates
	if err := svc.EndSession(ctx, owner, sess.ID); err != nil {
		t.Fatalf("EndSession(): %v", err)
	}
	for view.IsActive() {
		if err := conn.ReadJSON(&view); err != nil {
			t.Fatalf("waiting for expiry push: %v", err)
		}
	}
	if err := conn.ReadJSON(&view); err == nil {
		t.Error("feed should terminate after the session expires")
	}
}

func TestSessionLiveFeedAccess(t *testing.T) {
	conf, svc, ts := newLiveTestServer(t)
	ctx := context.Background()

	owner := attendance.Caller{ID: "t1", IsTeacher: true}
	sess, err := svc.CreateSession(ctx, owner, attendance.NewSession{
		ClassID: "math-101", Date: time.Date(2021, time.March, 8, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}

	tests := []struct {
		name     string
		header   http.Header
		wantCode int
	}{
		{name: "no token", wantCode: http.StatusUnauthorized},
		{name: "student", header: wsHeader(t, conf, attendance.Caller{ID: "s-1", IsStudent: true}), wantCode: http.StatusForbidden},
		{name: "non-owner teacher", header: wsHeader(t, conf, attendance.Caller{ID: "t2", IsTeacher: true}), wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(liveURL(ts, sess.ID), tt.header)
			if err == nil {
				_ = conn.Close()
				t.Fatal("handshake should be refused")
			}
			if resp == nil || resp.StatusCode != tt.wantCode {
				t.Errorf("handshake status = %v, want %d", resp, tt.wantCode)
			}
		})
	}
}
