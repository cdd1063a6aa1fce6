package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session has expired")
	ErrThrottled        = errors.New("too many requests")
	ErrLocationRequired = errors.New("device location is required")
	ErrOutOfRange       = errors.New("device location is out of range")
	ErrLocationNotSet   = errors.New("school location not set")
	ErrForbidden        = errors.New("permission denied")
)

// Rate-limited endpoints.
const (
	EndpointCheckIn = "checkin"
	EndpointSession = "session"
)

// schoolLocationTTL bounds how stale the cached school location may get.
const schoolLocationTTL = time.Minute

type (
	// Repository owns Session lifecycle and the per-session check-in ledger.
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		// EndSession atomically transitions an active session to expired and
		// reports whether this call made the transition. Ending an
		// already-expired session is a no-op.
		EndSession(ctx context.Context, id string, at time.Time) (sess Session, transitioned bool, err error)
		// AddCheckIn records the student's presence if not already recorded.
		// It must be an atomic insert-if-absent: concurrent calls for the
		// same (session, student) pair insert exactly one row.
		AddCheckIn(ctx context.Context, ci CheckIn) (inserted bool, err error)
		CountCheckIns(ctx context.Context, sessionID string) (int, error)
		ListCheckIns(ctx context.Context, sessionID string) ([]CheckIn, error)
	}

	// ThrottleRepository backs the sliding-window rate limiter.
	ThrottleRepository interface {
		CountCallsSince(ctx context.Context, identifier, endpoint string, since time.Time) (int, error)
		LogCall(ctx context.Context, entry ThrottleEntry) error
		DeleteCallsBefore(ctx context.Context, cutoff time.Time) error
	}

	// LocationRepository persists the singleton school location, written
	// only by the privileged admin path.
	LocationRepository interface {
		GetSchoolLocation(ctx context.Context) (SchoolLocation, error)
		SetSchoolLocation(ctx context.Context, loc SchoolLocation) error
	}

	// Authorizer decides whether a caller may manage a session. Class
	// ownership data lives with the external identity service; the default
	// implementation only consults the session row and the caller's claims.
	Authorizer interface {
		CanManageSession(ctx context.Context, caller Caller, sess Session) bool
	}

	Service struct {
		repo    Repository
		locRepo LocationRepository
		codec   *TokenCodec
		limiter *RateLimiter
		authz   Authorizer
		mailSvc core.EmailService
		log     core.Logger
		conf    *core.Config

		// school location cache (read-mostly, short TTL)
		locMu      sync.RWMutex
		cachedLoc  SchoolLocation
		locFetched time.Time
	}
)

func NewService(conf *core.Config, repo Repository, throttleRepo ThrottleRepository, locRepo LocationRepository,
	mailSvc core.EmailService, log core.Logger) (*Service, error) {

	defaultLoc := SchoolLocation{
		Latitude:        conf.Attendance.SchoolLatitude,
		Longitude:       conf.Attendance.SchoolLongitude,
		RadiusMeters:    conf.Attendance.SchoolRadiusMeters,
		AllowOutOfRange: conf.Attendance.AllowOutOfRange,
	}
	if err := defaultLoc.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating school location config")
	}

	return &Service{
		repo:    repo,
		locRepo: locRepo,
		codec:   NewTokenCodec(conf.SecretKey, conf.Attendance.TokenTTL),
		limiter: NewRateLimiter(throttleRepo, log),
		authz:   ownerAuthorizer{},
		mailSvc: mailSvc,
		log:     log,
		conf:    conf,
	}, nil
}

// ownerAuthorizer grants the owning teacher and any admin.
type ownerAuthorizer struct{}

func (ownerAuthorizer) CanManageSession(_ context.Context, caller Caller, sess Session) bool {
	return caller.IsAdmin || (caller.IsTeacher && caller.ID == sess.TeacherID)
}

// CreateSession constructs a new attendance session in active state.
// It does not mint a token; tokens are issued separately so a session can be
// re-scanned with a fresh one mid-class.
func (svc *Service) CreateSession(ctx context.Context, caller Caller, ns NewSession) (Session, error) {
	if !(caller.IsTeacher || caller.IsAdmin) {
		return Session{}, ErrForbidden
	}
	if !svc.limiter.Allow(ctx, caller.ID, EndpointSession, svc.conf.Attendance.SessionRateLimit, svc.conf.Attendance.SessionRateWindow) {
		return Session{}, ErrThrottled
	}
	if err := ns.Validate(); err != nil {
		return Session{}, err
	}

	now := nowFunc().UTC()
	sess := Session{
		ID:              uuid.New().String(),
		ClassID:         core.CleanString(ns.ClassID),
		TeacherID:       caller.ID,
		TeacherEmail:    core.CleanString(caller.Email, true),
		Date:            ns.Date,
		StartTime:       ns.StartTime,
		EndTime:         ns.EndTime,
		RequireLocation: ns.RequireLocation,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateSession(ctx, sess)
}

// GetSession returns the session with its check-in ledger,
// for the owning teacher or an admin.
func (svc *Service) GetSession(ctx context.Context, caller Caller, sessionID string) (SessionView, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if !svc.authz.CanManageSession(ctx, caller, sess) {
		return SessionView{}, ErrForbidden
	}

	cis, err := svc.repo.ListCheckIns(ctx, sess.ID)
	if err != nil {
		return SessionView{}, errors.Wrap(err, "listing check-ins")
	}
	view := SessionView{Session: sess, CheckedInStudents: make([]string, 0, len(cis)), CheckedInCount: len(cis)}
	for _, ci := range cis {
		view.CheckedInStudents = append(view.CheckedInStudents, ci.StudentID)
	}
	return view, nil
}

// IssueToken mints a fresh signed token for an active session.
func (svc *Service) IssueToken(ctx context.Context, caller Caller, sessionID string) (string, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !svc.authz.CanManageSession(ctx, caller, sess) {
		return "", ErrForbidden
	}
	if !sess.IsActive() {
		return "", ErrSessionExpired
	}
	return svc.codec.Issue(sess.ID), nil
}

// EndSession transitions the session to expired. Idempotent: ending an
// already-expired session succeeds without side effects. The call that wins
// the transition emails an attendance summary to the owning teacher; racing
// calls are resolved by the repository's conditional update, so the summary
// goes out exactly once.
func (svc *Service) EndSession(ctx context.Context, caller Caller, sessionID string) error {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !svc.authz.CanManageSession(ctx, caller, sess) {
		return ErrForbidden
	}
	if !sess.IsActive() {
		return nil
	}

	ended, transitioned, err := svc.repo.EndSession(ctx, sessionID, nowFunc().UTC())
	if err != nil {
		return err
	}
	if transitioned {
		svc.sendSummary(ctx, ended)
	}
	return nil
}

// CheckIn runs the student check-in pipeline. Validation short-circuits on
// the first failure and only the final step mutates state, so a failed
// request never leaves a partial check-in. The ordering is deliberate:
// throttle first (cheapest, shields the rest from brute force), then
// signature verification (rejects forged input before touching session
// state), then business rules in increasing cost order.
func (svc *Service) CheckIn(ctx context.Context, caller Caller, identifier, tokenStr string, loc *Location) (CheckInResult, error) {
	if !svc.limiter.Allow(ctx, identifier, EndpointCheckIn, svc.conf.Attendance.CheckInRateLimit, svc.conf.Attendance.CheckInRateWindow) {
		return CheckInResult{}, ErrThrottled
	}

	claims, err := svc.codec.Verify(tokenStr)
	if err != nil {
		return CheckInResult{}, err
	}

	sess, err := svc.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		return CheckInResult{}, err
	}
	if !sess.IsActive() {
		return CheckInResult{}, ErrSessionExpired
	}

	if sess.RequireLocation {
		fence := svc.schoolLocation(ctx)
		if !fence.AllowOutOfRange {
			if loc == nil {
				return CheckInResult{}, ErrLocationRequired
			}
			if !fence.IsWithinRange(loc.Latitude, loc.Longitude) {
				return CheckInResult{}, ErrOutOfRange
			}
		}
	}

	// insert-if-absent: the already-checked-in read and the write cannot race
	inserted, err := svc.repo.AddCheckIn(ctx, CheckIn{SessionID: sess.ID, StudentID: caller.ID, CreatedAt: nowFunc().UTC()})
	if err != nil {
		return CheckInResult{}, errors.Wrap(err, "recording check-in")
	}
	count, err := svc.repo.CountCheckIns(ctx, sess.ID)
	if err != nil {
		return CheckInResult{}, errors.Wrap(err, "counting check-ins")
	}

	res := CheckInResult{Success: true, SessionID: sess.ID, Count: count, Message: "checked in"}
	if !inserted {
		res.Already = true
		res.Message = "already checked in"
	}
	return res, nil
}

// SchoolLocation returns the effective geofence configuration.
func (svc *Service) SchoolLocation(ctx context.Context) SchoolLocation {
	return svc.schoolLocation(ctx)
}

// schoolLocation returns the stored school location, cached with a short
// TTL; it falls back to the configured default when no row exists or the
// store is unreachable.
func (svc *Service) schoolLocation(ctx context.Context) SchoolLocation {
	svc.locMu.RLock()
	loc, fetched := svc.cachedLoc, svc.locFetched
	svc.locMu.RUnlock()
	if !fetched.IsZero() && nowFunc().Sub(fetched) < schoolLocationTTL {
		return loc
	}

	loc = SchoolLocation{
		Latitude:        svc.conf.Attendance.SchoolLatitude,
		Longitude:       svc.conf.Attendance.SchoolLongitude,
		RadiusMeters:    svc.conf.Attendance.SchoolRadiusMeters,
		AllowOutOfRange: svc.conf.Attendance.AllowOutOfRange,
	}
	if svc.locRepo != nil {
		stored, err := svc.locRepo.GetSchoolLocation(ctx)
		switch errors.Cause(err) {
		case nil:
			loc = stored
		case ErrLocationNotSet:
		default:
			svc.log.Error("falling back to configured school location", err)
		}
	}

	svc.locMu.Lock()
	svc.cachedLoc, svc.locFetched = loc, nowFunc()
	svc.locMu.Unlock()
	return loc
}

func (svc *Service) sendSummary(ctx context.Context, sess Session) {
	if svc.mailSvc == nil || sess.TeacherEmail == "" {
		return
	}
	cis, err := svc.repo.ListCheckIns(ctx, sess.ID)
	if err != nil {
		svc.log.Error("skipping attendance summary", errors.Wrap(err, "listing check-ins"))
		return
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%d student(s) checked in for class %s on %s.\n", len(cis), sess.ClassID, sess.Date.Format("Mon, 02 Jan 2006"))
	if len(cis) > 0 {
		body.WriteString("\nPresent:\n")
		for _, ci := range cis {
			fmt.Fprintf(&body, "  - %s (at %s)\n", ci.StudentID, ci.CreatedAt.Format("15:04:05"))
		}
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: sess.TeacherEmail}},
		Subject: "Attendance summary - " + sess.ClassID,
		BodyStr: body.String(),
	})
}
