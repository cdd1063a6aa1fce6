package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// isValidID rejects ids that cannot be uuids. Session ids are opaque to
// clients, so a malformed id is simply a nonexistent session; without the
// guard postgres would fail the uuid cast instead of returning no rows.
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sql.DB) *attendanceRepository {
	return &attendanceRepository{db: sqlx.NewDb(db, "postgres")}
}

type sessionRow struct {
	ID              string       `db:"id"`
	ClassID         string       `db:"class_id"`
	TeacherID       string       `db:"teacher_id"`
	TeacherEmail    string       `db:"teacher_email"`
	Date            sql.NullTime `db:"date"`
	StartTime       string       `db:"start_time"`
	EndTime         string       `db:"end_time"`
	RequireLocation bool         `db:"require_location"`
	Status          string       `db:"status"`
	CreatedAt       sql.NullTime `db:"created_at"`
	UpdatedAt       sql.NullTime `db:"updated_at"`
	EndedAt         null.Time    `db:"ended_at"`
}

func (r sessionRow) toSession() attendance.Session {
	return attendance.Session{
		ID:              r.ID,
		ClassID:         r.ClassID,
		TeacherID:       r.TeacherID,
		TeacherEmail:    r.TeacherEmail,
		Date:            r.Date.Time,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		RequireLocation: r.RequireLocation,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt.Time,
		UpdatedAt:       r.UpdatedAt.Time,
		EndedAt:         r.EndedAt,
	}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	const q = `
		INSERT INTO qr_sessions (id, class_id, teacher_id, teacher_email, date, start_time, end_time, require_location, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.ExecContext(ctx, q,
		sess.ID, sess.ClassID, sess.TeacherID, sess.TeacherEmail, sess.Date, sess.StartTime, sess.EndTime,
		sess.RequireLocation, sess.Status, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByID(ctx context.Context, id string) (attendance.Session, error) {
	if !isValidID(id) {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM qr_sessions WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "selecting session")
	}
	return row.toSession(), nil
}

func (repo *attendanceRepository) EndSession(ctx context.Context, id string, at time.Time) (attendance.Session, bool, error) {
	if !isValidID(id) {
		return attendance.Session{}, false, attendance.ErrSessionNotFound
	}
	// the status guard makes the transition atomic; RowsAffected tells us
	// whether this call won it
	const q = `
		UPDATE qr_sessions
		SET status = $2, ended_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4`
	res, err := repo.db.ExecContext(ctx, q, id, attendance.StatusExpired, at, attendance.StatusActive)
	if err != nil {
		return attendance.Session{}, false, errors.Wrap(err, "expiring session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Session{}, false, errors.Wrap(err, "checking updated rows")
	}
	sess, err := repo.GetSessionByID(ctx, id)
	if err != nil {
		return attendance.Session{}, false, err
	}
	return sess, n > 0, nil
}

func (repo *attendanceRepository) AddCheckIn(ctx context.Context, ci attendance.CheckIn) (bool, error) {
	// the PK on (session_id, student_id) makes this an atomic insert-if-absent
	const q = `
		INSERT INTO session_checkins (session_id, student_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, student_id) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, q, ci.SessionID, ci.StudentID, ci.CreatedAt)
	if err != nil {
		return false, errors.Wrap(err, "inserting check-in")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "checking inserted rows")
	}
	return n > 0, nil
}

func (repo *attendanceRepository) CountCheckIns(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM session_checkins WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, errors.Wrap(err, "counting check-ins")
	}
	return count, nil
}

func (repo *attendanceRepository) ListCheckIns(ctx context.Context, sessionID string) ([]attendance.CheckIn, error) {
	var rows []struct {
		SessionID string       `db:"session_id"`
		StudentID string       `db:"student_id"`
		CreatedAt sql.NullTime `db:"created_at"`
	}
	const q = `SELECT * FROM session_checkins WHERE session_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "selecting check-ins")
	}
	cis := make([]attendance.CheckIn, 0, len(rows))
	for _, row := range rows {
		cis = append(cis, attendance.CheckIn{SessionID: row.SessionID, StudentID: row.StudentID, CreatedAt: row.CreatedAt.Time})
	}
	return cis, nil
}
