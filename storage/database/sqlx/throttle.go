package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type throttleRepository struct {
	db *sqlx.DB
}

var _ attendance.ThrottleRepository = (*throttleRepository)(nil)

func NewThrottleRepository(db *sql.DB) *throttleRepository {
	return &throttleRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *throttleRepository) CountCallsSince(ctx context.Context, identifier, endpoint string, since time.Time) (int, error) {
	var count int
	const q = `SELECT COUNT(*) FROM throttle_entries WHERE identifier = $1 AND endpoint = $2 AND created_at > $3`
	if err := repo.db.GetContext(ctx, &count, q, identifier, endpoint, since); err != nil {
		return 0, errors.Wrap(err, "counting throttle entries")
	}
	return count, nil
}

func (repo *throttleRepository) LogCall(ctx context.Context, entry attendance.ThrottleEntry) error {
	const q = `INSERT INTO throttle_entries (identifier, endpoint, created_at) VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, q, entry.Identifier, entry.Endpoint, entry.CreatedAt); err != nil {
		return errors.Wrap(err, "inserting throttle entry")
	}
	return nil
}

// DeleteCallsBefore garbage-collects entries that rolled out of every
// possible window; safe to run out-of-band.
func (repo *throttleRepository) DeleteCallsBefore(ctx context.Context, cutoff time.Time) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM throttle_entries WHERE created_at < $1`, cutoff); err != nil {
		return errors.Wrap(err, "deleting throttle entries")
	}
	return nil
}
