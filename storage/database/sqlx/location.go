package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/friendsofgo/errors"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type locationRepository struct {
	db *sqlx.DB
}

var _ attendance.LocationRepository = (*locationRepository)(nil)

func NewLocationRepository(db *sql.DB) *locationRepository {
	return &locationRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *locationRepository) GetSchoolLocation(ctx context.Context) (attendance.SchoolLocation, error) {
	var row struct {
		Latitude        float64      `db:"latitude"`
		Longitude       float64      `db:"longitude"`
		RadiusMeters    float64      `db:"radius_meters"`
		AllowOutOfRange bool         `db:"allow_out_of_range"`
		UpdatedAt       sql.NullTime `db:"updated_at"`
	}
	const q = `SELECT latitude, longitude, radius_meters, allow_out_of_range, updated_at FROM school_location WHERE id = 1`
	if err := repo.db.GetContext(ctx, &row, q); err != nil {
		if err == sql.ErrNoRows {
			return attendance.SchoolLocation{}, attendance.ErrLocationNotSet
		}
		return attendance.SchoolLocation{}, errors.Wrap(err, "selecting school location")
	}
	return attendance.SchoolLocation{
		Latitude:        row.Latitude,
		Longitude:       row.Longitude,
		RadiusMeters:    row.RadiusMeters,
		AllowOutOfRange: row.AllowOutOfRange,
		UpdatedAt:       row.UpdatedAt.Time,
	}, nil
}

func (repo *locationRepository) SetSchoolLocation(ctx context.Context, loc attendance.SchoolLocation) error {
	const q = `
		INSERT INTO school_location (id, latitude, longitude, radius_meters, allow_out_of_range, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, radius_meters = EXCLUDED.radius_meters,
		    allow_out_of_range = EXCLUDED.allow_out_of_range, updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.ExecContext(ctx, q, loc.Latitude, loc.Longitude, loc.RadiusMeters, loc.AllowOutOfRange, loc.UpdatedAt); err != nil {
		return errors.Wrap(err, "upserting school location")
	}
	return nil
}
