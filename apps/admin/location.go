package main

import (
	"context"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

func (cli *commandLine) setLocation(lat, lng, radius float64, allowOutOfRange bool) error {
	loc := attendance.SchoolLocation{
		Latitude:        lat,
		Longitude:       lng,
		RadiusMeters:    radius,
		AllowOutOfRange: allowOutOfRange,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	if err := cli.locRepo.SetSchoolLocation(context.Background(), loc); err != nil {
		return err
	}
	logger.Printf("school location set: (%f, %f) radius %.0fm out-of-range=%t", lat, lng, radius, allowOutOfRange)
	return nil
}
