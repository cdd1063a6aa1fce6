package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
)

func setup() *commandLine {
	logger = log.New(io.Discard, "", 0)
	return &commandLine{
		conf: &core.Config{
			Env:       "TEST",
			SecretKey: "abcdefghijklmnopqrstuvwxyz-0123456789",
		},
		locRepo: inmemdb.NewLocationRepository(),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkCliErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup()

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", args: []string{}, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkCliErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_setLocation(t *testing.T) {
	cli := setup()

	tests := []cliTest{
		{name: "no radius", args: []string{"setlocation", "-lat", "-1.9441", "-lng", "30.0619"}, wantErr: errHelp},
		{name: "radius too small", args: []string{"setlocation", "-lat", "-1.9441", "-lng", "30.0619", "-radius", "5"}, wantErr: attendance.ErrInvalidRadius},
		{name: "radius too large", args: []string{"setlocation", "-radius", "60000"}, wantErr: attendance.ErrInvalidRadius},
		{name: "set", args: []string{"setlocation", "-lat", "-1.9441", "-lng", "30.0619", "-radius", "500"}},
		{name: "set with override", args: []string{"setlocation", "-lat", "-1.9441", "-lng", "30.0619", "-radius", "500", "-allow-out-of-range"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkCliErr(t, tt, err)
			if err != nil {
				return
			}

			loc, err := cli.locRepo.GetSchoolLocation(context.Background())
			if err != nil {
				t.Fatalf("GetSchoolLocation() failed: %v", err)
			}
			if loc.Latitude != -1.9441 || loc.Longitude != 30.0619 || loc.RadiusMeters != 500 {
				t.Errorf("stored location = %+v", loc)
			}
		})
	}
}

func Test_commandLine_rotateSecret(t *testing.T) {
	cli := setup()

	type extra struct {
		secret string
	}
	tests := []cliTest{
		{name: "no secret", args: []string{"rotatesecret"}, wantErr: errHelp},
		{name: "too short", args: []string{"rotatesecret"}, extra: extra{secret: "lol"}, wantErr: errSecretTooShort},
		{name: "same as current", args: []string{"rotatesecret"}, extra: extra{secret: cli.conf.SecretKey}, wantErr: errSecretTooSimilar},
		{name: "barely changed", args: []string{"rotatesecret"}, extra: extra{secret: "Abcdefghijklmnopqrstuvwxyz-0123456789"}, wantErr: errSecretTooSimilar},
		{name: "accepted", args: []string{"rotatesecret"}, extra: extra{secret: "XJ2(W!PZ^QV=H+KD%T@FY&MB*RG)XU?LS$NC"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.secret), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCliErr(t, tt, cli.run(args))
		})
	}
}
