package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	conf    *core.Config
	locRepo attendance.LocationRepository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status|version        - manage DB migrations")
	fmt.Println("  setlocation -lat LAT -lng LNG -radius METERS [-allow-out-of-range]")
	fmt.Println("                                        - set the school geofence")
	fmt.Println("  rotatesecret                          - vet a replacement signing secret")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setLocationCmd := flag.NewFlagSet("setlocation", flag.ExitOnError)
	setLocationLat := setLocationCmd.Float64("lat", 0, "School latitude.")
	setLocationLng := setLocationCmd.Float64("lng", 0, "School longitude.")
	setLocationRadius := setLocationCmd.Float64("radius", 0, "Geofence radius in meters.")
	setLocationAllow := setLocationCmd.Bool("allow-out-of-range", false, "Admit check-ins from any location.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "setlocation":
		if err := setLocationCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setLocationRadius == 0 {
			setLocationCmd.Usage()
			return errHelp
		}
		return cli.setLocation(*setLocationLat, *setLocationLng, *setLocationRadius, *setLocationAllow)
	case "rotatesecret":
		fmt.Print("Enter new signing secret:")
		secret, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(secret) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.rotateSecret(string(secret))
	default:
		cli.printUsage()
		return errHelp
	}
}
