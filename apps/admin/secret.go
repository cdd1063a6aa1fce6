package main

import (
	"errors"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	minSecretLen = 32
	maxSecretSim = .7
)

var (
	errSecretTooShort   = errors.New("secret must be at least 32 characters")
	errSecretTooSimilar = errors.New("secret is too similar to the current one")
)

// rotateSecret vets a replacement signing secret. The secret is process
// configuration, so the rotation itself happens in the deployment
// environment; rotating invalidates all outstanding attendance tokens.
func (cli *commandLine) rotateSecret(secret string) error {
	if len(secret) < minSecretLen {
		return errSecretTooShort
	}
	sim := difflib.NewMatcher(
		strings.Split(secret, ""),
		strings.Split(cli.conf.SecretKey, ""),
	).QuickRatio()
	if sim > maxSecretSim {
		return errSecretTooSimilar
	}

	logger.Printf("secret accepted; export %s_SECRETKEY with the new value and restart the API", strings.ToUpper(cli.conf.Env))
	logger.Print("note: all outstanding attendance tokens become invalid on restart")
	return nil
}
