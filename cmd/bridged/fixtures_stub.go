//go:build !fixtures

package main

import (
	"errors"

	"github.com/chazu/scriptbridge/script"
)

// Release builds carry no fixture modules.
func fixtureRuntime() (*script.Runtime, error) {
	return nil, errors.New("-fixtures needs a binary built with -tags fixtures")
}
