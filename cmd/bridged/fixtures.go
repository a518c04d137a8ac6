//go:build fixtures

package main

import (
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/script/scripttest"
)

// fixtureRuntime registers the test fixture modules.
func fixtureRuntime() (*script.Runtime, error) {
	return scripttest.NewRuntime(), nil
}
