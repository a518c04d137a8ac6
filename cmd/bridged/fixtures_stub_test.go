//go:build !fixtures

package main

import (
	"strings"
	"testing"

	"github.com/chazu/scriptbridge/config"
)

func TestFixtureRuntime_NotBuiltIn(t *testing.T) {
	rt, err := fixtureRuntime()
	if err == nil || rt != nil {
		t.Fatalf("fixtureRuntime = %v, %v; want an error", rt, err)
	}
	if !strings.Contains(err.Error(), "-tags fixtures") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_FixturesRejectedWithoutTag(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	if err := run(cfg, true, false); err == nil {
		t.Fatal("run with -fixtures succeeded in a build without fixtures")
	}
}
