package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vertextoedge/romhustler-mirror/internal/config"
)

func TestParseInvocation(t *testing.T) {
	t.Setenv(config.DebugEnvVar, "")

	argsJSON = ""
	inv, err := parseInvocation([]string{"/data", "x", "/logs"})
	if err != nil {
		t.Fatalf("parseInvocation() error = %v", err)
	}
	if inv.DataDir != "/data" || inv.LogDir != "/logs" || inv.Debug {
		t.Errorf("parseInvocation() = %+v", inv)
	}

	argsJSON = `{"data-directory": "/d", "log-directory": "/l"}`
	defer func() { argsJSON = "" }()
	t.Setenv(config.DebugEnvVar, "1")

	inv, err = parseInvocation(nil)
	if err != nil {
		t.Fatalf("parseInvocation() error = %v", err)
	}
	if inv.DataDir != "/d" || inv.LogDir != "/l" || !inv.Debug {
		t.Errorf("parseInvocation() = %+v", inv)
	}
}

func TestParseInvocation_MissingDataDir(t *testing.T) {
	argsJSON = ""
	if _, err := parseInvocation(nil); err == nil {
		t.Error("parseInvocation() expected error for missing data dir")
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "games_popular.txt")
	bad := filepath.Join(dir, "games_bad.txt")

	if err := os.WriteFile(list, []byte("# popular\nsnes/zelda\nsnes/mario\n\npsx/ff7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("snes/mario\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Catalog: config.CatalogConfig{ListFile: list, ExcludeFile: bad}}
	got, err := loadCatalog(cfg)
	if err != nil {
		t.Fatalf("loadCatalog() error = %v", err)
	}
	want := []string{"snes/zelda", "psx/ff7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loadCatalog() = %v, want %v", got, want)
	}

	// a missing exclude list is fine
	cfg.Catalog.ExcludeFile = filepath.Join(dir, "missing.txt")
	got, err = loadCatalog(cfg)
	if err != nil {
		t.Fatalf("loadCatalog() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("loadCatalog() = %v, want 3 ids", got)
	}
}
