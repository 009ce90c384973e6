package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "does-not-exist.json")); err != nil {
		t.Fatalf("expected missing config to fall back silently, got %v", err)
	}
	if Global.Relay.Listen == "" {
		t.Fatal("expected default Relay.Listen to be populated")
	}
}

func TestLoadValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockstep.json")
	os.WriteFile(path, []byte(`{"log":{"level":"debug"},"relay":{"listen":"127.0.0.1:9000","maxClients":4},"lockstep":{"netTickScale":2,"syncFrameScale":5,"shouldUseCatchup":false}}`), 0644)

	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Global.Log.Level != "debug" || Global.Relay.Listen != "127.0.0.1:9000" || Global.Lockstep.NetTickScale != 2 {
		t.Fatalf("unexpected config after load: %+v", Global)
	}
}

func TestLoadRejectsInvalidTickScale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockstep.json")
	os.WriteFile(path, []byte(`{"relay":{"listen":"x"},"lockstep":{"netTickScale":0,"syncFrameScale":1}}`), 0644)

	if err := Load(path); err == nil {
		t.Fatal("expected validation error for netTickScale=0")
	}
}

func TestLoadEnvPathOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockstep.json")
	os.WriteFile(path, []byte(`{"relay":{"listen":"127.0.0.1:1234"},"lockstep":{"netTickScale":1,"syncFrameScale":1}}`), 0644)

	t.Setenv("LOCKSTEP_CONFIG", path)
	if err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Global.Relay.Listen != "127.0.0.1:1234" {
		t.Fatalf("expected env-overridden path to be loaded, got %+v", Global)
	}
}

func TestLoadTOMLOverlayPatchesLogLevel(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "lockstep.json")
	os.WriteFile(jsonPath, []byte(`{"log":{"level":"info"},"relay":{"listen":"127.0.0.1:1234"},"lockstep":{"netTickScale":1,"syncFrameScale":1}}`), 0644)

	overlayPath := filepath.Join(dir, "dev.toml")
	os.WriteFile(overlayPath, []byte("[log]\nlevel = \"debug\"\n"), 0644)
	t.Setenv("LOCKSTEP_CONFIG_OVERLAY", overlayPath)

	if err := Load(jsonPath); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Global.Log.Level != "debug" {
		t.Fatalf("expected TOML overlay to patch log level, got %q", Global.Log.Level)
	}
}
