package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv(EnvWorkspace)
	os.Unsetenv(EnvAddr)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workspace != defaultWorkspace {
		t.Errorf("Workspace = %q, want %q", cfg.Workspace, defaultWorkspace)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, defaultAddr)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvWorkspace, "/tmp/ws")
	t.Setenv(EnvAddr, ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workspace != "/tmp/ws" {
		t.Errorf("Workspace = %q, want /tmp/ws", cfg.Workspace)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
}

func TestResolveBinaryMissing(t *testing.T) {
	t.Setenv("LEVELUP_TEST_MISSING_TOOL", "")
	_, err := resolveBinary("LEVELUP_TEST_MISSING_TOOL", "levelup-definitely-not-a-real-binary")
	if err == nil {
		t.Error("expected error for missing binary, got nil")
	}
}
