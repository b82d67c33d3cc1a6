package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ModelDir != DefaultModelDir {
		t.Errorf("ModelDir = %q, want %q", cfg.ModelDir, DefaultModelDir)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moodfi.yaml")
	data := []byte("listen_addr: \":9000\"\ncamera_device: 2\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOODFI_ADDR", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("env override lost: ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.CameraDevice != 2 {
		t.Errorf("CameraDevice = %d, want 2", cfg.CameraDevice)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DetectionIntervalMS = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative detection interval")
	}
}
