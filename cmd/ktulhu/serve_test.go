package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfigFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(cfgPath, []byte("addr: :9000\nmodel_path: /file/model.gguf\nqueue_depth: 16\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := buildServeCmd()
	if err := cmd.Flags().Set("addr", ":7000"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	cfg, err := resolveConfig(cmd, cfgPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("flag should override file: %q", cfg.Addr)
	}
	if cfg.ModelPath != "/file/model.gguf" {
		t.Fatalf("file value lost: %q", cfg.ModelPath)
	}
	if cfg.QueueDepth != 16 {
		t.Fatalf("file queue depth lost: %d", cfg.QueueDepth)
	}
}

func TestResolveConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := resolveConfig(buildServeCmd(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr == "" {
		t.Fatal("expected default addr")
	}
	if cfg.ModelsDir == "" {
		t.Fatal("expected default models dir")
	}
}

func TestResolveConfigBadFile(t *testing.T) {
	if _, err := resolveConfig(buildServeCmd(), "/no/such/file.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
