package main

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"Bondr/internal/config"
)

func TestParseFlagsOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bondr.yaml")
	os.WriteFile(path, []byte("node:\n  httpAddr: \":7000\"\n  dataPath: /srv/bondr\n"), 0o600)

	opts, err := parseFlags([]string{"-config", path, "-http", ":9999", "-rate", "0", "-restore", "snap.zst"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if opts.cfg.HTTPAddr != ":9999" {
		t.Errorf("flag did not override file: %s", opts.cfg.HTTPAddr)
	}
	if opts.cfg.DataPath != "/srv/bondr" {
		t.Errorf("file value lost: %s", opts.cfg.DataPath)
	}
	if opts.cfg.RateLimit != 0 {
		t.Errorf("explicit zero rate ignored: %v", opts.cfg.RateLimit)
	}
	if opts.restorePath != "snap.zst" {
		t.Errorf("restore path %q", opts.restorePath)
	}
}

func TestParseFlagsRejectsInvalid(t *testing.T) {
	if _, err := parseFlags([]string{"-rate", "-1"}); err == nil {
		t.Error("negative rate accepted")
	}
	if _, err := parseFlags([]string{"-unknown"}); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	first, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !first.Equal(second) {
		t.Error("reloaded key differs")
	}

	os.WriteFile(path, []byte("short"), 0o600)
	if _, err := loadOrGenerateKey(path); err == nil {
		t.Error("truncated key accepted")
	}

	if k, err := loadOrGenerateKey(""); err != nil || len(k) != ed25519.PrivateKeySize {
		t.Errorf("ephemeral key: %v", err)
	}
}

func TestExportRestoresIntoFreshStore(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)

	cfg := config.Default()
	cfg.DataPath = t.TempDir()
	cfg.Genesis.NodeBalance = 5000

	seeded, err := NewNode(&options{cfg: cfg}, priv)
	if err != nil {
		t.Fatalf("seed node: %v", err)
	}
	seeded.Close()

	snap := filepath.Join(t.TempDir(), "snap.zst")
	exporter, err := NewNode(&options{cfg: cfg, exportPath: snap}, priv)
	if err != nil {
		t.Fatalf("export node: %v", err)
	}
	if err := exporter.Export(snap); err != nil {
		t.Fatalf("export: %v", err)
	}
	exporter.Close()

	fresh := cfg
	fresh.DataPath = t.TempDir()
	fresh.Genesis.NodeBalance = 0

	restored, err := NewNode(&options{cfg: fresh, restorePath: snap}, priv)
	if err != nil {
		t.Fatalf("restore node: %v", err)
	}
	defer restored.Close()

	if bal, err := restored.ledger.Balance(restored.key); err != nil || bal != 5000 {
		t.Errorf("restored balance %d, %v", bal, err)
	}
}
