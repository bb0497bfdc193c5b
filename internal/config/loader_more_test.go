package config

import (
	"testing"
	"time"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "default_model": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.toml", "addr=:8080\ndefault_model\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestWindowDuration(t *testing.T) {
	l := Limits{WindowSeconds: 90}
	if got := l.Window(); got != 90*time.Second {
		t.Fatalf("window: %v", got)
	}
}

func TestUpstreamTimeoutDuration(t *testing.T) {
	b := Backend{UpstreamTimeout: 15}
	if got := b.UpstreamTimeoutDuration(); got != 15*time.Second {
		t.Fatalf("timeout: %v", got)
	}
	if got := (Backend{}).UpstreamTimeoutDuration(); got != 0 {
		t.Fatalf("zero timeout: %v", got)
	}
}
