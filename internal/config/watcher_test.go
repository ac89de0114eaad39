package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, level string) {
	t.Helper()
	data := []byte("server:\n  log_level: " + level + "\nproviders:\n  transcriber:\n    name: whisper-asr\nvault:\n  root: /v\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "info")

	w, err := NewWatcher(path, nil, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("Current().Server.LogLevel = %q", got)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "info")

	changed := make(chan ConfigDiff, 1)
	w, err := NewWatcher(path, func(old, new *Config) {
		changed <- Diff(old, new)
	}, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Ensure the mtime moves even on coarse-grained filesystems.
	time.Sleep(50 * time.Millisecond)
	writeConfigFile(t, path, "debug")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case d := <-changed:
		if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
			t.Errorf("diff = %+v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change not detected")
	}

	if got := w.Current().Server.LogLevel; got != LogDebug {
		t.Errorf("Current().Server.LogLevel = %q after reload", got)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "info")

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("Current() changed despite invalid file: %q", got)
	}
}
