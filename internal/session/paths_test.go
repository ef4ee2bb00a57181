package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".wpp", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)
	if got := ConfigPath(); got != filepath.Join(base, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestSessionPaths(t *testing.T) {
	tests := map[string]string{
		SocketPath("test"):    filepath.Join("sessions", "test", "daemon.sock"),
		SessionDBPath("test"): filepath.Join("sessions", "test", "session.db"),
		CacheDir("test"):      filepath.Join("sessions", "test", "cache"),
		LogPath("test"):       filepath.Join("sessions", "test", "logs", "wppd.log"),
	}
	for got, suffix := range tests {
		if !strings.HasSuffix(got, suffix) {
			t.Errorf("%q, want suffix %s", got, suffix)
		}
	}
}

func TestEnsureDirAndList(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	names, err := List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List() on empty home = %v, %v", names, err)
	}

	for _, name := range []string{"work", "main"} {
		if err := EnsureDir(name); err != nil {
			t.Fatalf("EnsureDir(%s): %v", name, err)
		}
	}
	info, err := os.Stat(CacheDir("work"))
	if err != nil || !info.IsDir() {
		t.Fatalf("cache dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("cache dir permission = %o, want 0700", perm)
	}

	// Stray entries are not sessions.
	if err := os.MkdirAll(filepath.Join(BaseDir(), "sessions", "Not A Session"), 0700); err != nil {
		t.Fatal(err)
	}

	names, err = List()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "main,work" {
		t.Errorf("List() = %v, want [main work]", names)
	}
}
