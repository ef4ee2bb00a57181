package session

import (
	"strings"
	"testing"

	"github.com/matheus3301/wpp-puppet/internal/config"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"main", false},
		{"bot-42", false},
		{"support_line", false},
		{strings.Repeat("a", 64), false},
		{"", true},
		{"Main", true},
		{"two words", true},
		{"8613812345678@c.us", true},
		{"../escape", true},
		{strings.Repeat("a", 65), true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("no config: got %q, want %q", got, DefaultSessionName)
	}

	cfg := config.Default()
	cfg.DefaultSession = "work"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("config default: got %q, want work", got)
	}
	if got := Resolve("flagged"); got != "flagged" {
		t.Errorf("flag: got %q, want flagged", got)
	}
}

func TestResolveValidRejectsBadFlag(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if _, err := ResolveValid("Bad Name"); err == nil {
		t.Error("expected an error for an invalid flag value")
	}
	name, err := ResolveValid("")
	if err != nil || name != DefaultSessionName {
		t.Errorf("ResolveValid(\"\") = %q, %v", name, err)
	}
}
