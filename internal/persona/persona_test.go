package persona_test

import (
	"strings"
	"testing"

	"github.com/karkuvel/pesu/internal/persona"
)

func TestMode_Voice(t *testing.T) {
	t.Parallel()

	if got := persona.ModeMama.Voice(); got != "Puck" {
		t.Errorf("mama voice = %q; want Puck", got)
	}
	if got := persona.ModeLove.Voice(); got != "Kore" {
		t.Errorf("love voice = %q; want Kore", got)
	}
	if got := persona.Mode("bogus").Voice(); got != "" {
		t.Errorf("unknown mode voice = %q; want empty", got)
	}
}

func TestSessionConfig_MamaEnglish(t *testing.T) {
	t.Parallel()

	cfg, err := persona.SessionConfig(persona.LangEnglish, persona.ModeMama)
	if err != nil {
		t.Fatalf("SessionConfig: %v", err)
	}
	if cfg.Voice != "Puck" {
		t.Errorf("voice = %q; want Puck", cfg.Voice)
	}
	if !strings.Contains(cfg.Instructions, "MALE") {
		t.Error("instructions lack MALE voice directive")
	}
	if !strings.Contains(cfg.Instructions, "Respond only in English") {
		t.Errorf("instructions lack English directive: %q", cfg.Instructions)
	}
}

func TestSessionConfig_LoveTamil(t *testing.T) {
	t.Parallel()

	cfg, err := persona.SessionConfig(persona.LangTamil, persona.ModeLove)
	if err != nil {
		t.Fatalf("SessionConfig: %v", err)
	}
	if cfg.Voice != "Kore" {
		t.Errorf("voice = %q; want Kore", cfg.Voice)
	}
	if !strings.Contains(cfg.Instructions, "FEMALE") {
		t.Error("instructions lack FEMALE voice directive")
	}
	if !strings.Contains(cfg.Instructions, "Respond only in Tamil") {
		t.Errorf("instructions lack Tamil directive: %q", cfg.Instructions)
	}
}

func TestSessionConfig_RejectsUnknownValues(t *testing.T) {
	t.Parallel()

	if _, err := persona.SessionConfig(persona.Language("klingon"), persona.ModeMama); err == nil {
		t.Error("unknown language accepted")
	}
	if _, err := persona.SessionConfig(persona.LangTamil, persona.Mode("bff")); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestLanguage_Validity(t *testing.T) {
	t.Parallel()

	for _, l := range persona.Languages {
		if !l.IsValid() {
			t.Errorf("listed language %q reported invalid", l)
		}
	}
	if persona.Language("").IsValid() {
		t.Error("empty language reported valid")
	}
}

func TestLanguage_Title(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   persona.Language
		want string
	}{
		{persona.LangEnglish, "English"},
		{persona.LangTamil, "Tamil"},
		{persona.LangMalayalam, "Malayalam"},
		{persona.Language(""), ""},
	}
	for _, tt := range tests {
		if got := tt.in.Title(); got != tt.want {
			t.Errorf("Title(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestInstructions_EveryModeAndLanguage(t *testing.T) {
	t.Parallel()

	for _, m := range persona.Modes {
		for _, l := range persona.Languages {
			got := m.Instructions(l)
			if got == "" {
				t.Errorf("Instructions(%q, %q) is empty", m, l)
			}
			if !strings.Contains(got, l.Title()) {
				t.Errorf("Instructions(%q, %q) does not name the language", m, l)
			}
		}
	}
}
