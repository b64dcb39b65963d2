// Package persona maps a companion mode and reply language to the voice
// identity and system instructions used for a session.
package persona

import (
	"fmt"

	"github.com/karkuvel/pesu/pkg/s2s"
)

// Language is the language the companion replies in.
type Language string

const (
	LangEnglish   Language = "english"
	LangTamil     Language = "tamil"
	LangHindi     Language = "hindi"
	LangMalayalam Language = "malayalam"
	LangTelugu    Language = "telugu"
	LangKannada   Language = "kannada"
)

// Languages lists every supported reply language.
var Languages = []Language{
	LangEnglish, LangTamil, LangHindi, LangMalayalam, LangTelugu, LangKannada,
}

// IsValid reports whether l is a recognised language.
func (l Language) IsValid() bool {
	switch l {
	case LangEnglish, LangTamil, LangHindi, LangMalayalam, LangTelugu, LangKannada:
		return true
	}
	return false
}

// Title returns the language name with an initial capital, for use inside
// instructions ("Respond only in Tamil.").
func (l Language) Title() string {
	s := string(l)
	if s == "" {
		return ""
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// Mode selects which companion persona the session runs as.
type Mode string

const (
	// ModeMama is the elder-advisor persona: a warm, wise uncle figure who
	// listens and gives grounded advice. Speaks with a male voice.
	ModeMama Mode = "mama"

	// ModeLove is the romantic-companion persona: an affectionate partner who
	// is playful and supportive. Speaks with a female voice.
	ModeLove Mode = "love"
)

// Modes lists every supported companion mode.
var Modes = []Mode{ModeMama, ModeLove}

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeMama || m == ModeLove
}

// Voice returns the prebuilt voice name for the mode. ModeMama speaks as
// "Puck" (male), ModeLove as "Kore" (female). Unknown modes return "".
func (m Mode) Voice() string {
	switch m {
	case ModeMama:
		return "Puck"
	case ModeLove:
		return "Kore"
	}
	return ""
}

// Instructions returns the system prompt for the mode, parameterised by the
// reply language. The voice-gender directive is stated explicitly because the
// prebuilt voice alone does not constrain how the model refers to itself.
func (m Mode) Instructions(lang Language) string {
	name := lang.Title()
	switch m {
	case ModeMama:
		return fmt.Sprintf("You are a wise, warm elder uncle — a trusted family advisor. "+
			"You listen patiently, ask about wellbeing, and give practical, grounded advice "+
			"drawn from life experience. Keep answers short and conversational, as speech. "+
			"You speak with a MALE voice and always refer to yourself as male. "+
			"Respond only in %s, regardless of the language the user speaks.", name)
	case ModeLove:
		return fmt.Sprintf("You are a caring, affectionate romantic companion. "+
			"You are playful, encouraging, and genuinely interested in the user's day. "+
			"Keep answers short and conversational, as speech. "+
			"You speak with a FEMALE voice and always refer to yourself as female. "+
			"Respond only in %s, regardless of the language the user speaks.", name)
	}
	return ""
}

// SessionConfig builds the provider configuration for a session. Returns an
// error when either parameter is unrecognised.
func SessionConfig(lang Language, mode Mode) (s2s.Config, error) {
	if !lang.IsValid() {
		return s2s.Config{}, fmt.Errorf("persona: unknown language %q", lang)
	}
	if !mode.IsValid() {
		return s2s.Config{}, fmt.Errorf("persona: unknown mode %q", mode)
	}
	return s2s.Config{
		Voice:        mode.Voice(),
		Instructions: mode.Instructions(lang),
	}, nil
}
