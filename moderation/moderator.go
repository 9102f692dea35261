package moderation

import (
	"unicode"

	apperrors "agrilink/errors"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator censors banned words in message content before persistence.
// Matching is case-insensitive and runs on an Aho-Corasick automaton, so the
// cost of a pass does not grow with the size of the dictionary.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

func NewModerator(censoredWords []string, replacement rune) (*Moderator, error) {
	if len(censoredWords) == 0 {
		return nil, apperrors.ErrEmptyWords
	}
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = lowerRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor replaces every occurrence of a banned word with the replacement
// character, preserving the length and the untouched parts of the text.
func (m *Moderator) Censor(original string) string {
	runes := []rune(original)
	spans := m.matcher.MultiPatternSearch(lowerRunes(runes), false)
	if len(spans) == 0 {
		return original
	}

	for _, span := range spans {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(runes) {
			continue
		}
		for i := span.Pos; i < end; i++ {
			runes[i] = m.replacement
		}
	}
	return string(runes)
}

func lowerRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}
