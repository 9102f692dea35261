package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,required=true"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	AuthSecret string `env:"AUTH_SECRET,required=true"`

	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE,required=true"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE,required=true"`

	// CensoredWordsPath is optional: without it, moderation is disabled.
	CensoredWordsPath string `env:"CENSORED_WORDS_PATH"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,required=true"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
