package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds secrets and per-deployment overrides from the environment.
type Env struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	GroqAPIKey   string `env:"GROQ_API_KEY"`
	GroqBaseURL  string `env:"GROQ_BASE_URL"`
	Journal      string `env:"GUILDKEEPER_JOURNAL"`
}

// LoadEnv loads the optional dotenv files, then parses the process
// environment. Variables already set are not overridden by the files.
func LoadEnv(files ...string) (Env, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// ParseEnv parses an explicit environment instead of the process one.
func ParseEnv(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// ErrNoDiscordToken is returned by RequireDiscord.
var ErrNoDiscordToken = errors.New("DISCORD_TOKEN is not set")

// RequireDiscord checks the gateway can be opened.
func (e Env) RequireDiscord() error {
	if e.DiscordToken == "" {
		return ErrNoDiscordToken
	}
	return nil
}

// AssistantEnabled reports whether an LLM key is present.
func (e Env) AssistantEnabled() bool {
	return e.GroqAPIKey != ""
}
