// Package config loads guildkeeper.yaml and the process environment.
//
// A configuration goes through three stages: the raw YAML is checked
// against the embedded CUE schema (types, ranges, unknown keys), decoded
// over Default, and finally cross-checked in Go (award bounds, catalogue
// defaults, question bank). Secrets never live in the file; see Env.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/guildkeeper/internal/assistant"
	"github.com/roach88/guildkeeper/internal/command"
	"github.com/roach88/guildkeeper/internal/counting"
	"github.com/roach88/guildkeeper/internal/engine"
	"github.com/roach88/guildkeeper/internal/leveling"
	"github.com/roach88/guildkeeper/internal/llm"
	"github.com/roach88/guildkeeper/internal/minigame"
	"github.com/roach88/guildkeeper/internal/timed"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "guildkeeper.yaml"

// DefaultJournal is the journal database used when none is configured.
const DefaultJournal = "guildkeeper.db"

// Config is the decoded guildkeeper.yaml.
type Config struct {
	Prefix       string        `yaml:"prefix"`
	Admins       []string      `yaml:"admins"`
	ChatChannels []string      `yaml:"chat_channels"`
	Journal      string        `yaml:"journal"`
	Housekeeping time.Duration `yaml:"housekeeping"`
	LogLevel     string        `yaml:"log_level"`

	Leveling  Leveling      `yaml:"leveling"`
	Counting  Counting      `yaml:"counting"`
	Limits    Limits        `yaml:"limits"`
	Games     Games         `yaml:"games"`
	Bank      minigame.Bank `yaml:"bank"`
	Assistant Assistant     `yaml:"assistant"`
	LLM       LLM           `yaml:"llm"`
}

// Leveling bounds the per-message XP award.
type Leveling struct {
	MinAward int `yaml:"min_award"`
	MaxAward int `yaml:"max_award"`
}

// Counting configures the counting game.
type Counting struct {
	Award int64 `yaml:"award"`
}

// Limits caps scheduled durations.
type Limits struct {
	MaxGiveaway time.Duration `yaml:"max_giveaway"`
	MaxReminder time.Duration `yaml:"max_reminder"`
	MaxTimer    time.Duration `yaml:"max_timer"`
}

// Games configures trivia and scramble rounds.
type Games struct {
	TriviaTimeout   time.Duration `yaml:"trivia_timeout"`
	ScrambleTimeout time.Duration `yaml:"scramble_timeout"`
	TriviaAward     int64         `yaml:"trivia_award"`
	ScrambleAward   int64         `yaml:"scramble_award"`
}

// Assistant holds the model and persona catalogues. Entries in the file
// are added to the built-in catalogue, replacing keys that already exist.
type Assistant struct {
	Models         map[string]string `yaml:"models"`
	Personas       map[string]string `yaml:"personas"`
	DefaultModel   string            `yaml:"default_model"`
	DefaultPersona string            `yaml:"default_persona"`
	MaxHistory     int               `yaml:"max_history"`
	Temperature    float64           `yaml:"temperature"`
	MaxTokens      int               `yaml:"max_tokens"`
	HistoryTTL     time.Duration     `yaml:"history_ttl"`
}

// LLM configures the completion client. The API key comes from Env.
type LLM struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Default returns the built-in configuration.
func Default() Config {
	lv := leveling.DefaultConfig()
	lim := timed.DefaultLimits()
	games := minigame.DefaultConfig()
	ac := assistant.DefaultConfig()

	return Config{
		Prefix:       command.DefaultPrefix,
		Journal:      DefaultJournal,
		Housekeeping: 10 * time.Minute,
		LogLevel:     "info",
		Leveling:     Leveling{MinAward: lv.MinAward, MaxAward: lv.MaxAward},
		Counting:     Counting{Award: counting.DefaultAward},
		Limits: Limits{
			MaxGiveaway: lim.MaxGiveaway,
			MaxReminder: lim.MaxReminder,
			MaxTimer:    lim.MaxTimer,
		},
		Games: Games{
			TriviaTimeout:   games.TriviaTimeout,
			ScrambleTimeout: games.ScrambleTimeout,
			TriviaAward:     games.TriviaAward,
			ScrambleAward:   games.ScrambleAward,
		},
		Bank: minigame.DefaultBank(),
		Assistant: Assistant{
			Models:         ac.Models,
			Personas:       ac.Personas,
			DefaultModel:   ac.DefaultModel,
			DefaultPersona: ac.DefaultPersona,
			MaxHistory:     ac.MaxHistory,
			Temperature:    ac.Temperature,
			MaxTokens:      ac.MaxTokens,
			HistoryTTL:     ac.HistoryTTL,
		},
		LLM: LLM{
			BaseURL:    llm.DefaultBaseURL,
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
	}
}

// Load reads and validates path. A missing file yields Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates data and decodes it over Default. It returns the first
// problem found; use Lint to see all of them.
func Parse(data []byte, filename string) (Config, error) {
	if errs := checkSchema(data, filename); len(errs) > 0 {
		return Config{}, errs[0]
	}
	cfg, err := decode(data)
	if err != nil {
		return Config{}, &ValidationError{Field: "yaml", Message: err.Error()}
	}
	if errs := cfg.check(); len(errs) > 0 {
		return Config{}, errs[0]
	}
	return cfg, nil
}

// Lint reports every schema and consistency problem in data.
func Lint(data []byte, filename string) []error {
	if errs := checkSchema(data, filename); len(errs) > 0 {
		return errs
	}
	cfg, err := decode(data)
	if err != nil {
		return []error{&ValidationError{Field: "yaml", Message: err.Error()}}
	}
	return cfg.check()
}

func decode(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AssistantConfig converts the assistant section.
func (c Config) AssistantConfig() assistant.Config {
	a := c.Assistant
	return assistant.Config{
		Models:         a.Models,
		Personas:       a.Personas,
		DefaultModel:   a.DefaultModel,
		DefaultPersona: a.DefaultPersona,
		MaxHistory:     a.MaxHistory,
		Temperature:    a.Temperature,
		MaxTokens:      a.MaxTokens,
		HistoryTTL:     a.HistoryTTL,
	}
}

// Settings converts the file into engine settings.
func (c Config) Settings() engine.Settings {
	return engine.Settings{
		Prefix:        c.Prefix,
		Leveling:      leveling.Config{MinAward: c.Leveling.MinAward, MaxAward: c.Leveling.MaxAward},
		CountingAward: c.Counting.Award,
		Limits: timed.Limits{
			MaxGiveaway: c.Limits.MaxGiveaway,
			MaxReminder: c.Limits.MaxReminder,
			MaxTimer:    c.Limits.MaxTimer,
		},
		Games: minigame.Config{
			TriviaTimeout:   c.Games.TriviaTimeout,
			ScrambleTimeout: c.Games.ScrambleTimeout,
			TriviaAward:     c.Games.TriviaAward,
			ScrambleAward:   c.Games.ScrambleAward,
		},
		Bank:         c.Bank,
		Assistant:    c.AssistantConfig(),
		ChatChannels: c.ChatChannels,
		Admins:       c.Admins,
		Housekeeping: c.Housekeeping,
	}
}

// LLMConfig builds the completion client config. Environment values win
// over the file.
func (c Config) LLMConfig(env Env) llm.Config {
	base := c.LLM.BaseURL
	if env.GroqBaseURL != "" {
		base = env.GroqBaseURL
	}
	return llm.Config{
		APIKey:     env.GroqAPIKey,
		BaseURL:    base,
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
	}
}

// JournalPath returns the journal location, preferring the environment.
func (c Config) JournalPath(env Env) string {
	if env.Journal != "" {
		return env.Journal
	}
	return c.Journal
}
