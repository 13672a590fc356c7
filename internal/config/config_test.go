package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/guildkeeper/internal/llm"
)

func TestDefault_IsValid(t *testing.T) {
	assert.Empty(t, Default().check())
	assert.Empty(t, Lint(nil, "empty.yaml"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Example(t *testing.T) {
	cfg, err := Load("testdata/guildkeeper.yaml")
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.Prefix)
	assert.Equal(t, []string{"123456789012345678"}, cfg.Admins)
	assert.Equal(t, 5*time.Minute, cfg.Housekeeping)
	assert.Equal(t, Leveling{MinAward: 2, MaxAward: 8}, cfg.Leveling)
	assert.Equal(t, int64(3), cfg.Counting.Award)

	// Unset fields keep their defaults.
	assert.Equal(t, 48*time.Hour, cfg.Limits.MaxGiveaway)
	assert.Equal(t, Default().Limits.MaxReminder, cfg.Limits.MaxReminder)
	assert.Equal(t, 45*time.Second, cfg.Games.TriviaTimeout)
	assert.Equal(t, Default().Games.TriviaAward, cfg.Games.TriviaAward)

	require.Len(t, cfg.Bank.Questions, 1)
	assert.Equal(t, 1, cfg.Bank.Questions[0].Answer)
	assert.Equal(t, []string{"gopher", "channel"}, cfg.Bank.Words)

	// Catalogue entries extend the built-in ones.
	assert.Equal(t, "qwen-2.5-32b", cfg.Assistant.Models["qwen"])
	assert.Contains(t, cfg.Assistant.Models, "llama")
	assert.Equal(t, "pirate", cfg.Assistant.DefaultPersona)
	assert.Equal(t, 1.0, cfg.Assistant.Temperature)
	assert.Equal(t, 12*time.Hour, cfg.Assistant.HistoryTTL)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "colour: blue\n", "colour"},
		{"temperature range", "assistant:\n  temperature: 3\n", "temperature"},
		{"bad duration", "games:\n  trivia_timeout: soon\n", "trivia_timeout"},
		{"prefix with space", "prefix: \"! \"\n", "prefix"},
		{"too few options", "bank:\n  questions:\n    - question: q\n      options: [a]\n      answer: 0\n", "options"},
		{"log level", "log_level: loud\n", "log_level"},
		{"admin id", "admins: [\"not-an-id\"]\n", "admins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_CrossFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"award bounds", "leveling:\n  min_award: 9\n  max_award: 3\n", "min_award 9 exceeds max_award 3"},
		{"unknown default model", "assistant:\n  default_model: gpt\n", "assistant"},
		{"unknown default persona", "assistant:\n  default_persona: wizard\n", "assistant"},
		{"answer out of range", "bank:\n  questions:\n    - question: q\n      options: [a, b]\n      answer: 3\n", "bank"},
		{"zero timeout", "games:\n  scramble_timeout: 0s\n", "games.scramble_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLint_ReportsEverything(t *testing.T) {
	errs := Lint([]byte("leveling:\n  min_award: 9\n  max_award: 3\ngames:\n  trivia_timeout: 0s\n"), "bad.yaml")
	assert.Len(t, errs, 2)
}

func TestSettings(t *testing.T) {
	cfg, err := Load("testdata/guildkeeper.yaml")
	require.NoError(t, err)
	s := cfg.Settings()

	assert.Equal(t, "?", s.Prefix)
	assert.Equal(t, 2, s.Leveling.MinAward)
	assert.Equal(t, int64(3), s.CountingAward)
	assert.Equal(t, 2*time.Hour, s.Limits.MaxTimer)
	assert.Equal(t, int64(30), s.Games.ScrambleAward)
	assert.Equal(t, "qwen", s.Assistant.DefaultModel)
	assert.Equal(t, []string{"223456789012345678"}, s.ChatChannels)
	assert.Equal(t, 5*time.Minute, s.Housekeeping)
	require.NoError(t, s.Assistant.Validate())
}

func TestLLMConfig_EnvWins(t *testing.T) {
	cfg := Default()
	lc := cfg.LLMConfig(Env{GroqAPIKey: "k"})
	assert.Equal(t, llm.DefaultBaseURL, lc.BaseURL)
	assert.Equal(t, "k", lc.APIKey)

	lc = cfg.LLMConfig(Env{GroqBaseURL: "http://localhost:8080/v1/"})
	assert.Equal(t, "http://localhost:8080/v1/", lc.BaseURL)
}

func TestJournalPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultJournal, cfg.JournalPath(Env{}))
	assert.Equal(t, "/tmp/j.db", cfg.JournalPath(Env{Journal: "/tmp/j.db"}))
}

func TestParseEnv(t *testing.T) {
	e, err := ParseEnv(map[string]string{
		"DISCORD_TOKEN": "tok",
		"GROQ_API_KEY":  "gsk",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", e.DiscordToken)
	assert.True(t, e.AssistantEnabled())
	assert.NoError(t, e.RequireDiscord())

	e, err = ParseEnv(map[string]string{})
	require.NoError(t, err)
	assert.ErrorIs(t, e.RequireDiscord(), ErrNoDiscordToken)
	assert.False(t, e.AssistantEnabled())
}

func TestLoadEnv_DotenvFile(t *testing.T) {
	// Register restoration, then clear so the dotenv file can set it.
	t.Setenv("GUILDKEEPER_JOURNAL", "")
	require.NoError(t, os.Unsetenv("GUILDKEEPER_JOURNAL"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GUILDKEEPER_JOURNAL=/data/j.db\n"), 0o600))

	e, err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/data/j.db", e.Journal)
}
