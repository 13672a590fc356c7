package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the fake clock's starting time when a scenario sets none.
var DefaultStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Scenario is a scripted conversation with the bot and the outcomes it
// must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is a guildkeeper.yaml document applied over the defaults.
	Config yaml.Node `yaml:"config,omitempty"`

	// Start is the fake clock's initial time (RFC 3339).
	Start string `yaml:"start,omitempty"`

	// Random is the fixed index every random draw returns.
	Random int `yaml:"random,omitempty"`

	// Assistant enables the assistant with a scripted completer.
	Assistant *AssistantScript `yaml:"assistant,omitempty"`

	// Steps are executed in order; the engine is drained after each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, the journal and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// AssistantScript configures the fake completer.
type AssistantScript struct {
	// Replies are returned in order, then prompts are echoed.
	Replies []string `yaml:"replies,omitempty"`
	// Fail makes every completion fail with this message.
	Fail string `yaml:"fail,omitempty"`
}

// Step is one thing that happens. Exactly one field is set.
type Step struct {
	Message      *MessageStep `yaml:"message,omitempty"`
	Click        *ClickStep   `yaml:"click,omitempty"`
	Advance      string       `yaml:"advance,omitempty"`
	FailDelivery *bool        `yaml:"fail_delivery,omitempty"`
}

// MessageStep is a chat message from a user.
type MessageStep struct {
	Author   string   `yaml:"author"`
	Name     string   `yaml:"name,omitempty"`
	Channel  string   `yaml:"channel"`
	Content  string   `yaml:"content"`
	Mentions []string `yaml:"mentions,omitempty"`
	Bot      bool     `yaml:"bot,omitempty"`
	// ReplyTo makes the message a reply to an earlier one.
	ReplyTo *ReplyStep `yaml:"reply_to,omitempty"`
}

// ReplyStep is the message being replied to. Self marks one of the bot's
// own messages.
type ReplyStep struct {
	ID      string `yaml:"id,omitempty"`
	Self    bool   `yaml:"self,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// ClickStep is a button click.
type ClickStep struct {
	Author   string `yaml:"author"`
	Channel  string `yaml:"channel"`
	CustomID string `yaml:"custom_id"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Text is a substring of a sent message (sent_contains, sent_count).
	Text string `yaml:"text,omitempty"`
	// Texts are substrings that must appear in order (sent_order).
	Texts []string `yaml:"texts,omitempty"`
	// Channel restricts message assertions to one channel.
	Channel string `yaml:"channel,omitempty"`
	// Emoji is the reaction to count (reaction_count).
	Emoji string `yaml:"emoji,omitempty"`
	// Kind is the journal kind (journal_contains, journal_count).
	Kind string `yaml:"kind,omitempty"`
	// Subject narrows journal_contains.
	Subject string `yaml:"subject,omitempty"`
	// Count is the expected number of matches.
	Count int `yaml:"count,omitempty"`

	// Key names the state to check (final_state), see StateKeys.
	Key string `yaml:"key,omitempty"`
	// User or channel the state belongs to, when the key needs one.
	User  string `yaml:"user,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertSentContains    = "sent_contains"
	AssertSentOrder       = "sent_order"
	AssertSentCount       = "sent_count"
	AssertReactionCount   = "reaction_count"
	AssertJournalContains = "journal_contains"
	AssertJournalCount    = "journal_count"
	AssertFinalState      = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	set := 0
	if step.Message != nil {
		set++
		if step.Message.Author == "" || step.Message.Channel == "" {
			return fmt.Errorf("steps[%d].message: author and channel are required", i)
		}
	}
	if step.Click != nil {
		set++
		if step.Click.Author == "" || step.Click.CustomID == "" {
			return fmt.Errorf("steps[%d].click: author and custom_id are required", i)
		}
	}
	if step.Advance != "" {
		set++
		if d, err := time.ParseDuration(step.Advance); err != nil || d <= 0 {
			return fmt.Errorf("steps[%d].advance: %q is not a positive duration", i, step.Advance)
		}
	}
	if step.FailDelivery != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of message, click, advance, fail_delivery is required", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSentContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: sent_contains requires text", index)
		}
	case AssertSentOrder:
		if len(a.Texts) < 2 {
			return fmt.Errorf("assertions[%d]: sent_order requires at least 2 texts", index)
		}
	case AssertSentCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: sent_count requires a non-negative count", index)
		}
	case AssertReactionCount:
		if a.Emoji == "" {
			return fmt.Errorf("assertions[%d]: reaction_count requires emoji", index)
		}
	case AssertJournalContains, AssertJournalCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: %s requires kind", index, a.Type)
		}
	case AssertFinalState:
		if _, ok := stateKeys[a.Key]; !ok {
			return fmt.Errorf("assertions[%d]: final_state key %q is not one of %v", index, a.Key, StateKeys())
		}
		if stateKeys[a.Key].needsSubject && a.User == "" && a.Channel == "" {
			return fmt.Errorf("assertions[%d]: final_state %s requires user or channel", index, a.Key)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: final_state requires value", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
