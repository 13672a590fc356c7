package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix starts every text command.
const DefaultPrefix = "!"

// Invocation is a parsed text command.
type Invocation struct {
	Name string
	Args []string
	// Rest is everything after the command name, trimmed, with inner
	// spacing preserved.
	Rest string
}

// Parse splits content into a command invocation. It reports false when
// content does not start with prefix followed by a name.
func Parse(content, prefix string) (Invocation, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Invocation{}, false
	}
	body := strings.TrimSpace(content[len(prefix):])
	if body == "" {
		return Invocation{}, false
	}

	name, rest, _ := strings.Cut(body, " ")
	return Invocation{
		Name: strings.ToLower(name),
		Args: strings.Fields(rest),
		Rest: strings.TrimSpace(rest),
	}, true
}

// After returns Rest with the first n arguments removed.
func (inv Invocation) After(n int) string {
	rest := inv.Rest
	for i := 0; i < n; i++ {
		rest = strings.TrimSpace(rest)
		_, tail, found := strings.Cut(rest, " ")
		if !found {
			return ""
		}
		rest = tail
	}
	return strings.TrimSpace(rest)
}

// Custom id kinds for components.
const (
	customGiveaway = "giveaway"
	customTrivia   = "trivia"
)

// ErrBadCustomID is returned for component ids this bot did not issue.
var ErrBadCustomID = errors.New("unrecognised custom id")

// CustomID is a decoded component id.
type CustomID struct {
	Kind  string
	ID    string
	Index int
}

// GiveawayButton is the component id of a giveaway join button.
func GiveawayButton(giveawayID string) string {
	return customGiveaway + ":" + giveawayID
}

// TriviaButton is the component id of a trivia option (0-based).
func TriviaButton(roundID string, index int) string {
	return fmt.Sprintf("%s:%s:%d", customTrivia, roundID, index)
}

// ParseCustomID decodes an id made by GiveawayButton or TriviaButton.
func ParseCustomID(s string) (CustomID, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 2 && parts[0] == customGiveaway && parts[1] != "":
		return CustomID{Kind: customGiveaway, ID: parts[1]}, nil
	case len(parts) == 3 && parts[0] == customTrivia && parts[1] != "":
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return CustomID{}, fmt.Errorf("%w: %q", ErrBadCustomID, s)
		}
		return CustomID{Kind: customTrivia, ID: parts[1], Index: idx}, nil
	default:
		return CustomID{}, fmt.Errorf("%w: %q", ErrBadCustomID, s)
	}
}

// UserFromMention extracts the id from <@123> or <@!123>. Plain ids are
// returned unchanged.
func UserFromMention(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(s[2:len(s)-1], "!")
	}
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}
