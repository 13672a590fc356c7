package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/guildkeeper/internal/engine"
	"github.com/roach88/guildkeeper/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nMessages sent:\n")
		for i, ev := range e.Trace {
			if ev.Type == TraceSend {
				fmt.Fprintf(&buf, "  [%d] step %d #%s: %s\n", i+1, ev.Step, ev.Channel, ev.Text)
			}
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the finished engine and
// journal.
type AssertionContext struct {
	Engine  *engine.Engine
	Journal *journal.Journal
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSentContains:
			err = assertSentContains(result.Trace, a)
		case AssertSentOrder:
			err = assertSentOrder(result.Trace, a)
		case AssertSentCount:
			err = assertSentCount(result.Trace, a)
		case AssertReactionCount:
			err = assertReactionCount(result.Trace, a)
		case AssertJournalContains, AssertJournalCount:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a journal", i, a.Type)
			} else {
				err = assertJournal(ctx, actx.Journal, a)
			}
		case AssertFinalState:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires an engine", i)
			} else {
				err = assertFinalState(actx.Engine, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// sentMatches reports whether a send event matches text and channel. The
// embed detail is searched too.
func sentMatches(ev TraceEvent, text, channel string) bool {
	if ev.Type != TraceSend {
		return false
	}
	if channel != "" && ev.Channel != channel {
		return false
	}
	return text == "" || strings.Contains(ev.Text, text) || strings.Contains(ev.Detail, text)
}

func assertSentContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if sentMatches(ev, a.Text, a.Channel) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("a message containing %q%s", a.Text, inChannel(a.Channel)),
		Actual:   "not found",
		Trace:    trace,
	}
}

// assertSentOrder checks the texts appear in order. Other messages may
// appear in between.
func assertSentOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Texts) && sentMatches(ev, a.Texts[next], a.Channel) {
			next++
		}
	}
	if next == len(a.Texts) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSentOrder,
		Expected: fmt.Sprintf("messages in order: %q", a.Texts),
		Actual:   fmt.Sprintf("no message containing %q after %q", a.Texts[next], a.Texts[:next]),
		Trace:    trace,
	}
}

func assertSentCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if sentMatches(ev, a.Text, a.Channel) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := "messages"
	if a.Text != "" {
		what = fmt.Sprintf("messages containing %q", a.Text)
	}
	return &AssertionError{
		Type:     AssertSentCount,
		Expected: fmt.Sprintf("%d %s%s", a.Count, what, inChannel(a.Channel)),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

func assertReactionCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == TraceReact && ev.Emoji == a.Emoji && (a.Channel == "" || ev.Channel == a.Channel) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReactionCount,
		Expected: fmt.Sprintf("%d %s reactions", a.Count, a.Emoji),
		Actual:   fmt.Sprintf("%d", count),
	}
}

// assertJournal reads back the persisted entries rather than the trace, so
// it also covers the journal's encoding.
func assertJournal(ctx context.Context, j *journal.Journal, a Assertion) error {
	entries, err := j.Recent(ctx, journal.Filter{Kind: journal.Kind(a.Kind), Limit: 10000})
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}

	if a.Type == AssertJournalCount {
		if len(entries) == a.Count {
			return nil
		}
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d %s entries", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", len(entries)),
		}
	}

	subjects := make([]string, 0, len(entries))
	for _, e := range entries {
		if a.Subject == "" || e.Subject == a.Subject {
			return nil
		}
		subjects = append(subjects, e.Subject)
	}
	return &AssertionError{
		Type:     AssertJournalContains,
		Expected: fmt.Sprintf("a %s entry for %q", a.Kind, a.Subject),
		Actual:   fmt.Sprintf("subjects %v", subjects),
	}
}

type stateKey struct {
	needsSubject bool
	read         func(e *engine.Engine, a Assertion) any
}

var stateKeys = map[string]stateKey{
	"xp": {true, func(e *engine.Engine, a Assertion) any {
		return e.XP().Rank(a.User).XP
	}},
	"level": {true, func(e *engine.Engine, a Assertion) any {
		return e.XP().Rank(a.User).Level
	}},
	"away": {true, func(e *engine.Engine, a Assertion) any {
		_, ok := e.Presence().Lookup(a.User)
		return ok
	}},
	"counting": {true, func(e *engine.Engine, a Assertion) any {
		cur, ok := e.Counting().State(a.Channel)
		if !ok {
			return "inactive"
		}
		return cur
	}},
	"history": {true, func(e *engine.Engine, a Assertion) any {
		if e.Assistant() == nil {
			return 0
		}
		return e.Assistant().HistoryLen(a.User)
	}},
	"giveaways": {false, func(e *engine.Engine, _ Assertion) any {
		return e.Timed().Giveaways()
	}},
	"pending_tasks": {false, func(e *engine.Engine, _ Assertion) any {
		return e.Timed().PendingTasks()
	}},
	"active_rounds": {false, func(e *engine.Engine, _ Assertion) any {
		return e.Games().Active()
	}},
	"timers": {false, func(e *engine.Engine, _ Assertion) any {
		return e.Timers().Pending()
	}},
}

// StateKeys lists the keys final_state understands.
func StateKeys() []string {
	keys := make([]string, 0, len(stateKeys))
	for k := range stateKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// assertFinalState compares by printed form, so YAML's int and bool
// literals match the engine's int64 and bool values.
func assertFinalState(e *engine.Engine, a Assertion) error {
	key, ok := stateKeys[a.Key]
	if !ok {
		return fmt.Errorf("final_state: unknown key %q", a.Key)
	}
	actual := key.read(e, a)
	if fmt.Sprint(actual) == fmt.Sprint(a.Value) {
		return nil
	}
	subject := a.User
	if subject == "" {
		subject = a.Channel
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s%s = %v", a.Key, forSubject(subject), a.Value),
		Actual:   fmt.Sprintf("%v", actual),
	}
}

func inChannel(ch string) string {
	if ch == "" {
		return ""
	}
	return " in " + ch
}

func forSubject(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
