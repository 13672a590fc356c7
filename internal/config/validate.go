package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

// ValidationError is one problem in a config file, with its position when
// the schema check found it.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// checkSchema unifies the YAML document with #Config.
func checkSchema(data []byte, filename string) []error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return cueErrors("yaml", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return cueErrors("yaml", err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return cueErrors("schema", err)
	}
	slog.Debug("config schema ok", "file", filename)
	return nil
}

// cueErrors flattens a CUE error list, keeping the first position of each.
func cueErrors(field string, err error) []error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return []error{&ValidationError{Field: field, Message: err.Error()}}
	}
	out := make([]error, 0, len(list))
	for _, e := range list {
		ve := &ValidationError{Field: field, Message: e.Error()}
		if path := e.Path(); len(path) > 0 {
			ve.Field = strings.Join(path, ".")
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.Pos = pos[0]
		}
		out = append(out, ve)
	}
	return out
}

// check runs the cross-field rules the schema cannot express.
func (c Config) check() []error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Leveling.MinAward > c.Leveling.MaxAward {
		add("leveling", "min_award %d exceeds max_award %d", c.Leveling.MinAward, c.Leveling.MaxAward)
	}
	if c.Games.TriviaTimeout <= 0 {
		add("games.trivia_timeout", "must be positive")
	}
	if c.Games.ScrambleTimeout <= 0 {
		add("games.scramble_timeout", "must be positive")
	}
	for _, l := range []struct {
		field string
		max   time.Duration
	}{
		{"limits.max_giveaway", c.Limits.MaxGiveaway},
		{"limits.max_reminder", c.Limits.MaxReminder},
		{"limits.max_timer", c.Limits.MaxTimer},
	} {
		if l.max <= 0 {
			add(l.field, "must be positive")
		}
	}
	if err := c.Bank.Validate(); err != nil {
		add("bank", "%v", err)
	}
	if err := c.AssistantConfig().Validate(); err != nil {
		add("assistant", "%v", err)
	}
	return errs
}
