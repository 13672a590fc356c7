package harness

// Trace event types.
const (
	TraceSend    = "send"
	TraceReact   = "react"
	TraceJournal = "journal"
	TraceFailed  = "failed"
)

// TraceEvent is one observable effect of a scenario: a message, a
// reaction, a failed delivery or a journal entry.
type TraceEvent struct {
	Step    int      `json:"step"`
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Text    string   `json:"text,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Emoji   string   `json:"emoji,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Subject string   `json:"subject,omitempty"`
	Seq     int64    `json:"seq,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists effects in the order the engine produced them.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is a snapshot of component sizes after the last step.
	State map[string]int `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Sent returns the send events.
func (r *Result) Sent() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == TraceSend {
			out = append(out, ev)
		}
	}
	return out
}
