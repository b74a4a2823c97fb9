package quiz

import (
	"time"
)

// State is the lifecycle position of a quiz session.
type State string

const (
	StatePending     State = "pending"
	StateRendering   State = "rendering"
	StateExtracting  State = "extracting"
	StateDispatching State = "dispatching"
	StateSolving     State = "solving"
	StateAnswered    State = "answered"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateAnswered || s == StateFailed
}

// Session is one end-to-end request to solve the quiz at URL.
type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
	State     State     `json:"state"`
}

// Expired reports whether the session deadline has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && now.After(s.Deadline)
}

// Kind tags a question with the strategy family that handles it.
type Kind string

const (
	KindFile          Kind = "file"
	KindAPI           Kind = "api"
	KindStat          Kind = "stat"
	KindVisualization Kind = "visualization"
	KindGeneric       Kind = "generic"
)

// Question is a single question unit extracted from a rendered quiz page.
// A question is classified once; Classified returns a tagged copy and the
// original value is left untouched.
type Question struct {
	Text       string   `json:"text"`
	Kind       Kind     `json:"kind,omitempty"`
	FileURL    string   `json:"file_url,omitempty"`
	APIURL     string   `json:"api_url,omitempty"`
	APIMethod  string   `json:"api_method,omitempty"`
	InlineData string   `json:"inline_data,omitempty"`
	Links      []string `json:"links,omitempty"`
}

// Classified returns a copy of q tagged with kind. A question that already
// carries a kind keeps it.
func (q Question) Classified(kind Kind) Question {
	if q.Kind != "" {
		return q
	}
	out := q
	out.Links = append([]string(nil), q.Links...)
	out.Kind = kind
	return out
}

// Status flags how much a strategy trusts its own answer.
type Status string

const (
	StatusOK           Status = "ok"
	StatusUndetermined Status = "undetermined"
)

// Undetermined is the answer value carried by strategy results that could not
// compute an answer themselves.
const Undetermined = "unable to determine"

// Result is the outcome of exactly one strategy run for one question.
type Result struct {
	Value    any    `json:"value"`
	Status   Status `json:"status"`
	Strategy string `json:"strategy"`
	// Context is material gathered by the strategy (tables, documents, API
	// bodies) that the LLM fallback can use.
	Context string `json:"-"`
	Err     error  `json:"-"`
}

// OK builds a successful result.
func OK(strategy string, value any) Result {
	return Result{Value: value, Status: StatusOK, Strategy: strategy}
}

// Unresolved builds an undetermined result carrying the failure cause.
func Unresolved(strategy string, err error, context string) Result {
	return Result{Value: Undetermined, Status: StatusUndetermined, Strategy: strategy, Err: err, Context: context}
}

// Answer renders the result value as the string sent back to callers.
func (r Result) Answer() string {
	return FormatAnswer(r.Value)
}
