package domain

import (
	"fmt"
	"strings"
)

// Severity grades a planning message.
type Severity string

// Message severities. Any SeverityError message makes the planning run fail.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Kind classifies a planning message.
type Kind string

// Message kinds recorded on the error channel.
const (
	// KindInvalidInput marks a missing or non-positive required field.
	KindInvalidInput Kind = "InvalidInput"
	// KindParseFailure marks a pool set that could not be obtained.
	KindParseFailure Kind = "ParseFailure"
	// KindInfeasibleTransfer marks a transfer below the pipettor minimum.
	KindInfeasibleTransfer Kind = "InfeasibleTransfer"
	// KindInfeasibleConcentration marks a target concentration above what
	// the stock can deliver.
	KindInfeasibleConcentration Kind = "InfeasibleConcentration"
	// KindNotice marks informational messages that carry no failure.
	KindNotice Kind = "Notice"
)

// Message is one entry of the error channel.
type Message struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Text     string   `json:"message"`
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Severity, m.Kind, m.Text)
}

// Errorf builds an error-severity message.
func Errorf(kind Kind, format string, args ...any) Message {
	return Message{Severity: SeverityError, Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity message.
func Warnf(kind Kind, format string, args ...any) Message {
	return Message{Severity: SeverityWarning, Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// Infof builds an info-severity message.
func Infof(kind Kind, format string, args ...any) Message {
	return Message{Severity: SeverityInfo, Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// Result accumulates the ordered messages produced during one planning run.
type Result struct {
	Messages []Message `json:"messages,omitempty"`
}

// Add appends messages in order.
func (r *Result) Add(msgs ...Message) {
	r.Messages = append(r.Messages, msgs...)
}

// Merge appends messages from another result.
func (r *Result) Merge(other Result) {
	if len(other.Messages) == 0 {
		return
	}
	r.Messages = append(r.Messages, other.Messages...)
}

// HasErrors returns true if the result contains error-severity messages.
func (r Result) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter returns the messages of the given severity.
func (r Result) Filter(sev Severity) []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Severity == sev {
			out = append(out, m)
		}
	}
	return out
}

// ErrorSummary joins the error-severity message texts.
func (r Result) ErrorSummary() string {
	errs := r.Filter(SeverityError)
	texts := make([]string, 0, len(errs))
	for _, m := range errs {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "; ")
}

// InvariantViolationError is returned when an assembled plan breaks a
// post-condition. It is the only planning failure reported as a Go error.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("plan invariant %q violated: %s", e.Invariant, e.Detail)
}
