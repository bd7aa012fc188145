package extractor

import (
	"strings"

	"github.com/chatsift/chatsift/internal/schema"
)

// Item is one unit of input work: a chat's identity plus the participant
// message corpus. Items are created by the ingest stage and never mutated.
type Item struct {
	ChatID int64
	Email  string
	Corpus string
}

// Kind classifies a per-item failure.
type Kind string

const (
	// KindTransport covers network and timeout faults, surfaced after the
	// retry budget is exhausted.
	KindTransport Kind = "transport"
	// KindMalformedResponse means the model's output was not parseable
	// JSON. Not retried: a fixed prompt will likely fail the same way.
	KindMalformedResponse Kind = "malformed_response"
	// KindSchemaViolation means the output parsed but did not conform to
	// the compiled contract.
	KindSchemaViolation Kind = "schema_violation"
)

// Failure is the error side of a Result.
type Failure struct {
	Kind    Kind
	Message string
	Fields  []schema.FieldError
}

func (f *Failure) Error() string {
	if len(f.Fields) == 0 {
		return string(f.Kind) + ": " + f.Message
	}
	parts := make([]string, len(f.Fields))
	for i, fe := range f.Fields {
		parts[i] = fe.String()
	}
	return string(f.Kind) + ": " + strings.Join(parts, "; ")
}

// Result is the tagged outcome for one Item: a validated record or a
// failure, never both.
type Result struct {
	Item    Item
	Record  schema.Record
	Failure *Failure
}

// OK reports whether the item extracted successfully.
func (r Result) OK() bool { return r.Failure == nil }

func failed(item Item, kind Kind, msg string, fields []schema.FieldError) Result {
	return Result{Item: item, Failure: &Failure{Kind: kind, Message: msg, Fields: fields}}
}
