package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chatsift/chatsift/internal/llm"
	"github.com/chatsift/chatsift/internal/prompt"
	"github.com/chatsift/chatsift/internal/schema"
)

// TemplateSlots are the per-item variables a survey prompt may reference,
// beside the reserved schema-example slot.
var TemplateSlots = []string{"chat_id", "user_email", "corpus"}

// Options are the per-call knobs, resolved once from the environment.
type Options struct {
	MaxCorpusChars int
	MaxAttempts    int           // total attempts per item; <=1 means no retry
	Backoff        time.Duration // initial retry delay, doubled per attempt
	Timeout        time.Duration // per LLM call, not per run
}

// Extractor turns one Item into one Result against a compiled contract.
// It holds no mutable state; a single instance serves all concurrent items.
type Extractor struct {
	llm      llm.Client
	contract *schema.Contract
	template *prompt.Template
	opts     Options
	logger   *slog.Logger
}

func New(client llm.Client, contract *schema.Contract, tpl *prompt.Template, opts Options, logger *slog.Logger) *Extractor {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Extractor{llm: client, contract: contract, template: tpl, opts: opts, logger: logger}
}

// Extract renders the prompt, calls the model, and validates the response.
// Transport faults are retried with exponential backoff; malformed or
// non-conforming model output is terminal for the item.
func (e *Extractor) Extract(ctx context.Context, item Item) Result {
	corpus := truncate(item.Corpus, e.opts.MaxCorpusChars)

	rendered, err := e.template.Render(map[string]string{
		"chat_id":                strconv.FormatInt(item.ChatID, 10),
		"user_email":             item.Email,
		"corpus":                 corpus,
		prompt.SchemaExampleSlot: e.contract.ExampleJSON(),
	})
	if err != nil {
		return failed(item, KindTransport, "render prompt: "+err.Error(), nil)
	}

	e.logger.Debug("extracting",
		"chat_id", item.ChatID,
		"corpus_len", len(corpus),
		"prompt_len", len(rendered),
	)

	var raw string
	err = e.retryable(ctx, func() error {
		cctx := ctx
		if e.opts.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
		}
		var genErr error
		raw, genErr = e.llm.Generate(cctx, rendered)
		return genErr
	})
	if err != nil {
		return failed(item, KindTransport, err.Error(), nil)
	}

	var candidate map[string]any
	if err := json.Unmarshal([]byte(sanitizeJSON(raw)), &candidate); err != nil {
		e.logger.Debug("unparseable model output", "chat_id", item.ChatID, "raw", raw)
		return failed(item, KindMalformedResponse, err.Error(), nil)
	}

	e.backfillIdentity(candidate, item)

	rec, err := e.contract.Validate(candidate)
	if err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return failed(item, KindSchemaViolation, "", ve.Fields)
		}
		return failed(item, KindSchemaViolation, err.Error(), nil)
	}

	return Result{Item: item, Record: rec}
}

// backfillIdentity fills identity fields the model dropped from the input
// row, and stamps extracted_at. The contract still validates the values.
func (e *Extractor) backfillIdentity(candidate map[string]any, item Item) {
	if e.contract.HasField("chat_id") && candidate["chat_id"] == nil {
		candidate["chat_id"] = item.ChatID
	}
	if e.contract.HasField("user_email") && candidate["user_email"] == nil {
		candidate["user_email"] = item.Email
	}
	if e.contract.HasField("extracted_at") {
		candidate["extracted_at"] = time.Now().UTC()
	}
}

func (e *Extractor) retryable(ctx context.Context, call func() error) error {
	delay := e.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if attempt >= e.opts.MaxAttempts || ctx.Err() != nil {
			return err
		}
		e.logger.Debug("llm call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		delay *= 2
	}
}

// truncate caps the corpus at max characters, keeping the prefix: the
// earliest answers carry the grounding context for everything after them.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// sanitizeJSON strips the markdown code fences models wrap JSON in.
func sanitizeJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
