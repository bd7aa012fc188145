// Package pipeline orchestrates one extraction run: survey config in,
// validated flat rows out to the configured sinks.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatsift/chatsift/internal/batch"
	"github.com/chatsift/chatsift/internal/config"
	"github.com/chatsift/chatsift/internal/extract"
	"github.com/chatsift/chatsift/internal/extractor"
	"github.com/chatsift/chatsift/internal/llm"
	"github.com/chatsift/chatsift/internal/notify"
	"github.com/chatsift/chatsift/internal/output"
	"github.com/chatsift/chatsift/internal/project"
	"github.com/chatsift/chatsift/internal/prompt"
	"github.com/chatsift/chatsift/internal/schema"
	"github.com/chatsift/chatsift/internal/store"
)

// Pipeline wires the extraction stages to their sinks. Store and notifier
// are optional; a nil value disables that sink.
type Pipeline struct {
	llm           llm.Client
	store         *store.Store
	notifier      *notify.Client
	opts          extractor.Options
	maxConcurrent int64
	logger        *slog.Logger
}

func New(client llm.Client, st *store.Store, n *notify.Client, opts extractor.Options, maxConcurrent int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		llm:           client,
		store:         st,
		notifier:      n,
		opts:          opts,
		maxConcurrent: int64(maxConcurrent),
		logger:        logger,
	}
}

// Summary is the outcome of one run. A run with per-item failures still
// completes; only configuration and sink faults abort it.
type Summary struct {
	RunID     string
	Survey    string
	Total     int
	Succeeded int
	Failed    int
}

// Run executes the survey against the chat export at inputPath. Schema and
// template faults are fatal before any model call; item failures are
// recorded and the run continues.
func (p *Pipeline) Run(ctx context.Context, survey *config.Survey, inputPath, outputCSV string) (*Summary, error) {
	contract, err := schema.Compile(survey.Schema)
	if err != nil {
		return nil, err
	}
	tpl, err := prompt.Parse(survey.Template, extractor.TemplateSlots)
	if err != nil {
		return nil, err
	}

	items, err := extract.LoadFile(inputPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p.logger.Info("run started",
		"run_id", runID,
		"survey", survey.Name,
		"items", len(items),
		"max_concurrent", p.maxConcurrent,
	)

	ext := extractor.New(p.llm, contract, tpl, p.opts, p.logger)
	results := batch.Run(ctx, items, p.maxConcurrent, ext.Extract)

	summary := &Summary{RunID: runID, Survey: survey.Name, Total: len(results)}
	var rows []project.Row
	var storeRows []store.Row

	for _, res := range results {
		if !res.OK() {
			summary.Failed++
			p.logger.Warn("item failed",
				"run_id", runID,
				"chat_id", res.Item.ChatID,
				"kind", string(res.Failure.Kind),
				"error", res.Failure.Error(),
			)
			if p.notifier != nil {
				if err := p.notifier.Publish(notify.SubjectItemFailed, notify.ItemFailed{
					RunID:   runID,
					Survey:  survey.Name,
					ChatID:  res.Item.ChatID,
					Kind:    string(res.Failure.Kind),
					Message: res.Failure.Error(),
				}); err != nil {
					p.logger.Error("failed to publish item failure", "error", err)
				}
			}
			continue
		}

		summary.Succeeded++
		row := project.Project(res.Record, survey.Mapping)
		rows = append(rows, row)
		if p.store != nil {
			storeRows = append(storeRows, store.Row{
				ChatID:      res.Item.ChatID,
				Payload:     payload(res.Record, row, survey.Mapping),
				ExtractedAt: extractedAt(res.Record),
			})
		}
	}

	if outputCSV != "" {
		if err := output.WriteCSVFile(outputCSV, survey.Mapping, rows); err != nil {
			return summary, err
		}
		p.logger.Info("csv written", "run_id", runID, "path", outputCSV, "rows", len(rows))
	}

	if p.store != nil {
		if err := p.store.UpsertBatch(ctx, survey.Name, storeRows); err != nil {
			return summary, fmt.Errorf("persist records: %w", err)
		}
		p.logger.Info("records persisted", "run_id", runID, "rows", len(storeRows))
	}

	if p.notifier != nil {
		if err := p.notifier.Publish(notify.SubjectRunCompleted, notify.RunCompleted{
			RunID:       runID,
			Survey:      survey.Name,
			Total:       summary.Total,
			Succeeded:   summary.Succeeded,
			Failed:      summary.Failed,
			CompletedAt: time.Now().UTC(),
		}); err != nil {
			p.logger.Error("failed to publish run summary", "error", err)
		}
	}

	p.logger.Info("run completed",
		"run_id", runID,
		"survey", survey.Name,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

// payload is what lands in the JSONB column: the mapped columns when a
// csv_mapping is declared, the full record otherwise.
func payload(rec schema.Record, row project.Row, mapping project.Mapping) map[string]any {
	if len(mapping) > 0 {
		return row.Map()
	}
	return map[string]any(rec)
}

func extractedAt(rec schema.Record) time.Time {
	if ts, ok := rec["extracted_at"].(time.Time); ok {
		return ts
	}
	return time.Now().UTC()
}
