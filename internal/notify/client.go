// Package notify publishes run lifecycle events over NATS. The publisher
// is optional: when no NATS URL is configured the pipeline runs without it.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectRunCompleted carries a RunCompleted event once per run.
	SubjectRunCompleted = "chatsift.run.completed"
	// SubjectItemFailed carries one ItemFailed event per failed chat.
	SubjectItemFailed = "chatsift.item.failed"
)

// RunCompleted summarises a finished extraction run.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Survey      string    `json:"survey"`
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

// ItemFailed reports a single chat that could not be extracted.
type ItemFailed struct {
	RunID   string `json:"run_id"`
	Survey  string `json:"survey"`
	ChatID  int64  `json:"chat_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Close flushes pending publishes before dropping the connection.
func (c *Client) Close() {
	_ = c.conn.Flush()
	c.conn.Close()
}
