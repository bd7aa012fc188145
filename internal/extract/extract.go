// Package extract reads the raw chat-export CSV and normalises it into
// batch items: one item per chat, corpus built from participant messages.
package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chatsift/chatsift/internal/extractor"
)

var requiredColumns = []string{
	"chat_id",
	"user_email",
	"message_author",
	"message_content",
	"message_timestamp",
}

type message struct {
	ts          time.Time
	participant bool
	content     string
	seq         int
}

type chat struct {
	id       int64
	email    string
	messages []message
}

// LoadFile reads a chat export from disk.
func LoadFile(path string) ([]extractor.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chat export: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses the export, groups rows by chat and concatenates the
// participant ("HUMAN") messages in timestamp order into each corpus.
// Items come back in order of first appearance in the file.
func Load(r io.Reader) ([]extractor.Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv missing columns: %s", strings.Join(missing, ", "))
	}

	chats := make(map[int64]*chat)
	var order []int64

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}

		field := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		id, err := strconv.ParseInt(field("chat_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid chat_id %q", line, field("chat_id"))
		}

		c, ok := chats[id]
		if !ok {
			c = &chat{id: id}
			chats[id] = c
			order = append(order, id)
		}
		if c.email == "" {
			c.email = field("user_email")
		}
		c.messages = append(c.messages, message{
			ts:          parseTimestamp(field("message_timestamp")),
			participant: strings.EqualFold(field("message_author"), "HUMAN"),
			content:     field("message_content"),
			seq:         len(c.messages),
		})
	}

	items := make([]extractor.Item, 0, len(order))
	for _, id := range order {
		c := chats[id]
		sort.SliceStable(c.messages, func(i, j int) bool {
			return c.messages[i].ts.Before(c.messages[j].ts)
		})
		var parts []string
		for _, m := range c.messages {
			if m.participant && m.content != "" {
				parts = append(parts, m.content)
			}
		}
		items = append(items, extractor.Item{
			ChatID: c.id,
			Email:  c.email,
			Corpus: strings.Join(parts, "\n"),
		})
	}
	return items, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp is lenient: exports mix formats, and an unparseable
// timestamp only costs ordering within its chat, not the row.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
