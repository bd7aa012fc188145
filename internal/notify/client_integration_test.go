//go:build integration

package notify

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PublishRunCompleted(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	logger := slog.Default()

	client, err := NewClient(natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	// Raw subscriber on the same server to observe the publish.
	nc, err := nats.Connect(natsURL)
	if err != nil {
		t.Fatalf("subscriber connect failed: %v", err)
	}
	defer nc.Close()

	received := make(chan RunCompleted, 1)
	sub, err := nc.Subscribe(SubjectRunCompleted, func(msg *nats.Msg) {
		var evt RunCompleted
		json.Unmarshal(msg.Data, &evt)
		received <- evt
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish(SubjectRunCompleted, RunCompleted{
		RunID:       "itest-run",
		Survey:      "itest",
		Total:       3,
		Succeeded:   2,
		Failed:      1,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.RunID != "itest-run" || evt.Failed != 1 {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
