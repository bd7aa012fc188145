package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsift/chatsift/internal/config"
	"github.com/chatsift/chatsift/internal/extractor"
	"github.com/chatsift/chatsift/internal/prompt"
)

const surveyYAML = `model_name: SatisfactionSurvey
schema:
  chat_id: int
  user_email: email
  satisfaction: rating
prompt_template: |
  Answers:
  {corpus}

  Output only JSON matching:
  {_SCHEMA_EXAMPLE}
csv_mapping:
  chat_id: chat_id
  email: user_email
  satisfaction: satisfaction
`

const exportCSV = `chat_id,user_email,message_author,message_content,message_timestamp
1,a@x.com,HUMAN,very happy with the course,2024-03-01 09:00:00
2,b@y.com,HUMAN,it was vague,2024-03-01 10:00:00
3,c@z.com,HUMAN,no comment,2024-03-01 11:00:00
`

// stubClient answers from canned responses keyed by a corpus substring.
type stubClient struct {
	responses map[string]string
}

func (s *stubClient) Generate(_ context.Context, prompt string) (string, error) {
	for marker, resp := range s.responses {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return "", errors.New("no canned response")
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRun_MixedOutcomes(t *testing.T) {
	survey, err := config.ParseSurvey([]byte(surveyYAML))
	require.NoError(t, err)

	client := &stubClient{responses: map[string]string{
		"very happy":   `{"satisfaction": 5}`,
		"it was vague": `{"satisfaction": "high"}`,
		"no comment":   "not json at all",
	}}
	p := New(client, nil, nil, extractor.Options{MaxAttempts: 1}, 2, testLogger())

	input := writeTemp(t, "export.csv", exportCSV)
	out := filepath.Join(t.TempDir(), "out.csv")

	summary, err := p.Run(context.Background(), survey, input, out)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "SatisfactionSurvey", summary.Survey)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "chat_id,email,satisfaction", lines[0])
	assert.Equal(t, "1,a@x.com,5", lines[1])
}

func TestRun_AllFailuresStillWritesHeader(t *testing.T) {
	survey, err := config.ParseSurvey([]byte(surveyYAML))
	require.NoError(t, err)

	client := &stubClient{responses: map[string]string{}}
	p := New(client, nil, nil, extractor.Options{MaxAttempts: 1}, 2, testLogger())

	input := writeTemp(t, "export.csv", exportCSV)
	out := filepath.Join(t.TempDir(), "out.csv")

	summary, err := p.Run(context.Background(), survey, input, out)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 0, summary.Succeeded)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "chat_id,email,satisfaction\n", string(data))
}

func TestRun_UnknownPlaceholderIsFatal(t *testing.T) {
	bad := strings.Replace(surveyYAML, "{corpus}", "{transcript}", 1)
	survey, err := config.ParseSurvey([]byte(bad))
	require.NoError(t, err)

	p := New(&stubClient{}, nil, nil, extractor.Options{MaxAttempts: 1}, 2, testLogger())
	input := writeTemp(t, "export.csv", exportCSV)

	_, err = p.Run(context.Background(), survey, input, "")
	var te *prompt.TemplateError
	require.ErrorAs(t, err, &te)
}

func TestRun_MissingInputIsFatal(t *testing.T) {
	survey, err := config.ParseSurvey([]byte(surveyYAML))
	require.NoError(t, err)

	p := New(&stubClient{}, nil, nil, extractor.Options{MaxAttempts: 1}, 2, testLogger())
	_, err = p.Run(context.Background(), survey, filepath.Join(t.TempDir(), "missing.csv"), "")
	require.Error(t, err)
}

func TestRun_NoOutputPathSkipsCSV(t *testing.T) {
	survey, err := config.ParseSurvey([]byte(surveyYAML))
	require.NoError(t, err)

	client := &stubClient{responses: map[string]string{
		"very happy":   `{"satisfaction": 4}`,
		"it was vague": `{"satisfaction": 2}`,
		"no comment":   `{"satisfaction": 3}`,
	}}
	p := New(client, nil, nil, extractor.Options{MaxAttempts: 1, Timeout: time.Second}, 3, testLogger())

	input := writeTemp(t, "export.csv", exportCSV)
	summary, err := p.Run(context.Background(), survey, input, "")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
}
