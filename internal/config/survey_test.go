package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chatsift/chatsift/internal/schema"
)

const surveyYAML = `model_name: StudentSurvey
schema:
  chat_id: int
  user_email: email
  satisfaction_rating: rating | None
  education:
    institution: str | None
    graduation_year: int | None
prompt_template: |
  Chat id: {chat_id}
  User email: {user_email}

  {corpus}

  Output only JSON matching:
  {_SCHEMA_EXAMPLE}
csv_mapping:
  chat_id: chat_id
  user_email: user_email
  satisfaction: satisfaction_rating
  institution: education.institution
`

func TestParseSurvey(t *testing.T) {
	s, err := ParseSurvey([]byte(surveyYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "StudentSurvey" {
		t.Errorf("expected name StudentSurvey, got %q", s.Name)
	}
	if s.Schema == nil || len(s.Schema.Fields) != 4 {
		t.Fatalf("expected 4 schema fields, got %+v", s.Schema)
	}
	if s.Schema.Fields[0].Name != "chat_id" || s.Schema.Fields[3].Name != "education" {
		t.Errorf("schema field order not preserved: %v", s.Schema.Fields)
	}
	if !s.Schema.Fields[3].Type.Nested {
		t.Errorf("education should be nested")
	}
	if len(s.Mapping) != 4 {
		t.Fatalf("expected 4 mapping columns, got %d", len(s.Mapping))
	}
	want := []string{"chat_id", "user_email", "satisfaction", "institution"}
	for i, col := range s.Mapping {
		if col.Name != want[i] {
			t.Errorf("mapping order: expected %s at %d, got %s", want[i], i, col.Name)
		}
	}
	if s.Mapping[3].Path != "education.institution" {
		t.Errorf("unexpected path %q", s.Mapping[3].Path)
	}
}

func TestParseSurvey_MissingSchema(t *testing.T) {
	_, err := ParseSurvey([]byte("model_name: X\nprompt_template: hi {corpus}"))
	if err == nil {
		t.Fatal("expected error for missing schema")
	}
}

func TestParseSurvey_MissingTemplate(t *testing.T) {
	_, err := ParseSurvey([]byte("schema:\n  a: int"))
	if err == nil {
		t.Fatal("expected error for missing prompt_template")
	}
}

func TestParseSurvey_BadTypeTagIsSchemaError(t *testing.T) {
	_, err := ParseSurvey([]byte("schema:\n  a: banana\nprompt_template: '{corpus}'"))
	var se *schema.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestParseSurvey_NotAMapping(t *testing.T) {
	_, err := ParseSurvey([]byte("- just\n- a\n- list"))
	if err == nil {
		t.Fatal("expected error for non-mapping document")
	}
}

func TestLoadSurvey_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.yml")
	if err := os.WriteFile(path, []byte(surveyYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSurvey(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "StudentSurvey" {
		t.Errorf("unexpected name %q", s.Name)
	}

	if _, err := LoadSurvey(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
