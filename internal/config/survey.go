package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chatsift/chatsift/internal/project"
	"github.com/chatsift/chatsift/internal/schema"
)

// Survey is one declarative extraction configuration: what to extract
// (schema), how to ask (prompt template), and how to flatten the result
// (csv mapping). Immutable once loaded.
type Survey struct {
	Name     string
	Schema   *schema.Decl
	Template string
	Mapping  project.Mapping
}

// LoadSurvey reads a survey YAML file. The yaml.Node walk keeps `schema`
// field order and `csv_mapping` column order, which decoding into maps
// would destroy.
func LoadSurvey(path string) (*Survey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read survey config: %w", err)
	}
	return ParseSurvey(data)
}

// ParseSurvey parses survey YAML bytes.
func ParseSurvey(data []byte) (*Survey, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse survey config: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("survey config must be a YAML mapping")
	}
	doc := root.Content[0]

	s := &Survey{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		switch key.Value {
		case "model_name":
			s.Name = val.Value
		case "schema":
			decl, err := schema.ParseYAML(val)
			if err != nil {
				return nil, err
			}
			s.Schema = decl
		case "prompt_template":
			s.Template = val.Value
		case "csv_mapping":
			mapping, err := parseMapping(val)
			if err != nil {
				return nil, err
			}
			s.Mapping = mapping
		}
	}

	if s.Name == "" {
		s.Name = "survey"
	}
	if s.Schema == nil {
		return nil, fmt.Errorf("survey config is missing `schema`")
	}
	if s.Template == "" {
		return nil, fmt.Errorf("survey config is missing `prompt_template`")
	}
	return s, nil
}

func parseMapping(node *yaml.Node) (project.Mapping, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("csv_mapping must be a mapping of column to dot path")
	}
	mapping := make(project.Mapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return nil, fmt.Errorf("csv_mapping %q must map to a dot path", key.Value)
		}
		mapping = append(mapping, project.Column{Name: key.Value, Path: val.Value})
	}
	return mapping, nil
}
