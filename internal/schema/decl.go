package schema

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// ParseYAML builds a declaration tree from the `schema` node of a survey
// config. The yaml.Node walk keeps field order, which a map decode would
// throw away; order drives both the prompt example and CSV headers.
func ParseYAML(node *yaml.Node) (*Decl, error) {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	return parseMapping(node, "")
}

func parseMapping(node *yaml.Node, path string) (*Decl, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, schemaErrorf("declaration at %q must be a mapping", orRoot(path))
	}
	fields := make([]Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		name := key.Value
		decl, err := parseValue(val, joinPath(path, name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Type: decl})
	}
	return NewNested(fields), nil
}

func parseValue(node *yaml.Node, path string) (*Decl, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		decl, err := ParseTypeString(node.Value)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				return nil, schemaErrorf("field %q: %s", path, se.Msg)
			}
			return nil, err
		}
		return decl, nil
	case yaml.MappingNode:
		return parseMapping(node, path)
	default:
		return nil, schemaErrorf("field %q: expected a type string or nested mapping", path)
	}
}

func orRoot(path string) string {
	if path == "" {
		return "schema"
	}
	return path
}
