package schema

import (
	"strconv"
	"strings"
)

// Example returns the canonical example instance: every field holds a short
// placeholder consistent with its declared type. Embedded in prompts so the
// model mirrors the expected output shape.
func (c *Contract) Example() map[string]any {
	return exampleObject(c.root)
}

func exampleObject(d *Decl) map[string]any {
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = exampleValue(f.Type)
	}
	return out
}

func exampleValue(d *Decl) any {
	if d.Nested {
		return exampleObject(d)
	}
	switch d.Prim {
	case Int:
		return 1234
	case Bool:
		return true
	case Float:
		return 1.0
	case Timestamp:
		return "2024-05-05T12:00:00Z"
	case Email:
		return "user@example.com"
	case Rating:
		return 4
	default:
		if d.Optional {
			return "string or null"
		}
		return "string"
	}
}

// ExampleJSON renders the example with fields in declaration order. A plain
// json.Marshal of a map would shuffle keys between runs and make prompts
// non-deterministic.
func (c *Contract) ExampleJSON() string {
	var b strings.Builder
	writeExampleObject(&b, c.root, 0)
	return b.String()
}

func writeExampleObject(b *strings.Builder, d *Decl, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString("{\n")
	for i, f := range d.Fields {
		b.WriteString(indent + "  " + strconv.Quote(f.Name) + ": ")
		writeExampleValue(b, f.Type, depth+1)
		if i < len(d.Fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
}

func writeExampleValue(b *strings.Builder, d *Decl, depth int) {
	if d.Nested {
		writeExampleObject(b, d, depth)
		return
	}
	switch v := exampleValue(d).(type) {
	case string:
		b.WriteString(strconv.Quote(v))
	case int:
		b.WriteString(strconv.Itoa(v))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'f', 1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	}
}
