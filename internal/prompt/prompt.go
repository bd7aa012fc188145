// Package prompt renders survey prompt templates. Placeholders use the
// {name} form; {{ and }} escape literal braces. Substitution is literal
// text only — a template can never execute anything.
package prompt

import (
	"fmt"
	"strings"
)

// SchemaExampleSlot is reserved: it is always filled from the compiled
// contract's example rendering, never supplied by the caller.
const SchemaExampleSlot = "_SCHEMA_EXAMPLE"

// TemplateError reports a malformed template or a render with a missing
// variable. Fatal at config load: every item would fail the same way.
type TemplateError struct {
	Msg string
}

func (e *TemplateError) Error() string { return "template: " + e.Msg }

func templateErrorf(format string, args ...any) error {
	return &TemplateError{Msg: fmt.Sprintf(format, args...)}
}

// Template is a parsed prompt template: literal chunks interleaved with
// named slots. Immutable and safe for concurrent use.
type Template struct {
	parts []part
	slots []string
}

type part struct {
	text string
	slot bool
}

// Parse tokenizes the template and rejects slots outside the allowed set
// up front, so a typo in a survey config fails before any LLM call.
// SchemaExampleSlot is always allowed.
func Parse(tpl string, allowed []string) (*Template, error) {
	ok := make(map[string]bool, len(allowed)+1)
	for _, a := range allowed {
		ok[a] = true
	}
	ok[SchemaExampleSlot] = true

	t := &Template{}
	var lit strings.Builder
	for i := 0; i < len(tpl); {
		switch {
		case strings.HasPrefix(tpl[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(tpl[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case tpl[i] == '}':
			return nil, templateErrorf("unmatched '}' at offset %d", i)
		case tpl[i] == '{':
			end := strings.IndexByte(tpl[i:], '}')
			if end < 0 {
				return nil, templateErrorf("unclosed placeholder at offset %d", i)
			}
			name := tpl[i+1 : i+end]
			if name == "" || strings.ContainsAny(name, "{ \t\n") {
				return nil, templateErrorf("malformed placeholder %q", tpl[i:i+end+1])
			}
			if !ok[name] {
				return nil, templateErrorf("unknown placeholder {%s}", name)
			}
			if lit.Len() > 0 {
				t.parts = append(t.parts, part{text: lit.String()})
				lit.Reset()
			}
			t.parts = append(t.parts, part{text: name, slot: true})
			t.slots = append(t.slots, name)
			i += end + 1
		default:
			lit.WriteByte(tpl[i])
			i++
		}
	}
	if lit.Len() > 0 {
		t.parts = append(t.parts, part{text: lit.String()})
	}
	return t, nil
}

// Slots returns the placeholder names in order of first appearance.
func (t *Template) Slots() []string {
	seen := make(map[string]bool, len(t.slots))
	out := make([]string, 0, len(t.slots))
	for _, s := range t.slots {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Render substitutes every slot from vars. A slot without a value is a
// TemplateError; the caller supplies SchemaExampleSlot like any other key.
func (t *Template) Render(vars map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if !p.slot {
			b.WriteString(p.text)
			continue
		}
		v, ok := vars[p.text]
		if !ok {
			return "", templateErrorf("no value for placeholder {%s}", p.text)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
