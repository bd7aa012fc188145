package schema

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Primitive is a leaf type tag in a field declaration.
type Primitive int

const (
	Int Primitive = iota
	String
	Bool
	Float
	Timestamp
	Email
	Rating
)

func (p Primitive) String() string {
	switch p {
	case Int:
		return "int"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Float:
		return "float"
	case Timestamp:
		return "timestamp"
	case Email:
		return "email"
	case Rating:
		return "rating"
	}
	return "unknown"
}

// primitiveTags maps the type tags accepted in survey configs to primitives.
// The aliases keep existing survey files loadable unchanged.
var primitiveTags = map[string]Primitive{
	"int":       Int,
	"string":    String,
	"str":       String,
	"bool":      Bool,
	"float":     Float,
	"timestamp": Timestamp,
	"datetime":  Timestamp,
	"email":     Email,
	"EmailStr":  Email,
	"rating":    Rating,
	"Likert":    Rating,
}

// Decl is a parsed field-type declaration: either a primitive leaf or a
// nested object with its own ordered fields.
type Decl struct {
	Nested   bool
	Prim     Primitive
	Optional bool
	Fields   []Field
}

// Field is one named entry of a nested declaration, in declaration order.
type Field struct {
	Name string
	Type *Decl
}

// SchemaError reports a malformed declaration. It is fatal: nothing useful
// can be extracted when the contract itself cannot be built.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return "schema: " + e.Msg }

func schemaErrorf(format string, args ...any) error {
	return &SchemaError{Msg: fmt.Sprintf(format, args...)}
}

// ParseTypeString parses a leaf declaration such as "int" or "str | None".
func ParseTypeString(s string) (*Decl, error) {
	raw := strings.TrimSpace(s)
	optional := false
	if i := strings.Index(raw, "|"); i >= 0 {
		tail := strings.TrimSpace(raw[i+1:])
		if tail != "None" {
			return nil, schemaErrorf("malformed optional marker in %q (want \"<type> | None\")", s)
		}
		optional = true
		raw = strings.TrimSpace(raw[:i])
	}
	prim, ok := primitiveTags[raw]
	if !ok {
		return nil, schemaErrorf("unknown type tag %q", raw)
	}
	return &Decl{Prim: prim, Optional: optional}, nil
}

// NewNested builds a nested declaration from ordered fields. The object as a
// whole is optional when every one of its leaves is optional, matching how
// survey configs declare soft sub-sections.
func NewNested(fields []Field) *Decl {
	d := &Decl{Nested: true, Fields: fields, Optional: true}
	for _, f := range fields {
		if !f.Type.Optional {
			d.Optional = false
			break
		}
	}
	return d
}

// Contract is a compiled record-type contract: it validates candidate values
// and renders the canonical example embedded in prompts. Contracts are
// immutable and safe for concurrent use.
type Contract struct {
	root *Decl
}

// Compile turns a declaration into a contract. The root must be a nested
// object with at least one field.
func Compile(root *Decl) (*Contract, error) {
	if root == nil || !root.Nested {
		return nil, schemaErrorf("schema root must be a field mapping")
	}
	if len(root.Fields) == 0 {
		return nil, schemaErrorf("schema declares no fields")
	}
	if err := checkDecl(root, ""); err != nil {
		return nil, err
	}
	return &Contract{root: root}, nil
}

func checkDecl(d *Decl, path string) error {
	if !d.Nested {
		return nil
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return schemaErrorf("empty field name under %q", path)
		}
		if seen[f.Name] {
			return schemaErrorf("duplicate field %q under %q", f.Name, path)
		}
		seen[f.Name] = true
		if f.Type == nil {
			return schemaErrorf("field %q has no type", joinPath(path, f.Name))
		}
		if err := checkDecl(f.Type, joinPath(path, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

// HasField reports whether the contract declares a top-level field.
func (c *Contract) HasField(name string) bool {
	for _, f := range c.root.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Fields returns the top-level field names in declaration order.
func (c *Contract) Fields() []string {
	names := make([]string, len(c.root.Fields))
	for i, f := range c.root.Fields {
		names[i] = f.Name
	}
	return names
}

// Record is a validated instance: every declared key present, values in
// their native semantic types, optional absences as nil.
type Record map[string]any

// FieldError pins a validation failure to a dot path into the record.
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) String() string { return e.Path + ": " + e.Message }

// ValidationError aggregates every field that failed, so an operator can
// see the full shape mismatch from a single run.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation: " + strings.Join(parts, "; ")
}

// Validate checks a candidate value against the contract and returns the
// coerced record. Keys the contract does not declare are dropped. All field
// failures are collected before returning.
func (c *Contract) Validate(candidate any) (Record, error) {
	m, ok := asObject(candidate)
	if !ok {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Message: "candidate is not an object"}}}
	}
	var errs []FieldError
	rec := validateObject(c.root, m, "", &errs)
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return rec, nil
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return map[string]any(t), true
	}
	return nil, false
}

func validateObject(d *Decl, m map[string]any, path string, errs *[]FieldError) Record {
	rec := make(Record, len(d.Fields))
	for _, f := range d.Fields {
		p := joinPath(path, f.Name)
		val, present := m[f.Name]
		if !present || val == nil {
			if f.Type.Optional {
				rec[f.Name] = nil
				continue
			}
			msg := "required field is missing"
			if present {
				msg = "required field is null"
			}
			*errs = append(*errs, FieldError{Path: p, Message: msg})
			continue
		}
		if f.Type.Nested {
			sub, ok := asObject(val)
			if !ok {
				*errs = append(*errs, FieldError{Path: p, Message: "expected a nested object"})
				continue
			}
			rec[f.Name] = validateObject(f.Type, sub, p, errs)
			continue
		}
		coerced, err := coerce(f.Type, val)
		if err != nil {
			*errs = append(*errs, FieldError{Path: p, Message: err.Error()})
			continue
		}
		rec[f.Name] = coerced
	}
	return rec
}

// coerce converts a candidate leaf value to the declared semantic type.
// Only well-defined paths are taken: a stringified integer becomes an int,
// a descriptive string never becomes a rating it does not name.
func coerce(d *Decl, v any) (any, error) {
	switch d.Prim {
	case Int:
		return coerceInt(v)
	case Rating:
		return coerceRating(d, v)
	case Float:
		return coerceFloat(v)
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if strings.TrimSpace(s) == "" {
			if d.Optional {
				return nil, nil
			}
			return nil, fmt.Errorf("required string is blank")
		}
		return s, nil
	case Timestamp:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			ts, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q", t)
			}
			return ts, nil
		}
		return nil, fmt.Errorf("expected timestamp, got %T", v)
	case Email:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected email, got %T", v)
		}
		if strings.TrimSpace(s) == "" {
			if d.Optional {
				return nil, nil
			}
			return nil, fmt.Errorf("required email is blank")
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return nil, fmt.Errorf("invalid email %q", s)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported type %s", d.Prim)
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// likertPhrases maps survey answers models occasionally echo verbatim to
// scale points. English and Arabic, matching the phrasing seen in exports.
var likertPhrases = map[string]int64{
	"not satisfied at all": 1,
	"very_dissatisfied":    1,
	"very_poor":            1,
	"very_bad":             1,
	"somewhat dissatisfied": 2,
	"disagree":              2,
	"weak":                  2,
	"poor":                  2,
	"neutral":               3,
	"fair":                  3,
	"satisfied":             4,
	"agree":                 4,
	"very satisfied":        5,
	"very_satisfied":        5,
	"very_good":             5,
	"غير راضٍ على الإطلاق":  1,
	"غير راض":               2,
	"ضعيف":                  2,
	"محايد":                 3,
	"راضٍ":                  4,
	"نوعا ما نعم":           4,
	"راضٍ جدًا":             5,
}

func coerceRating(d *Decl, v any) (any, error) {
	if s, ok := v.(string); ok {
		if n, found := likertPhrases[strings.ToLower(strings.TrimSpace(s))]; found {
			return n, nil
		}
	}
	n, err := coerceInt(v)
	if err != nil {
		return nil, fmt.Errorf("rating must be an integer 1-5: %v", err)
	}
	if n < 1 || n > 5 {
		return nil, fmt.Errorf("rating %d out of range 1-5", n)
	}
	return n, nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
