package schema

import "fmt"

// Field is a named member of an Object.
type Field struct {
	Name   string
	Schema Schema
}

// F is shorthand for Field{name, s}.
func F(name string, s Schema) Field { return Field{Name: name, Schema: s} }

// ObjectSchema validates a map against an ordered list of fields.
type ObjectSchema struct {
	fields []Field
}

// Object builds an ObjectSchema. Field names must be unique and non-empty;
// violating that is a programming error and panics.
func Object(fields ...Field) *ObjectSchema {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Schema == nil {
			panic("schema: object field needs a name and a schema")
		}
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate object field %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return &ObjectSchema{fields: cp}
}

// Fields returns a copy of the declared fields in declaration order.
func (o *ObjectSchema) Fields() []Field {
	cp := make([]Field, len(o.fields))
	copy(cp, o.fields)
	return cp
}

// Parse accepts map[string]any (or map[any]any with string keys).
func (o *ObjectSchema) Parse(v any) (any, error) {
	m, ok := asStringMap(v)
	if !ok {
		return nil, typeMismatch("object", v)
	}
	return o.ParseMap(m)
}

// ParseMap validates m and returns a new map holding only declared fields.
// Absent optional fields are left out of the result.
func (o *ObjectSchema) ParseMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(o.fields))
	var issues []Issue

	for _, f := range o.fields {
		raw, present := m[f.Name]
		if !present {
			if !IsOptional(f.Schema) {
				issues = append(issues, Issue{Path: f.Name, Code: CodeRequired, Message: "required"})
			}
			continue
		}
		val, err := f.Schema.Parse(raw)
		if err != nil {
			issues = append(issues, nest(f.Name, err, CodeInvalidType)...)
			continue
		}
		out[f.Name] = val
	}

	if len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	return out, nil
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
