// Package data is the value model templates are merged with: ordered
// objects with case-insensitive field lookup, arrays, and scalars (nil,
// bool, int64, float64, decimal.Decimal, string, time.Time).
package data

import (
	"golang.org/x/text/cases"
)

// Names of the synthetic fields every loop item carries.
const (
	IndexField   = "_index"
	LastField    = "_last"
	CurrentField = "."
)

// Field is one named value of an Object.
type Field struct {
	Name  string
	Value any
}

// Object is an ordered set of named values.
type Object struct {
	fields []Field
	exact  map[string]int
	folded map[string]int
}

// Array is an ordered list of values.
type Array []any

// NewObject builds an object from fields; later duplicates replace earlier
// ones.
func NewObject(fields ...Field) *Object {
	o := &Object{exact: make(map[string]int, len(fields)), folded: make(map[string]int, len(fields))}
	for _, f := range fields {
		o.Set(f.Name, f.Value)
	}
	return o
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Set adds a field or replaces the value of an existing one with the same
// name, compared case-insensitively.
func (o *Object) Set(name string, value any) {
	if i, ok := o.exact[name]; ok {
		o.fields[i].Value = value
		return
	}
	key := fold(name)
	if i, ok := o.folded[key]; ok {
		o.fields[i].Value = value
		return
	}
	o.fields = append(o.fields, Field{Name: name, Value: value})
	o.exact[name] = len(o.fields) - 1
	o.folded[key] = len(o.fields) - 1
}

// Get looks a field up by name, preferring an exact match over a
// case-insensitive one.
func (o *Object) Get(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if i, ok := o.exact[name]; ok {
		return o.fields[i].Value, true
	}
	if i, ok := o.folded[fold(name)]; ok {
		return o.fields[i].Value, true
	}
	return nil, false
}

// Fields returns the fields in insertion order.
func (o *Object) Fields() []Field {
	if o == nil {
		return nil
	}
	return o.fields
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.fields)
}

// With returns a shallow copy of o with the given fields set. o is not
// modified.
func (o *Object) With(fields ...Field) *Object {
	cp := NewObject(o.Fields()...)
	for _, f := range fields {
		cp.Set(f.Name, f.Value)
	}
	return cp
}

// Lookup resolves name against scope, which must be an *Object.
func Lookup(scope any, name string) (any, bool) {
	obj, ok := scope.(*Object)
	if !ok {
		return nil, false
	}
	return obj.Get(name)
}

// Item wraps one loop element with its 1-based index and last-item flag.
// Non-object elements are exposed under the "." field.
func Item(v any, index int, last bool) *Object {
	extra := []Field{{Name: IndexField, Value: int64(index + 1)}, {Name: LastField, Value: last}}
	if obj, ok := v.(*Object); ok {
		return obj.With(extra...)
	}
	return NewObject(append([]Field{{Name: CurrentField, Value: v}}, extra...)...)
}
