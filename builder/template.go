package builder

import "strings"

// Template is a reusable list of fields shared between samplers, such as
// dates, STANs or terminal ids.
type Template struct {
	Name   string      `yaml:"name,omitempty" json:"name,omitempty"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// Add appends a field.
func (t *Template) Add(f FieldSpec) {
	t.Fields = append(t.Fields, f)
}

// Has reports whether a field with path is defined.
func (t *Template) Has(path string) bool {
	path = strings.TrimSpace(path)
	for _, f := range t.Fields {
		if strings.TrimSpace(f.Path) == path {
			return true
		}
	}
	return false
}

// Merge appends the fields of other whose path t does not define yet, so
// the receiver's own fields take precedence.
func (t *Template) Merge(other *Template) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		if !t.Has(f.Path) {
			t.Add(f)
		}
	}
}
