package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplate_Merge(t *testing.T) {
	inner := &Template{Name: "inner"}
	inner.Add(Field("7", "inner-only"))
	inner.Add(Field("41", "inner"))

	outer := &Template{Name: "outer", Fields: []FieldSpec{
		Field("11", "outer-only"),
		Field("41", "outer"),
	}}

	inner.Merge(outer)
	inner.Merge(nil)

	assert.Len(t, inner.Fields, 3)
	assert.True(t, inner.Has("7"))
	assert.True(t, inner.Has("11"))
	assert.True(t, inner.Has("41"))
	assert.Equal(t, "inner", inner.Fields[1].Content)
	assert.Equal(t, "11", inner.Fields[2].Path)
}
