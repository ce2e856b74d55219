package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkadit/isoperf/iso8583"
)

// FieldSpec is one line of a message definition: a dotted path, an optional
// TLV tag and the textual content. Binary content is written as hex.
type FieldSpec struct {
	Path    string `yaml:"path" json:"path"`
	Tag     string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Content string `yaml:"content" json:"content"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Field is shorthand for an untagged FieldSpec.
func Field(path, content string) FieldSpec {
	return FieldSpec{Path: path, Content: content}
}

// TaggedField is shorthand for a TLV subfield FieldSpec.
func TaggedField(path, tag, content string) FieldSpec {
	return FieldSpec{Path: path, Tag: tag, Content: content}
}

func (s FieldSpec) String() string {
	if s.Tag != "" {
		return fmt.Sprintf("%s[%s]=%s", s.Path, s.Tag, s.Content)
	}
	return s.Path + "=" + s.Content
}

// normalized returns the trimmed path and tag.
func (s FieldSpec) normalized() (string, string) {
	return strings.TrimSpace(s.Path), strings.ToUpper(strings.TrimSpace(s.Tag))
}

// check validates the spec and reports whether it should be skipped.
func (s FieldSpec) check() (skip bool, err error) {
	path, tag := s.normalized()
	if path == "" {
		return true, nil
	}
	segs, err := iso8583.ParsePath(path)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", s.Path, err)
	}
	if tag != "" && len(segs) < 2 {
		return false, fmt.Errorf("field %q: tag %s needs a subfield path such as %s.1", s.Path, tag, path)
	}
	return false, nil
}

var tagSeparators = regexp.MustCompile(`[,;:. ]+`)

// ParseBinaryTags splits a tag list separated by commas, semicolons, colons,
// dots or spaces into upper-case tag codes.
func ParseBinaryTags(list string) []string {
	var tags []string
	for _, t := range tagSeparators.Split(list, -1) {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
