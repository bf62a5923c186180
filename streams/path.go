package streams

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// PathSegment is one step of a Path: an object key or an array index.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path addresses a value inside a JSON document.
// It covers the JSONPath subset the pipeline needs: the root, object keys, and array indexes.
type Path struct {
	segments []PathSegment
}

// RootPath addresses the whole document.
func RootPath() Path {
	return Path{}
}

// KeyPath addresses nested object keys below the root.
func KeyPath(keys ...string) Path {
	p := RootPath()
	for _, key := range keys {
		p = p.Key(key)
	}

	return p
}

// Key returns a copy of the path extended by an object key.
func (p Path) Key(key string) Path {
	return p.with(PathSegment{Key: key})
}

// Index returns a copy of the path extended by an array index.
func (p Path) Index(index int) Path {
	return p.with(PathSegment{Index: index, IsIndex: true})
}

func (p Path) with(segment PathSegment) Path {
	segments := make([]PathSegment, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)

	return Path{segments: append(segments, segment)}
}

// IsRoot reports whether the path addresses the whole document.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []PathSegment {
	segments := make([]PathSegment, len(p.segments))
	copy(segments, p.segments)

	return segments
}

// Parent returns the path without its last segment; the root has no parent.
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() {
		return p, false
	}

	return Path{segments: p.Segments()[:len(p.segments)-1]}, true
}

// Last returns the final segment; the root has none.
func (p Path) Last() (PathSegment, bool) {
	if p.IsRoot() {
		return PathSegment{}, false
	}

	return p.segments[len(p.segments)-1], true
}

// Elements renders the segments as plain strings, the shape of a PostgreSQL text[] path.
func (p Path) Elements() []string {
	elements := make([]string, 0, len(p.segments))
	for _, segment := range p.segments {
		if segment.IsIndex {
			elements = append(elements, strconv.Itoa(segment.Index))
			continue
		}

		elements = append(elements, segment.Key)
	}

	return elements
}

// String renders the canonical JSONPath: identifiers in dot notation, other keys quoted in brackets.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")

	for _, segment := range p.segments {
		switch {
		case segment.IsIndex:
			b.WriteString("[" + strconv.Itoa(segment.Index) + "]")
		case isIdentifier(segment.Key):
			b.WriteString("." + segment.Key)
		default:
			b.WriteString(`["` + strings.ReplaceAll(segment.Key, `"`, `\"`) + `"]`)
		}
	}

	return b.String()
}

// ParsePath parses "$", "$.name", "$['name']", `$["name"]`, and "$[n]" steps.
// A lone "." is accepted as the legacy spelling of the root, a leading "." as the legacy spelling of "$.".
func ParsePath(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "." || s == "$":
		return RootPath(), nil
	case strings.HasPrefix(s, "."):
		s = "$" + s
	case !strings.HasPrefix(s, "$"):
		return Path{}, invalidPath(raw, "must start with $")
	}

	if strings.HasSuffix(s, ".") {
		return Path{}, invalidPath(raw, "empty key")
	}

	expr, err := jp.ParseString(s)
	if err != nil {
		return Path{}, invalidPath(raw, err.Error())
	}

	p := RootPath()
	for _, frag := range expr {
		switch f := frag.(type) {
		case jp.Root, jp.Bracket:
		case jp.Child:
			if f == "" {
				return Path{}, invalidPath(raw, "empty key")
			}

			p = p.Key(string(f))
		case jp.Nth:
			if f < 0 {
				return Path{}, invalidPath(raw, fmt.Sprintf("invalid array index %d", int(f)))
			}

			p = p.Index(int(f))
		default:
			return Path{}, invalidPath(raw, fmt.Sprintf("unsupported step %q", jp.Expr{frag}.String()))
		}
	}

	return p, nil
}

func invalidPath(raw, reason string) error {
	return errors.Join(ErrInvalidPath, fmt.Errorf("%q: %s", raw, reason))
}

func isIdentifier(key string) bool {
	if key == "" {
		return false
	}

	for i, r := range key {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}

	return true
}
