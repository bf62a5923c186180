package memengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// DocumentExists reports whether the document is present.
func (s *Store) DocumentExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.documents[key]

	return ok, nil
}

// Document returns a copy of the document.
func (s *Store) Document(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[key]
	if !ok {
		return nil, false, nil
	}

	return bytes.Clone(doc), true, nil
}

// SetAt writes the value at the path.
func (s *Store) SetAt(_ context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !jsoniter.ConfigFastest.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if path.IsRoot() {
		s.documents[key] = bytes.Clone(valueJSON)
		return nil
	}

	doc, ok := s.documents[key]
	if !ok {
		return errors.Join(streams.ErrDocumentNotFound, fmt.Errorf("key %q", key))
	}

	if err := requireParent(doc, path); err != nil {
		return err
	}

	updated, err := sjson.SetRawBytes(bytes.Clone(doc), gjsonPath(path), valueJSON)
	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	s.documents[key] = updated

	return nil
}

// ArrAppend appends the value to the array at the path.
func (s *Store) ArrAppend(_ context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !jsoniter.ConfigFastest.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[key]
	if !ok {
		return errors.Join(streams.ErrDocumentNotFound, fmt.Errorf("key %q", key))
	}

	target := gjson.ParseBytes(doc)
	if !path.IsRoot() {
		target = gjson.GetBytes(doc, gjsonPath(path))
	}

	switch {
	case !target.Exists():
		return errors.Join(streams.ErrPathNotFound, fmt.Errorf("%s in %q", path, key))
	case !target.IsArray():
		return errors.Join(streams.ErrPathNotArray, fmt.Errorf("%s in %q", path, key))
	}

	appended := appendRaw(target, valueJSON)
	if path.IsRoot() {
		s.documents[key] = appended
		return nil
	}

	updated, err := sjson.SetRawBytes(bytes.Clone(doc), gjsonPath(path), appended)
	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	s.documents[key] = updated

	return nil
}

// DeleteAt removes the value at the path; missing documents and paths are ignored.
func (s *Store) DeleteAt(_ context.Context, key string, path streams.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[key]
	if !ok {
		return nil
	}

	if path.IsRoot() {
		delete(s.documents, key)
		return nil
	}

	if !gjson.GetBytes(doc, gjsonPath(path)).Exists() {
		return nil
	}

	updated, err := sjson.DeleteBytes(bytes.Clone(doc), gjsonPath(path))
	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	s.documents[key] = updated

	return nil
}

// requireParent mirrors RedisJSON: only the last path step may be missing, and array indexes must be in range.
func requireParent(doc []byte, path streams.Path) error {
	parentPath, _ := path.Parent()
	last, _ := path.Last()

	parent := gjson.ParseBytes(doc)
	if !parentPath.IsRoot() {
		parent = gjson.GetBytes(doc, gjsonPath(parentPath))
	}

	switch {
	case last.IsIndex && parent.IsArray() && last.Index < len(parent.Array()):
		return nil
	case !last.IsIndex && parent.IsObject():
		return nil
	}

	return errors.Join(streams.ErrPathNotFound, fmt.Errorf("%s", path))
}

func appendRaw(array gjson.Result, valueJSON []byte) []byte {
	raw := strings.TrimSpace(array.Raw)
	if len(array.Array()) == 0 {
		return []byte("[" + string(valueJSON) + "]")
	}

	return []byte(raw[:strings.LastIndexByte(raw, ']')] + "," + string(valueJSON) + "]")
}

var gjsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// gjsonPath converts a Path into gjson and sjson dot syntax.
func gjsonPath(path streams.Path) string {
	parts := make([]string, 0, len(path.Segments()))
	for _, segment := range path.Segments() {
		if segment.IsIndex {
			parts = append(parts, fmt.Sprintf("%d", segment.Index))
			continue
		}

		parts = append(parts, gjsonEscaper.Replace(segment.Key))
	}

	return strings.Join(parts, ".")
}
