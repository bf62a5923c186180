package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

var json = jsoniter.ConfigFastest

const (
	jsonTypeArray  = "array"
	jsonTypeObject = "object"
)

// DocumentExists reports whether the document row is present.
func (s Store) DocumentExists(ctx context.Context, key string) (bool, error) {
	query, err := toSQL(
		builder().
			From(s.documentsTableName).
			Select(goqu.COUNT(goqu.Star())).
			Where(goqu.C(colKey).Eq(key)),
	)
	if err != nil {
		return false, err
	}

	var count int64
	if _, err = s.queryRow(ctx, operationExists, query, &count); err != nil {
		return false, errors.Join(streams.ErrDocumentFailed, err)
	}

	return count > 0, nil
}

// Document returns the document body as JSON text.
func (s Store) Document(ctx context.Context, key string) ([]byte, bool, error) {
	query, err := toSQL(
		builder().
			From(s.documentsTableName).
			Select(goqu.Cast(goqu.C(colBody), "TEXT")).
			Where(goqu.C(colKey).Eq(key)),
	)
	if err != nil {
		return nil, false, err
	}

	var body string
	found, err := s.queryRow(ctx, operationDocument, query, &body)
	if err != nil {
		return nil, false, errors.Join(streams.ErrDocumentFailed, err)
	}

	if !found {
		return nil, false, nil
	}

	return []byte(body), true, nil
}

// SetAt upserts the whole document for the root path and updates one value otherwise.
func (s Store) SetAt(ctx context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !json.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	query, err := s.buildSetAtQuery(key, path, valueJSON)
	if err != nil {
		return err
	}

	affected, err := s.exec(ctx, operationSetAt, query)
	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	if affected > 0 {
		return nil
	}

	return s.explainMiss(ctx, key, path, false)
}

// ArrAppend appends one element to the array at the path.
func (s Store) ArrAppend(ctx context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !json.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	query, err := s.buildArrAppendQuery(key, path, valueJSON)
	if err != nil {
		return err
	}

	affected, err := s.exec(ctx, operationArrAppend, query)
	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	if affected > 0 {
		return nil
	}

	return s.explainMiss(ctx, key, path, true)
}

// DeleteAt deletes the row for the root path and removes one value otherwise. Missing targets are ignored.
func (s Store) DeleteAt(ctx context.Context, key string, path streams.Path) error {
	query, err := s.buildDeleteAtQuery(key, path)
	if err != nil {
		return err
	}

	if _, err = s.exec(ctx, operationDeleteAt, query); err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	return nil
}

// explainMiss turns an update that matched no row into the error RedisJSON would return.
func (s Store) explainMiss(ctx context.Context, key string, path streams.Path, wantArray bool) error {
	query, err := toSQL(
		builder().
			From(s.documentsTableName).
			Select(goqu.L("COALESCE(jsonb_typeof(? #> "+castTextArray+"), '')", goqu.C(colBody), textArray(path))).
			Where(goqu.C(colKey).Eq(key)),
	)
	if err != nil {
		return err
	}

	var jsonType string
	found, err := s.queryRow(ctx, operationExplain, query, &jsonType)
	switch {
	case err != nil:
		return errors.Join(streams.ErrDocumentFailed, err)
	case !found:
		return errors.Join(streams.ErrDocumentNotFound, fmt.Errorf("key %q", key))
	case wantArray && jsonType != "" && jsonType != jsonTypeArray:
		return errors.Join(streams.ErrPathNotArray, fmt.Errorf("%s is %s", path, jsonType))
	default:
		return errors.Join(streams.ErrPathNotFound, fmt.Errorf("%s", path))
	}
}

func (s Store) buildSetAtQuery(key string, path streams.Path, valueJSON []byte) (string, error) {
	if path.IsRoot() {
		return toSQL(
			builder().
				Insert(s.documentsTableName).
				Rows(goqu.Record{colKey: key, colBody: goqu.L(castJsonb, string(valueJSON))}).
				OnConflict(goqu.DoUpdate(colKey, goqu.Record{colBody: goqu.L("EXCLUDED." + colBody)})),
		)
	}

	updated := goqu.L("jsonb_set(?, "+castTextArray+", "+castJsonb+", true)", goqu.C(colBody), textArray(path), string(valueJSON))

	return toSQL(
		builder().
			Update(s.documentsTableName).
			Set(goqu.Record{colBody: updated}).
			Where(goqu.C(colKey).Eq(key), parentAccepts(path)),
	)
}

func (s Store) buildArrAppendQuery(key string, path streams.Path, valueJSON []byte) (string, error) {
	target := goqu.L("? #> "+castTextArray, goqu.C(colBody), textArray(path))
	element := goqu.L("jsonb_build_array("+castJsonb+")", string(valueJSON))

	updated := goqu.L("? || ?", target, element)
	if !path.IsRoot() {
		updated = goqu.L("jsonb_set(?, "+castTextArray+", ? || ?)", goqu.C(colBody), textArray(path), target, element)
	}

	return toSQL(
		builder().
			Update(s.documentsTableName).
			Set(goqu.Record{colBody: updated}).
			Where(goqu.C(colKey).Eq(key), goqu.L("jsonb_typeof(?) = ?", target, jsonTypeArray)),
	)
}

func (s Store) buildDeleteAtQuery(key string, path streams.Path) (string, error) {
	if path.IsRoot() {
		return toSQL(builder().Delete(s.documentsTableName).Where(goqu.C(colKey).Eq(key)))
	}

	return toSQL(
		builder().
			Update(s.documentsTableName).
			Set(goqu.Record{colBody: goqu.L("? #- "+castTextArray, goqu.C(colBody), textArray(path))}).
			Where(goqu.C(colKey).Eq(key)),
	)
}

// parentAccepts holds when the parent of path can take its last step: an object for a key,
// an array long enough for an index.
func parentAccepts(path streams.Path) exp.Expression {
	parentPath, _ := path.Parent()
	last, _ := path.Last()
	parent := goqu.L("? #> "+castTextArray, goqu.C(colBody), textArray(parentPath))

	if !last.IsIndex {
		return goqu.L("jsonb_typeof(?) = ?", parent, jsonTypeObject)
	}

	return goqu.L(
		"CASE WHEN jsonb_typeof(?) = ? THEN jsonb_array_length(?) > ? ELSE false END",
		parent, jsonTypeArray, parent, last.Index,
	)
}

// textArray renders the path as a PostgreSQL text[] literal.
func textArray(path streams.Path) string {
	literal, _ := pq.StringArray(path.Elements()).Value()
	if text, ok := literal.(string); ok {
		return text
	}

	return "{}"
}
