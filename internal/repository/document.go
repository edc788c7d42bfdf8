package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

// maxUpdateAttempts bounds the optimistic-lock retry loop of FindByIDAndUpdate.
const maxUpdateAttempts = 3

// ErrConcurrentUpdate is returned when a document kept changing underneath
// an update.
var ErrConcurrentUpdate = errors.New("document was modified concurrently")

// DocumentStore is the generic persistence for one document type. It
// validates documents through the model hooks (Validator, Defaulter,
// Preparer, Loader) and renders query descriptors to SurrealQL.
type DocumentStore[T any] struct {
	db     database.Database
	schema Schema
}

// NewDocumentStore creates a store for T on schema.Table
func NewDocumentStore[T any](db database.Database, schema Schema) *DocumentStore[T] {
	return &DocumentStore[T]{db: db, schema: schema}
}

// FindByID returns the document, or nil if it does not exist
func (s *DocumentStore[T]) FindByID(ctx context.Context, id string, populate ...query.Populate) (*T, error) {
	raw, err := s.findRaw(ctx, id)
	if err != nil || raw == nil {
		return nil, err
	}

	records := []map[string]interface{}{raw}
	if err := s.populate(ctx, records, s.populations(populate)); err != nil {
		return nil, err
	}
	return s.decode(records[0])
}

func (s *DocumentStore[T]) findRaw(ctx context.Context, id string) (map[string]interface{}, error) {
	rid, ok := s.schema.recordID(id)
	if !ok {
		return nil, nil
	}

	proj, err := s.schema.projection(query.Query{Omit: []string{fieldVersion}})
	if err != nil {
		return nil, err
	}
	vars := map[string]interface{}{"id": rid}
	stmt := fmt.Sprintf("SELECT %s FROM $id", proj)
	if len(s.schema.Scope) > 0 {
		where, err := s.schema.whereClause(s.schema.Scope, vars)
		if err != nil {
			return nil, err
		}
		stmt += " WHERE " + where
	}
	results, err := s.db.Query(ctx, stmt, vars)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.schema.Table, err)
	}

	records := extractQueryResults(results)
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Find executes a composed query descriptor in one statement
func (s *DocumentStore[T]) Find(ctx context.Context, q query.Query) ([]*T, error) {
	stmt, vars, err := s.schema.selectStatement(q)
	if err != nil {
		return nil, err
	}

	return s.findStatement(ctx, stmt, vars)
}

// findStatement runs a SELECT over the table and decodes the populated rows.
func (s *DocumentStore[T]) findStatement(ctx context.Context, stmt string, vars map[string]interface{}) ([]*T, error) {
	results, err := s.db.Query(ctx, stmt, vars)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", s.schema.Table, err)
	}

	records := extractQueryResults(results)
	if err := s.populate(ctx, records, s.populations(nil)); err != nil {
		return nil, err
	}

	docs := make([]*T, 0, len(records))
	for _, raw := range records {
		doc, err := s.decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Create validates body as a new document and stores it. Unknown fields
// are dropped.
func (s *DocumentStore[T]) Create(ctx context.Context, body map[string]interface{}) (*T, error) {
	body = s.schema.writable(body)

	var doc T
	if err := decodeBody(&doc, body); err != nil {
		return nil, err
	}
	explicitID, _ := body[fieldID].(string)
	return s.insert(ctx, explicitID, &doc, nil)
}

// insert runs the create hooks on doc and writes it with extra stored
// alongside, for fields T never serializes.
func (s *DocumentStore[T]) insert(ctx context.Context, explicitID string, doc *T, extra map[string]interface{}) (*T, error) {
	if d, ok := any(doc).(model.Defaulter); ok {
		d.ApplyDefaults()
	}
	if p, ok := any(doc).(model.Preparer); ok {
		p.BeforeSave()
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	fields, err := toFields(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.schema.Table, err)
	}
	s.schema.storable(fields)
	for k, v := range extra {
		fields[k] = v
	}
	content, err := s.schema.encodeContent(fields)
	if err != nil {
		return nil, err
	}
	content[fieldCreatedOn] = now()
	content[fieldVersion] = 0

	vars := map[string]interface{}{"content": content}
	stmt := fmt.Sprintf("CREATE %s CONTENT $content RETURN AFTER", s.schema.Table)
	if explicitID != "" {
		rid, ok := s.schema.recordID(explicitID)
		if !ok {
			return nil, model.NewValidationFailure([]model.FieldError{{Field: fieldID, Message: "Invalid id: " + explicitID}})
		}
		vars["id"] = rid
		stmt = "CREATE $id CONTENT $content RETURN AFTER"
	}

	results, err := s.db.Query(ctx, stmt, vars)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.schema.Table, err)
	}
	records := extractQueryResults(results)
	if len(records) == 0 {
		return nil, fmt.Errorf("create %s: %w: no record returned", s.schema.Table, database.ErrQuery)
	}
	return s.decode(s.visible(records[0]))
}

// FindByIDAndUpdate applies a partial body, re-running validation against
// the merged document. It returns nil if the document does not exist.
func (s *DocumentStore[T]) FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*T, error) {
	body = s.schema.writable(body)
	delete(body, fieldID)
	return s.update(ctx, id, body, nil)
}

// update is FindByIDAndUpdate with extra fields written verbatim.
func (s *DocumentStore[T]) update(ctx context.Context, id string, body, extra map[string]interface{}) (*T, error) {
	rid, ok := s.schema.recordID(id)
	if !ok {
		return nil, nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		results, err := s.db.Query(ctx, "SELECT * FROM $id", map[string]interface{}{"id": rid})
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", s.schema.Table, err)
		}
		current := extractQueryResults(results)
		if len(current) == 0 {
			return nil, nil
		}
		version := getInt(current[0], fieldVersion)

		var doc T
		if err := decodeBody(&doc, current[0]); err != nil {
			return nil, fmt.Errorf("update %s: decode current: %w", s.schema.Table, err)
		}
		if err := decodeBody(&doc, body); err != nil {
			return nil, err
		}
		if p, ok := any(&doc).(model.Preparer); ok {
			p.BeforeSave()
		}
		if err := validate(&doc); err != nil {
			return nil, err
		}

		fields, err := toFields(&doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.schema.Table, err)
		}
		patch := make(map[string]interface{}, len(body)+len(s.schema.Derived)+len(extra))
		for k := range body {
			if v, ok := fields[k]; ok {
				patch[k] = v
			}
		}
		for _, k := range s.schema.Derived {
			if v, ok := fields[k]; ok {
				patch[k] = v
			}
		}
		s.schema.storable(patch)
		for k, v := range extra {
			patch[k] = v
		}
		encoded, err := s.schema.encodeContent(patch)
		if err != nil {
			return nil, err
		}

		vars := map[string]interface{}{"id": rid, "version": version}
		set, err := setClause(encoded, vars)
		if err != nil {
			return nil, err
		}
		if set != "" {
			set += ", "
		}
		stmt := fmt.Sprintf("UPDATE $id SET %sversion = $version + 1 WHERE (version ?? 0) = $version RETURN AFTER", set)

		results, err = s.db.Query(ctx, stmt, vars)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", s.schema.Table, err)
		}
		if updated := extractQueryResults(results); len(updated) > 0 {
			return s.decode(s.visible(updated[0]))
		}
	}
	return nil, fmt.Errorf("update %s: %w", s.schema.Table, ErrConcurrentUpdate)
}

// FindByIDAndDelete removes the document and returns it as it was, or nil
// if it did not exist.
func (s *DocumentStore[T]) FindByIDAndDelete(ctx context.Context, id string) (*T, error) {
	rid, ok := s.schema.recordID(id)
	if !ok {
		return nil, nil
	}

	results, err := s.db.Query(ctx, "DELETE $id RETURN BEFORE", map[string]interface{}{"id": rid})
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", s.schema.Table, err)
	}
	records := extractQueryResults(results)
	if len(records) == 0 {
		return nil, nil
	}
	return s.decode(s.visible(records[0]))
}

// visible strips hidden and version fields from a raw record.
func (s *DocumentStore[T]) visible(raw map[string]interface{}) map[string]interface{} {
	delete(raw, fieldVersion)
	for _, f := range s.schema.Hidden {
		delete(raw, f)
	}
	return raw
}

func (s *DocumentStore[T]) decode(raw map[string]interface{}) (*T, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.schema.Table, err)
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.schema.Table, err)
	}
	if l, ok := any(&doc).(model.Loader); ok {
		l.AfterLoad()
	}
	return &doc, nil
}

func (s *DocumentStore[T]) populations(extra []query.Populate) []query.Populate {
	return append(slices.Clone(s.schema.AutoPopulate), extra...)
}

// populate resolves record links in records in place: one query per
// population, however many records there are.
func (s *DocumentStore[T]) populate(ctx context.Context, records []map[string]interface{}, pops []query.Populate) error {
	return populateRecords(ctx, s.db, s.schema.Table, records, pops)
}

func populateRecords(ctx context.Context, db database.Database, table string, records []map[string]interface{}, pops []query.Populate) error {
	if len(records) == 0 {
		return nil
	}
	for _, p := range pops {
		if !query.ValidField(p.Path) {
			return fmt.Errorf("%w: populate %q", query.ErrInvalidField, p.Path)
		}
		var err error
		if p.IsReverse() {
			err = populateReverse(ctx, db, table, records, p)
		} else {
			err = populateForward(ctx, db, records, p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func populateForward(ctx context.Context, db database.Database, records []map[string]interface{}, p query.Populate) error {
	var ids []interface{}
	seen := map[string]bool{}
	collect := func(v interface{}) {
		id, ok := v.(string)
		if !ok || seen[id] {
			return
		}
		table, _, found := strings.Cut(id, ":")
		if rid, ok := toRecordID(table, id); found && ok {
			seen[id] = true
			ids = append(ids, rid)
		}
	}
	for _, r := range records {
		switch v := r[p.Path].(type) {
		case string:
			collect(v)
		case []interface{}:
			for _, item := range v {
				collect(item)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	fields := []string{fieldID}
	for _, f := range p.Select {
		if !query.ValidField(f) {
			return fmt.Errorf("%w: populate select %q", query.ErrInvalidField, f)
		}
		if f != fieldID {
			fields = append(fields, f)
		}
	}
	if len(fields) == 1 {
		fields = append(fields, "name")
	}

	results, err := db.Query(ctx, fmt.Sprintf("SELECT %s FROM $ids", strings.Join(fields, ", ")), map[string]interface{}{"ids": ids})
	if err != nil {
		return fmt.Errorf("populate %s: %w", p.Path, err)
	}
	targets := extractQueryResults(results)
	if err := populateRecords(ctx, db, "", targets, p.Populate); err != nil {
		return err
	}
	byID := make(map[string]map[string]interface{}, len(targets))
	for _, t := range targets {
		byID[getString(t, fieldID)] = t
	}

	for _, r := range records {
		switch v := r[p.Path].(type) {
		case string:
			if t, ok := byID[v]; ok {
				r[p.Path] = t
			}
		case []interface{}:
			for i, item := range v {
				if id, ok := item.(string); ok {
					if t, ok := byID[id]; ok {
						v[i] = t
					}
				}
			}
		}
	}
	return nil
}

func populateReverse(ctx context.Context, db database.Database, table string, records []map[string]interface{}, p query.Populate) error {
	if !query.ValidField(p.From) || !query.ValidField(p.ForeignField) {
		return fmt.Errorf("%w: populate %s.%s", query.ErrInvalidField, p.From, p.ForeignField)
	}

	ids := make([]interface{}, 0, len(records))
	for _, r := range records {
		if rid, ok := toRecordID(table, getString(r, fieldID)); ok {
			ids = append(ids, rid)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	proj := "* OMIT " + fieldVersion
	if len(p.Select) > 0 {
		proj = strings.Join(append([]string{fieldID, p.ForeignField}, p.Select...), ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN $ids", proj, p.From, p.ForeignField)
	results, err := db.Query(ctx, stmt, map[string]interface{}{"ids": ids})
	if err != nil {
		return fmt.Errorf("populate %s: %w", p.Path, err)
	}
	children := extractQueryResults(results)
	if err := populateRecords(ctx, db, p.From, children, p.Populate); err != nil {
		return err
	}

	byParent := map[string][]interface{}{}
	for _, c := range children {
		parent := getString(c, p.ForeignField)
		byParent[parent] = append(byParent[parent], c)
	}
	for _, r := range records {
		list := byParent[getString(r, fieldID)]
		if list == nil {
			list = []interface{}{}
		}
		r[p.Path] = list
	}
	return nil
}

// decodeBody overlays body onto doc. Type mismatches become validation
// failures naming the field.
func decodeBody(doc interface{}, body map[string]interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return model.NewValidationFailure([]model.FieldError{{Field: "body", Message: err.Error()}})
	}
	if err := json.Unmarshal(data, doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			return model.NewValidationFailure([]model.FieldError{{
				Field:   field,
				Message: fmt.Sprintf("Invalid %s: expected %s, got %s", field, typeErr.Type, typeErr.Value),
			}})
		}
		return model.NewValidationFailure([]model.FieldError{{Field: "body", Message: err.Error()}})
	}
	return nil
}

func validate(doc interface{}) error {
	if v, ok := doc.(model.Validator); ok {
		return model.NewValidationFailure(v.Validate())
	}
	return nil
}
