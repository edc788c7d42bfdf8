// Package memdb is an in-memory document store for service and handler
// tests. It runs the same model hooks as the real repositories and
// evaluates query descriptors in Go:
//
//	tours := memdb.New[model.Tour]("tour")
//	tour, err := tours.Create(ctx, map[string]interface{}{"name": "The Sea Explorer", ...})
//	page, err := service.NewResource(service.ResourceConfig[model.Tour]{Model: tours}).GetAll(ctx, params)
//
// Population is not resolved and projections are not applied; ids are
// "table:key" strings and a bare key matches its prefixed form.
package memdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgo/trailhead/api/internal/database"
	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Store holds documents of one type
type Store[T any] struct {
	mu    sync.RWMutex
	table string
	docs  map[string]map[string]interface{}
	order []string
	seq   int
	// Unique lists field sets that must be unique together.
	Unique [][]string
	// FailWith, when set, is returned by every call.
	FailWith error
}

// New creates an empty store for table
func New[T any](table string) *Store[T] {
	return &Store[T]{table: table, docs: map[string]map[string]interface{}{}}
}

// Len returns the number of stored documents
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Find evaluates q over the stored documents
func (s *Store[T]) Find(ctx context.Context, q query.Query) ([]*T, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []map[string]interface{}
	for _, id := range s.order {
		doc := s.docs[id]
		if matches(doc, q.Conditions) {
			matched = append(matched, doc)
		}
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, k := range q.Sort {
				c, _ := compare(lookup(matched[i], k.Field), lookup(matched[j], k.Field))
				if c == 0 {
					continue
				}
				if k.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Skip >= len(matched) {
		matched = nil
	} else {
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	docs := make([]*T, 0, len(matched))
	for _, m := range matched {
		doc, err := decode[T](m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindByID returns the document or nil. Populations are ignored.
func (s *Store[T]) FindByID(ctx context.Context, id string, populate ...query.Populate) (*T, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[s.key(id)]
	if !ok {
		return nil, nil
	}
	return decode[T](doc)
}

// Create validates and stores a new document
func (s *Store[T]) Create(ctx context.Context, body map[string]interface{}) (*T, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var doc T
	if err := overlay(&doc, body); err != nil {
		return nil, err
	}
	if d, ok := any(&doc).(model.Defaulter); ok {
		d.ApplyDefaults()
	}
	if p, ok := any(&doc).(model.Preparer); ok {
		p.BeforeSave()
	}
	if v, ok := any(&doc).(model.Validator); ok {
		if err := model.NewValidationFailure(v.Validate()); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := encode(&doc)
	if err != nil {
		return nil, err
	}
	s.seq++
	id := fmt.Sprintf("%s:%d", s.table, s.seq)
	if explicit, ok := body["id"].(string); ok && explicit != "" {
		id = s.key(explicit)
	}
	if _, exists := s.docs[id]; exists {
		return nil, database.ErrDuplicate
	}
	fields["id"] = id
	fields["created_on"] = epoch.Add(time.Duration(s.seq) * time.Second).Format(time.RFC3339)
	if err := s.checkUnique(id, fields); err != nil {
		return nil, err
	}

	s.docs[id] = fields
	s.order = append(s.order, id)
	return decode[T](fields)
}

// FindByIDAndUpdate merges body into the document and revalidates it
func (s *Store[T]) FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*T, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(id)
	current, ok := s.docs[key]
	if !ok {
		return nil, nil
	}

	doc, err := decode[T](current)
	if err != nil {
		return nil, err
	}
	patch := make(map[string]interface{}, len(body))
	for k, v := range body {
		if k != "id" && k != "created_on" {
			patch[k] = v
		}
	}
	if err := overlay(doc, patch); err != nil {
		return nil, err
	}
	if p, ok := any(doc).(model.Preparer); ok {
		p.BeforeSave()
	}
	if v, ok := any(doc).(model.Validator); ok {
		if err := model.NewValidationFailure(v.Validate()); err != nil {
			return nil, err
		}
	}

	fields, err := encode(doc)
	if err != nil {
		return nil, err
	}
	fields["id"] = key
	fields["created_on"] = current["created_on"]
	if err := s.checkUnique(key, fields); err != nil {
		return nil, err
	}
	s.docs[key] = fields
	return decode[T](fields)
}

// FindByIDAndDelete removes the document and returns it, or nil
func (s *Store[T]) FindByIDAndDelete(ctx context.Context, id string) (*T, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(id)
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	delete(s.docs, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return decode[T](doc)
}

func (s *Store[T]) key(id string) string {
	if table, _, ok := strings.Cut(id, ":"); ok && table == s.table {
		return id
	}
	return s.table + ":" + id
}

func (s *Store[T]) checkUnique(id string, fields map[string]interface{}) error {
	for _, set := range s.Unique {
		for otherID, other := range s.docs {
			if otherID == id {
				continue
			}
			same := true
			for _, f := range set {
				if c, ok := compare(lookup(fields, f), lookup(other, f)); !ok || c != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: %s", database.ErrDuplicate, strings.Join(set, ", "))
			}
		}
	}
	return nil
}

func matches(doc map[string]interface{}, conds []query.Condition) bool {
	for _, c := range conds {
		v := lookup(doc, c.Field)
		var ok bool
		switch c.Op {
		case query.OpNe:
			ok = !equal(v, c.Value)
		case query.OpIn:
			list, _ := c.Value.([]interface{})
			ok = slices.ContainsFunc(list, func(item interface{}) bool { return equal(v, item) })
		case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
			cmp, comparable := compare(v, c.Value)
			ok = comparable && map[query.Operator]bool{
				query.OpGt:  cmp > 0,
				query.OpGte: cmp >= 0,
				query.OpLt:  cmp < 0,
				query.OpLte: cmp <= 0,
			}[c.Op]
		default:
			ok = equal(v, c.Value)
		}
		if !ok {
			return false
		}
	}
	return true
}

func lookup(doc map[string]interface{}, path string) interface{} {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func equal(a, b interface{}) bool {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sameID(sa, sb)
		}
	}
	c, ok := compare(a, b)
	return ok && c == 0
}

// sameID treats "tour:abc" and "abc" as the same value.
func sameID(a, b string) bool {
	if a == b {
		return true
	}
	_, ka, okA := strings.Cut(a, ":")
	_, kb, okB := strings.Cut(b, ":")
	return (okA && !okB && ka == b) || (okB && !okA && kb == a)
}

func compare(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb), true
		}
	case bool:
		if vb, ok := b.(bool); ok && va == vb {
			return 0, true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func overlay(doc interface{}, body map[string]interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return model.NewValidationFailure([]model.FieldError{{Field: "body", Message: err.Error()}})
	}
	return nil
}

func encode(doc interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decode[T any](fields map[string]interface{}) (*T, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if l, ok := any(&doc).(model.Loader); ok {
		l.AfterLoad()
	}
	return &doc, nil
}
