package service

import (
	"context"
	"net/url"
	"slices"

	"github.com/forgo/trailhead/api/internal/query"
)

// Model is the persistence a Resource needs for one document type.
// Lookups by id return a nil document, not an error, when nothing matches.
type Model[T any] interface {
	Find(ctx context.Context, q query.Query) ([]*T, error)
	FindByID(ctx context.Context, id string, populate ...query.Populate) (*T, error)
	Create(ctx context.Context, body map[string]interface{}) (*T, error)
	FindByIDAndUpdate(ctx context.Context, id string, body map[string]interface{}) (*T, error)
	FindByIDAndDelete(ctx context.Context, id string) (*T, error)
}

// Page is one listing result. Fields is the projection the client asked
// for, empty when every field was returned.
type Page[T any] struct {
	Docs   []*T
	Fields []string
}

// Resource implements the five standard operations over any Model.
type Resource[T any] struct {
	model    Model[T]
	populate []query.Populate
	options  []query.Option
}

// ResourceConfig holds configuration for a resource
type ResourceConfig[T any] struct {
	Model Model[T]
	// Populate is resolved by GetOne, on top of the model's own population.
	Populate     []query.Populate
	QueryOptions []query.Option
}

// NewResource creates a new resource
func NewResource[T any](cfg ResourceConfig[T]) *Resource[T] {
	return &Resource[T]{
		model:    cfg.Model,
		populate: cfg.Populate,
		options:  cfg.QueryOptions,
	}
}

// CreateOne stores body as a new document
func (r *Resource[T]) CreateOne(ctx context.Context, body map[string]interface{}) (*T, error) {
	return r.model.Create(ctx, body)
}

// GetOne returns the document with its configured links populated
func (r *Resource[T]) GetOne(ctx context.Context, id string) (*T, error) {
	doc, err := r.model.FindByID(ctx, id, r.populate...)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// GetAll lists documents matching the client's query parameters. Scope
// conditions come from the route and replace any client filter on the same
// field.
func (r *Resource[T]) GetAll(ctx context.Context, params url.Values, scope ...query.Condition) (*Page[T], error) {
	q, err := query.New(query.Query{}, params, r.options...).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Query()
	if err != nil {
		return nil, err
	}

	if len(scope) > 0 {
		q.Conditions = slices.DeleteFunc(q.Conditions, func(c query.Condition) bool {
			return slices.ContainsFunc(scope, func(s query.Condition) bool { return s.Field == c.Field })
		})
		q.Conditions = append(q.Conditions, scope...)
	}

	docs, err := r.model.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*T{}
	}
	return &Page[T]{Docs: docs, Fields: q.Fields}, nil
}

// UpdateOne applies a partial body and returns the updated document
func (r *Resource[T]) UpdateOne(ctx context.Context, id string, body map[string]interface{}) (*T, error) {
	doc, err := r.model.FindByIDAndUpdate(ctx, id, body)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// DeleteOne removes the document
func (r *Resource[T]) DeleteOne(ctx context.Context, id string) error {
	doc, err := r.model.FindByIDAndDelete(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return nil
}
