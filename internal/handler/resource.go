package handler

import (
	"net/http"

	"github.com/forgo/trailhead/api/internal/query"
	"github.com/forgo/trailhead/api/internal/service"
)

// BodyHook adjusts a decoded request body before it reaches the store.
type BodyHook func(r *http.Request, body map[string]interface{})

// ScopeFunc derives fixed list conditions from the request, such as the tour
// of a nested review route.
type ScopeFunc func(r *http.Request) []query.Condition

// AccessFunc decides whether the caller may modify doc. A non-nil error is
// written as the response.
type AccessFunc[T any] func(r *http.Request, doc *T) error

// ResourceHandler serves the five standard endpoints for one document type.
// The document id is read from the {id} path value.
type ResourceHandler[T any] struct {
	resource *service.Resource[T]
	scope    ScopeFunc
	onCreate BodyHook
	onUpdate BodyHook
	access   AccessFunc[T]
}

// ResourceHandlerConfig holds the dependencies and hooks of a ResourceHandler
type ResourceHandlerConfig[T any] struct {
	Resource *service.Resource[T]
	Scope    ScopeFunc
	OnCreate BodyHook
	OnUpdate BodyHook
	// Authorize runs against the stored document before update and delete.
	Authorize AccessFunc[T]
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler[T any](cfg ResourceHandlerConfig[T]) *ResourceHandler[T] {
	return &ResourceHandler[T]{
		resource: cfg.Resource,
		scope:    cfg.Scope,
		onCreate: cfg.OnCreate,
		onUpdate: cfg.OnUpdate,
		access:   cfg.Authorize,
	}
}

// GetAll handles GET /api/v1/<resource>
func (h *ResourceHandler[T]) GetAll(w http.ResponseWriter, r *http.Request) {
	var scope []query.Condition
	if h.scope != nil {
		scope = h.scope(r)
	}

	page, err := h.resource.GetAll(r.Context(), r.URL.Query(), scope...)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if len(page.Fields) == 0 {
		WriteCollection(w, http.StatusOK, len(page.Docs), map[string]interface{}{"docs": page.Docs})
		return
	}

	docs := make([]map[string]interface{}, 0, len(page.Docs))
	for _, doc := range page.Docs {
		projected, err := project(doc, page.Fields)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		docs = append(docs, projected)
	}
	WriteCollection(w, http.StatusOK, len(docs), map[string]interface{}{"docs": docs})
}

// GetOne handles GET /api/v1/<resource>/{id}
func (h *ResourceHandler[T]) GetOne(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, r.PathValue("id"))
}

func (h *ResourceHandler[T]) getByID(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.resource.GetOne(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]interface{}{"doc": doc})
}

// CreateOne handles POST /api/v1/<resource>
func (h *ResourceHandler[T]) CreateOne(w http.ResponseWriter, r *http.Request) {
	body, err := DecodeBody(w, r)
	if err != nil {
		WriteError(w, badBody(err))
		return
	}
	if h.onCreate != nil {
		h.onCreate(r, body)
	}

	doc, err := h.resource.CreateOne(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, map[string]interface{}{"doc": doc})
}

// UpdateOne handles PATCH /api/v1/<resource>/{id}
func (h *ResourceHandler[T]) UpdateOne(w http.ResponseWriter, r *http.Request) {
	body, err := DecodeBody(w, r)
	if err != nil {
		WriteError(w, badBody(err))
		return
	}
	if h.onUpdate != nil {
		h.onUpdate(r, body)
	}
	if !h.authorize(w, r) {
		return
	}

	doc, err := h.resource.UpdateOne(r.Context(), r.PathValue("id"), body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, map[string]interface{}{"doc": doc})
}

// DeleteOne handles DELETE /api/v1/<resource>/{id}
func (h *ResourceHandler[T]) DeleteOne(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	if err := h.resource.DeleteOne(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// authorize loads the target document and checks it against the access
// hook. It reports whether the request may proceed.
func (h *ResourceHandler[T]) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.access == nil {
		return true
	}
	doc, err := h.resource.GetOne(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	if err := h.access(r, doc); err != nil {
		writeServiceError(w, r, err)
		return false
	}
	return true
}
