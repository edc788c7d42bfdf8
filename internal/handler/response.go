package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/repository"
)

// maxBodyBytes caps JSON request bodies at 10KB.
const maxBodyBytes = 10 << 10

// DataResponse is the success envelope
type DataResponse struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Data    interface{} `json:"data"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes {status: "success", data: data}
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, DataResponse{Status: model.StatusSuccess, Data: data})
}

// WriteCollection writes a list envelope with its result count
func WriteCollection(w http.ResponseWriter, status int, results int, data interface{}) {
	WriteJSON(w, status, DataResponse{Status: model.StatusSuccess, Results: &results, Data: data})
}

// WriteError writes the error envelope
func WriteError(w http.ResponseWriter, err *model.AppError) {
	err.WriteJSON(w)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a JSON request body into the given struct. Unknown
// fields are ignored.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// DecodeBody decodes a JSON object body into a field map. Integers stay
// integral; an empty body yields an empty map.
func DecodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return repository.NormalizeNumbers(body).(map[string]interface{}), nil
}

// project reduces a document to the requested top-level fields.
func project(doc interface{}, fields []string) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		key := topLevel(f)
		if v, ok := all[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func topLevel(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}

func badBody(err error) *model.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return model.NewAppError(http.StatusRequestEntityTooLarge, model.ErrCodeInvalidInput, "Request body is too large")
	}
	return model.NewBadRequestError("Invalid request body")
}
