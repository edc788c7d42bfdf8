package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Validator is implemented by documents that check their own fields.
// It runs on create and again on every update against the merged document.
type Validator interface {
	Validate() []FieldError
}

// Defaulter fills fields left empty on create.
type Defaulter interface {
	ApplyDefaults()
}

// Preparer recomputes derived fields before a document is written.
type Preparer interface {
	BeforeSave()
}

// Loader fills computed fields after a document is read.
type Loader interface {
	AfterLoad()
}

// Link is a record link that may have been populated with its target.
// Unpopulated links encode as the record id string, populated links as the
// target document.
type Link[T any] struct {
	ID  string
	Doc *T
}

// LinkTo returns an unpopulated link.
func LinkTo[T any](id string) Link[T] {
	return Link[T]{ID: id}
}

// IsZero reports whether the link points nowhere.
func (l Link[T]) IsZero() bool {
	return l.ID == "" && l.Doc == nil
}

// MarshalJSON implements json.Marshaler
func (l Link[T]) MarshalJSON() ([]byte, error) {
	if l.Doc != nil {
		return json.Marshal(l.Doc)
	}
	if l.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(l.ID)
}

// UnmarshalJSON implements json.Unmarshaler
func (l *Link[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = Link[T]{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*l = Link[T]{ID: id}
		return nil
	}

	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	*l = Link[T]{ID: ref.ID, Doc: &doc}
	return nil
}

// Slugify lowercases s, strips diacritics and joins words with hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
