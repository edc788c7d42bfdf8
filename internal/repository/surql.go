package repository

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forgo/trailhead/api/internal/model"
	"github.com/forgo/trailhead/api/internal/query"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// System fields managed by the store, never taken from request bodies.
const (
	fieldID        = "id"
	fieldCreatedOn = "created_on"
	fieldVersion   = query.VersionField
)

// Schema describes how one document type is stored.
type Schema struct {
	Table string
	// Links maps a field holding record links (scalar or array) to the
	// table the links point at.
	Links map[string]string
	// Datetimes lists fields stored as datetimes (scalar or array).
	// created_on is always one.
	Datetimes []string
	// Text fields are stored as strings. Filter values coerced to numbers
	// or booleans are turned back into text before comparison.
	Text []string
	// Hidden fields are never selected by generic reads or written by
	// generic writes.
	Hidden []string
	// ReadOnly fields are stripped from create and update bodies.
	ReadOnly []string
	// Virtual fields are computed on read and never stored.
	Virtual []string
	// Derived fields are recomputed before every write and always persisted.
	Derived []string
	// AutoPopulate runs on every read, like a find middleware.
	AutoPopulate []query.Populate
	// Scope conditions restrict every read.
	Scope []query.Condition
}

// recordID parses id as a record of this schema's table.
func (s Schema) recordID(id string) (models.RecordID, bool) {
	return toRecordID(s.Table, id)
}

// projection renders the field list of a SELECT for q.
func (s Schema) projection(q query.Query) (string, error) {
	if len(q.Fields) > 0 {
		fields := make([]string, 0, len(q.Fields)+len(q.Sort))
		for _, f := range q.Fields {
			if !query.ValidField(f) {
				return "", fmt.Errorf("%w: %q", query.ErrInvalidField, f)
			}
			if s.hidden(f) || slices.Contains(fields, f) {
				continue
			}
			fields = append(fields, f)
		}
		// SurrealDB requires ORDER BY idioms to be selected.
		for _, k := range q.Sort {
			if !slices.Contains(fields, k.Field) && !s.hidden(k.Field) {
				fields = append(fields, k.Field)
			}
		}
		if !slices.Contains(fields, fieldID) {
			fields = append([]string{fieldID}, fields...)
		}
		return strings.Join(fields, ", "), nil
	}

	omit := make([]string, 0, len(q.Omit)+len(s.Hidden))
	for _, f := range append(slices.Clone(q.Omit), s.Hidden...) {
		if !query.ValidField(f) {
			return "", fmt.Errorf("%w: %q", query.ErrInvalidField, f)
		}
		if !slices.Contains(omit, f) {
			omit = append(omit, f)
		}
	}
	if len(omit) == 0 {
		return "*", nil
	}
	return "* OMIT " + strings.Join(omit, ", "), nil
}

func (s Schema) hidden(field string) bool {
	root, _, _ := strings.Cut(field, ".")
	return slices.Contains(s.Hidden, root)
}

// selectStatement renders q as a parameterized SELECT over the table.
func (s Schema) selectStatement(q query.Query) (string, map[string]interface{}, error) {
	proj, err := s.projection(q)
	if err != nil {
		return "", nil, err
	}

	vars := map[string]interface{}{}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", proj, s.Table)

	for _, c := range q.Conditions {
		if s.hidden(c.Field) {
			return "", nil, fmt.Errorf("%w: %q", query.ErrInvalidField, c.Field)
		}
	}
	conds := append(slices.Clone(s.Scope), q.Conditions...)
	where, err := s.whereClause(conds, vars)
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if len(q.Sort) > 0 {
		keys := make([]string, 0, len(q.Sort))
		for _, k := range q.Sort {
			if !query.ValidField(k.Field) || s.hidden(k.Field) {
				return "", nil, fmt.Errorf("%w: %q", query.ErrInvalidField, k.Field)
			}
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys = append(keys, k.Field+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT $limit")
		vars["limit"] = q.Limit
	}
	if q.Skip > 0 {
		sb.WriteString(" START $start")
		vars["start"] = q.Skip
	}

	return sb.String(), vars, nil
}

func (s Schema) whereClause(conds []query.Condition, vars map[string]interface{}) (string, error) {
	clauses := make([]string, 0, len(conds))
	for i, c := range conds {
		if !query.ValidField(c.Field) {
			return "", fmt.Errorf("%w: %q", query.ErrInvalidField, c.Field)
		}
		name := fmt.Sprintf("w%d", i)
		vars[name] = s.encodeFilterValue(c.Field, c.Value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%s", c.Field, c.Op.Symbol(), name))
	}
	return strings.Join(clauses, " AND "), nil
}

// encodeFilterValue converts a filter value for comparison against the
// stored representation of field.
func (s Schema) encodeFilterValue(field string, v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = s.encodeFilterValue(field, item)
		}
		return out
	}
	table, ok := s.Links[field]
	if field == fieldID {
		table, ok = s.Table, true
	}
	if ok {
		// Coerced query values turn numeric keys into numbers.
		switch v.(type) {
		case string, int64, float64:
			if rid, ok := toRecordID(table, fmt.Sprint(v)); ok {
				return rid
			}
		}
		return v
	}
	if field == fieldCreatedOn || slices.Contains(s.Datetimes, field) {
		if t, ok := parseTime(v); ok {
			return models.CustomDateTime{Time: t.UTC()}
		}
	}
	if slices.Contains(s.Text, field) {
		return text(v)
	}
	return v
}

func text(v interface{}) interface{} {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return v
}

// encodeContent converts links and datetimes in fields to their driver
// types. A link to the wrong table is a validation failure.
func (s Schema) encodeContent(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	var errs []model.FieldError
	for k, v := range fields {
		switch {
		case s.Links[k] != "":
			encoded, ok := encodeLinks(s.Links[k], v)
			if !ok {
				errs = append(errs, model.FieldError{Field: k, Message: fmt.Sprintf("Invalid %s: %v", k, v)})
				continue
			}
			out[k] = encoded
		case slices.Contains(s.Datetimes, k):
			out[k] = encodeDatetimes(v)
		default:
			out[k] = v
		}
	}
	if err := model.NewValidationFailure(errs); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeLinks(table string, v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		rid, ok := toRecordID(table, t)
		return rid, ok
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, item := range t {
			encoded, ok := encodeLinks(table, item)
			if !ok {
				return nil, false
			}
			out = append(out, encoded)
		}
		return out, true
	}
	return nil, false
}

func encodeDatetimes(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = encodeDatetimes(item)
		}
		return out
	}
	if t, ok := parseTime(v); ok {
		return models.CustomDateTime{Time: t.UTC()}
	}
	return v
}

// setClause renders "a = $s0, b = $s1" for fields in key order.
func setClause(fields map[string]interface{}, vars map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for i, k := range keys {
		if !query.ValidField(k) {
			return "", fmt.Errorf("%w: %q", query.ErrInvalidField, k)
		}
		name := fmt.Sprintf("s%d", i)
		vars[name] = fields[k]
		parts = append(parts, fmt.Sprintf("%s = $%s", k, name))
	}
	return strings.Join(parts, ", "), nil
}

// writable drops system, hidden, read-only and virtual fields from a
// request body.
func (s Schema) writable(body map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		switch {
		case k == fieldCreatedOn, k == fieldVersion:
		case slices.Contains(s.Hidden, k), slices.Contains(s.ReadOnly, k), slices.Contains(s.Virtual, k):
		default:
			out[k] = v
		}
	}
	return out
}

// storable drops fields that are never persisted from an encoded document.
func (s Schema) storable(fields map[string]interface{}) {
	delete(fields, fieldID)
	delete(fields, fieldCreatedOn)
	delete(fields, fieldVersion)
	for _, f := range s.Virtual {
		delete(fields, f)
	}
}

func now() models.CustomDateTime {
	return models.CustomDateTime{Time: time.Now().UTC()}
}
