package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// extractRecordID renders a SurrealDB record id as "table:key"
func extractRecordID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case models.RecordID:
		return fmt.Sprintf("%s:%v", v.Table, v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprintf("%s:%v", v.Table, v.ID)
		}
	case map[string]interface{}:
		// Handle {"tb": "table", "id": "xxx"} format
		if tb, ok := v["tb"].(string); ok {
			return fmt.Sprintf("%s:%v", tb, v["id"])
		}
	}
	return ""
}

// toRecordID parses "table:key" or a bare key into a record id on table.
// A prefix naming a different table is rejected.
func toRecordID(table, id string) (models.RecordID, bool) {
	key := strings.TrimSpace(id)
	if i := strings.Index(key, ":"); i >= 0 {
		if key[:i] != table {
			return models.RecordID{}, false
		}
		key = key[i+1:]
	}
	key = strings.Trim(key, "⟨⟩`")
	if key == "" {
		return models.RecordID{}, false
	}
	return models.RecordID{Table: table, ID: key}, true
}

// parseTime parses time from various formats
func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case models.CustomDateTime:
		return t.Time, true
	case *models.CustomDateTime:
		if t != nil {
			return t.Time, true
		}
	}
	return time.Time{}, false
}

// normalize converts driver values into plain JSON-friendly values: record
// ids become "table:key" strings and datetimes become time.Time.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case models.RecordID, *models.RecordID:
		return extractRecordID(t)
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

// extractQueryResults extracts the record array of the first statement
func extractQueryResults(results []interface{}) []map[string]interface{} {
	if len(results) == 0 {
		return nil
	}

	var rows []interface{}
	if resp, ok := results[0].(map[string]interface{}); ok {
		if arr, ok := resp["result"].([]interface{}); ok {
			rows = arr
		} else if _, hasStatus := resp["status"]; !hasStatus {
			rows = results
		}
	} else {
		rows = results
	}

	records := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if m, ok := normalize(row).(map[string]interface{}); ok {
			records = append(records, m)
		}
	}
	return records
}

// toFields encodes a document into a field map, keeping integers integral
func toFields(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return NormalizeNumbers(fields).(map[string]interface{}), nil
}

// NormalizeNumbers replaces json.Number values with int64 or float64.
func NormalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		for k, val := range t {
			t[k] = NormalizeNumbers(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = NormalizeNumbers(val)
		}
		return t
	}
	return v
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getInt extracts an int value from a map
func getInt(m map[string]interface{}, key string) int {
	return int(math.Round(getFloat(m, key)))
}

// getFloat extracts a float value from a map
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// getTime extracts an optional time value from a map
func getTime(m map[string]interface{}, key string) *time.Time {
	if t, ok := parseTime(m[key]); ok && !t.IsZero() {
		return &t
	}
	return nil
}
