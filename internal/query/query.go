package query

import (
	"errors"
	"regexp"
	"slices"
)

// ErrInvalidField indicates a filter, sort or projection field that is not a
// plain identifier.
var ErrInvalidField = errors.New("invalid query field")

// Operator is a comparison operator in store notation.
type Operator string

const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
)

// bracketOperators maps the bracket suffix of a parameter key to its operator.
// Only these four are accepted from clients.
var bracketOperators = map[string]Operator{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

// Symbol returns the infix comparison symbol for the operator.
func (o Operator) Symbol() string {
	switch o {
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpIn:
		return "IN"
	default:
		return "="
	}
}

// Condition is one filter term. Conditions in a Query are combined with AND.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Eq is shorthand for an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Ne is shorthand for an inequality condition.
func Ne(field string, value any) Condition {
	return Condition{Field: field, Op: OpNe, Value: value}
}

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Populate describes a record link to resolve when loading a document.
//
// A forward link (Review.user) names the field holding the link and the
// fields to select from the target. A reverse link (Tour.reviews) sets From
// and ForeignField: documents in From whose ForeignField points at the loaded
// document are attached under Path.
type Populate struct {
	Path         string
	Select       []string
	From         string
	ForeignField string
	Populate     []Populate
}

// IsReverse reports whether the population walks a link backwards.
func (p Populate) IsReverse() bool {
	return p.From != "" && p.ForeignField != ""
}

// Query is a composed, unexecuted query descriptor.
type Query struct {
	Conditions []Condition
	Sort       []SortKey
	// Fields is an inclusion projection. Empty means every field minus Omit.
	Fields []string
	Omit   []string
	Skip   int
	// Limit of zero means no limit.
	Limit int
}

// Clone returns a deep copy of the slices in q.
func (q Query) Clone() Query {
	return Query{
		Conditions: slices.Clone(q.Conditions),
		Sort:       slices.Clone(q.Sort),
		Fields:     slices.Clone(q.Fields),
		Omit:       slices.Clone(q.Omit),
		Skip:       q.Skip,
		Limit:      q.Limit,
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidField reports whether name is safe to render as a field reference.
func ValidField(name string) bool {
	return identifierPattern.MatchString(name)
}
