package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	// DefaultLimit is the page size when the client sends none.
	DefaultLimit = 100
	// DefaultMaxLimit caps the page size a client can request.
	DefaultMaxLimit = 1000
	// VersionField is the internal revision counter hidden from default projections.
	VersionField = "version"
	// IDField is always part of an inclusion projection.
	IDField = "id"
)

// DefaultSort orders newest documents first.
var DefaultSort = []SortKey{{Field: "created_on", Desc: true}}

// controlParams are consumed by Sort, LimitFields and Paginate rather than
// treated as filters.
var controlParams = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

var (
	bracketKey    = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]*)\]$`)
	numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
)

type options struct {
	maxLimit     int
	defaultLimit int
	defaultSort  []SortKey
}

// Option configures a Features builder.
type Option func(*options)

// WithMaxLimit sets the largest page size a client may request.
func WithMaxLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithDefaultLimit sets the page size used when none is requested.
func WithDefaultLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultLimit = n
		}
	}
}

// WithDefaultSort replaces the sort applied when the client sends none.
func WithDefaultSort(keys ...SortKey) Option {
	return func(o *options) {
		o.defaultSort = slices.Clone(keys)
	}
}

// Features composes a Query from request parameters. The zero value is not
// usable; call New.
type Features struct {
	query  Query
	params url.Values
	opts   options
	err    error
}

// New starts a builder over base. The parameters are copied.
func New(base Query, params url.Values, opts ...Option) Features {
	o := options{
		maxLimit:     DefaultMaxLimit,
		defaultLimit: DefaultLimit,
		defaultSort:  DefaultSort,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultLimit > o.maxLimit {
		o.defaultLimit = o.maxLimit
	}

	copied := make(url.Values, len(params))
	for k, v := range params {
		copied[k] = slices.Clone(v)
	}

	return Features{query: base.Clone(), params: copied, opts: o}
}

// Query returns the composed descriptor, or the first error any stage hit.
func (f Features) Query() (Query, error) {
	if f.err != nil {
		return Query{}, f.err
	}
	return f.query.Clone(), nil
}

// Err returns the first error recorded by a stage.
func (f Features) Err() error {
	return f.err
}

func (f Features) with(q Query, err error) Features {
	next := f
	next.query = q
	if next.err == nil {
		next.err = err
	}
	return next
}

// Filter appends one condition per non-control parameter after any base
// conditions.
func (f Features) Filter() Features {
	if f.err != nil {
		return f
	}

	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		if !controlParams[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	q := f.query.Clone()
	for _, key := range keys {
		values := f.params[key]
		if key == "" || len(values) == 0 {
			continue
		}
		cond, err := parseCondition(key, values)
		if err != nil {
			return f.with(q, err)
		}
		q.Conditions = append(q.Conditions, cond)
	}
	return f.with(q, nil)
}

func parseCondition(key string, values []string) (Condition, error) {
	field, op := key, OpEq
	if m := bracketKey.FindStringSubmatch(key); m != nil {
		known, ok := bracketOperators[m[2]]
		if !ok {
			return Condition{}, fmt.Errorf("%w: %q", ErrInvalidField, key)
		}
		field, op = m[1], known
	}
	if !ValidField(field) {
		return Condition{}, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	if op == OpEq && len(values) > 1 {
		set := make([]any, len(values))
		for i, v := range values {
			set[i] = Coerce(v)
		}
		return Condition{Field: field, Op: OpIn, Value: set}, nil
	}
	return Condition{Field: field, Op: op, Value: Coerce(values[len(values)-1])}, nil
}

// Coerce converts a raw parameter value to int64, float64 or bool when it
// parses as one, and otherwise returns it unchanged.
func Coerce(raw string) any {
	if numberPattern.MatchString(raw) {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// Sort orders by the comma separated sort parameter. A leading "-" sorts
// descending. Without the parameter the base sort, or the default sort, wins.
func (f Features) Sort() Features {
	if f.err != nil {
		return f
	}

	q := f.query.Clone()
	raw := f.last("sort")
	if raw == "" {
		if len(q.Sort) == 0 {
			q.Sort = slices.Clone(f.opts.defaultSort)
		}
		return f.with(q, nil)
	}

	var keys []SortKey
	for _, token := range splitList(raw) {
		desc := strings.HasPrefix(token, "-")
		field := strings.TrimLeft(token, "-+")
		if !ValidField(field) {
			return f.with(q, fmt.Errorf("%w: %q", ErrInvalidField, token))
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	if len(keys) == 0 {
		keys = slices.Clone(f.opts.defaultSort)
	}
	q.Sort = keys
	return f.with(q, nil)
}

// LimitFields applies the fields parameter as an inclusion projection. The id
// is always included and "-field" exclusions are ignored. Without a usable
// projection the version field is omitted instead.
func (f Features) LimitFields() Features {
	if f.err != nil {
		return f
	}

	q := f.query.Clone()
	var fields []string
	for _, token := range splitList(f.last("fields")) {
		if strings.HasPrefix(token, "-") {
			continue
		}
		field := strings.TrimPrefix(token, "+")
		if !ValidField(field) {
			return f.with(q, fmt.Errorf("%w: %q", ErrInvalidField, token))
		}
		if !slices.Contains(fields, field) {
			fields = append(fields, field)
		}
	}

	if len(fields) == 0 {
		q.Fields = nil
		if !slices.Contains(q.Omit, VersionField) {
			q.Omit = append(q.Omit, VersionField)
		}
		return f.with(q, nil)
	}

	if !slices.Contains(fields, IDField) {
		fields = append([]string{IDField}, fields...)
	}
	q.Fields = fields
	q.Omit = nil
	return f.with(q, nil)
}

// Paginate sets skip and limit from page and limit. Missing, non-numeric and
// non-positive values fall back to page 1 and the default limit. Limits above
// the maximum are clamped.
func (f Features) Paginate() Features {
	if f.err != nil {
		return f
	}

	page := positiveInt(f.last("page"), 1)
	limit := positiveInt(f.last("limit"), f.opts.defaultLimit)
	if limit > f.opts.maxLimit {
		limit = f.opts.maxLimit
	}
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}

	q := f.query.Clone()
	q.Skip = (page - 1) * limit
	q.Limit = limit
	return f.with(q, nil)
}

// last returns the final value of a repeated parameter, matching how the
// control parameters ignore duplicates.
func (f Features) last(key string) string {
	values := f.params[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[len(values)-1])
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
