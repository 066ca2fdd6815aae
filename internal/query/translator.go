package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	DefaultSort  = "-createdAt"
	MaxLimit     = 1000
)

// reserved parameters never become filters.
var reserved = map[string]struct{}{
	"select": {},
	"sort":   {},
	"page":   {},
	"limit":  {},
}

type FieldType int

const (
	String FieldType = iota
	Number
	Bool
	ObjectID
	Date
	// StringList is an array of strings; equality matches any element.
	StringList
)

// Schema is the allow-list of filterable, selectable and sortable fields.
type Schema map[string]FieldType

type Op string

const (
	OpLT  Op = "lt"
	OpLTE Op = "lte"
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpIn  Op = "in"
)

func parseOp(s string) (Op, bool) {
	switch Op(strings.ToLower(s)) {
	case OpLT:
		return OpLT, true
	case OpLTE:
		return OpLTE, true
	case OpGT:
		return OpGT, true
	case OpGTE:
		return OpGTE, true
	case OpIn:
		return OpIn, true
	}
	return "", false
}

// Condition is one of Equals, Range or In.
type Condition interface {
	FieldName() string
	isCondition()
}

type Equals struct {
	Field string
	Value any
}

type Range struct {
	Field string
	Op    Op
	Value any
}

type In struct {
	Field  string
	Values []any
}

func (c Equals) FieldName() string { return c.Field }
func (c Range) FieldName() string  { return c.Field }
func (c In) FieldName() string     { return c.Field }

func (Equals) isCondition() {}
func (Range) isCondition()  {}
func (In) isCondition()     {}

type Filter []Condition

// BSON renders the filter as a MongoDB query document. Range conditions on
// the same field are merged into one operator document.
func (f Filter) BSON() bson.M {
	out := bson.M{}
	for _, cond := range f {
		switch c := cond.(type) {
		case Equals:
			out[c.Field] = c.Value
		case Range:
			ops, ok := out[c.Field].(bson.M)
			if !ok {
				ops = bson.M{}
				out[c.Field] = ops
			}
			ops["$"+string(c.Op)] = c.Value
		case In:
			ops, ok := out[c.Field].(bson.M)
			if !ok {
				ops = bson.M{}
				out[c.Field] = ops
			}
			ops["$in"] = c.Values
		}
	}
	return out
}

type SortField struct {
	Field string
	Desc  bool
}

type Query struct {
	Filter Filter
	Select []string
	Sort   []SortField
	Page   int
	Limit  int
}

func (q Query) Skip() int64 {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if int64(q.Page-1) > math.MaxInt64/int64(q.Limit) {
		return math.MaxInt64
	}
	return int64(q.Page-1) * int64(q.Limit)
}

// SortBSON renders the sort specification in declaration order.
func (q Query) SortBSON() bson.D {
	d := make(bson.D, 0, len(q.Sort))
	for _, s := range q.Sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	return d
}

// Parse translates raw query parameters into a Query restricted to schema.
// Unknown fields and unconvertible values are dropped.
func Parse(values url.Values, schema Schema) Query {
	q := Query{
		Page:  positiveInt(values.Get("page"), DefaultPage),
		Limit: min(positiveInt(values.Get("limit"), DefaultLimit), MaxLimit),
	}
	// page*limit must stay representable.
	if maxPage := math.MaxInt64 / int64(q.Limit); int64(q.Page) > maxPage {
		q.Page = int(maxPage)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		field, op, hasOp := splitOperator(key)
		typ, ok := schema[field]
		if !ok {
			continue
		}
		for _, raw := range values[key] {
			if cond, ok := buildCondition(field, typ, op, hasOp, raw); ok {
				q.Filter = append(q.Filter, cond)
			}
		}
	}

	q.Select = parseSelect(values.Get("select"), schema)
	q.Sort = parseSort(values.Get("sort"), schema)
	if len(q.Sort) == 0 {
		q.Sort = parseSort(DefaultSort, Schema{"createdAt": Date})
	}
	return q
}

// splitOperator accepts "field[op]" and "field_op".
func splitOperator(key string) (field string, op Op, ok bool) {
	if open := strings.IndexByte(key, '['); open > 0 && strings.HasSuffix(key, "]") {
		if op, ok := parseOp(key[open+1 : len(key)-1]); ok {
			return key[:open], op, true
		}
		return key, "", false
	}
	if us := strings.LastIndexByte(key, '_'); us > 0 {
		if op, ok := parseOp(key[us+1:]); ok {
			return key[:us], op, true
		}
	}
	return key, "", false
}

func buildCondition(field string, typ FieldType, op Op, hasOp bool, raw string) (Condition, bool) {
	if !hasOp {
		v, ok := convert(typ, raw)
		if !ok {
			return nil, false
		}
		return Equals{Field: field, Value: v}, true
	}

	if op == OpIn {
		var vals []any
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if v, ok := convert(typ, part); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return nil, false
		}
		return In{Field: field, Values: vals}, true
	}

	v, ok := convert(typ, raw)
	if !ok {
		return nil, false
	}
	return Range{Field: field, Op: op, Value: v}, true
}

func convert(typ FieldType, raw string) (any, bool) {
	switch typ {
	case Number:
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	case ObjectID:
		id, err := primitive.ObjectIDFromHex(raw)
		return id, err == nil
	case Date:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, true
		}
		t, err := time.Parse("2006-01-02", raw)
		return t, err == nil
	default:
		return raw, true
	}
}

func parseSelect(raw string, schema Schema) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "id" {
			f = "_id"
		}
		if f == "" || seen[f] {
			continue
		}
		if _, ok := schema[f]; !ok && f != "_id" {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func parseSort(raw string, schema Schema) []SortField {
	var out []SortField
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		desc := strings.HasPrefix(f, "-")
		f = strings.TrimPrefix(f, "-")
		if f == "" {
			continue
		}
		if _, ok := schema[f]; !ok {
			continue
		}
		out = append(out, SortField{Field: f, Desc: desc})
	}
	return out
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
