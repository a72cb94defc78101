package sheetfeed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Condition represents a single query condition
type Condition struct {
	Column   string      // normalized column name
	Operator string      // ==, !=, >, >=, <, <=, in, between
	Value    interface{} // []interface{} for in, [2]interface{} for between
}

// Query selects and orders list-feed rows. Conditions are ANDed.
type Query struct {
	Conditions []Condition
	OrderBy    string // column name, sent as orderby=column:<name>
	Reverse    bool
	Limit      int
	Offset     int
}

// Encode validates the query and renders it as list-feed parameters
func (q Query) Encode() (url.Values, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	values := url.Values{}
	if q.OrderBy != "" {
		values.Set("orderby", "column:"+q.OrderBy)
	}
	if q.Reverse {
		values.Set("reverse", "true")
	}
	if len(q.Conditions) > 0 {
		parts := make([]string, 0, len(q.Conditions))
		for _, c := range q.Conditions {
			parts = append(parts, structuredCondition(c))
		}
		values.Set("sq", strings.Join(parts, " and "))
	}
	if q.Offset > 0 {
		values.Set("start-index", strconv.Itoa(q.Offset+1))
	}
	if q.Limit > 0 {
		values.Set("max-results", strconv.Itoa(q.Limit))
	}
	return values, nil
}

// structuredCondition renders one condition in the feed's sq syntax
func structuredCondition(c Condition) string {
	switch c.Operator {
	case "==":
		return c.Column + " = " + sqLiteral(c.Value)
	case "in":
		list := c.Value.([]interface{})
		alts := make([]string, len(list))
		for i, item := range list {
			alts[i] = c.Column + " = " + sqLiteral(item)
		}
		return "(" + strings.Join(alts, " or ") + ")"
	case "between":
		min, max := betweenBounds(c.Value)
		return "(" + c.Column + " >= " + sqLiteral(min) + " and " + c.Column + " <= " + sqLiteral(max) + ")"
	default:
		return c.Column + " " + c.Operator + " " + sqLiteral(c.Value)
	}
}

func sqLiteral(v interface{}) string {
	if isNumeric(v) {
		return fmt.Sprintf("%v", v)
	}
	s := fmt.Sprintf("%v", v)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func betweenBounds(v interface{}) (interface{}, interface{}) {
	switch b := v.(type) {
	case [2]interface{}:
		return b[0], b[1]
	case []interface{}:
		return b[0], b[1]
	}
	return nil, nil
}

// evalCondition evaluates a single condition against a record
func evalCondition(record *Record, condition Condition) bool {
	raw, exists := record.Get(condition.Column)
	var value interface{}
	if exists {
		value = cellValue(raw)
	}

	switch condition.Operator {
	case "==":
		return compareEqual(value, condition.Value)
	case "!=":
		return !compareEqual(value, condition.Value)
	case ">":
		return compareOrdered(value, condition.Value, func(a, b float64) bool { return a > b })
	case ">=":
		return compareOrdered(value, condition.Value, func(a, b float64) bool { return a >= b })
	case "<":
		return compareOrdered(value, condition.Value, func(a, b float64) bool { return a < b })
	case "<=":
		return compareOrdered(value, condition.Value, func(a, b float64) bool { return a <= b })
	case "in":
		list, _ := condition.Value.([]interface{})
		for _, item := range list {
			if compareEqual(value, item) {
				return true
			}
		}
		return false
	case "between":
		min, max := betweenBounds(condition.Value)
		return compareOrdered(value, min, func(a, b float64) bool { return a >= b }) &&
			compareOrdered(value, max, func(a, b float64) bool { return a <= b })
	default:
		return false
	}
}

// cellValue reads numeric cell text as a number so it compares numerically
func cellValue(s string) interface{} {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// MatchesQuery checks if a record matches all conditions in the query
func (r *Record) MatchesQuery(query Query) bool {
	for _, condition := range query.Conditions {
		if !evalCondition(r, condition) {
			return false
		}
	}
	return true
}

// compareEqual compares two values for equality
func compareEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if isNumeric(a) && isNumeric(b) {
		return toFloat64(a) == toFloat64(b)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(a, b interface{}, cmp func(a, b float64) bool) bool {
	if !isNumeric(a) || !isNumeric(b) {
		return false
	}
	return cmp(toFloat64(a), toFloat64(b))
}

// isNumeric checks if a value is numeric
func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// toFloat64 converts a numeric value to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

// ApplyQuery filters records locally, honoring Offset and Limit
func ApplyQuery(records []*Record, query Query) []*Record {
	var results []*Record
	for _, record := range records {
		if record.MatchesQuery(query) {
			results = append(results, record)
		}
	}

	if query.Offset > 0 && query.Offset < len(results) {
		results = results[query.Offset:]
	} else if query.Offset >= len(results) && query.Offset > 0 {
		return []*Record{}
	}

	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results
}

// ValidateQuery validates query structure
func ValidateQuery(query Query) error {
	validOps := []string{"==", "!=", ">", ">=", "<", "<=", "in", "between"}
	for i, cond := range query.Conditions {
		valid := false
		for _, op := range validOps {
			if cond.Operator == op {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid operator '%s' in condition %d", cond.Operator, i)
		}

		if cond.Operator == "in" {
			if _, ok := cond.Value.([]interface{}); !ok {
				return fmt.Errorf("operator 'in' requires []interface{} value in condition %d", i)
			}
		}

		if cond.Operator == "between" {
			valid := false
			switch v := cond.Value.(type) {
			case [2]interface{}:
				valid = true
			case []interface{}:
				valid = len(v) == 2
			}
			if !valid {
				return fmt.Errorf("operator 'between' requires [2]interface{} or []interface{} with 2 elements in condition %d", i)
			}
		}

		if cond.Column == "" {
			return fmt.Errorf("empty column name in condition %d", i)
		}
		if NormalizeName(cond.Column) != cond.Column {
			return fmt.Errorf("column %q in condition %d is not a normalized name", cond.Column, i)
		}
	}

	if query.OrderBy != "" && NormalizeName(query.OrderBy) != query.OrderBy {
		return fmt.Errorf("orderby column %q is not a normalized name", query.OrderBy)
	}
	if query.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if query.Offset < 0 {
		return fmt.Errorf("offset must be non-negative")
	}

	return nil
}
