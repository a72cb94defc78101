package cmd

import (
	"fmt"
	"strconv"
	"strings"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

// longest operators first so ">=" is not read as ">"
var operators = []string{"==", "!=", ">=", "<=", "=", ">", "<"}

// parseCondition reads "column<op>value", e.g. "unit price>=2.5". Numeric
// values compare as numbers.
func parseCondition(s string) (sheetfeed.Condition, error) {
	best, at := "", -1
	for _, op := range operators {
		if i := strings.Index(s, op); i > 0 && (at < 0 || i < at) {
			best, at = op, i
		}
	}
	if at < 0 {
		return sheetfeed.Condition{}, fmt.Errorf("%w: condition %q has no operator", sheetfeed.ErrConfig, s)
	}
	column := sheetfeed.NormalizeName(s[:at])
	if column == "" {
		return sheetfeed.Condition{}, fmt.Errorf("%w: condition %q has no column", sheetfeed.ErrConfig, s)
	}
	op := best
	if op == "=" {
		op = "=="
	}
	raw := strings.TrimSpace(s[at+len(best):])
	var value interface{} = raw
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = f
	}
	return sheetfeed.Condition{Column: column, Operator: op, Value: value}, nil
}

// parseFields reads "column=value" arguments
func parseFields(args []string) ([]sheetfeed.Field, error) {
	fields := make([]sheetfeed.Field, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: field %q is not column=value", sheetfeed.ErrConfig, arg)
		}
		fields = append(fields, sheetfeed.Field{Name: strings.TrimSpace(name), Value: value})
	}
	return fields, nil
}
