package runtime

import (
	"fmt"
	"strings"
)

// Operator is a comparison used in a Condition.
type Operator string

const (
	OpEqual Operator = "="
	OpILike Operator = "ILIKE"
)

// Condition is one comparison against a bound parameter, or an OR group of
// conditions when Any is set.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Any      []Condition
}

// Eq creates an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpEqual, Value: value}
}

// ILike creates a case-insensitive pattern condition.
func ILike(column, pattern string) Condition {
	return Condition{Column: column, Operator: OpILike, Value: pattern}
}

// AnyOf groups conditions joined by OR.
func AnyOf(conditions ...Condition) Condition {
	return Condition{Any: conditions}
}

// Where collects AND-joined conditions and numbers their parameters.
type Where struct {
	conditions []Condition
}

// Add appends a condition.
func (w *Where) Add(c Condition) *Where {
	w.conditions = append(w.conditions, c)
	return w
}

// Build returns " WHERE ..." with its arguments, or an empty clause when no
// condition was added. Parameter numbering starts after offset existing ones.
func (w *Where) Build(offset int) (string, []any) {
	if len(w.conditions) == 0 {
		return "", nil
	}

	var args []any
	parts := make([]string, 0, len(w.conditions))
	for _, c := range w.conditions {
		parts = append(parts, build(c, offset, &args))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func build(c Condition, offset int, args *[]any) string {
	if len(c.Any) > 0 {
		parts := make([]string, 0, len(c.Any))
		for _, sub := range c.Any {
			parts = append(parts, build(sub, offset, args))
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}

	*args = append(*args, c.Value)
	return fmt.Sprintf("%s %s $%d", c.Column, c.Operator, offset+len(*args))
}
