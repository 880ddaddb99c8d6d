package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereEmpty(t *testing.T) {
	var w Where
	sql, args := w.Build(0)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestWhereBuild(t *testing.T) {
	var w Where
	w.Add(Eq("r.class_id", int64(4))).Add(Eq("py.payment_status", "completed"))

	sql, args := w.Build(0)
	assert.Equal(t, " WHERE r.class_id = $1 AND py.payment_status = $2", sql)
	assert.Equal(t, []any{int64(4), "completed"}, args)
}

func TestWhereGroupAndOffset(t *testing.T) {
	var w Where
	w.Add(AnyOf(ILike("first_name", "%ali%"), ILike("last_name", "%ali%")))

	sql, args := w.Build(1)
	assert.Equal(t, " WHERE (first_name ILIKE $2 OR last_name ILIKE $3)", sql)
	assert.Len(t, args, 2)
}
