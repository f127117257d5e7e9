package engine

import (
	"encoding/json"
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

func TestNormalizeToInt64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{int(5), 5, true},
		{int64(-3), -3, true},
		{json.Number("30"), 30, true},
		{json.Number("3.0"), 3, true},
		{json.Number("1e2"), 100, true},
		{json.Number("2.5"), 0, false},
		{json.Number("9223372036854775807"), math.MaxInt64, true},
		{json.Number("-9223372036854775808"), math.MinInt64, true},
		{json.Number("-9223372036854775809"), 0, false},
		{json.Number("9223372036854775808"), 0, false},
		{json.Number("9007199254740993.0"), 9007199254740993, true},
		{json.Number("9223372036854775807.0"), math.MaxInt64, true},
		{json.Number("9.2233720368547758e18"), 9223372036854775800, true},
		{json.Number("1e19"), 0, false},
		{json.Number("1e100000"), 0, false},
		{json.Number("120e-1"), 12, true},
		{json.Number("125e-1"), 0, false},
		{float64(7), 7, true},
		{float64(7.25), 0, false},
		{math.Inf(1), 0, false},
		{"7", 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := normalizeToInt64(c.in)
		assert.Equal(t, c.ok, ok, "input %#v", c.in)
		assert.Equal(t, c.want, got, "input %#v", c.in)
	}
}

func TestValidateRowKeepsOnlySpecFields(t *testing.T) {
	spec := schema.TableSpec{Fields: []schema.Field{
		{Name: "name", Type: schema.String(10)},
		{Name: "ok", Type: schema.Boolean()},
	}}
	row := data.NewRow(map[string]interface{}{"id": int64(9), "name": "Ann", "ok": false})

	out, err := validateRow("t1", spec, row)
	assert.NilError(t, err)
	assert.DeepEqual(t, map[string]interface{}{"name": "Ann", "ok": false}, out.Data)
	assert.DeepEqual(t, []string{"name", "ok"}, out.Columns)

	// caller's row is untouched
	assert.Equal(t, int64(9), row.Data["id"])
}

func TestValidateRowRejectsNull(t *testing.T) {
	spec := schema.TableSpec{Fields: []schema.Field{{Name: "name", Type: schema.String(10)}}}

	_, err := validateRow("t1", spec, data.NewRow(map[string]interface{}{"name": nil}))
	assert.ErrorContains(t, err, "required")
}
