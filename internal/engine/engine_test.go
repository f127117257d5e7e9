package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage/metadata"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(context.Background(), Options{
		Path:   filepath.Join(t.TempDir(), "engine.db"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.NilError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func decodeFields(t *testing.T, raw string) schema.FieldList {
	t.Helper()
	var fields schema.FieldList
	assert.NilError(t, json.Unmarshal([]byte(raw), &fields))
	return fields
}

func decodeRow(t *testing.T, raw string) data.Row {
	t.Helper()
	var row data.Row
	assert.NilError(t, json.Unmarshal([]byte(raw), &row))
	return row
}

func rowJSON(t *testing.T, row data.Row) string {
	t.Helper()
	b, err := json.Marshal(row)
	assert.NilError(t, err)
	return string(b)
}

func TestCreateInsertList(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str","age":"int"}`))
	assert.NilError(t, err)
	assert.Equal(t, "t1", id)

	stored, err := eng.Insert(ctx, id, decodeRow(t, `{"name":"Ann","age":30}`))
	assert.NilError(t, err)
	assert.Equal(t, `{"id":1,"name":"Ann","age":30}`, rowJSON(t, stored))

	rows, err := eng.List(ctx, id)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(rows, 1))
	assert.Equal(t, `{"id":1,"name":"Ann","age":30}`, rowJSON(t, rows[0]))
}

func TestAlterDiscardsRows(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str","age":"int"}`))
	assert.NilError(t, err)
	_, err = eng.Insert(ctx, id, decodeRow(t, `{"name":"Ann","age":30}`))
	assert.NilError(t, err)

	assert.NilError(t, eng.AlterTable(ctx, id, decodeFields(t, `{"name":"str"}`)))

	rows, err := eng.List(ctx, id)
	assert.NilError(t, err)
	assert.Check(t, is.Len(rows, 0))

	spec, err := eng.ResolveSpec(ctx, id)
	assert.NilError(t, err)
	assert.DeepEqual(t, []schema.Field{{Name: "name", Type: schema.String(schema.DefaultStringLength)}}, spec.Fields)
}

func TestCreateWithUnknownTypeAllocatesNothing(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	obs := &MockObserver{}
	eng.AddObserver(obs)

	_, err := eng.CreateTable(ctx, decodeFields(t, `{"score":"float"}`))

	var ce *errors.CompilationError
	assert.Assert(t, stderrors.As(err, &ce))
	unknown := ce.UnknownTypes()
	assert.Assert(t, is.Len(unknown, 1))
	assert.Equal(t, "score", unknown[0].Field)
	assert.Equal(t, "float", unknown[0].Symbol)

	ids, err := eng.ListTables(ctx)
	assert.NilError(t, err)
	assert.Check(t, is.Len(ids, 0))
	assert.DeepEqual(t, []EventType{EventSchemaRejected}, obs.Types())

	// the failed attempt does not consume an id
	id, err := eng.CreateTable(ctx, decodeFields(t, `{"score":"int"}`))
	assert.NilError(t, err)
	assert.Equal(t, "t1", id)
}

func TestInsertValidationReportsEveryField(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str","age":"int","ok":"bool"}`))
	assert.NilError(t, err)

	_, err = eng.Insert(ctx, id, decodeRow(t, `{"name":7,"age":1.5,"extra":"x","id":99}`))
	var ve *errors.ValidationError
	assert.Assert(t, stderrors.As(err, &ve))
	assert.DeepEqual(t, []string{"name", "age", "ok", "extra"}, ve.FieldNames())
	assert.Equal(t, "type_mismatch", ve.Fields[0].Constraint)
	assert.Equal(t, "required", ve.Fields[2].Constraint)
	assert.Equal(t, "unknown_field", ve.Fields[3].Constraint)
	assert.Assert(t, stderrors.Is(err, errors.ErrInvalidInput))

	rows, err := eng.List(ctx, id)
	assert.NilError(t, err)
	assert.Check(t, is.Len(rows, 0))
}

func TestInsertIntegerRoundTripIsExact(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"n":"int"}`))
	assert.NilError(t, err)

	for _, raw := range []string{`{"n":-9223372036854775809}`, `{"n":9223372036854775808}`, `{"n":1e19}`} {
		_, err := eng.Insert(ctx, id, decodeRow(t, raw))
		var ve *errors.ValidationError
		assert.Assert(t, stderrors.As(err, &ve), raw)
		assert.Equal(t, "type_mismatch", ve.Fields[0].Constraint)
	}

	_, err = eng.Insert(ctx, id, decodeRow(t, `{"n":9007199254740993.0}`))
	assert.NilError(t, err)
	_, err = eng.Insert(ctx, id, decodeRow(t, `{"n":-9223372036854775808}`))
	assert.NilError(t, err)

	rows, err := eng.List(ctx, id)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(rows, 2))
	assert.Equal(t, int64(9007199254740993), rows[0].Data["n"])
	assert.Equal(t, int64(-9223372036854775808), rows[1].Data["n"])
}

func TestInsertIgnoresSuppliedIdentity(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"ok":"bool"}`))
	assert.NilError(t, err)

	stored, err := eng.Insert(ctx, id, decodeRow(t, `{"id":42,"ok":true}`))
	assert.NilError(t, err)
	rowID, _ := stored.ID()
	assert.Equal(t, int64(1), rowID)
	assert.Equal(t, true, stored.Data["ok"])
}

func TestInsertStringBound(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	assert.NilError(t, eng.Registry().Register("code", schema.String(3)))

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"code":"code"}`))
	assert.NilError(t, err)

	// rune count, not bytes
	_, err = eng.Insert(ctx, id, decodeRow(t, `{"code":"äöü"}`))
	assert.NilError(t, err)

	_, err = eng.Insert(ctx, id, decodeRow(t, `{"code":"abcd"}`))
	var ve *errors.ValidationError
	assert.Assert(t, stderrors.As(err, &ve))
	assert.Equal(t, "max_length", ve.Fields[0].Constraint)
}

func TestRowAccessOnMissingTable(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	_, err := eng.List(ctx, "t7")
	var nf *errors.NotFoundError
	assert.Assert(t, stderrors.As(err, &nf))

	_, err = eng.Insert(ctx, "t7", data.NewRow(nil))
	assert.Assert(t, stderrors.As(err, &nf))

	_, err = eng.ResolveSpec(ctx, "t7")
	assert.Assert(t, stderrors.As(err, &nf))
}

func TestGetAndDeleteRow(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	obs := &MockObserver{}
	eng.AddObserver(obs)

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str"}`))
	assert.NilError(t, err)
	_, err = eng.Insert(ctx, id, decodeRow(t, `{"name":"Ann"}`))
	assert.NilError(t, err)

	row, err := eng.GetRow(ctx, id, 1)
	assert.NilError(t, err)
	assert.Equal(t, "Ann", row.Data["name"])

	assert.NilError(t, eng.DeleteRow(ctx, id, 1))

	_, err = eng.GetRow(ctx, id, 1)
	var rnf *errors.RowNotFoundError
	assert.Assert(t, stderrors.As(err, &rnf))
	assert.Equal(t, int64(1), rnf.RowID)
	assert.Assert(t, stderrors.Is(eng.DeleteRow(ctx, id, 1), errors.ErrNotFound))

	assert.DeepEqual(t, []EventType{EventTableCreated, EventRowInserted, EventRowDeleted}, obs.Types())
}

func TestDropTable(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	first, err := eng.CreateTable(ctx, decodeFields(t, `{"a":"int"}`))
	assert.NilError(t, err)
	second, err := eng.CreateTable(ctx, decodeFields(t, `{"b":"int"}`))
	assert.NilError(t, err)

	assert.NilError(t, eng.DropTable(ctx, first))

	ids, err := eng.ListTables(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{second}, ids)

	_, err = eng.List(ctx, first)
	assert.Assert(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestCorruptFingerprint(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"a":"int"}`))
	assert.NilError(t, err)
	_, err = eng.storage.DB().Exec(`UPDATE `+metadata.TableName+` SET field_types = '["str"]' WHERE logical_id = ?`, id)
	assert.NilError(t, err)

	_, err = eng.ResolveSpec(ctx, id)
	var cde *errors.CorruptDefinitionError
	assert.Assert(t, stderrors.As(err, &cde))
	assert.Equal(t, id, cde.TableID)
}

func TestDescribe(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str","age":"int"}`))
	assert.NilError(t, err)

	def, spec, err := eng.Describe(ctx, id)
	assert.NilError(t, err)
	assert.Equal(t, id, def.LogicalID)
	assert.DeepEqual(t, []string{"str", "int"}, def.FieldTypes)
	assert.DeepEqual(t, []string{"id", "name", "age"}, spec.Columns())
}

func TestDescribeReportsMissingPhysicalTable(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"name":"str"}`))
	assert.NilError(t, err)
	def, _, err := eng.Describe(ctx, id)
	assert.NilError(t, err)
	assert.NilError(t, eng.storage.DropTable(ctx, eng.storage.DB(), def.PhysicalName))

	_, _, err = eng.Describe(ctx, id)
	var corrupt *errors.CorruptDefinitionError
	assert.Assert(t, stderrors.As(err, &corrupt))
	assert.ErrorContains(t, err, "is missing")

	// the definition can still be dropped
	assert.NilError(t, eng.DropTable(ctx, id))
}

func TestInsertWaitsForOpenAlter(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.CreateTable(ctx, decodeFields(t, `{"n":"int"}`))
	assert.NilError(t, err)
	def, _, err := eng.Describe(ctx, id)
	assert.NilError(t, err)

	// replace the table by hand and keep the transaction open
	newFields := decodeFields(t, `{"n":"str"}`)
	newSpec, err := eng.compiler.Compile(newFields)
	assert.NilError(t, err)
	tx, err := eng.storage.DB().BeginTx(ctx, nil)
	assert.NilError(t, err)
	assert.NilError(t, eng.storage.DropTable(ctx, tx, def.PhysicalName))
	assert.NilError(t, eng.storage.CreateTable(ctx, tx, def.PhysicalName, newSpec))
	def.SetLayout(newFields)
	assert.NilError(t, eng.store.Save(ctx, tx, def))

	row := decodeRow(t, `{"n":5}`)
	done := make(chan error, 1)
	go func() {
		_, err := eng.Insert(ctx, id, row)
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)
	assert.NilError(t, tx.Commit())

	// the insert is checked against the committed str column, not the old int one
	err = <-done
	var ve *errors.ValidationError
	assert.Assert(t, stderrors.As(err, &ve))
	assert.Equal(t, "type_mismatch", ve.Fields[0].Constraint)

	rows, err := eng.List(ctx, id)
	assert.NilError(t, err)
	assert.Check(t, is.Len(rows, 0))
}
