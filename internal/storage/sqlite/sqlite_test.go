package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), Options{}, nil)
	assert.NilError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

var peopleSpec = schema.TableSpec{Fields: []schema.Field{
	{Name: "name", Type: schema.String(8)},
	{Name: "age", Type: schema.Integer()},
	{Name: "active", Type: schema.Boolean()},
}}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"name"`, QuoteIdent("name"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
	assert.Equal(t, `"x; DROP TABLE y"`, QuoteIdent("x; DROP TABLE y"))
}

func TestCreateTableSQL(t *testing.T) {
	stmt, err := CreateTableSQL("dt_1", peopleSpec)
	assert.NilError(t, err)
	assert.Equal(t, `CREATE TABLE "dt_1" (`+
		`"id" INTEGER PRIMARY KEY AUTOINCREMENT, `+
		`"name" VARCHAR(8) NOT NULL CHECK (length("name") <= 8), `+
		`"age" INTEGER NOT NULL, `+
		`"active" BOOLEAN NOT NULL CHECK ("active" IN (0, 1)))`, stmt)

	_, err = CreateTableSQL("dt_1", schema.TableSpec{Fields: []schema.Field{{Name: "f", Type: schema.ColumnType{Kind: "FLOAT"}}}})
	assert.ErrorContains(t, err, "unsupported kind")
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t)
	db := eng.DB()

	assert.NilError(t, eng.CreateTable(ctx, db, "people", peopleSpec))
	exists, err := eng.TableExists(ctx, db, "people")
	assert.NilError(t, err)
	assert.Assert(t, exists)

	in := data.NewRow(map[string]interface{}{"name": "Ann", "age": int64(30), "active": true})
	stored, err := eng.Insert(ctx, db, "people", peopleSpec, in)
	assert.NilError(t, err)
	assert.Equal(t, int64(1), stored.Data["id"])
	assert.DeepEqual(t, []string{"id", "name", "age", "active"}, stored.Columns)

	_, err = eng.Insert(ctx, db, "people", peopleSpec,
		data.NewRow(map[string]interface{}{"name": "Bob", "age": int64(41), "active": false}))
	assert.NilError(t, err)

	rows, err := eng.Scan(ctx, db, "people", peopleSpec)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(rows, 2))
	assert.DeepEqual(t, map[string]interface{}{"id": int64(1), "name": "Ann", "age": int64(30), "active": true}, rows[0].Data)
	assert.Equal(t, false, rows[1].Data["active"])

	got, found, err := eng.Get(ctx, db, "people", peopleSpec, 2)
	assert.NilError(t, err)
	assert.Assert(t, found)
	assert.Equal(t, "Bob", got.Data["name"])

	deleted, err := eng.Delete(ctx, db, "people", 2)
	assert.NilError(t, err)
	assert.Assert(t, deleted)
	_, found, err = eng.Get(ctx, db, "people", peopleSpec, 2)
	assert.NilError(t, err)
	assert.Assert(t, !found)

	deleted, err = eng.Delete(ctx, db, "people", 2)
	assert.NilError(t, err)
	assert.Assert(t, !deleted)
}

func TestStringBoundEnforcedByEngine(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t)
	db := eng.DB()
	assert.NilError(t, eng.CreateTable(ctx, db, "people", peopleSpec))

	_, err := eng.Insert(ctx, db, "people", peopleSpec,
		data.NewRow(map[string]interface{}{"name": "far too long", "age": int64(1), "active": true}))
	assert.ErrorContains(t, err, "insert into people")
}

func TestInsertRejectsUnboundType(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t)
	db := eng.DB()
	assert.NilError(t, eng.CreateTable(ctx, db, "people", peopleSpec))

	_, err := eng.Insert(ctx, db, "people", peopleSpec,
		data.NewRow(map[string]interface{}{"name": "Ann", "age": "thirty", "active": true}))
	assert.ErrorContains(t, err, "cannot bind string")
}

func TestDropTable(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t)
	db := eng.DB()
	assert.NilError(t, eng.CreateTable(ctx, db, "people", peopleSpec))
	assert.NilError(t, eng.DropTable(ctx, db, "people"))

	exists, err := eng.TableExists(ctx, db, "people")
	assert.NilError(t, err)
	assert.Assert(t, !exists)
	assert.ErrorContains(t, eng.DropTable(ctx, db, "people"), "drop table people")
}

func TestCreateRolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t)

	tx, err := eng.DB().BeginTx(ctx, nil)
	assert.NilError(t, err)
	assert.NilError(t, eng.CreateTable(ctx, tx, "people", peopleSpec))
	assert.NilError(t, tx.Rollback())

	exists, err := eng.TableExists(ctx, eng.DB(), "people")
	assert.NilError(t, err)
	assert.Assert(t, !exists)
}
