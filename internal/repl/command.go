package repl

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/executor"
)

// Statement is one parsed REPL line.
type Statement struct {
	Create   *Create   `  "create" @@`
	Alter    *Alter    `| "alter" @@`
	Drop     *TableArg `| "drop" @@`
	Tables   bool      `| @"tables"`
	Describe *TableArg `| "describe" @@`
	Insert   *Insert   `| "insert" @@`
	Rows     *TableArg `| "rows" @@`
	Get      *RowArg   `| "get" @@`
	Delete   *RowArg   `| "delete" @@`
}

// Create declares a new table: create name:str age:int
type Create struct {
	Fields []*FieldDecl `@@+`
}

// Alter replaces a table's fields: alter t1 name:str
type Alter struct {
	Table  string       `@Ident`
	Fields []*FieldDecl `@@+`
}

type FieldDecl struct {
	Name   string `@Ident ":"`
	Symbol string `@Ident`
}

type TableArg struct {
	Table string `@Ident`
}

type RowArg struct {
	Table string `@Ident`
	RowID int64  `@Number`
}

// Insert stores a row: insert t1 name="Ann" age=30 ok=true
type Insert struct {
	Table  string        `@Ident`
	Values []*Assignment `@@*`
}

type Assignment struct {
	Field string `@Ident "="`
	Value *Value `@@`
}

type Value struct {
	String *string  `  @String`
	Number *int64   `| @Number`
	Bool   *Boolean `| @("true" | "false")`
}

// Boolean captures the true/false keywords.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

func (v *Value) interfaceValue() interface{} {
	switch {
	case v.String != nil:
		return *v.String
	case v.Number != nil:
		return *v.Number
	case v.Bool != nil:
		return bool(*v.Bool)
	}
	return nil
}

var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[:=]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

var commandParser = participle.MustBuild[Statement](
	participle.Lexer(commandLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// Parse turns one REPL line into an executor command.
func Parse(line string) (executor.Command, error) {
	stmt, err := commandParser.ParseString("", line)
	if err != nil {
		return executor.Command{}, err
	}
	return stmt.Command(), nil
}

// Command converts the statement into the executor's request form.
func (s *Statement) Command() executor.Command {
	switch {
	case s.Create != nil:
		return executor.Command{Op: executor.OpCreate, Fields: fieldList(s.Create.Fields)}
	case s.Alter != nil:
		return executor.Command{Op: executor.OpAlter, TableID: s.Alter.Table, Fields: fieldList(s.Alter.Fields)}
	case s.Drop != nil:
		return executor.Command{Op: executor.OpDrop, TableID: s.Drop.Table}
	case s.Tables:
		return executor.Command{Op: executor.OpTables}
	case s.Describe != nil:
		return executor.Command{Op: executor.OpDescribe, TableID: s.Describe.Table}
	case s.Insert != nil:
		row := data.Row{Data: make(map[string]interface{}, len(s.Insert.Values))}
		for _, a := range s.Insert.Values {
			if _, dup := row.Data[a.Field]; !dup {
				row.Columns = append(row.Columns, a.Field)
			}
			row.Data[a.Field] = a.Value.interfaceValue()
		}
		return executor.Command{Op: executor.OpInsert, TableID: s.Insert.Table, Row: row}
	case s.Rows != nil:
		return executor.Command{Op: executor.OpRows, TableID: s.Rows.Table}
	case s.Get != nil:
		return executor.Command{Op: executor.OpGet, TableID: s.Get.Table, RowID: s.Get.RowID}
	case s.Delete != nil:
		return executor.Command{Op: executor.OpDelete, TableID: s.Delete.Table, RowID: s.Delete.RowID}
	}
	return executor.Command{}
}

func fieldList(decls []*FieldDecl) schema.FieldList {
	out := make(schema.FieldList, len(decls))
	for i, d := range decls {
		out[i] = schema.FieldDecl{Name: d.Name, Symbol: d.Symbol}
	}
	return out
}
