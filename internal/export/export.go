// Package export writes table contents as xz-compressed JSON Lines.
// The first line is a Header; every following line is one row.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// Format identifies the stream layout.
const Format = "dyntable-rows/v1"

// Header describes the table an export was taken from.
type Header struct {
	Format      string           `json:"format"`
	TableID     string           `json:"table_id"`
	Fields      schema.FieldList `json:"fields"`
	Fingerprint string           `json:"fingerprint"`
	RowCount    int              `json:"row_count"`
	ExportedAt  time.Time        `json:"exported_at"`
}

// Source is what Table reads from.
type Source interface {
	Describe(ctx context.Context, id string) (*schema.TableDefinition, schema.TableSpec, error)
	List(ctx context.Context, id string) ([]data.Row, error)
}

// Table exports every row of table id to w and returns the row count.
func Table(ctx context.Context, src Source, id string, w io.Writer) (int, error) {
	def, _, err := src.Describe(ctx, id)
	if err != nil {
		return 0, err
	}
	rows, err := src.List(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := Rows(ctx, w, def, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Rows writes def's header followed by rows.
func Rows(ctx context.Context, w io.Writer, def *schema.TableDefinition, rows []data.Row) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}

	bw := bufio.NewWriter(xw)
	enc := json.NewEncoder(bw)
	header := Header{
		Format:      Format,
		TableID:     def.LogicalID,
		Fields:      def.Layout(),
		Fingerprint: def.Fingerprint,
		RowCount:    len(rows),
		ExportedAt:  time.Now().UTC(),
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("failed to close xz stream: %w", err)
	}
	return nil
}

// ReadRows reads a stream written by Rows.
func ReadRows(r io.Reader) (*Header, []data.Row, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
	}

	dec := json.NewDecoder(xr)
	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if header.Format != Format {
		return nil, nil, fmt.Errorf("unsupported export format %q", header.Format)
	}

	rows := make([]data.Row, 0, header.RowCount)
	for dec.More() {
		var row data.Row
		if err := dec.Decode(&row); err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows), err)
		}
		row.Columns = append([]string{schema.IdentityColumn}, header.Fields.Names()...)
		rows = append(rows, row)
	}
	if len(rows) != header.RowCount {
		return nil, nil, fmt.Errorf("export truncated: header announces %d rows, found %d", header.RowCount, len(rows))
	}
	return &header, rows, nil
}
