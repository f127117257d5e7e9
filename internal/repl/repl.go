package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/leengari/dyntable/internal/executor"
)

// Start reads commands from in until EOF or exit and prints results to out.
func Start(ctx context.Context, eng executor.Engine, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Welcome to dyntable")
	fmt.Fprintln(out, "Type 'exit' or '\\q' to quit.")

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if line == "exit" || line == "\\q" {
			break
		}

		cmd, err := Parse(line)
		if err != nil {
			fmt.Fprintf(out, "Syntax error: %v\n", err)
			continue
		}

		result, err := executor.Execute(ctx, eng, cmd)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		PrintResult(out, result)
	}
}

func PrintResult(w io.Writer, res *executor.Result) {
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
		return
	}

	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}

	if len(res.Rows) > 0 || len(res.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

		// Header
		fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))

		// Separator
		sep := make([]string, len(res.Columns))
		for i := range sep {
			sep[i] = "---"
		}
		fmt.Fprintln(tw, strings.Join(sep, "\t"))

		// Rows
		for _, row := range res.Rows {
			cells := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				val, ok := row.Get(col)
				if !ok {
					cells[i] = "NULL"
				} else {
					cells[i] = fmt.Sprintf("%v", val)
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		tw.Flush()
	}
}
