// Command tabq compiles a pipeline definition file against a tabular input
// and either executes it or prints the compiled plan. Stage definitions are
// pure data: every column name and expression arrives as a string in the
// YAML file, never as an identifier in anyone's source code.
package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"tabq/engine"
	"tabq/loader"
	"tabq/plan"
	"tabq/table"
)

var cli struct {
	Table    string `arg:"" help:"Input table (.csv, .json, .jsonl, .avro, .parquet; .gz accepted for csv/jsonl)."`
	Pipeline string `arg:"" help:"Pipeline definition YAML."`
	Explain  bool   `help:"Print the compiled plan as YAML instead of executing."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("tabq"),
		kong.Description("Compile and run standard-evaluation table pipelines."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	input, err := loader.Load(cli.Table)
	if err != nil {
		return err
	}

	p, err := readPipeline(cli.Pipeline, input.Schema())
	if err != nil {
		return err
	}

	compiled, err := plan.Compile(p)
	if err != nil {
		return err
	}

	if cli.Explain {
		out, err := yaml.Marshal(compiled)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}

	result, err := engine.New().Run(compiled, input)
	if err != nil {
		return err
	}
	printTable(result)
	return nil
}

// printTable writes an aligned text rendering of t to stdout.
func printTable(t *table.Table) {
	if len(t.Columns) == 0 {
		return
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = len(col)
	}

	cells := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row.Values) {
				cells[i][j] = row.Values[j].AsString()
			} else {
				cells[i][j] = "null"
			}
			if len(cells[i][j]) > widths[j] {
				widths[j] = len(cells[i][j])
			}
		}
	}

	headerParts := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headerParts[i] = padRight(col, widths[i])
	}
	fmt.Println(strings.Join(headerParts, " | "))

	sepParts := make([]string, len(t.Columns))
	for i := range t.Columns {
		sepParts[i] = strings.Repeat("-", widths[i])
	}
	fmt.Println(strings.Join(sepParts, "-+-"))

	for _, row := range cells {
		parts := make([]string, len(t.Columns))
		for i := range t.Columns {
			parts[i] = padRight(row[i], widths[i])
		}
		fmt.Println(strings.Join(parts, " | "))
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
