package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Width caps a column by soft-wrapping
// its cells; zero leaves it unbounded.
type column struct {
	Header string
	Right  bool
	Width  int
}

// queryWidth wraps long queries and URLs instead of stretching the table.
const queryWidth = 60

func col(header string) column { return column{Header: header} }

func numberCol(header string) column { return column{Header: header, Right: true} }

func wrapCol(header string) column { return column{Header: header, Width: queryWidth} }

// writeTable renders rows under columns with the rounded style. Short rows
// are padded with empty cells.
func writeTable(out io.Writer, columns []column, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Header
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.Right {
			cfg.Align = text.AlignRight
		}
		if c.Width > 0 {
			cfg.WidthMax = c.Width
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	tw.Render()
}
