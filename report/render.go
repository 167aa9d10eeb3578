package report

import (
	"bufio"
	"fmt"
	"github.com/jnb666/trafficsigns/expt"
	"io"
	"strings"
	"unicode/utf8"
)

// Render writes the report as a Markdown document which parses back to the same table.
func Render(w io.Writer, r *expt.Report) error {
	bw := bufio.NewWriter(w)
	if r.Title != "" {
		fmt.Fprintf(bw, "# %s\n\n", r.Title)
	}
	if r.Intro != "" {
		fmt.Fprintf(bw, "%s\n\n", r.Intro)
	}
	cols, headers := r.Columns, r.Headers
	if len(cols) == 0 || len(headers) != len(cols) {
		cols, headers = expt.Fields, nil
	}
	writeTable(bw, cols, headers, r.Experiments)
	if r.Conclusion != "" {
		fmt.Fprintf(bw, "\n%s\n", r.Conclusion)
	}
	return bw.Flush()
}

// RenderTable writes the rows as a Markdown table with all columns and the default headings.
func RenderTable(w io.Writer, rows []expt.Experiment) error {
	bw := bufio.NewWriter(w)
	writeTable(bw, expt.Fields, nil, rows)
	return bw.Flush()
}

func writeTable(w io.Writer, cols []expt.Field, headers []string, rows []expt.Experiment) {
	cells := make([][]string, len(rows)+1)
	cells[0] = make([]string, len(cols))
	for i, f := range cols {
		if headers != nil {
			cells[0][i] = headers[i]
		} else {
			cells[0][i] = f.Heading()
		}
	}
	for r, e := range rows {
		cells[r+1] = make([]string, len(cols))
		for i, f := range cols {
			cells[r+1][i] = escapeCell(e.Format(f))
		}
	}
	width := make([]int, len(cols))
	for _, row := range cells {
		for i, c := range row {
			width[i] = max(width[i], utf8.RuneCountInString(c), 3)
		}
	}
	for r, row := range cells {
		writeRow(w, row, width, cols)
		if r == 0 {
			sep := make([]string, len(cols))
			for i, f := range cols {
				sep[i] = strings.Repeat("-", width[i])
				if f.Numeric() {
					sep[i] = sep[i][1:] + ":"
				}
			}
			writeRow(w, sep, width, cols)
		}
	}
}

func writeRow(w io.Writer, row []string, width []int, cols []expt.Field) {
	fmt.Fprint(w, "|")
	for i, c := range row {
		pad := strings.Repeat(" ", width[i]-utf8.RuneCountInString(c))
		if cols[i].Numeric() {
			fmt.Fprintf(w, " %s%s |", pad, c)
		} else {
			fmt.Fprintf(w, " %s%s |", c, pad)
		}
	}
	fmt.Fprintln(w)
}

var cellEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// escapeCell protects backslashes and column separators in a cell.
func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
