// Package report reads and writes experiment results documents in Markdown.
package report

import (
	"errors"
	"fmt"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrNoTable       = errors.New("no results table found")
	ErrMissingColumn = errors.New("missing required column")
	ErrBadCell       = errors.New("invalid table cell")
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var intRegexp = regexp.MustCompile(`\d+`)

// Column heading aliases, checked in order. Aliases longer than 3 characters also match as a substring.
var columnAliases = []struct {
	field   expt.Field
	aliases []string
}{
	{expt.FieldID, []string{"#", "id", "no", "exp", "run", "experiment"}},
	{expt.FieldHidden, []string{"hidden", "dense"}},
	{expt.FieldDropout, []string{"dropout"}},
	{expt.FieldAccuracy, []string{"acc", "accuracy"}},
	{expt.FieldLoss, []string{"loss"}},
	{expt.FieldRemarks, []string{"remark", "notes", "comment"}},
	{expt.FieldArchitecture, []string{"arch", "model", "layers", "architecture", "network"}},
}

var requiredColumns = []expt.Field{expt.FieldID, expt.FieldAccuracy, expt.FieldLoss}

// ParseFile reads a report from disk and sets its source path and content digest.
func ParseFile(path string) (*expt.Report, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.Source = path
	if r.Digest, err = Digest(src); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse a Markdown results document. The first heading is the title, text before the first table the
// introduction and text after it the conclusion.
func Parse(src []byte) (*expt.Report, error) {
	doc := markdown.Parser().Parse(text.NewReader(src))
	r := &expt.Report{}
	var intro, concl []string
	var table *east.Table
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			if r.Title == "" && table == nil {
				r.Title = plainText(v, src)
			}
		case *east.Table:
			if table == nil {
				table = v
			}
		default:
			if s := plainText(v, src); s != "" {
				if table == nil {
					intro = append(intro, s)
				} else {
					concl = append(concl, s)
				}
			}
		}
	}
	if table == nil {
		return nil, ErrNoTable
	}
	r.Intro = strings.Join(intro, "\n\n")
	r.Conclusion = strings.Join(concl, "\n\n")
	r.Links = links(doc, src)
	if err := parseTable(r, table, src); err != nil {
		return nil, err
	}
	return r, nil
}

func parseTable(r *expt.Report, table *east.Table, src []byte) error {
	var cols []int
	row := 0
	for n := table.FirstChild(); n != nil; n = n.NextSibling() {
		cells := tableCells(n, src)
		switch n.(type) {
		case *east.TableHeader:
			var err error
			if cols, err = mapColumns(r, cells); err != nil {
				return err
			}
		case *east.TableRow:
			row++
			e, err := parseRow(row, cells, cols)
			if err != nil {
				return err
			}
			r.Experiments = append(r.Experiments, e)
		}
	}
	return nil
}

// map heading cells to fields, returns field index per cell or -1 if not used.
func mapColumns(r *expt.Report, headers []string) ([]int, error) {
	cols := make([]int, len(headers))
	used := make(map[expt.Field]bool)
	for i, h := range headers {
		cols[i] = -1
		if f, ok := columnField(h); ok && !used[f] {
			used[f] = true
			cols[i] = int(f)
			r.Columns = append(r.Columns, f)
			r.Headers = append(r.Headers, h)
		}
	}
	for _, f := range requiredColumns {
		if !used[f] {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
	}
	return cols, nil
}

func columnField(heading string) (expt.Field, bool) {
	h := strings.ToLower(strings.TrimSpace(heading))
	for _, col := range columnAliases {
		for _, alias := range col.aliases {
			if h == alias || (len(alias) > 3 && strings.Contains(h, alias)) {
				return col.field, true
			}
		}
	}
	return 0, false
}

func parseRow(row int, cells []string, cols []int) (e expt.Experiment, err error) {
	for i, cell := range cells {
		if i >= len(cols) || cols[i] < 0 {
			continue
		}
		f := expt.Field(cols[i])
		switch f {
		case expt.FieldID:
			e.ID, err = parseInt(strings.TrimPrefix(strings.TrimSpace(cell), "#"), true)
		case expt.FieldArchitecture:
			e.Architecture = cell
		case expt.FieldHidden:
			e.Hidden, err = parseInt(cell, false)
		case expt.FieldDropout:
			e.Dropout, err = parseNumber(cell, false)
		case expt.FieldAccuracy:
			e.Accuracy, err = parseNumber(cell, true)
		case expt.FieldLoss:
			e.Loss, err = parseNumber(cell, true)
		case expt.FieldRemarks:
			e.Remarks = cell
		}
		if err != nil {
			return e, fmt.Errorf("%w: row %d column %s: %q", ErrBadCell, row, f, cell)
		}
	}
	return e, nil
}

func blank(s string) bool {
	switch strings.ToLower(s) {
	case "", "-", "n/a", "none":
		return true
	}
	return false
}

// first integer in the cell, so "128 units" reads as 128
func parseInt(s string, required bool) (int, error) {
	s = strings.TrimSpace(s)
	if blank(s) && !required {
		return 0, nil
	}
	m := intRegexp.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return strconv.Atoi(m)
}

// accepts 0.9619, 96.19% or ~0.96
func parseNumber(s string, required bool) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "~"))
	if blank(s) && !required {
		return 0, nil
	}
	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if pct {
		x /= 100
	}
	return x, nil
}

func tableCells(row ast.Node, src []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*east.TableCell); ok {
			cells = append(cells, plainText(c, src))
		}
	}
	return cells
}

// plainText concatenates the text under a node with whitespace collapsed and backslash escapes removed.
// Code spans are copied as written.
func plainText(node ast.Node, src []byte) string {
	var b strings.Builder
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n != node && n.Type() == ast.TypeBlock {
			b.WriteByte(' ')
		}
		switch v := n.(type) {
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(util.UnescapePunctuations(v.Segment.Value(src)))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// links returns each distinct link destination in document order.
func links(doc ast.Node, src []byte) []string {
	var list []string
	seen := make(map[string]bool)
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			list = append(list, url)
		}
	}
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			add(string(v.Destination))
		case *ast.AutoLink:
			add(string(v.URL(src)))
		}
		return ast.WalkContinue, nil
	})
	return list
}
