// Package extract pulls person rows out of the HTML reports that the lookup
// provider links to when it cannot return structured data.
package extract

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// Report table widths. The basic variant carries name, document and birth
// date; the rich variant adds age, sex, addresses and cities.
const (
	basicColumns = 3
	richColumns  = 7
)

// Extract returns the person rows of the first results table in doc, in
// document order. It never fails: input that is not a report, or that cannot
// be parsed, yields an empty slice.
func Extract(doc string) (records []model.PersonRecord) {
	records = []model.PersonRecord{}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("extract: recovered from panic", zap.Any("panic", r))
			records = []model.PersonRecord{}
		}
	}()

	if strings.TrimSpace(doc) == "" {
		return records
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return records
	}

	for _, table := range findAll(root, atom.Table) {
		rows := tableRows(table)
		width, headerIdx := locateHeader(rows)
		if width == 0 {
			continue
		}
		for _, row := range rows[headerIdx+1:] {
			cells := cellsOf(row, atom.Td)
			if len(cells) != width {
				continue
			}
			rec := toRecord(cells)
			if rec.Name == "" {
				continue
			}
			records = append(records, rec)
		}
		if len(records) > 0 {
			return records
		}
	}
	return records
}

// locateHeader finds the header row of a results table and returns its width
// and index. Width is zero when the table is not a results table.
func locateHeader(rows []*html.Node) (int, int) {
	for i, row := range rows {
		cells := cellsOf(row, atom.Th)
		if len(cells) == 0 {
			cells = cellsOf(row, atom.Td)
		}
		if len(cells) != basicColumns && len(cells) != richColumns {
			continue
		}
		if headerMatches(cells) {
			return len(cells), i
		}
	}
	return 0, 0
}

func headerMatches(cells []*html.Node) bool {
	name := fold(text(cells[0]))
	doc := fold(text(cells[1]))
	return strings.Contains(name, "nome") &&
		(strings.Contains(doc, "cpf") || strings.Contains(doc, "documento"))
}

func toRecord(cells []*html.Node) model.PersonRecord {
	rec := model.PersonRecord{
		Name:       text(cells[0]),
		DocumentID: text(cells[1]),
		BirthDate:  text(cells[2]),
	}
	if len(cells) == richColumns {
		rec.Age = text(cells[3])
		rec.Sex = text(cells[4])
		rec.Addresses = text(cells[5])
		rec.Cities = text(cells[6])
	}
	return rec
}

// tableRows returns the rows that belong to table itself, skipping rows of
// nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				rows = append(rows, c)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func cellsOf(row *html.Node, a atom.Atom) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			cells = append(cells, c)
		}
	}
	return cells
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// text returns the visible text of a cell. Line breaks inside a cell
// (multiple addresses, multiple cities) are joined with "; ".
func text(n *html.Node) string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			parts = append(parts, s)
		}
		cur.Reset()
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		case n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li || n.DataAtom == atom.P):
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	flush()
	return strings.Join(parts, "; ")
}

// fold lower-cases s and strips diacritics so "ENDEREÇOS" matches "enderecos".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
