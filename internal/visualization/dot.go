// Package visualization renders the culture groups of a grid in various
// output formats.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/nvandessel/axelrod/internal/culture"
)

// Format specifies the output format for grid rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// FormatForPath picks the format matching path's extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return FormatDOT, nil
	case ".json":
		return FormatJSON, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("cannot infer render format from %q (use .dot, .json or .html)", filepath.Base(path))
	}
}

// Render produces g in the given format.
func Render(g *culture.Grid, format Format, title string) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(RenderDOT(g)), nil
	case FormatJSON:
		return RenderJSON(g)
	case FormatHTML:
		return RenderHTML(g, title)
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}

// RenderDOT produces a Graphviz DOT graph with one node per culture and one
// edge per pair of cultures that meet on the grid. Borders that can still
// interact are bold; frozen borders are dashed.
func RenderDOT(g *culture.Grid) string {
	groups, labels := Groups(g)
	borders := Borders(g, labels)

	var b strings.Builder
	b.WriteString("graph axelrod {\n")
	b.WriteString("  node [shape=circle, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, gr := range groups {
		b.WriteString(fmt.Sprintf("  \"c%d\" [label=\"%s\\n%d\", fillcolor=%q];\n",
			gr.ID, gr.Culture, gr.Cells, gr.Color))
	}
	b.WriteString("\n")

	for _, bd := range borders {
		style := "dashed"
		if bd.Active {
			style = "bold"
		}
		b.WriteString(fmt.Sprintf("  \"c%d\" -- \"c%d\" [label=\"%d\", style=%s, weight=%d];\n",
			bd.A, bd.B, bd.Shared, style, bd.Length))
	}

	b.WriteString("}\n")
	return b.String()
}

// gridData is the JSON shape of a rendered grid.
type gridData struct {
	GridSize    int      `json:"grid_size"`
	Features    int      `json:"features"`
	Groups      []Group  `json:"groups"`
	Borders     []Border `json:"borders"`
	Labels      [][]int  `json:"labels"`
	GroupCount  int      `json:"group_count"`
	BorderCount int      `json:"border_count"`
	Active      int      `json:"active_borders"`
}

func buildGridData(g *culture.Grid) gridData {
	groups, labels := Groups(g)
	borders := Borders(g, labels)
	n := g.Size()

	rows := make([][]int, n)
	for r := range rows {
		rows[r] = labels[r*n : (r+1)*n]
	}
	active := 0
	for _, bd := range borders {
		if bd.Active {
			active++
		}
	}
	return gridData{
		GridSize:    n,
		Features:    g.NumFeatures(),
		Groups:      groups,
		Borders:     borders,
		Labels:      rows,
		GroupCount:  len(groups),
		BorderCount: len(borders),
		Active:      active,
	}
}

// RenderJSON produces the culture groups, borders and per-cell group labels
// of g.
func RenderJSON(g *culture.Grid) ([]byte, error) {
	data, err := json.MarshalIndent(buildGridData(g), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal grid data: %w", err)
	}
	return data, nil
}

// htmlCell is one agent in the HTML grid.
type htmlCell struct {
	Color   string
	Culture string
	Group   int
}

type htmlTemplateData struct {
	Title    string
	GridSize int
	Rows     [][]htmlCell
	Groups   []Group
}

var gridTemplate = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2rem; color: #1f2937; }
.grid { display: inline-grid; grid-template-columns: repeat({{.GridSize}}, 14px); gap: 1px; background: #e5e7eb; }
.cell { width: 14px; height: 14px; }
table { border-collapse: collapse; margin-top: 1.5rem; }
td, th { padding: 2px 10px; text-align: left; }
.swatch { display: inline-block; width: 12px; height: 12px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="grid">
{{- range .Rows}}{{range .}}
<div class="cell" style="background: {{.Color}}" title="culture {{.Group}}: {{.Culture}}"></div>
{{- end}}{{end}}
</div>
<table>
<tr><th></th><th>#</th><th>Culture</th><th>Agents</th></tr>
{{- range .Groups}}
<tr><td><span class="swatch" style="background: {{.Color}}"></span></td><td>{{.ID}}</td><td>{{.Culture}}</td><td>{{.Cells}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// RenderHTML produces a self-contained HTML page showing every agent
// coloured by culture, followed by a table of cultures.
func RenderHTML(g *culture.Grid, title string) ([]byte, error) {
	groups, labels := Groups(g)
	n := g.Size()

	rows := make([][]htmlCell, n)
	for r := 0; r < n; r++ {
		rows[r] = make([]htmlCell, n)
		for c := 0; c < n; c++ {
			gr := groups[labels[r*n+c]]
			rows[r][c] = htmlCell{Color: gr.Color, Culture: gr.Culture, Group: gr.ID}
		}
	}

	var buf bytes.Buffer
	data := htmlTemplateData{
		Title:    title,
		GridSize: n,
		Rows:     rows,
		Groups:   groups,
	}
	if err := gridTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}
