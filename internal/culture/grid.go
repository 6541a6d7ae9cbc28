package culture

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos addresses a grid cell by row and column.
type Pos struct {
	Row int
	Col int
}

// Grid is an N×N lattice of agents, each holding one value per feature.
// Values are stored row-major in a single slice; cell (r, c) occupies
// cells[(r*N+c)*F : (r*N+c+1)*F].
type Grid struct {
	n        int
	features []FeatureSpec
	cells    []int
}

// NewGrid allocates a grid with every value set to 0, which is legal for
// every feature since States >= 1.
func NewGrid(n int, features []FeatureSpec) (*Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("grid dimension must be >= 2, got %d", n)
	}
	if err := ValidateFeatures(features); err != nil {
		return nil, err
	}
	return &Grid{
		n:        n,
		features: cloneFeatures(features),
		cells:    make([]int, n*n*len(features)),
	}, nil
}

// FromRows builds a grid from explicit cell vectors laid out rows[r][c][f].
// Every value is range checked against its feature.
func FromRows(rows [][][]int, features []FeatureSpec) (*Grid, error) {
	g, err := NewGrid(len(rows), features)
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != g.n {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), g.n)
		}
		for c, cell := range row {
			if len(cell) != len(features) {
				return nil, fmt.Errorf("cell (%d,%d) has %d values, want %d", r, c, len(cell), len(features))
			}
			for f, v := range cell {
				if v < 0 || v >= features[f].States {
					return nil, fmt.Errorf("cell (%d,%d) feature %d: value %d outside [0,%d]", r, c, f, v, features[f].States-1)
				}
				g.Set(r, c, f, v)
			}
		}
	}
	return g, nil
}

// Size returns N.
func (g *Grid) Size() int { return g.n }

// NumFeatures returns F.
func (g *Grid) NumFeatures() int { return len(g.features) }

// Cells returns N².
func (g *Grid) Cells() int { return g.n * g.n }

// Feature returns the spec of feature f.
func (g *Grid) Feature(f int) FeatureSpec { return g.features[f] }

// Features returns a copy of the feature list.
func (g *Grid) Features() []FeatureSpec { return cloneFeatures(g.features) }

func (g *Grid) offset(r, c int) int {
	return (r*g.n + c) * len(g.features)
}

// Get returns the value of feature f at (r, c).
func (g *Grid) Get(r, c, f int) int {
	return g.cells[g.offset(r, c)+f]
}

// Set writes the value of feature f at (r, c). Callers keep v in range.
func (g *Grid) Set(r, c, f, v int) {
	g.cells[g.offset(r, c)+f] = v
}

// Cell returns the feature vector at (r, c). The slice aliases grid storage
// and must not be retained across mutations.
func (g *Grid) Cell(r, c int) []int {
	o := g.offset(r, c)
	return g.cells[o : o+len(g.features) : o+len(g.features)]
}

// Similarity counts the features on which a and b agree, in [0, F].
func (g *Grid) Similarity(a, b Pos) int {
	va, vb := g.Cell(a.Row, a.Col), g.Cell(b.Row, b.Col)
	shared := 0
	for i := range va {
		if va[i] == vb[i] {
			shared++
		}
	}
	return shared
}

// Differing appends to buf the feature indices on which a and b disagree.
func (g *Grid) Differing(a, b Pos, buf []int) []int {
	va, vb := g.Cell(a.Row, a.Col), g.Cell(b.Row, b.Col)
	for i := range va {
		if va[i] != vb[i] {
			buf = append(buf, i)
		}
	}
	return buf
}

// Clone returns a deep copy sharing no storage with g.
func (g *Grid) Clone() *Grid {
	return &Grid{
		n:        g.n,
		features: cloneFeatures(g.features),
		cells:    append([]int(nil), g.cells...),
	}
}

// Rows exports the grid as rows[r][c][f].
func (g *Grid) Rows() [][][]int {
	rows := make([][][]int, g.n)
	for r := range rows {
		rows[r] = make([][]int, g.n)
		for c := range rows[r] {
			rows[r][c] = append([]int(nil), g.Cell(r, c)...)
		}
	}
	return rows
}

// Key encodes the vector at (r, c) as a comparable string, e.g. "2.0.4".
func (g *Grid) Key(r, c int) string {
	var sb strings.Builder
	for i, v := range g.Cell(r, c) {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// InRange reports whether every value lies inside its feature's range.
func (g *Grid) InRange() bool {
	f := len(g.features)
	for i, v := range g.cells {
		if v < 0 || v >= g.features[i%f].States {
			return false
		}
	}
	return true
}

// Neighbors appends the von Neumann neighbours of (r, c) on an n×n grid to
// buf, in up, down, left, right order. Edges do not wrap.
func Neighbors(n, r, c int, buf []Pos) []Pos {
	if r > 0 {
		buf = append(buf, Pos{r - 1, c})
	}
	if r < n-1 {
		buf = append(buf, Pos{r + 1, c})
	}
	if c > 0 {
		buf = append(buf, Pos{r, c - 1})
	}
	if c < n-1 {
		buf = append(buf, Pos{r, c + 1})
	}
	return buf
}
