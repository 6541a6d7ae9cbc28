package visualization

import (
	"fmt"
	"sort"

	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
)

// Group is every agent holding one culture, wherever it sits on the grid.
type Group struct {
	ID      int    `json:"id"`
	Culture string `json:"culture"`
	Cells   int    `json:"cells"`
	Color   string `json:"color"`

	// Row and Col locate the group's first cell in row-major order.
	Row int `json:"row"`
	Col int `json:"col"`
}

// Border counts the adjacent cell pairs joining two groups.
type Border struct {
	A      int  `json:"a"`
	B      int  `json:"b"`
	Shared int  `json:"shared"`
	Length int  `json:"length"`
	Active bool `json:"active"` // the two cultures can still interact
}

// Groups partitions the agents of g by culture. Groups are numbered in
// row-major order of their first cell; labels holds the group of every cell,
// indexed r*n+c.
func Groups(g *culture.Grid) ([]Group, []int) {
	n := g.Size()
	labels := make([]int, n*n)
	byKey := make(map[string]int)

	var groups []Group
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			key := g.Key(r, c)
			id, ok := byKey[key]
			if !ok {
				id = len(groups)
				byKey[key] = id
				groups = append(groups, Group{ID: id, Culture: key, Color: CellColor(g, r, c), Row: r, Col: c})
			}
			groups[id].Cells++
			labels[r*n+c] = id
		}
	}
	return groups, labels
}

// Borders lists the borders between the groups of labels, ordered by group
// pair.
func Borders(g *culture.Grid, labels []int) []Border {
	n := g.Size()
	f := g.NumFeatures()
	byPair := make(map[[2]int]*Border)

	visit := func(a, b culture.Pos) {
		la, lb := labels[a.Row*n+a.Col], labels[b.Row*n+b.Col]
		if la == lb {
			return
		}
		if la > lb {
			la, lb = lb, la
		}
		key := [2]int{la, lb}
		bd, ok := byPair[key]
		if !ok {
			shared := g.Similarity(a, b)
			bd = &Border{A: la, B: lb, Shared: shared, Active: engine.CanInteract(shared, f)}
			byPair[key] = bd
		}
		bd.Length++
	}

	// Right and down neighbours visit every adjacent pair once.
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if c+1 < n {
				visit(culture.Pos{Row: r, Col: c}, culture.Pos{Row: r, Col: c + 1})
			}
			if r+1 < n {
				visit(culture.Pos{Row: r, Col: c}, culture.Pos{Row: r + 1, Col: c})
			}
		}
	}

	out := make([]Border, 0, len(byPair))
	for _, bd := range byPair {
		out = append(out, *bd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// CellColor maps the culture at (r, c) to a hex colour. Features feed the
// red, green and blue channels in turn; each channel is the mean of its
// features' normalised states. Unused channels sit at mid grey.
func CellColor(g *culture.Grid, r, c int) string {
	var sum [3]float64
	var count [3]int
	for i, v := range g.Cell(r, c) {
		states := g.Feature(i).States
		x := 0.0
		if states > 1 {
			x = float64(v) / float64(states-1)
		}
		sum[i%3] += x
		count[i%3]++
	}

	var rgb [3]int
	for ch := range rgb {
		if count[ch] == 0 {
			rgb[ch] = 128
			continue
		}
		rgb[ch] = int(sum[ch] / float64(count[ch]) * 255)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
