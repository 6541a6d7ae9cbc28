package engine

import "github.com/nvandessel/axelrod/internal/culture"

// CanInteract reports whether two cells sharing shared of f features may
// interact: they must agree on some but not all features.
func CanInteract(shared, f int) bool {
	return shared > 0 && shared < f
}

// IsAbsorbing scans every adjacent pair once (right and down neighbours) and
// reports whether none can interact. It never mutates g.
func IsAbsorbing(g *culture.Grid) bool {
	n, f := g.Size(), g.NumFeatures()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			here := culture.Pos{Row: r, Col: c}
			if c+1 < n && CanInteract(g.Similarity(here, culture.Pos{Row: r, Col: c + 1}), f) {
				return false
			}
			if r+1 < n && CanInteract(g.Similarity(here, culture.Pos{Row: r + 1, Col: c}), f) {
				return false
			}
		}
	}
	return true
}
