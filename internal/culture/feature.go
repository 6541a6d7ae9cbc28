// Package culture holds the static feature description and the mutable grid
// of cultural vectors that the Axelrod engine evolves.
package culture

import "fmt"

// Policy is the adoption rule attached to a feature.
type Policy int

const (
	// Categorical features are adopted wholesale: the receiver copies the
	// dominator's value.
	Categorical Policy = iota

	// Ordered features move one step along their scale toward the dominator.
	Ordered
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Categorical:
		return "categorical"
	case Ordered:
		return "ordered"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Adopt returns the receiver's new value after adopting from the dominator.
// For Ordered the result is always strictly between recv and dom, or equal
// to dom, so it stays inside the legal range of the feature.
func (p Policy) Adopt(dom, recv int) int {
	if p != Ordered {
		return dom
	}
	switch {
	case dom > recv:
		return recv + 1
	case dom < recv:
		return recv - 1
	default:
		return recv
	}
}

// FeatureSpec describes one cultural feature.
type FeatureSpec struct {
	// Name is a human-readable label, e.g. "Political Ideology". Optional.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// States is the number of values the feature can take (q). Must be >= 1.
	States int `json:"states" yaml:"states"`

	// Ordered marks a spectrum feature that admits one-step transitions.
	Ordered bool `json:"ordered" yaml:"ordered"`

	// Labels optionally names each state; len(Labels) == States when set.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Policy returns the adoption policy implied by the Ordered flag.
func (f FeatureSpec) Policy() Policy {
	if f.Ordered {
		return Ordered
	}
	return Categorical
}

// Label returns the label for state s, falling back to its index.
func (f FeatureSpec) Label(s int) string {
	if s >= 0 && s < len(f.Labels) {
		return f.Labels[s]
	}
	return fmt.Sprintf("%d", s)
}

// Validate checks the feature is usable.
func (f FeatureSpec) Validate() error {
	if f.States < 1 {
		return fmt.Errorf("feature %q: state count must be >= 1, got %d", f.Name, f.States)
	}
	if len(f.Labels) > 0 && len(f.Labels) != f.States {
		return fmt.Errorf("feature %q: %d labels for %d states", f.Name, len(f.Labels), f.States)
	}
	return nil
}

// ValidateFeatures checks a full feature list.
func ValidateFeatures(features []FeatureSpec) error {
	if len(features) == 0 {
		return fmt.Errorf("feature list is empty")
	}
	for i, f := range features {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

// UniformFeatures returns f features of q states each, all with the same kind.
func UniformFeatures(f, q int, ordered bool) []FeatureSpec {
	out := make([]FeatureSpec, f)
	for i := range out {
		out[i] = FeatureSpec{States: q, Ordered: ordered}
	}
	return out
}

func cloneFeatures(features []FeatureSpec) []FeatureSpec {
	out := make([]FeatureSpec, len(features))
	for i, f := range features {
		out[i] = f
		if f.Labels != nil {
			out[i].Labels = append([]string(nil), f.Labels...)
		}
	}
	return out
}
