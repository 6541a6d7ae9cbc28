// Package templates provides named, interpretable feature sets for the
// correlated-spectrum case studies.
package templates

import (
	"fmt"
	"sort"

	"github.com/nvandessel/axelrod/internal/culture"
)

// Template is a named feature set with its default correlation.
type Template struct {
	Key         string                `json:"key" yaml:"key"`
	Name        string                `json:"name" yaml:"name"`
	Features    []culture.FeatureSpec `json:"features" yaml:"features"`
	Correlation float64               `json:"correlation" yaml:"correlation"`
}

func spectrum(name string, labels ...string) culture.FeatureSpec {
	return culture.FeatureSpec{Name: name, States: len(labels), Ordered: true, Labels: labels}
}

func category(name string, labels ...string) culture.FeatureSpec {
	return culture.FeatureSpec{Name: name, States: len(labels), Labels: labels}
}

var builtin = []Template{
	{
		Key:  "political-cultural",
		Name: "Political-Cultural",
		Features: []culture.FeatureSpec{
			spectrum("Political Ideology", "Far Left", "Center Left", "Center", "Center Right", "Far Right"),
			spectrum("Religious Practice", "Secular", "Occasionally Religious", "Moderately Religious", "Very Religious"),
			category("Language Family", "Romance", "Germanic", "Slavic", "Asian"),
		},
		Correlation: -0.40,
	},
	{
		Key:  "social-values",
		Name: "Social Values",
		Features: []culture.FeatureSpec{
			spectrum("Environmental Concern", "Low Priority", "Some Concern", "High Priority", "Climate Activist"),
			spectrum("Economic Policy", "Free Market", "Mixed Economy", "Planned Economy"),
			category("Cultural Tradition", "Western", "Eastern", "African", "Indigenous"),
		},
		Correlation: 0.35,
	},
	{
		Key:  "technology-adoption",
		Name: "Technology Adoption",
		Features: []culture.FeatureSpec{
			spectrum("Tech Adoption Rate", "Late Majority", "Early Majority", "Early Adopter", "Innovator"),
			spectrum("Privacy Awareness", "Unaware", "Somewhat Aware", "Privacy Conscious", "Privacy Advocate"),
			category("Platform Preference", "Open Source", "Proprietary", "Hybrid"),
		},
		Correlation: 0.50,
	},
	{
		Key:  "urban-rural",
		Name: "Urban-Rural Divide",
		Features: []culture.FeatureSpec{
			spectrum("Population Density", "Rural", "Suburban", "Urban", "Metropolitan"),
			spectrum("Digital Infrastructure", "Limited", "Basic", "Good", "Advanced"),
		},
		Correlation: 0.65,
	},
	{
		Key:  "education-income",
		Name: "Education-Income",
		Features: []culture.FeatureSpec{
			spectrum("Education Level", "No Degree", "High School", "Bachelor's", "Advanced"),
			spectrum("Income Level", "Low", "Lower-Middle", "Upper-Middle", "High"),
		},
		Correlation: 0.70,
	},
	{
		Key:  "tradition-innovation",
		Name: "Tradition-Innovation",
		Features: []culture.FeatureSpec{
			spectrum("Cultural Openness", "Traditional", "Conservative", "Moderate", "Progressive"),
			spectrum("Innovation Acceptance", "Resistant", "Cautious", "Open", "Enthusiastic"),
		},
		Correlation: 0.75,
	},
	{
		Key:  "political-economic",
		Name: "Political-Economic Spectrum",
		Features: []culture.FeatureSpec{
			spectrum("Political Ideology", "Far Left", "Left", "Center", "Right", "Far Right"),
			spectrum("Economic Policy", "Socialist", "Mixed Left", "Centrist", "Mixed Right", "Capitalist"),
			spectrum("Cultural Values", "Very Traditional", "Traditional", "Moderate", "Progressive", "Very Progressive"),
		},
		Correlation: 0,
	},
}

// All returns every built-in template sorted by key.
func All() []Template {
	out := make([]Template, len(builtin))
	for i, t := range builtin {
		out[i] = t.clone()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the template with the given key.
func Get(key string) (Template, error) {
	for _, t := range builtin {
		if t.Key == key {
			return t.clone(), nil
		}
	}
	return Template{}, fmt.Errorf("unknown template %q", key)
}

func (t Template) clone() Template {
	out := t
	out.Features = make([]culture.FeatureSpec, len(t.Features))
	for i, f := range t.Features {
		out.Features[i] = f
		out.Features[i].Labels = append([]string(nil), f.Labels...)
	}
	return out
}

// Ratio generates ordered spectrum features followed by unordered category
// features, each with q states.
func Ratio(ordered, unordered, q int) []culture.FeatureSpec {
	features := make([]culture.FeatureSpec, 0, ordered+unordered)
	for i := 0; i < ordered; i++ {
		features = append(features, culture.FeatureSpec{
			Name:    fmt.Sprintf("Spectrum Feature %d", i+1),
			States:  q,
			Ordered: true,
		})
	}
	for i := 0; i < unordered; i++ {
		features = append(features, culture.FeatureSpec{
			Name:   fmt.Sprintf("Category Feature %d", i+1),
			States: q,
		})
	}
	return features
}
