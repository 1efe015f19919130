package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

type MainCategory struct {
	Name string   `yaml:"main"`
	Subs []string `yaml:"subs"`
}

type Taxonomy []MainCategory

func DefaultTaxonomy() (Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomyYAML)
}

func ParseTaxonomy(b []byte) (Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(t) == 0 {
		return nil, errors.New("parse taxonomy: no main categories")
	}
	for i, m := range t {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("parse taxonomy: entry %d has no main category", i)
		}
	}
	return t, nil
}

func (t Taxonomy) MainNames() []string {
	out := make([]string, 0, len(t))
	for _, m := range t {
		out = append(out, m.Name)
	}
	return out
}

// SubCategoryRows flattens the taxonomy into seed rows. The first main
// category a name appears under wins.
func (t Taxonomy) SubCategoryRows() []*SubCategory {
	seen := map[string]struct{}{}
	var out []*SubCategory
	for _, m := range t {
		for _, s := range m.Subs {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, &SubCategory{Name: s, MainCategoryName: m.Name})
		}
	}
	return out
}
