package synthetic

import (
	"embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/newhook/plclog/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template describes one family of synthetic build logs and the labels every
// rendering of it carries.
type Template struct {
	Category       string           `yaml:"category"`
	File           string           `yaml:"template"`
	Description    string           `yaml:"description"`
	Severity       model.Severity   `yaml:"severity"`
	Stage          model.Stage      `yaml:"stage"`
	Complexity     model.Complexity `yaml:"complexity"`
	ExpectedErrors int              `yaml:"expected_errors"`
	Weight         int              `yaml:"weight"`
	ErrorLines     [2]int           `yaml:"error_lines"`

	tmpl *template.Template
}

// Catalog is the set of templates the generator picks from.
type Catalog struct {
	Templates []Template `yaml:"templates"`

	totalWeight int
}

// DefaultCatalog loads the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(catalogYAML)
}

// LoadCatalog parses a YAML catalog and compiles each template it names from
// the embedded template set.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Templates) == 0 {
		return nil, fmt.Errorf("catalog has no templates")
	}

	seen := make(map[string]bool)
	for i := range c.Templates {
		t := &c.Templates[i]
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Category, err)
		}
		if seen[t.Category] {
			return nil, fmt.Errorf("duplicate category %q", t.Category)
		}
		seen[t.Category] = true

		src, err := templatesFS.ReadFile("templates/" + t.File)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Category, err)
		}
		t.tmpl, err = template.New(t.File).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.Category, err)
		}
		c.totalWeight += t.Weight
	}
	return &c, nil
}

func (t *Template) validate() error {
	if t.Category == "" || t.File == "" {
		return fmt.Errorf("category and template are required")
	}
	if _, err := model.ParseSeverity(string(t.Severity)); err != nil {
		return err
	}
	if _, err := model.ParseStage(string(t.Stage)); err != nil {
		return err
	}
	if _, err := model.ParseComplexity(string(t.Complexity)); err != nil {
		return err
	}
	if t.ExpectedErrors < 0 {
		return fmt.Errorf("expected_errors must not be negative")
	}
	if t.Weight <= 0 {
		return fmt.Errorf("weight must be positive")
	}
	if t.ErrorLines[0] <= 0 || t.ErrorLines[1] < t.ErrorLines[0] {
		return fmt.Errorf("invalid error_lines range %v", t.ErrorLines)
	}
	return nil
}

// Lookup returns the template for a category.
func (c *Catalog) Lookup(category string) (*Template, bool) {
	for i := range c.Templates {
		if c.Templates[i].Category == category {
			return &c.Templates[i], true
		}
	}
	return nil, false
}

// Categories lists the catalog's categories in catalog order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.Templates))
	for i, t := range c.Templates {
		out[i] = t.Category
	}
	return out
}

// pick maps a draw in [0, totalWeight) onto a template.
func (c *Catalog) pick(n int) *Template {
	for i := range c.Templates {
		if n < c.Templates[i].Weight {
			return &c.Templates[i]
		}
		n -= c.Templates[i].Weight
	}
	return &c.Templates[len(c.Templates)-1]
}
