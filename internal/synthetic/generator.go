// Package synthetic generates reproducible PLC build logs with known labels.
//
// Every case is rendered from a template in the embedded catalog using a PRNG
// seeded from the caller's seed and GeneratorVersion, then re-parsed to make
// sure the log yields exactly the number of errors the template promises.
package synthetic

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/model"
)

// GeneratorVersion changes whenever templates, pools or draw order change in
// a way that alters output for an existing seed.
const GeneratorVersion = 1

// ErrInconsistentCase is returned when a rendered log does not parse into the
// template's expected number of errors.
var ErrInconsistentCase = errors.New("synthetic case failed self-check")

// GroundTruth is the by-construction label of a synthetic case.
type GroundTruth struct {
	Severity    model.Severity   `json:"severity"`
	Stage       model.Stage      `json:"stage"`
	Complexity  model.Complexity `json:"complexity"`
	Description string           `json:"description"`
}

// Case is one generated build log with its labels.
type Case struct {
	ID                 string      `json:"id"`
	Category           string      `json:"category"`
	Seed               int64       `json:"seed"`
	RawLog             string      `json:"raw_log"`
	GroundTruth        GroundTruth `json:"ground_truth"`
	ExpectedErrorCount int         `json:"expected_error_count"`
}

// Generator renders cases from a catalog.
type Generator struct {
	catalog *Catalog
	parser  *logparser.Parser
}

// New returns a generator over the embedded catalog.
func New() (*Generator, error) {
	c, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewWithCatalog(c), nil
}

// NewWithCatalog returns a generator over c.
func NewWithCatalog(c *Catalog) *Generator {
	return &Generator{catalog: c, parser: logparser.NewParser()}
}

// Catalog returns the generator's catalog.
func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// Generate produces the case for seed, picking a template by weight.
func (g *Generator) Generate(seed int64) (*Case, error) {
	rng := newRand(seed)
	t := g.catalog.pick(rng.IntN(g.catalog.totalWeight))
	return g.render(t, seed, rng)
}

// GenerateCategory produces the case for seed from a specific category.
func (g *Generator) GenerateCategory(category string, seed int64) (*Case, error) {
	t, ok := g.catalog.Lookup(category)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	rng := newRand(seed)
	// Keep the draw sequence aligned with Generate.
	rng.IntN(g.catalog.totalWeight)
	return g.render(t, seed, rng)
}

// GenerateN produces n cases seeded baseSeed, baseSeed+1, ... with IDs that
// sort in generation order.
func (g *Generator) GenerateN(baseSeed int64, n int) ([]*Case, error) {
	cases := make([]*Case, 0, n)
	for i := 0; i < n; i++ {
		c, err := g.Generate(baseSeed + int64(i))
		if err != nil {
			return nil, err
		}
		c.ID = CaseID(i, n)
		cases = append(cases, c)
	}
	return cases, nil
}

// CaseID names the i-th (0-based) of n cases. The index is zero-padded to at
// least four digits and to the width of n, so IDs of one batch sort in
// generation order.
func CaseID(i, n int) string {
	width := max(4, len(strconv.Itoa(n)))
	return fmt.Sprintf("case-%0*d", width, i+1)
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), GeneratorVersion))
}

func (g *Generator) render(t *Template, seed int64, rng *rand.Rand) (*Case, error) {
	values := drawValues(rng, t.ErrorLines)

	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, values); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", t.Category, err)
	}
	raw := sb.String()

	if got := len(g.parser.Parse(raw).Errors); got != t.ExpectedErrors {
		return nil, fmt.Errorf("%w: %s seed %d parsed %d errors, expected %d",
			ErrInconsistentCase, t.Category, seed, got, t.ExpectedErrors)
	}

	return &Case{
		ID:       fmt.Sprintf("%s-%d", t.Category, seed),
		Category: t.Category,
		Seed:     seed,
		RawLog:   raw,
		GroundTruth: GroundTruth{
			Severity:    t.Severity,
			Stage:       t.Stage,
			Complexity:  t.Complexity,
			Description: t.Description,
		},
		ExpectedErrorCount: t.ExpectedErrors,
	}, nil
}
