// Package catalog defines the static registry of economic time series the
// crawler tracks. Definitions are loaded once at startup and never mutated.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Frequency is how often a series publishes new observations.
type Frequency string

// Publication frequencies recognized by the scheduler.
const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// Interval returns the duration the scheduler adds between crawls of a series
// with this frequency. Monthly, quarterly and annual intervals are approximate
// calendar lengths.
func (f Frequency) Interval() time.Duration {
	switch f {
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	case Monthly:
		return 30 * 24 * time.Hour
	case Quarterly:
		return 90 * 24 * time.Hour
	case Annual:
		return 365 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether f is one of the recognized frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Annual:
		return true
	}
	return false
}

// Source identifies an external data provider with its own rate limit.
type Source string

// Providers covered by the built-in catalog.
const (
	SourceFRED     Source = "fred"
	SourceBLS      Source = "bls"
	SourceBEA      Source = "bea"
	SourceCensus   Source = "census"
	SourceTreasury Source = "treasury"
)

// Category groups series by the part of the economy they describe.
type Category string

// Indicator categories.
const (
	NationalAccounts   Category = "national_accounts"
	LaborMarket        Category = "labor_market"
	Prices             Category = "prices"
	MonetaryPolicy     Category = "monetary_policy"
	InternationalTrade Category = "international_trade"
	Housing            Category = "housing"
	Manufacturing      Category = "manufacturing"
	Consumer           Category = "consumer"
)

// Priority bounds. Lower numbers are more important.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
)

// SeriesDefinition describes one tracked economic indicator. Immutable after
// catalog load.
type SeriesDefinition struct {
	ID        string    `json:"id" mapstructure:"id"`
	Name      string    `json:"name" mapstructure:"name"`
	Category  Category  `json:"category" mapstructure:"category"`
	Source    Source    `json:"source" mapstructure:"source"`
	Frequency Frequency `json:"frequency" mapstructure:"frequency"`
	Priority  int       `json:"priority" mapstructure:"priority"`
	IsActive  bool      `json:"is_active" mapstructure:"is_active"`
}

// Validate checks a single definition for structural problems.
func (d SeriesDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("series definition missing id")
	}
	if !d.Frequency.Valid() {
		return fmt.Errorf("series %s: unknown frequency %q", d.ID, d.Frequency)
	}
	if d.Priority < PriorityHighest || d.Priority > PriorityLowest {
		return fmt.Errorf("series %s: priority %d outside [%d,%d]", d.ID, d.Priority, PriorityHighest, PriorityLowest)
	}
	if d.Source == "" {
		return fmt.Errorf("series %s: missing source", d.ID)
	}
	return nil
}

// Catalog is an ordered, read-only collection of series definitions.
type Catalog struct {
	series []SeriesDefinition
	byID   map[string]SeriesDefinition
}

// New builds a catalog from the given definitions, rejecting duplicates and
// invalid entries.
func New(defs []SeriesDefinition) (*Catalog, error) {
	c := &Catalog{
		series: make([]SeriesDefinition, 0, len(defs)),
		byID:   make(map[string]SeriesDefinition, len(defs)),
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate series id %s", d.ID)
		}
		c.series = append(c.series, d)
		c.byID[d.ID] = d
	}
	return c, nil
}

// Default returns the built-in catalog of key US economic indicators.
func Default() *Catalog {
	c, err := New(builtinSeries)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(fmt.Sprintf("builtin catalog invalid: %v", err))
	}
	return c
}

// LoadFile reads additional definitions from a JSON file and merges them over
// the built-in catalog. File entries with an existing ID replace the built-in
// definition, which lets operators deactivate or reprioritize series.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var extra []SeriesDefinition
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}

	merged := make([]SeriesDefinition, 0, len(builtinSeries)+len(extra))
	overridden := make(map[string]SeriesDefinition, len(extra))
	for _, d := range extra {
		overridden[d.ID] = d
	}
	for _, d := range builtinSeries {
		if o, ok := overridden[d.ID]; ok {
			merged = append(merged, o)
			delete(overridden, d.ID)
			continue
		}
		merged = append(merged, d)
	}
	for _, d := range extra {
		if _, stillNew := overridden[d.ID]; stillNew {
			merged = append(merged, d)
		}
	}
	return New(merged)
}

// Len returns the total number of definitions, active or not.
func (c *Catalog) Len() int {
	return len(c.series)
}

// All returns every definition in catalog order.
func (c *Catalog) All() []SeriesDefinition {
	out := make([]SeriesDefinition, len(c.series))
	copy(out, c.series)
	return out
}

// Active returns the definitions eligible for scheduling.
func (c *Catalog) Active() []SeriesDefinition {
	var out []SeriesDefinition
	for _, d := range c.series {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out
}

// ByID looks up a definition by its series id.
func (c *Catalog) ByID(id string) (SeriesDefinition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// BySource returns all definitions published by the given provider.
func (c *Catalog) BySource(src Source) []SeriesDefinition {
	var out []SeriesDefinition
	for _, d := range c.series {
		if d.Source == src {
			out = append(out, d)
		}
	}
	return out
}

// ByCategory returns all definitions in the given category.
func (c *Catalog) ByCategory(cat Category) []SeriesDefinition {
	var out []SeriesDefinition
	for _, d := range c.series {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}
