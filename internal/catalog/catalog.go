// Package catalog holds the reference parameters of real PV modules, keyed by
// manufacturer and model.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"pvivy/internal/model"
)

// MaxSuggestions bounds the closest matches returned with a failed lookup.
const MaxSuggestions = 5

// Module is one catalog row.
type Module struct {
	Manufacturer string
	Model        string
	Technology   model.Technology
	Params       model.ModuleParameters
}

func (m Module) Key() model.CatalogKey {
	return model.CatalogKey{Manufacturer: m.Manufacturer, Model: m.Model}
}

// Catalog is an in-memory module catalog, safe for concurrent use. Modules
// keep their insertion order.
type Catalog struct {
	mu      sync.RWMutex
	modules []Module
	index   map[model.CatalogKey]int
}

func New() *Catalog {
	return &Catalog{index: make(map[model.CatalogKey]int)}
}

// Load parses a catalog file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	modules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	c := New()
	c.Add(modules...)
	return c, nil
}

// Add inserts modules. A module with an existing key replaces the old row in
// place.
func (c *Catalog) Add(modules ...Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range modules {
		m.Manufacturer = strings.TrimSpace(m.Manufacturer)
		m.Model = strings.TrimSpace(m.Model)
		if i, ok := c.index[m.Key()]; ok {
			c.modules[i] = m
			continue
		}
		c.index[m.Key()] = len(c.modules)
		c.modules = append(c.modules, m)
	}
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

// Modules returns a copy of every row in insertion order.
func (c *Catalog) Modules() []Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Module(nil), c.modules...)
}

// Lookup finds a module by exact (trimmed) manufacturer and model. On a miss
// it returns a *model.DataError whose Suggestions list up to MaxSuggestions
// modules from manufacturers whose name contains the query's first word.
func (c *Catalog) Lookup(manufacturer, modelName string) (Module, error) {
	key := model.CatalogKey{
		Manufacturer: strings.TrimSpace(manufacturer),
		Model:        strings.TrimSpace(modelName),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.index[key]; ok {
		return c.modules[i], nil
	}
	return Module{}, &model.DataError{
		Reason:      "module not found",
		Query:       model.CatalogKey{Manufacturer: manufacturer, Model: modelName},
		Suggestions: c.suggest(manufacturer),
	}
}

func (c *Catalog) suggest(manufacturer string) []model.CatalogKey {
	words := strings.Fields(manufacturer)
	if len(words) == 0 {
		return nil
	}
	needle := strings.ToLower(words[0])

	var out []model.CatalogKey
	for _, m := range c.modules {
		if strings.Contains(strings.ToLower(m.Manufacturer), needle) {
			out = append(out, m.Key())
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// ByTechnology groups module parameters by technology class, keeping only
// the classes the classifier knows.
func (c *Catalog) ByTechnology() map[model.Technology][]model.ModuleParameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[model.Technology][]model.ModuleParameters)
	for _, m := range c.modules {
		if m.Technology.Code() < 0 {
			continue
		}
		out[m.Technology] = append(out[m.Technology], m.Params)
	}
	return out
}
