package store

import (
	"context"
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/saferoute/internal/model"
)

//go:embed routes.yaml
var defaultRoutesYAML []byte

// Catalogue is a fixed, validated set of routes. It implements RouteSource.
type Catalogue struct {
	routes []model.Route
}

type catalogueFile struct {
	Routes []model.Route `yaml:"routes"`
}

// DefaultCatalogue returns the built-in route catalogue.
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(defaultRoutesYAML)
}

// LoadCatalogue reads a YAML route catalogue from path. An empty path loads
// the built-in catalogue.
func LoadCatalogue(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "routes: read %s", path)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML route catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "routes: parse yaml")
	}
	return NewCatalogue(f.Routes)
}

// NewCatalogue validates routes and wraps them in a Catalogue. IDs must be
// non-empty and unique and every infrastructure count non-negative.
func NewCatalogue(routes []model.Route) (*Catalogue, error) {
	seen := make(map[string]bool, len(routes))
	for i, r := range routes {
		if r.ID == "" {
			return nil, eris.Errorf("routes: route %d has no id", i)
		}
		if seen[r.ID] {
			return nil, eris.Errorf("routes: duplicate route id %q", r.ID)
		}
		seen[r.ID] = true
		for _, kind := range model.InfrastructureKinds {
			if r.Infrastructure.Count(kind) < 0 {
				return nil, eris.Errorf("routes: route %q has negative %s count", r.ID, kind)
			}
		}
	}
	return &Catalogue{routes: routes}, nil
}

// ListRoutes returns a copy of the catalogue in file order.
func (c *Catalogue) ListRoutes(_ context.Context) ([]model.Route, error) {
	out := make([]model.Route, len(c.routes))
	copy(out, c.routes)
	return out, nil
}

// Route returns the route with the given id or ErrNotFound.
func (c *Catalogue) Route(_ context.Context, id string) (model.Route, error) {
	for _, r := range c.routes {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Route{}, eris.Wrapf(ErrNotFound, "route %s", id)
}
