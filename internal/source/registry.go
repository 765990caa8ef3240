package source

import (
	"github.com/rotisserie/eris"

	"github.com/spark-map/atlas-cli/internal/config"
)

// Source type tags, matched against the type field in configuration.
const (
	TypeOpportunityAtlas = "opportunity_atlas"
	TypeChildOpportunity = "child_opportunity"
	TypeTravelTime       = "travel_time"
	TypeWide             = "wide"
)

// New constructs a single source from its configuration, dispatching on
// the type tag.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case TypeOpportunityAtlas:
		return NewOpportunityAtlas(cfg), nil
	case TypeChildOpportunity:
		return NewChildOpportunity(cfg), nil
	case TypeTravelTime:
		return NewTravelTime(cfg), nil
	case TypeWide:
		return NewWide(cfg)
	default:
		return nil, eris.Errorf("source: unknown source type %q", cfg.Type)
	}
}

// Registry holds the configured sources in file order. Merge order and
// the data dictionary both follow registration order, so output stays
// deterministic.
type Registry struct {
	sources []Source
	byName  map[string]Source
}

// NewRegistry builds every configured source, rejecting duplicate source
// names and colliding property keys up front.
func NewRegistry(cfgs []config.SourceConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]Source, len(cfgs))}
	keyOwner := make(map[string]string)

	for _, cfg := range cfgs {
		s, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name()]; dup {
			return nil, eris.Errorf("source: duplicate source name %q", s.Name())
		}
		for _, col := range s.Columns() {
			if owner, dup := keyOwner[col.Key]; dup {
				return nil, eris.Errorf("source: property key %q declared by both %q and %q", col.Key, owner, s.Name())
			}
			keyOwner[col.Key] = s.Name()
		}
		r.sources = append(r.sources, s)
		r.byName[s.Name()] = s
	}

	if len(r.sources) == 0 {
		return nil, eris.New("source: no sources configured")
	}
	return r, nil
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q", name)
	}
	return s, nil
}

// All returns the sources in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Columns returns every declared property column across all sources, in
// registration order.
func (r *Registry) Columns() []Column {
	var out []Column
	for _, s := range r.sources {
		out = append(out, s.Columns()...)
	}
	return out
}
