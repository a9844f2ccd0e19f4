package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Source defines how plan entries are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[Plan]Entry, error)
}

// Catalog maps plans to their quota and feature set.
// It is immutable after construction, which is what makes it safe for
// concurrent use without locking.
type Catalog struct {
	entries map[Plan]Entry
}

// NewCatalog loads and validates plan entries from the given source.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	entries, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	return &Catalog{entries: entries}, nil
}

// Default returns the catalog compiled into the binary. It is the
// fallback when no external catalog file is configured.
func Default() *Catalog {
	return &Catalog{entries: map[Plan]Entry{
		Gratuito: {
			Quota:    5,
			Label:    "Gratuito",
			Features: []Feature{FeatureExportPDF},
		},
		Professor: {
			Quota:    50,
			Label:    "Professor",
			Features: []Feature{FeatureExportPDF, FeatureExportWord, FeatureEditing, FeatureCalendar},
		},
		GrupoEscolar: {
			Quota:    300,
			Label:    "Grupo Escolar",
			Features: []Feature{FeatureExportPDF, FeatureExportWord, FeatureEditing, FeatureCalendar, FeatureCollaboration},
		},
		Admin: {
			Quota:    Unlimited,
			Label:    "Administrador",
			Features: []Feature{FeatureExportPDF, FeatureExportWord, FeatureEditing, FeatureCalendar, FeatureCollaboration},
		},
	}}
}

// QuotaFor returns the monthly material quota for a plan.
// Unknown plans fail closed with a zero quota rather than defaulting to
// unlimited, so a corrupted plan value can never grant access.
func (c *Catalog) QuotaFor(p Plan) int64 {
	entry, ok := c.entries[p]
	if !ok {
		return 0
	}
	return entry.Quota
}

// FeaturesFor returns the feature set for a plan, empty for unknown plans.
func (c *Catalog) FeaturesFor(p Plan) []Feature {
	entry, ok := c.entries[p]
	if !ok {
		return nil
	}
	return slices.Clone(entry.Features)
}

// HasFeature reports whether a plan includes a feature.
// Returns false for unknown plans to fail closed.
func (c *Catalog) HasFeature(p Plan, f Feature) bool {
	entry, ok := c.entries[p]
	if !ok {
		return false
	}
	return slices.Contains(entry.Features, f)
}

// LabelFor returns the human-readable plan name for display purposes.
func (c *Catalog) LabelFor(p Plan) string {
	entry, ok := c.entries[p]
	if !ok {
		return string(Gratuito)
	}
	return entry.Label
}

// Known reports whether the catalog has an entry for the plan.
func (c *Catalog) Known(p Plan) bool {
	_, ok := c.entries[p]
	return ok
}

// Limits returns a snapshot of every plan's quota.
func (c *Catalog) Limits() Limits {
	limits := make(Limits, len(c.entries))
	for p, entry := range c.entries {
		limits[p] = entry.Quota
	}
	return limits
}

// validateEntries catches configuration errors early to prevent a
// miswritten catalog file from silently blocking or unblocking users.
func validateEntries(entries map[Plan]Entry) error {
	if len(entries) == 0 {
		return errors.Join(ErrInvalidCatalog, errors.New("no plan entries"))
	}

	for _, p := range []Plan{Gratuito, Professor, GrupoEscolar, Admin} {
		if _, ok := entries[p]; !ok {
			return errors.Join(ErrInvalidCatalog, fmt.Errorf("missing entry for plan %q", p))
		}
	}

	for p, entry := range entries {
		if entry.Quota < Unlimited {
			return errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q has invalid quota %d", p, entry.Quota))
		}
		if entry.Label == "" {
			return errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q has empty label", p))
		}
	}

	return nil
}
