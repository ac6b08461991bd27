package scanner

import (
	"context"
	"fmt"
	"time"

	"IncidentRadar/internal/domain"
)

// Request carries per-run parameters shared by all connectors.
type Request struct {
	Now        time.Time
	MaxItems   int
	WindowDays int
}

// Scanner captures a single upstream connector (NVD, GHSA, RSS, etc.).
type Scanner interface {
	Name() domain.Source
	Scan(ctx context.Context, req Request) ([]domain.RawItem, error)
}

// Registry keeps a mapping from source names to their connectors.
type Registry struct {
	scanners map[domain.Source]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[domain.Source]Scanner{}}
}

// Register adds or replaces a connector implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[domain.Source]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a connector by source or an error if it is absent.
func (r *Registry) Resolve(name domain.Source) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
