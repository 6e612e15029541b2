package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

type fetcher interface {
	Fetch(ctx context.Context) (Catalog, error)
}

type upstreamObserver interface {
	ObserveUpstream(service, op string, d time.Duration)
}

// Service serves the menu from an in-memory snapshot loaded once at startup.
type Service interface {
	Load(ctx context.Context) error
	Snapshot() Catalog
	Loaded() bool
	Menu(category enums.Category) []MenuItem
	Item(id string) (MenuItem, error)
	Proteins() []Protein
	ResolveProteins(ids []string) ([]Protein, error)
}

type service struct {
	source  fetcher
	logg    *logger.Logger
	metrics upstreamObserver

	mu       sync.RWMutex
	snapshot Catalog
	loaded   bool
}

// NewService builds a catalog service over source.
func NewService(source fetcher, logg *logger.Logger, metrics upstreamObserver) (Service, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{source: source, logg: logg, metrics: metrics}, nil
}

// NewStaticService serves a fixed catalog.
func NewStaticService(c Catalog) Service {
	return &service{snapshot: c, loaded: true}
}

// Load fetches the catalog once. A failure leaves the menu empty, is logged
// and returned, and is not retried.
func (s *service) Load(ctx context.Context) error {
	started := time.Now()
	c, err := s.source.Fetch(ctx)
	if s.metrics != nil {
		s.metrics.ObserveUpstream("catalog", "fetch", time.Since(started))
	}
	if err != nil {
		s.mu.Lock()
		s.snapshot = Catalog{}
		s.loaded = false
		s.mu.Unlock()
		s.logg.Error(ctx, "catalog load failed; serving empty menu", err)
		return err
	}

	s.mu.Lock()
	s.snapshot = c
	s.loaded = true
	s.mu.Unlock()

	ctx = s.logg.WithFields(ctx, map[string]any{"items": len(c.Items), "proteins": len(c.Proteins)})
	s.logg.Info(ctx, "catalog loaded")
	return nil
}

func (s *service) Snapshot() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *service) Menu(category enums.Category) []MenuItem {
	return s.Snapshot().ByCategory(category)
}

func (s *service) Item(id string) (MenuItem, error) {
	item, ok := s.Snapshot().Item(id)
	if !ok {
		return MenuItem{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %q not found", id)
	}
	return item, nil
}

func (s *service) Proteins() []Protein {
	snap := s.Snapshot()
	out := make([]Protein, len(snap.Proteins))
	copy(out, snap.Proteins)
	return out
}

// ResolveProteins maps ids to add-ons, rejecting unknown and repeated ids.
func (s *service) ResolveProteins(ids []string) ([]Protein, error) {
	snap := s.Snapshot()
	out := make([]Protein, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "protein %q selected twice", id)
		}
		seen[id] = struct{}{}
		p, ok := snap.Protein(id)
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown protein %q", id).
				WithDetails(map[string]string{"proteinId": id})
		}
		out = append(out, p)
	}
	return out, nil
}
