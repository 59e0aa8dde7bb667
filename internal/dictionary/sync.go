// Package dictionary grows the bus, route and access card dictionaries from batches pushed by the
// order system. Sync is insert-only: rows whose business key already exists are never touched.
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bbus-fleet/backend/internal/audit"
	"github.com/bbus-fleet/backend/internal/models"
	"github.com/bbus-fleet/backend/pkg/apperr"
	"github.com/bbus-fleet/backend/pkg/metrics"
)

// Dictionary names used for locks, metrics and logs.
const (
	Buses       = "buses"
	Routes      = "routes"
	AccessCards = "access cards"
)

// Store is the transaction-bound persistence used by a sync.
type Store interface {
	audit.Recorder
	// Lock serializes syncs of one dictionary until the transaction ends.
	Lock(ctx context.Context, dictionary string) error
	// ExistingPlates returns the subset of normalized plates already present.
	ExistingPlates(ctx context.Context, plates []string) (map[string]bool, error)
	InsertBuses(ctx context.Context, buses []models.Bus) error
	ExistingRoutes(ctx context.Context, keys []RouteKey) (map[RouteKey]bool, error)
	InsertRoutes(ctx context.Context, routes []models.Route) error
	ExistingCards(ctx context.Context, cardIDs []string) (map[string]bool, error)
	InsertCards(ctx context.Context, cards []models.AccessCard) error
}

// Transactor runs fn against a Store bound to one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// OrganizationResolver maps counterparty tax ids to organizations.
type OrganizationResolver interface {
	ResolveOrganizationByTaxID(ctx context.Context, taxID string) (*models.Organization, error)
}

// Synchronizer applies dictionary batches.
type Synchronizer struct {
	tx      Transactor
	orgs    OrganizationResolver
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a synchronizer. m may be nil.
func New(tx Transactor, orgs OrganizationResolver, m *metrics.Metrics, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{tx: tx, orgs: orgs, metrics: m, logger: logger, now: time.Now}
}

// SyncBusDictionary inserts buses whose plate number is not yet known, ignoring case.
// New buses are parked on the identity's default organization and route until an order assigns them.
func (s *Synchronizer) SyncBusDictionary(ctx context.Context, identity models.ServiceIdentity, entries []BusEntry) ([]models.Bus, error) {
	if identity.DefaultOrganizationID == uuid.Nil || identity.DefaultRouteID == uuid.Nil {
		return nil, apperr.New(apperr.KindInternal, "default client and route must be configured for bus dictionary sync")
	}

	seen := make(map[string]bool, len(entries))
	candidates := make([]models.Bus, 0, len(entries))
	keys := make([]string, 0, len(entries))
	dropped, duplicates := 0, 0
	for i, e := range entries {
		b, ok := e.toBus(identity)
		if !ok {
			dropped++
			s.logger.Warn("dropping invalid bus dictionary entry", zap.Int("index", i), zap.Any("entry", e))
			continue
		}
		key := models.NormalizePlate(b.PlateNumber)
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true
		candidates = append(candidates, b)
		keys = append(keys, key)
	}
	s.metrics.DictionaryRows(Buses, metrics.RowDropped, dropped)
	if len(candidates) == 0 {
		return []models.Bus{}, nil
	}

	var inserted []models.Bus
	err := s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.Lock(ctx, Buses); err != nil {
			return err
		}
		existing, err := store.ExistingPlates(ctx, keys)
		if err != nil {
			return fmt.Errorf("check existing buses: %w", err)
		}
		now := s.now().UTC()
		inserted = inserted[:0]
		for _, b := range candidates {
			if existing[models.NormalizePlate(b.PlateNumber)] {
				continue
			}
			b.ID, b.CreatedAt, b.UpdatedAt = uuid.New(), now, now
			inserted = append(inserted, b)
		}
		if len(inserted) == 0 {
			return nil
		}
		if err := store.InsertBuses(ctx, inserted); err != nil {
			return fmt.Errorf("insert buses: %w", err)
		}
		return s.recordAdded(ctx, store, identity, len(inserted), Buses, now)
	})
	if err != nil {
		return nil, s.failed(Buses, err)
	}
	s.counted(Buses, len(candidates), len(inserted), duplicates)
	return nonNil(inserted), nil
}

// SyncRouteDictionary inserts routes whose (organization, code) pair is not yet known. Every
// counterparty tax id in the batch must resolve to a client, otherwise nothing is written.
func (s *Synchronizer) SyncRouteDictionary(ctx context.Context, identity models.ServiceIdentity, entries []RouteEntry) ([]models.Route, error) {
	valid := make([]RouteEntry, 0, len(entries))
	dropped := 0
	for i, e := range entries {
		n, ok := e.normalized()
		if !ok {
			dropped++
			s.logger.Warn("dropping invalid route dictionary entry", zap.Int("index", i), zap.Any("entry", e))
			continue
		}
		valid = append(valid, n)
	}
	s.metrics.DictionaryRows(Routes, metrics.RowDropped, dropped)
	if len(valid) == 0 {
		return []models.Route{}, nil
	}

	taxIDs := make([]string, 0, len(valid))
	for _, e := range valid {
		taxIDs = append(taxIDs, e.CounterpartyInn)
	}
	orgByTaxID, err := s.resolveTaxIDs(ctx, taxIDs)
	if err != nil {
		return nil, s.failed(Routes, err)
	}

	duplicates := 0
	seen := make(map[RouteKey]bool, len(valid))
	candidates := make([]models.Route, 0, len(valid))
	keys := make([]RouteKey, 0, len(valid))
	for _, e := range valid {
		rt := e.toRoute(orgByTaxID[e.CounterpartyInn])
		key := RouteKey{OrganizationID: rt.OrganizationID, Code: rt.Code}
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true
		candidates = append(candidates, rt)
		keys = append(keys, key)
	}

	var inserted []models.Route
	err = s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.Lock(ctx, Routes); err != nil {
			return err
		}
		existing, err := store.ExistingRoutes(ctx, keys)
		if err != nil {
			return fmt.Errorf("check existing routes: %w", err)
		}
		now := s.now().UTC()
		inserted = inserted[:0]
		for _, rt := range candidates {
			if existing[RouteKey{OrganizationID: rt.OrganizationID, Code: rt.Code}] {
				continue
			}
			rt.ID, rt.CreatedAt, rt.UpdatedAt = uuid.New(), now, now
			inserted = append(inserted, rt)
		}
		if len(inserted) == 0 {
			return nil
		}
		if err := store.InsertRoutes(ctx, inserted); err != nil {
			return fmt.Errorf("insert routes: %w", err)
		}
		return s.recordAdded(ctx, store, identity, len(inserted), Routes, now)
	})
	if err != nil {
		return nil, s.failed(Routes, err)
	}
	s.counted(Routes, len(candidates), len(inserted), duplicates)
	return nonNil(inserted), nil
}

// SyncAccessCardDictionary inserts cards whose card id is not yet known. Cards without a counterparty
// tax id belong to the identity's default organization.
func (s *Synchronizer) SyncAccessCardDictionary(ctx context.Context, identity models.ServiceIdentity, entries []CardEntry) ([]models.AccessCard, error) {
	valid := make([]CardEntry, 0, len(entries))
	var taxIDs []string
	dropped := 0
	for i, e := range entries {
		n, ok := e.normalized()
		if !ok {
			dropped++
			s.logger.Warn("dropping invalid access card dictionary entry", zap.Int("index", i), zap.Any("entry", e))
			continue
		}
		valid = append(valid, n)
		if n.CounterpartyInn != "" {
			taxIDs = append(taxIDs, n.CounterpartyInn)
		}
	}
	s.metrics.DictionaryRows(AccessCards, metrics.RowDropped, dropped)
	if len(valid) == 0 {
		return []models.AccessCard{}, nil
	}

	orgByTaxID, err := s.resolveTaxIDs(ctx, taxIDs)
	if err != nil {
		return nil, s.failed(AccessCards, err)
	}

	duplicates := 0
	seen := make(map[string]bool, len(valid))
	candidates := make([]models.AccessCard, 0, len(valid))
	keys := make([]string, 0, len(valid))
	for _, e := range valid {
		orgID := identity.DefaultOrganizationID
		if e.CounterpartyInn != "" {
			orgID = orgByTaxID[e.CounterpartyInn]
		}
		if orgID == uuid.Nil {
			return nil, s.failed(AccessCards, apperr.Newf(apperr.KindValidation, "card %s has no counterparty and no default client is configured", e.CardID))
		}
		if seen[e.CardID] {
			duplicates++
			continue
		}
		seen[e.CardID] = true
		candidates = append(candidates, e.toCard(orgID))
		keys = append(keys, e.CardID)
	}

	var inserted []models.AccessCard
	err = s.tx.WithinTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.Lock(ctx, AccessCards); err != nil {
			return err
		}
		existing, err := store.ExistingCards(ctx, keys)
		if err != nil {
			return fmt.Errorf("check existing access cards: %w", err)
		}
		now := s.now().UTC()
		inserted = inserted[:0]
		for _, card := range candidates {
			if existing[card.CardID] {
				continue
			}
			card.ID, card.CreatedAt, card.UpdatedAt = uuid.New(), now, now
			inserted = append(inserted, card)
		}
		if len(inserted) == 0 {
			return nil
		}
		if err := store.InsertCards(ctx, inserted); err != nil {
			return fmt.Errorf("insert access cards: %w", err)
		}
		return s.recordAdded(ctx, store, identity, len(inserted), AccessCards, now)
	})
	if err != nil {
		return nil, s.failed(AccessCards, err)
	}
	s.counted(AccessCards, len(candidates), len(inserted), duplicates)
	return nonNil(inserted), nil
}

// resolveTaxIDs resolves every distinct tax id. Unknown ids are reported together as one validation error.
func (s *Synchronizer) resolveTaxIDs(ctx context.Context, taxIDs []string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(taxIDs))
	var unknown []string
	for _, taxID := range taxIDs {
		if _, done := out[taxID]; done {
			continue
		}
		org, err := s.orgs.ResolveOrganizationByTaxID(ctx, taxID)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			out[taxID] = uuid.Nil
			unknown = append(unknown, taxID)
		case err != nil:
			return nil, err
		default:
			out[taxID] = org.ID
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperr.Newf(apperr.KindValidation,
			"No organization found to map to for tax ID(s) %s. Check the clients dictionary first.", strings.Join(unknown, ", "))
	}
	return out, nil
}

func (s *Synchronizer) recordAdded(ctx context.Context, store Store, identity models.ServiceIdentity, n int, dictionary string, now time.Time) error {
	entry := audit.Entry(identity.ActorID, models.AuditCreate, fmt.Sprintf("Added %d new %s to the dictionary", n, dictionary), now)
	if err := store.Record(ctx, entry); err != nil {
		return fmt.Errorf("record dictionary audit: %w", err)
	}
	return nil
}

func (s *Synchronizer) counted(dictionary string, candidates, inserted, duplicates int) {
	s.metrics.DictionaryRows(dictionary, metrics.RowInserted, inserted)
	s.metrics.DictionaryRows(dictionary, metrics.RowSkipped, candidates-inserted)
	s.metrics.DictionaryRows(dictionary, metrics.RowDuplicate, duplicates)
	s.logger.Info("dictionary synced", zap.String("dictionary", dictionary),
		zap.Int("inserted", inserted), zap.Int("skipped", candidates-inserted), zap.Int("duplicates", duplicates))
}

func (s *Synchronizer) failed(dictionary string, err error) error {
	s.logger.Error("dictionary sync failed", zap.String("dictionary", dictionary), zap.Error(err))
	var classified *apperr.Error
	if !errors.As(err, &classified) {
		return apperr.Wrap(apperr.KindInternal, dictionary+" dictionary sync failed", err)
	}
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
