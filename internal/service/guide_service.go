package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/config"
	"github.com/IUBLibTech/ipguide/internal/index"
	"github.com/IUBLibTech/ipguide/internal/model"
)

// ErrNotReady is returned by lookups until the first index build
// completes.
var ErrNotReady = errors.New("network index not ready")

type RecordSource interface {
	Records(ctx context.Context) ([]model.RawRecord, error)
}

type Repository interface {
	SaveRecords(ctx context.Context, records []model.RawRecord) error
	LoadRecords(ctx context.Context) ([]model.RawRecord, error)
	CountRecords(ctx context.Context) (int64, error)
}

type Cache interface {
	SetLookup(ctx context.Context, ip string, rec *model.NetworkRecord) error
	GetLookup(ctx context.Context, ip string) (*model.NetworkRecord, error)
}

// GuideService owns the active network index. A refresh builds a
// brand-new index off to the side and publishes it atomically, so
// readers never observe a partially populated one.
type GuideService struct {
	source RecordSource
	repo   Repository
	cache  Cache
	config *config.Config
	logger *zap.Logger

	idx        atomic.Pointer[index.NetworkIndex]
	refreshMux sync.Mutex
}

func NewGuideService(
	source RecordSource,
	repo Repository,
	cache Cache,
	config *config.Config,
	logger *zap.Logger,
) *GuideService {
	return &GuideService{
		source: source,
		repo:   repo,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Start performs the initial build and schedules periodic refreshes.
// When the record source is unavailable it falls back to the last
// persisted snapshot.
func (s *GuideService) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Initial load from record source failed, trying snapshot",
			zap.Error(err))
		if snapErr := s.buildFromSnapshot(ctx); snapErr != nil {
			return fmt.Errorf("initial index build failed: %w (snapshot: %v)", err, snapErr)
		}
	}

	ticker := time.NewTicker(s.config.RefreshInterval())
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					s.logger.Error("scheduled index refresh failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// Refresh fetches the record set, builds a new index and swaps it in.
// The snapshot store is updated afterward; a failed save is logged
// but does not fail the refresh, since the live index is already
// current.
func (s *GuideService) Refresh(ctx context.Context) error {
	s.refreshMux.Lock()
	defer s.refreshMux.Unlock()

	start := time.Now()
	records, err := s.source.Records(ctx)
	if err != nil {
		return fmt.Errorf("fetching records: %w", err)
	}

	ix, err := index.Build(records)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	s.idx.Store(ix)

	s.logger.Info("Published new network index",
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)))

	if err := s.repo.SaveRecords(ctx, records); err != nil {
		s.logger.Error("Failed to persist record snapshot", zap.Error(err))
	}

	return nil
}

func (s *GuideService) buildFromSnapshot(ctx context.Context) error {
	count, err := s.repo.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("checking snapshot: %w", err)
	}
	if count == 0 {
		return errors.New("snapshot is empty")
	}

	records, err := s.repo.LoadRecords(ctx)
	if err != nil {
		return err
	}

	ix, err := index.Build(records)
	if err != nil {
		return err
	}
	s.idx.Store(ix)

	s.logger.Info("Built network index from snapshot", zap.Int("records", len(records)))
	return nil
}

// Ready reports whether the first index build has completed.
func (s *GuideService) Ready() bool {
	return s.idx.Load() != nil
}

func (s *GuideService) current() (*index.NetworkIndex, error) {
	ix := s.idx.Load()
	if ix == nil {
		return nil, ErrNotReady
	}
	return ix, nil
}

// Lookup resolves an address to its most specific covering network.
// An absent result is (nil, nil), never an error.
func (s *GuideService) Lookup(ctx context.Context, ipStr string) (*model.LookupResponse, error) {
	ix, err := s.current()
	if err != nil {
		return nil, err
	}

	if rec, err := s.cache.GetLookup(ctx, ipStr); err == nil && rec != nil {
		return s.respond(ix, ipStr, rec), nil
	}

	rec, err := ix.FindNetwork(ipStr)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	if err := s.cache.SetLookup(ctx, ipStr, rec); err != nil {
		s.logger.Warn("failed to cache lookup result",
			zap.String("ip", ipStr),
			zap.Error(err))
	}

	return s.respond(ix, ipStr, rec), nil
}

func (s *GuideService) respond(ix *index.NetworkIndex, ipStr string, rec *model.NetworkRecord) *model.LookupResponse {
	resp := &model.LookupResponse{
		IP:          ipStr,
		Network:     rec.Network,
		ASN:         rec.ASN,
		CountryCode: rec.Country,
	}
	if entry, ok := ix.FindASN(rec.ASN); ok {
		resp.Name = entry.Name
	}
	return resp
}

// ASN returns the entry for asn, or (nil, nil) when it is unknown.
func (s *GuideService) ASN(asn int) (*model.ASNEntry, error) {
	ix, err := s.current()
	if err != nil {
		return nil, err
	}
	entry, ok := ix.FindASN(asn)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

// Country returns every ASN observed for the country code, in load
// order with duplicates; empty when the country is unknown.
func (s *GuideService) Country(code string) ([]int, error) {
	ix, err := s.current()
	if err != nil {
		return nil, err
	}
	return ix.FindCountry(code), nil
}

// Networks expands "ASN:<n>" specifiers to network lists. On a
// malformed specifier the input comes back unchanged along with the
// error.
func (s *GuideService) Networks(specs []string) ([]string, error) {
	ix, err := s.current()
	if err != nil {
		return nil, err
	}
	return ix.ResolveSpecifiers(specs)
}
