// Package source supplies the ordered record sequence the index is
// built from: it keeps a local copy of the bulk network table fresh
// and parses it into raw records. The index never sees the CSV shape.
package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/index"
	"github.com/IUBLibTech/ipguide/internal/model"
)

const maxRetries = 3

// Source downloads and parses the bulk network table. The local file
// is refreshed when it is missing or older than maxAge; a failed
// refresh of an existing file falls back to the stale copy.
type Source struct {
	url        string
	file       string
	maxAge     time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	client     *grab.Client
}

func New(url, file string, maxAge time.Duration, logger *zap.Logger) *Source {
	return &Source{
		url:        url,
		file:       file,
		maxAge:     maxAge,
		retryDelay: 5 * time.Second,
		logger:     logger,
		client:     grab.NewClient(),
	}
}

// Records refreshes the local table if needed and parses it. The
// very first row of the table is the column header and is skipped
// here; the index only ever sees data rows.
func (s *Source) Records(ctx context.Context) ([]model.RawRecord, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(s.file)
	if err != nil {
		return nil, fmt.Errorf("opening network table: %w", err)
	}
	defer f.Close()

	start := time.Now()
	records, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.file, err)
	}

	s.logger.Info("Parsed network table",
		zap.String("file", s.file),
		zap.Int("records", len(records)),
		zap.Duration("parse_time", time.Since(start)))

	return records, nil
}

func (s *Source) refresh(ctx context.Context) error {
	info, err := os.Stat(s.file)
	if os.IsNotExist(err) {
		s.logger.Info("Network table missing, downloading", zap.String("url", s.url))
		return s.download(ctx)
	}
	if err != nil {
		return fmt.Errorf("checking network table: %w", err)
	}

	if age := time.Since(info.ModTime()); age > s.maxAge {
		s.logger.Info("Network table is stale, refreshing",
			zap.String("url", s.url),
			zap.Duration("age", age))
		if err := s.download(ctx); err != nil {
			// Keep serving the stale copy rather than failing the load.
			s.logger.Warn("Failed to refresh network table, using stale copy",
				zap.String("file", s.file),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Source) download(ctx context.Context) error {
	tmp := s.file + ".new"
	os.Remove(tmp)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * s.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("download aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}

		start := time.Now()
		req, err := grab.NewRequest(tmp, s.url)
		if err != nil {
			return fmt.Errorf("creating download request: %w", err)
		}
		req = req.WithContext(ctx)

		resp := s.client.Do(req)
		if err := resp.Err(); err != nil {
			lastErr = err
			s.logger.Warn("Failed to download network table, retrying...",
				zap.String("url", s.url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		s.logger.Info("Downloaded network table",
			zap.String("url", s.url),
			zap.Int64("bytes", resp.Size()),
			zap.Duration("download_time", time.Since(start)))

		return os.Rename(resp.Filename, s.file)
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

func parse(r io.Reader) ([]model.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []model.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", index.ErrMalformedRecord, err)
		}
		if row[0] == "network" {
			// Header row.
			continue
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("%w: want 4 columns, got %d", index.ErrMalformedRecord, len(row))
		}
		asn, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%w: ASN %q for %q", index.ErrMalformedRecord, row[1], row[0])
		}
		records = append(records, model.RawRecord{
			Network: row[0],
			ASN:     asn,
			Name:    row[2],
			Country: row[3],
		})
	}
	return records, nil
}
