package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/index"
)

const sampleCSV = `network,asn,name,country
1.2.3.0/24,100,ExampleOrg,US
2001:db8::/32,200,SubOrg,DE
`

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "header skipped, data rows parsed",
			input:         sampleCSV,
			expectedCount: 2,
		},
		{
			name:          "empty table",
			input:         "network,asn,name,country\n",
			expectedCount: 0,
		},
		{
			name:          "non-integer ASN",
			input:         "network,asn,name,country\n1.2.3.0/24,xx,Org,US\n",
			expectedError: true,
		},
		{
			name:          "short row",
			input:         "network,asn,name,country\n1.2.3.0/24,100\n",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := parse(strings.NewReader(tt.input))

			if tt.expectedError {
				if !errors.Is(err, index.ErrMalformedRecord) {
					t.Errorf("expected ErrMalformedRecord, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(records) != tt.expectedCount {
				t.Errorf("expected %d records, got %d", tt.expectedCount, len(records))
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	records, err := parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}

	first := records[0]
	if first.Network != "1.2.3.0/24" || first.ASN != 100 || first.Name != "ExampleOrg" || first.Country != "US" {
		t.Errorf("unexpected record: %+v", first)
	}
}

func TestParseAndBuild(t *testing.T) {
	input := "network,asn,name,country\n" +
		"1.2.3.0/24,100,ExampleOrg,US\n" +
		"1.2.3.128/25,200,SubOrg,US\n"

	records, err := parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	ix, err := index.Build(records)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := ix.FindNetwork("1.2.3.200")
	if err != nil || rec == nil || rec.ASN != 200 {
		t.Errorf("expected ASN 200 for 1.2.3.200, got %+v, %v", rec, err)
	}
	rec, err = ix.FindNetwork("1.2.3.10")
	if err != nil || rec == nil || rec.ASN != 100 {
		t.Errorf("expected ASN 100 for 1.2.3.10, got %+v, %v", rec, err)
	}

	asns := ix.FindCountry("US")
	if len(asns) != 2 || asns[0] != 100 || asns[1] != 200 {
		t.Errorf("expected US ASNs [100 200], got %v", asns)
	}
}

func TestSource_RecordsDownloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "networks.csv")
	logger, _ := zap.NewDevelopment()
	s := New(server.URL, file, 24*time.Hour, logger)

	records, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}

	if _, err := os.Stat(file); err != nil {
		t.Errorf("expected downloaded file at %s: %v", file, err)
	}
}

func TestSource_RecordsSkipsFreshFile(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "networks.csv")
	if err := os.WriteFile(file, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	s := New(server.URL, file, 24*time.Hour, logger)

	records, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if hits != 0 {
		t.Errorf("expected no download for a fresh file, server saw %d requests", hits)
	}
}

func TestSource_RecordsUsesStaleFileWhenRefreshFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "networks.csv")
	if err := os.WriteFile(file, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-14 * 24 * time.Hour)
	if err := os.Chtimes(file, old, old); err != nil {
		t.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	s := New(server.URL, file, 7*24*time.Hour, logger)
	s.retryDelay = 0

	records, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records from stale file, got %d", len(records))
	}
}

func TestSource_DownloadStopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "networks.csv")
	logger, _ := zap.NewDevelopment()
	s := New(server.URL, file, 24*time.Hour, logger)
	// Long enough that waiting out the backoff would hang the test.
	s.retryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Records(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSource_RecordsFailsWhenMissingAndUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	file := filepath.Join(t.TempDir(), "networks.csv")
	logger, _ := zap.NewDevelopment()
	s := New(server.URL, file, 24*time.Hour, logger)
	s.retryDelay = 0

	if _, err := s.Records(context.Background()); err == nil {
		t.Error("expected error when the table is missing and the download fails")
	}
}
