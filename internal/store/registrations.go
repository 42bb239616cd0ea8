package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Pusher91/fieldbutton/internal/domain"
	"github.com/Pusher91/fieldbutton/internal/ndjson"
)

// DomainSummary is the latest known registration state of one Bitrix24 domain.
type DomainSummary struct {
	Domain        string         `json:"domain"`
	LastOutcome   domain.Outcome `json:"lastOutcome"`
	LastEndpoint  string         `json:"lastEndpoint,omitempty"`
	LastSuccessAt string         `json:"lastSuccessAt,omitempty"`
	UpdatedAt     string         `json:"updatedAt"`
	Results       int64          `json:"results"`
	Successes     int64          `json:"successes"`
}

type Summary struct {
	Domains map[string]DomainSummary `json:"domains"`
}

// RegistrationRepo persists the audit log (NDJSON) and a per-domain summary
// (JSON, replaced atomically) under dataDir.
type RegistrationRepo struct {
	dataDir string
	records *ndjson.Writer

	mu      sync.Mutex
	summary Summary
}

func NewRegistrationRepo(dataDir string) (*RegistrationRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	w, err := ndjson.NewWriter(ndjson.RecordsPath(dataDir))
	if err != nil {
		return nil, err
	}

	r := &RegistrationRepo{
		dataDir: dataDir,
		records: w,
		summary: Summary{Domains: map[string]DomainSummary{}},
	}

	var existing Summary
	if err := readJSON(r.SummaryPath(), &existing); err == nil && existing.Domains != nil {
		r.summary = existing
	} else if err != nil && !os.IsNotExist(err) {
		_ = w.Close()
		return nil, err
	}

	return r, nil
}

func (r *RegistrationRepo) SummaryPath() string { return filepath.Join(r.dataDir, "summary.json") }

// WriteRecord appends to the audit log; result records also update the summary.
func (r *RegistrationRepo) WriteRecord(rec domain.Record) error {
	if err := r.records.Write(rec); err != nil {
		return err
	}
	if rec.Kind != domain.RecordKindResult || rec.Domain == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ds := r.summary.Domains[rec.Domain]
	ds.Domain = rec.Domain
	ds.LastOutcome = rec.Outcome
	ds.LastEndpoint = rec.Endpoint
	ds.UpdatedAt = rec.At
	if ds.UpdatedAt == "" {
		ds.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	ds.Results++
	if rec.Outcome == domain.OutcomeSuccess {
		ds.Successes++
		ds.LastSuccessAt = ds.UpdatedAt
	}
	r.summary.Domains[rec.Domain] = ds

	return writeJSONAtomic(r.SummaryPath(), r.summary)
}

func (r *RegistrationRepo) RecordsPage(cursor int64, limit int) (ndjson.Page[domain.Record], error) {
	return ndjson.ReadFromOffset[domain.Record](ndjson.RecordsPath(r.dataDir), cursor, limit)
}

// ResultsPage skips per-attempt lines.
func (r *RegistrationRepo) ResultsPage(cursor int64, limit int) (ndjson.Page[domain.Record], error) {
	return ndjson.ReadFromOffsetFiltered[domain.Record](
		ndjson.RecordsPath(r.dataDir),
		cursor,
		limit,
		func(rec domain.Record) bool { return rec.Kind == domain.RecordKindResult },
	)
}

func (r *RegistrationRepo) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Summary{Domains: make(map[string]DomainSummary, len(r.summary.Domains))}
	for k, v := range r.summary.Domains {
		out.Domains[k] = v
	}
	return out
}

func (r *RegistrationRepo) Close() error {
	if r == nil {
		return nil
	}
	return r.records.Close()
}
