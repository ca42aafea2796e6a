package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/pool/logger"
	"github.com/ellavondegurechaff/vmq/pool/metrics"
)

// Exporter is the reporting half of accounts.Service.
type Exporter interface {
	Export(ctx context.Context) (accounts.Export, error)
}

// Sink stores one encoded snapshot under name and returns where it went.
type Sink interface {
	Name() string
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Document is the JSON written for a snapshot.
type Document struct {
	SnapshotID string            `json:"snapshot_id"`
	TakenAt    time.Time         `json:"taken_at"`
	Total      int               `json:"total"`
	Records    []accounts.Record `json:"records"`
}

// Snapshot describes a written archive.
type Snapshot struct {
	ID        string
	Name      string
	Total     int
	TakenAt   time.Time
	Locations []string
}

type Archiver struct {
	exporter Exporter
	sinks    []Sink
	now      func() time.Time
}

func NewArchiver(exporter Exporter, sinks ...Sink) *Archiver {
	return &Archiver{
		exporter: exporter,
		sinks:    sinks,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FileName is the export file name for t, shared with the CLI export.
func FileName(t time.Time) string {
	return fmt.Sprintf("accounts_export_%s.json", t.UTC().Format("20060102_150405"))
}

// Snapshot exports the pool once and writes it to every sink concurrently.
// Every sink is attempted; the first failure is returned.
func (a *Archiver) Snapshot(ctx context.Context) (*Snapshot, error) {
	if len(a.sinks) == 0 {
		return nil, fmt.Errorf("no archive sinks configured")
	}

	start := time.Now()
	export, err := a.exporter.Export(ctx)
	if err != nil {
		metrics.RecordArchive(false)
		return nil, fmt.Errorf("failed to export accounts: %w", err)
	}

	doc := Document{
		SnapshotID: uuid.NewString(),
		TakenAt:    a.now(),
		Total:      export.Total,
		Records:    export.Records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.RecordArchive(false)
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	snap := &Snapshot{
		ID:      doc.SnapshotID,
		Name:    FileName(doc.TakenAt),
		Total:   doc.Total,
		TakenAt: doc.TakenAt,
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for _, sink := range a.sinks {
		sink := sink
		g.Go(func() error {
			loc, err := sink.Write(ctx, snap.Name, data)
			if err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			mu.Lock()
			snap.Locations = append(snap.Locations, loc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordArchive(false)
		return snap, err
	}

	metrics.RecordArchive(true)
	slog.Info("Export snapshot archived",
		slog.String("type", "job"),
		slog.String("snapshot_id", snap.ID),
		slog.Int("total", snap.Total),
		slog.Any("locations", snap.Locations),
		logger.Since(start))
	return snap, nil
}
