// Package audit persists route-churn events to Postgres for post-hoc
// operational querying, grounded on the teacher's internal/history.Writer
// batched-insert pattern.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/metrics"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
)

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("audit: zstd encoder init: %v", err))
	}
}

// RouteHistory implements routedb.ChurnSink by inserting one row per
// churn event into route_events. It batches between Flush calls; Publish
// buffers, and once batchSize rows are pending it flushes them itself,
// synchronously, on the caller's goroutine.
type RouteHistory struct {
	pool          *pgxpool.Pool
	log           *zap.Logger
	compressRaw   bool
	pending       []rowWithRaw
	batchSize     int
}

type rowWithRaw struct {
	ev  routedb.ChurnEvent
	raw []byte
}

func NewRouteHistory(pool *pgxpool.Pool, log *zap.Logger, batchSize int, compressRaw bool) *RouteHistory {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &RouteHistory{pool: pool, log: log.Named("audit"), batchSize: batchSize, compressRaw: compressRaw}
}

// Publish buffers ev, compares against ChurnSink's fire-and-forget
// contract (spec §6): it returns nil even on a DB error after logging, so
// a history outage never blocks route installation. Flush should be
// called periodically by the owner (e.g. a ticker in main) to bound
// buffering.
func (h *RouteHistory) Publish(ev routedb.ChurnEvent) error {
	h.pending = append(h.pending, rowWithRaw{ev: ev})
	if len(h.pending) >= h.batchSize {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Flush(ctx); err != nil {
			h.log.Warn("flush failed, rows dropped", zap.Error(err))
		}
	}
	return nil
}

// Flush writes every buffered row in one batched transaction, deduplicating
// on (event_id, observed_at) the way the teacher's history.Writer dedupes
// BMP events.
func (h *RouteHistory) Flush(ctx context.Context) error {
	if len(h.pending) == 0 {
		return nil
	}
	start := time.Now()
	rows := h.pending
	h.pending = nil

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO route_events (event_id, observed_at, family, net, nexthop,
			cost, tag, origin, source, kind, raw)
		VALUES ($1, now(), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id, observed_at) DO NOTHING`

	batch := &pgx.Batch{}
	for _, r := range rows {
		var raw []byte
		if h.compressRaw && len(r.raw) > 0 {
			raw = zstdEncoder.EncodeAll(r.raw, nil)
		} else {
			raw = r.raw
		}
		batch.Queue(insertSQL,
			eventID(r.ev), r.ev.Family, r.ev.Net, r.ev.Nexthop,
			r.ev.Cost, r.ev.Tag, r.ev.Origin, r.ev.Source, r.ev.Kind.String(), raw,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("audit: insert route_event[%d]: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("audit: closing batch results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("audit: commit tx: %w", err)
	}

	metrics.ChurnPublishDuration.WithLabelValues("audit").Observe(time.Since(start).Seconds())
	return nil
}

// eventID derives a stable dedup key from the event's content, the way
// the teacher's history.ComputeEventID hashes raw BMP bytes.
func eventID(ev routedb.ChurnEvent) []byte {
	h := sha256.New()
	h.Write([]byte(ev.Family))
	h.Write([]byte(ev.Net))
	h.Write([]byte(ev.Nexthop))
	h.Write([]byte(ev.Source))
	h.Write([]byte(ev.Kind.String()))
	var costBuf [8]byte
	binary.BigEndian.PutUint64(costBuf[:], uint64(ev.Cost))
	h.Write(costBuf[:])
	sum := h.Sum(nil)
	return sum[:]
}

// Ping satisfies a DB-health-check interface for the ops HTTP surface.
func (h *RouteHistory) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}
