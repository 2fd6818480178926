// Package reconcile implements the periodic sweep spec.md §4.2 and
// §4.5 name as "out of core scope" but describe as the intended
// remedy for the lost-event/inconsistent-state windows the core's
// best-effort design leaves open: items whose Location row still
// reads Temp long after they should have been promoted, which is
// either a stuck enrichment or a lost MediumItemMoved publish. It only
// detects and logs drift (Open Question 2's decision: no outbox, no
// durable replay) — grounded on the teacher's
// internal/service/scheduler/scheduler.go cron.New(cron.WithSeconds())
// pattern, retried with github.com/cenkalti/backoff/v4 the same way
// pkg/metadata restarts its child process.
package reconcile

import (
	"context"
	"database/sql"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StuckItem is one Temp-variant location the sweep considers
// suspiciously old.
type StuckItem struct {
	ItemID    string
	Path      string
	LastSaved time.Time
}

// Sweeper runs the reconciliation scan on a cron schedule.
type Sweeper struct {
	db       *sql.DB
	log      *zap.Logger
	interval time.Duration
	staleAge time.Duration
	cron     *cron.Cron
}

// New builds a Sweeper. interval governs the scan cadence
// (RECONCILE_INTERVAL); staleAge is how long a Temp location must have
// gone un-promoted before it is reported.
func New(db *sql.DB, log *zap.Logger, interval, staleAge time.Duration) *Sweeper {
	return &Sweeper{
		db:       db,
		log:      log,
		interval: interval,
		staleAge: staleAge,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start schedules the sweep and begins running it in the background.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(everySpec(s.interval), func() { s.sweepOnce(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight sweep to finish before returning.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 30 * time.Second

	var stuck []StuckItem
	err := backoff.Retry(func() error {
		found, err := s.findStuckTempItems(ctx)
		if err != nil {
			return err
		}
		stuck = found
		return nil
	}, backoff.WithContext(expBackoff, ctx))
	if err != nil {
		s.log.Warn("reconcile sweep failed", zap.Error(err))
		return
	}

	for _, item := range stuck {
		s.log.Warn("reconcile: item stuck in Temp, possible lost promotion or MediumItemMoved publish",
			zap.String("item_id", item.ItemID),
			zap.String("path", item.Path),
			zap.Time("last_saved", item.LastSaved))
	}
}

func (s *Sweeper) findStuckTempItems(ctx context.Context) ([]StuckItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.item_id, l.path, i.last_saved
		FROM locations l
		JOIN medium_items i ON i.id = l.item_id
		WHERE l.variant = 'temp' AND i.deleted_at IS NULL AND i.last_saved < $1`,
		time.Now().Add(-s.staleAge),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StuckItem
	for rows.Next() {
		var id, path string
		var lastSaved time.Time
		if err := rows.Scan(&id, &path, &lastSaved); err != nil {
			return nil, err
		}
		out = append(out, StuckItem{ItemID: id, Path: path, LastSaved: lastSaved})
	}
	return out, rows.Err()
}

// everySpec builds a cron.WithSeconds expression for a fixed interval,
// since RECONCILE_INTERVAL is a duration, not a cron expression.
func everySpec(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}
