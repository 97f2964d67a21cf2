// Package refresh re-imports the configured calendar subscriptions on a cron
// schedule.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"weekplan/internal/app"
	"weekplan/internal/importer"
	appLog "weekplan/internal/log"
)

// Importer is the part of app.Planner the refresher drives.
type Importer interface {
	Subscriptions() []string
	Import(ctx context.Context, paths []string, trigger string) (importer.Summary, error)
}

// Refresher runs one import of every subscription per schedule tick.
type Refresher struct {
	cron    *cron.Cron
	imp     Importer
	timeout time.Duration
	spec    string
}

// New parses spec (standard 5-field cron or descriptors like "@hourly")
// evaluated in loc.
func New(spec string, loc *time.Location, imp Importer) (*Refresher, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Refresher{
		cron:    cron.New(cron.WithLocation(loc)),
		imp:     imp,
		timeout: time.Minute,
		spec:    spec,
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the schedule in the background until Stop.
func (r *Refresher) Start() {
	appLog.Info("refresh scheduler started", "schedule", r.spec)
	r.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running
// import has finished.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.RunOnce(ctx)
}

// RunOnce imports all subscriptions now. It is a no-op without
// subscriptions.
func (r *Refresher) RunOnce(ctx context.Context) error {
	subs := r.imp.Subscriptions()
	if len(subs) == 0 {
		appLog.Debug("refresh skipped: no subscriptions")
		return nil
	}
	sum, err := r.imp.Import(ctx, subs, app.TriggerRefresh)
	if err != nil {
		appLog.Error("refresh import failed", err, "sources", len(subs))
		return err
	}
	appLog.Info("refresh import done", "sources", len(subs), "kept", sum.Kept)
	return nil
}
