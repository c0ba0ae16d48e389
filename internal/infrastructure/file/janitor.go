package file

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/loggo"
	"github.com/robfig/cron/v3"
)

var logger = loggo.GetLogger("hanamigration.file")

// ExpiredRecordPurger is implemented by status stores that cannot expire
// records on their own.
type ExpiredRecordPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor periodically removes workspaces left behind by crashed runs.
type Janitor struct {
	cron      *cron.Cron
	workspace *Workspace
	maxAge    time.Duration
	purger    ExpiredRecordPurger
}

// NewJanitor schedules a sweep. schedule accepts standard cron expressions and
// descriptors such as "@every 1h". purger may be nil.
func NewJanitor(workspace *Workspace, schedule string, maxAge time.Duration, purger ExpiredRecordPurger) (*Janitor, error) {
	j := &Janitor{
		cron:      cron.New(),
		workspace: workspace,
		maxAge:    maxAge,
		purger:    purger,
	}

	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	logger.Infof("workspace janitor started for %s (max age %s)", j.workspace.BaseDir, j.maxAge)
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) RunOnce(ctx context.Context) {
	removed, err := j.workspace.Sweep(j.maxAge)
	if err != nil {
		logger.Errorf("workspace sweep failed: %v", err)
	} else if removed > 0 {
		logger.Infof("removed %d stale workspaces", removed)
	}

	if j.purger == nil {
		return
	}
	purged, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		logger.Errorf("status purge failed: %v", err)
		return
	}
	if purged > 0 {
		logger.Infof("purged %d expired status records", purged)
	}
}
