package engine

import (
	"context"
	"sync"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Trigger schedules sync queue replay. It flushes every known tag when the
// origin transitions from unreachable to reachable, and single tags on
// explicit request from the control channel.
type Trigger struct {
	queue    *SyncQueue
	probe    ports.Probe
	interval time.Duration
	logger   ports.Logger

	// onReport, when set, receives every flush report (control channel
	// broadcast, event handler callbacks).
	onReport func(domain.FlushReport)

	mu     sync.Mutex
	online bool
}

// NewTrigger creates a replay trigger probing connectivity at the given
// interval.
func NewTrigger(queue *SyncQueue, probe ports.Probe, interval time.Duration, onReport func(domain.FlushReport), logger ports.Logger) *Trigger {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Trigger{
		queue:    queue,
		probe:    probe,
		interval: interval,
		logger:   logger,
		onReport: onReport,
	}
}

// Run probes connectivity until the context is canceled. The first probe
// runs immediately so a daemon restarted while online replays any events
// that survived the outage.
func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.probeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.probeOnce(ctx)
		}
	}
}

func (t *Trigger) probeOnce(ctx context.Context) {
	online := t.probe.Online(ctx)

	t.mu.Lock()
	wasOnline := t.online
	t.online = online
	t.mu.Unlock()

	if online && !wasOnline {
		t.logger.Info("connectivity restored, replaying queued events")
		t.FlushAll(ctx)
	} else if !online && wasOnline {
		t.logger.Warn("origin unreachable, queueing mode")
	}
}

// FlushAll replays every known tag and returns the per-tag reports.
func (t *Trigger) FlushAll(ctx context.Context) []domain.FlushReport {
	reports := make([]domain.FlushReport, 0, len(domain.KnownTags))
	for _, tag := range domain.KnownTags {
		reports = append(reports, t.Flush(ctx, tag))
	}
	return reports
}

// Flush replays a single tag on explicit request.
func (t *Trigger) Flush(ctx context.Context, tag string) domain.FlushReport {
	report := t.queue.Flush(ctx, tag)
	if t.onReport != nil {
		t.onReport(report)
	}
	return report
}

// Online reports the last observed connectivity state.
func (t *Trigger) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}
