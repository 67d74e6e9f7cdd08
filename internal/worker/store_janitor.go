package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// StoreJanitor periodically reloads the user store, which keeps the user gauge
// and the store breaker current between requests, and removes quarantined
// documents once they are older than the retention window.
type StoreJanitor struct {
	store     domain.UserStore
	docPath   string
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewStoreJanitor creates a janitor. docPath is the file store location and
// may be empty for other backends; a zero retention keeps quarantined files.
func NewStoreJanitor(
	store domain.UserStore,
	docPath string,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *StoreJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StoreJanitor{
		store:     store,
		docPath:   docPath,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs the janitor until ctx is cancelled
func (j *StoreJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("store janitor started", slog.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("store janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single check and returns the number of pruned files
func (j *StoreJanitor) RunOnce(ctx context.Context) int {
	snap, err := j.store.Load(ctx)
	if err != nil {
		j.logger.Error("store check failed", slog.String("error", err.Error()))
	} else {
		j.logger.Debug("store check ok",
			slog.Int("users", len(snap.Users)),
			slog.Uint64("version", snap.Version),
		)
	}

	if j.docPath == "" || j.retention <= 0 {
		return 0
	}
	return j.pruneQuarantined()
}

func (j *StoreJanitor) pruneQuarantined() int {
	prefix := j.docPath + ".corrupt-"
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		j.logger.Error("failed to list quarantined documents", slog.String("error", err.Error()))
		return 0
	}

	cutoff := j.now().Add(-j.retention)
	pruned := 0
	for _, m := range matches {
		stamp, err := strconv.ParseInt(strings.TrimPrefix(m, prefix), 10, 64)
		if err != nil {
			// not one of ours
			continue
		}
		if time.Unix(stamp, 0).After(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil {
			j.logger.Warn("failed to remove quarantined document",
				slog.String("path", m),
				slog.String("error", err.Error()),
			)
			continue
		}
		j.logger.Info("removed quarantined document", slog.String("path", m))
		pruned++
	}
	return pruned
}
