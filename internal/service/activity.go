package service

import (
	"assetactivity/internal/capture"
	"assetactivity/internal/classifier"
	"assetactivity/internal/config"
	"assetactivity/internal/domain"
	"assetactivity/internal/guard"
	"assetactivity/internal/metrics"
	"assetactivity/internal/period"
	"assetactivity/internal/pubsub"
	"assetactivity/internal/rollup"
	"assetactivity/internal/stores/clickhouse"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

var (
	ErrPeriodBusy       = fmt.Errorf("period build already in progress: %w", guard.ErrHeld)
	ErrEntityOutOfRange = errors.New("entity id out of range")
)

// Storage collaborator: blobs keyed by period
type ArtifactStore interface {
	SaveSnapshot(ctx context.Context, hourKey string, raw []byte) error
	LoadSnapshot(ctx context.Context, hourKey string) (domain.Snapshot, error)
	LoadEventLog(ctx context.Context, level period.Level, key string) (*domain.EventLog, error)
	SaveEventLog(ctx context.Context, level period.Level, key string, l *domain.EventLog) error
	ListKeys(ctx context.Context, level period.Level) ([]string, error)
	Health(ctx context.Context) error
}

// Orchestrates the core: load -> detect/merge -> save -> sink -> notify.
// Whole-input failures come back as *domain.PeriodError; per-input failures
// (missing or malformed artifacts) are logged and skipped.
type ActivityService struct {
	log         logger.Logger
	store       ArtifactStore
	detector    *classifier.Detector
	guard       guard.Guard
	sink        clickhouse.ActivityWriter // optional
	broadcaster pubsub.Broadcaster
	cfg         config.RollupConfig
	subject     string
	now         func() time.Time
}

type Deps struct {
	Log           logger.Logger
	Store         ArtifactStore
	Detector      *classifier.Detector
	Guard         guard.Guard
	Sink          clickhouse.ActivityWriter
	Broadcaster   pubsub.Broadcaster
	Rollup        config.RollupConfig
	SubjectPrefix string
}

func NewActivityService(d Deps) (*ActivityService, error) {
	if d.Store == nil {
		return nil, errors.New("artifact store is required to the activity service")
	}
	if d.Detector == nil {
		return nil, errors.New("detector is required to the activity service")
	}
	if d.Guard == nil {
		return nil, errors.New("guard is required to the activity service")
	}

	broadcaster := d.Broadcaster
	if broadcaster == nil {
		broadcaster = pubsub.Noop{}
	}

	cfg := d.Rollup
	// sane defaults
	if cfg.MinInputs <= 0 {
		cfg.MinInputs = 1
	}
	if cfg.MaxWeekInputs <= 0 {
		cfg.MaxWeekInputs = period.DefaultMaxCount(period.Week)
	}
	if cfg.MaxMonthInputs <= 0 {
		cfg.MaxMonthInputs = period.DefaultMaxCount(period.Month)
	}
	if cfg.MaxYearInputs <= 0 {
		cfg.MaxYearInputs = period.DefaultMaxCount(period.Year)
	}

	subject := strings.TrimSuffix(d.SubjectPrefix, ".")
	if subject == "" {
		subject = "activity.rollup"
	}

	return &ActivityService{
		log:         d.Log,
		store:       d.Store,
		detector:    d.Detector,
		guard:       d.Guard,
		sink:        d.Sink,
		broadcaster: broadcaster,
		cfg:         cfg,
		subject:     subject,
		now:         time.Now,
	}, nil
}

// StoreSnapshot validates one hourly capture and stores it verbatim
func (a *ActivityService) StoreSnapshot(ctx context.Context, hourKey string, raw []byte) (capture.Stats, error) {
	if _, err := period.Parse(period.Hour, hourKey); err != nil {
		return capture.Stats{}, err
	}

	_, stats, err := capture.Decode(raw)
	if err != nil {
		return stats, err
	}

	if err = a.store.SaveSnapshot(ctx, hourKey, raw); err != nil {
		if !errors.Is(err, domain.ErrWriteFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrWriteFailure, err)
		}
		return stats, &domain.PeriodError{Op: "save", Level: string(period.Hour), Key: hourKey, Err: err}
	}

	a.log.Infof("Snapshot %s stored: records=%d, skipped=%d, no_owner=%d", hourKey, stats.Records, stats.Skipped, stats.NoOwner)
	return stats, nil
}

// BuildDaily detects the day's events from hourly snapshots and overwrites the
// stored daily log. With no explicit keys the day's stored snapshots are used,
// preceded by the previous day's last snapshot when carry_prev_day is on.
// On a failed save the computed log is returned along with the error.
func (a *ActivityService) BuildDaily(ctx context.Context, day string, snapshotKeys []string) (*domain.EventLog, error) {
	dp, err := period.Parse(period.Day, day)
	if err != nil {
		return nil, err
	}

	start := a.now()
	release, err := a.lock(ctx, period.Day, day)
	if err != nil {
		return nil, err
	}
	defer release()

	keys, err := a.dailyKeys(ctx, dp, snapshotKeys)
	if err != nil {
		return nil, &domain.PeriodError{Op: "build_daily", Level: string(period.Day), Key: day, Err: err}
	}

	snaps := make([]domain.Snapshot, 0, len(keys))
	for _, k := range keys {
		snap, err := a.store.LoadSnapshot(ctx, k)
		if err != nil {
			if reason, skip := skipReason(err); skip {
				a.log.Warnf("Daily %s: skip snapshot %s (%s): %v", day, k, reason, err)
				metrics.InputsSkipped.WithLabelValues(string(period.Day), reason).Inc()
				continue
			}
			return nil, &domain.PeriodError{Op: "load", Level: string(period.Hour), Key: k, Err: err}
		}
		snaps = append(snaps, snap)
	}

	l, err := a.detector.Detect(snaps)
	if err != nil {
		metrics.LogsBuilt.WithLabelValues(string(period.Day), "insufficient").Inc()
		return nil, &domain.PeriodError{Op: "build_daily", Level: string(period.Day), Key: day, Err: err}
	}

	for _, evs := range l.ActivityLog {
		for _, ev := range evs {
			metrics.EventsDetected.WithLabelValues(string(ev.Type())).Inc()
		}
	}

	if err = a.save(ctx, period.Day, day, l, len(snaps)); err != nil {
		return l, err
	}

	if a.sink != nil {
		if err = a.sink.WriteLog(ctx, dp.Start, l); err != nil {
			a.log.Errorf("Daily %s: failed to sink activity rows: %v", day, err)
		}
	}

	metrics.BuildDuration.WithLabelValues(string(period.Day)).Observe(a.now().Sub(start).Seconds())
	a.log.Infof("Daily %s built: snapshots=%d, events=%d, entities=%d", day, len(snaps), l.Summary.TotalEvents, len(l.ActivityLog))
	return l, nil
}

func (a *ActivityService) dailyKeys(ctx context.Context, dp period.Period, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		keys := make([]string, 0, len(explicit))
		seen := make(map[string]struct{}, len(explicit))
		for _, k := range explicit {
			hp, err := period.Parse(period.Hour, k)
			if err != nil {
				return nil, err
			}
			if !dp.Contains(hp) {
				return nil, fmt.Errorf("%w: snapshot %s is outside day %s", period.ErrInvalidKey, k, dp.Key)
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, nil
	}

	all, err := a.store.ListKeys(ctx, period.Hour)
	if err != nil {
		return nil, err
	}

	keys, err := period.Select(period.Hour, period.Day, dp.Key, all, period.DefaultMaxCount(period.Day))
	if err != nil {
		return nil, err
	}

	if a.cfg.CarryPrevDay {
		prev, err := period.Select(period.Hour, period.Day, period.Previous(dp), all, 0)
		if err != nil {
			return nil, err
		}
		if len(prev) > 0 {
			keys = append([]string{prev[len(prev)-1]}, keys...)
		}
	}

	return keys, nil
}

// Rollup recomputes a week, month or year from its stored children and
// overwrites the target. Inputs are merged in ascending key order.
func (a *ActivityService) Rollup(ctx context.Context, level period.Level, key string) (*domain.EventLog, error) {
	if level == period.Day || level == period.Hour {
		return nil, fmt.Errorf("%w: %s is built by detection, not rollup", period.ErrUnsupportedRollup, level)
	}
	source, err := period.SourceLevel(level)
	if err != nil {
		return nil, err
	}
	if _, err = period.Parse(level, key); err != nil {
		return nil, err
	}

	start := a.now()
	release, err := a.lock(ctx, level, key)
	if err != nil {
		return nil, err
	}
	defer release()

	all, err := a.store.ListKeys(ctx, source)
	if err != nil {
		return nil, &domain.PeriodError{Op: "rollup", Level: string(level), Key: key, Err: err}
	}

	selected, err := period.Select(source, level, key, all, a.maxInputs(level))
	if err != nil {
		return nil, &domain.PeriodError{Op: "rollup", Level: string(level), Key: key, Err: err}
	}

	logs := make([]*domain.EventLog, 0, len(selected))
	for _, k := range selected {
		l, err := a.store.LoadEventLog(ctx, source, k)
		if err != nil {
			if reason, skip := skipReason(err); skip {
				a.log.Warnf("Rollup %s %s: skip %s %s (%s): %v", level, key, source, k, reason, err)
				metrics.InputsSkipped.WithLabelValues(string(level), reason).Inc()
				continue
			}
			return nil, &domain.PeriodError{Op: "load", Level: string(source), Key: k, Err: err}
		}
		logs = append(logs, l)
	}

	if len(logs) < a.cfg.MinInputs {
		metrics.LogsBuilt.WithLabelValues(string(level), "insufficient").Inc()
		return nil, &domain.PeriodError{
			Op:    "rollup",
			Level: string(level),
			Key:   key,
			Err:   fmt.Errorf("%w: %d usable %s logs, need at least %d", domain.ErrInsufficientData, len(logs), source, a.cfg.MinInputs),
		}
	}

	merged := rollup.Merge(logs)

	if err = a.save(ctx, level, key, merged, len(logs)); err != nil {
		return merged, err
	}

	metrics.BuildDuration.WithLabelValues(string(level)).Observe(a.now().Sub(start).Seconds())
	a.log.Infof("Rollup %s %s built: inputs=%d/%d, events=%d, entities=%d",
		level, key, len(logs), len(selected), merged.Summary.TotalEvents, len(merged.ActivityLog))
	return merged, nil
}

func (a *ActivityService) maxInputs(level period.Level) int {
	switch level {
	case period.Week:
		return a.cfg.MaxWeekInputs
	case period.Month:
		return a.cfg.MaxMonthInputs
	case period.Year:
		return a.cfg.MaxYearInputs
	}
	return period.DefaultMaxCount(level)
}

func (a *ActivityService) save(ctx context.Context, level period.Level, key string, l *domain.EventLog, inputs int) error {
	if err := a.store.SaveEventLog(ctx, level, key, l); err != nil {
		metrics.LogsBuilt.WithLabelValues(string(level), "write_failure").Inc()
		if !errors.Is(err, domain.ErrWriteFailure) {
			err = fmt.Errorf("%w: %v", domain.ErrWriteFailure, err)
		}
		return &domain.PeriodError{Op: "save", Level: string(level), Key: key, Err: err}
	}
	metrics.LogsBuilt.WithLabelValues(string(level), "ok").Inc()

	notice := pubsub.LogSaved{
		Level:       string(level),
		Key:         key,
		TotalEvents: l.Summary.TotalEvents,
		Entities:    len(l.ActivityLog),
		Inputs:      inputs,
		GeneratedAt: a.now().UTC(),
	}
	// notifications are best effort, the log is already stored
	if err := a.broadcaster.Publish(ctx, a.subject+"."+string(level), notice); err != nil {
		a.log.Errorf("Failed to publish %s %s notice: %v", level, key, err)
	}

	return nil
}

func (a *ActivityService) lock(ctx context.Context, level period.Level, key string) (func(), error) {
	lockKey := string(level) + ":" + key

	token, ok, err := a.guard.TryLock(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("guard %s: %w", lockKey, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeriodBusy, lockKey)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.guard.Unlock(unlockCtx, lockKey, token); err != nil {
			a.log.Errorf("Failed to release %s: %v", lockKey, err)
		}
	}, nil
}

// not found and malformed inputs are skipped, anything else aborts the build
func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", true
	case errors.Is(err, domain.ErrMalformedInput):
		return "malformed", true
	}
	return "", false
}

func (a *ActivityService) GetLog(ctx context.Context, level period.Level, key string) (*domain.EventLog, error) {
	if _, err := period.Parse(level, key); err != nil {
		return nil, err
	}
	return a.store.LoadEventLog(ctx, level, key)
}

func (a *ActivityService) ListLogs(ctx context.Context, level period.Level) ([]string, error) {
	return a.store.ListKeys(ctx, level)
}

// EntityEvents returns one entity's sequence; an entity without events gets an empty list
func (a *ActivityService) EntityEvents(ctx context.Context, level period.Level, key string, id domain.EntityID) (domain.Events, error) {
	if id < 1 || int(id) > a.detector.EntityCount {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrEntityOutOfRange, id, a.detector.EntityCount)
	}

	l, err := a.GetLog(ctx, level, key)
	if err != nil {
		return nil, err
	}

	evs := l.ActivityLog[id]
	if evs == nil {
		evs = domain.Events{}
	}
	return evs, nil
}

func (a *ActivityService) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, 3)

	if err := a.store.Health(ctx); err != nil {
		errDependency = append(errDependency, fmt.Sprintf("Redis connection error: %v", err))
	}

	if a.sink != nil {
		if err := a.sink.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("ClickHouse connection error: %v", err))
		}
	}

	if err := a.broadcaster.Health(ctx); err != nil {
		errDependency = append(errDependency, fmt.Sprintf("NATS: %v", err))
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	a.log.Debugf("All dependency check passed")
	return nil
}
