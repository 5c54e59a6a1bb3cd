package clickhouse

import (
	"assetactivity/internal/config"
	"assetactivity/internal/domain"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrWriterClosed = errors.New("clickhouse writer closed")

// Sink for daily activity; implementations must not block the caller on I/O.
// A rewritten day replaces every row previously written for it.
type ActivityWriter interface {
	WriteLog(ctx context.Context, day time.Time, l *domain.EventLog) error
	Health(ctx context.Context) error
	Close(ctx context.Context) error
}

type Writer struct {
	log logger.Logger

	conn ch.Conn
	cfg  config.ClickHouseConfig

	mu        sync.RWMutex // guards inCh against send-after-close
	inCh      chan queued
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ ActivityWriter = (*Writer)(nil)

// queue item: a row to insert, or a day whose stored rows must be dropped first
type queued struct {
	row      ActivityRow
	clearDay time.Time
	clear    bool
}

func NewWriter(log logger.Logger, conn ch.Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Table == "" {
		cfg.Table = "asset_activity"
	}
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 5000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = time.Second
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:  log,
		conn: conn,
		cfg:  cfg,
		inCh: make(chan queued, 8*cfg.Writer.BatchMaxRows), // a full day of busy activity fits without blocking
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *Writer) Table() string {
	return w.cfg.Table
}

func (w *Writer) Enqueue(ctx context.Context, row ActivityRow) error {
	return w.push(ctx, queued{row: row})
}

func (w *Writer) push(ctx context.Context, item queued) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.inCh <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteLog queues a delete of the day followed by the flattened log. Both go
// through the same queue, so rows of an earlier build never land after the delete.
func (w *Writer) WriteLog(ctx context.Context, day time.Time, l *domain.EventLog) error {
	if err := w.push(ctx, queued{clearDay: day.UTC(), clear: true}); err != nil {
		return fmt.Errorf("enqueue clear of %s: %w", day.Format(time.DateOnly), err)
	}

	rows := Rows(day, l)
	for i := range rows {
		if err := w.Enqueue(ctx, rows[i]); err != nil {
			return fmt.Errorf("enqueue row %d/%d: %w", i+1, len(rows), err)
		}
	}

	w.log.Debugf("Queued %d activity rows for %s", len(rows), day.Format(time.DateOnly))
	return nil
}

func (w *Writer) Health(ctx context.Context) error {
	if w.conn == nil {
		return errors.New("clickhouse connection is nil")
	}
	return w.conn.Ping(ctx)
}

// Close stops accepting rows, flushes the queue and waits for the loop
func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.inCh)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]ActivityRow, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed insert [%d] rows by batch to clickhouse, error=%v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case item, ok := <-w.inCh:
			if !ok {
				flush()
				return
			}

			if item.clear {
				flush()
				if err := w.retry(func() error { return w.deleteDay(context.Background(), item.clearDay) }); err != nil {
					w.log.Errorf("Failed clear day %s in clickhouse, error=%v", item.clearDay.Format(time.DateOnly), err)
				}
				continue
			}

			batch = append(batch, item.row)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []ActivityRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.retry(func() error { return w.sendOnce(ctx, rows) })
}

// repeat with exponential delay
func (w *Writer) retry(op func() error) error {
	backoff := w.cfg.Writer.RetryBackoff

	var lastErr error

	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}

		if attempt == w.cfg.Writer.MaxRetries {
			break
		}
		w.log.Warnf("Clickhouse attempt %d failed, retry in %s: %v", attempt+1, backoff, lastErr)
		time.Sleep(backoff)
		backoff *= 2
	}

	return lastErr
}

// deleteDay waits for the mutation so the following inserts are not removed by it
func (w *Writer) deleteDay(ctx context.Context, day time.Time) error {
	ctx = ch.Context(ctx, ch.WithSettings(ch.Settings{"mutations_sync": 1}))
	return w.conn.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s DELETE WHERE day = ?`, w.cfg.Table), day)
}

func (w *Writer) sendOnce(ctx context.Context, rows []ActivityRow) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			day,
			entity_id,
			hour,
			seq,
			event_type,
			venue,
			from_value,
			to_value
		)
	`, w.cfg.Table))
	if err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		if err = batch.Append(
			r.Day,
			r.EntityID,
			r.Hour,
			r.Seq,
			r.EventType,
			r.Venue,
			r.FromValue,
			r.ToValue,
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}
