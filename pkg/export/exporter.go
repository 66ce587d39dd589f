package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/droprescue/droprescue/pkg/client"
	"github.com/droprescue/droprescue/pkg/drop"
	"github.com/droprescue/droprescue/pkg/metrics"
	"github.com/droprescue/droprescue/pkg/mirror"
)

type (
	// Exporter consumes the client's enumeration and persists every
	// drop, isolating per-drop failures from the rest of the run.
	Exporter struct {
		l        *zap.Logger
		client   *client.Client
		dir      string
		mirror   mirror.Storage
		progress bool
	}
	Option func(*Exporter)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, c *client.Client, opts ...Option) *Exporter {
	inst := &Exporter{
		l:      l.Named("exporter"),
		client: c,
		dir:    ".",
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithDir(v string) Option {
	return func(o *Exporter) {
		o.dir = v
	}
}

// WithMirror keeps a second copy of every metadata snapshot in the
// given storage.
func WithMirror(v mirror.Storage) Option {
	return func(o *Exporter) {
		o.mirror = v
	}
}

func WithProgress(v bool) Option {
	return func(o *Exporter) {
		o.progress = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Run exports every drop of the account, one at a time, in
// enumeration order. Per-drop failures are logged, aggregated and
// returned at the end; enumeration-level failures stop the run.
func (e *Exporter) Run(ctx context.Context) error {
	l := e.l.With(zap.String("run_id", uuid.New().String()))

	start := time.Now()
	defer func() {
		metrics.ExportDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	}()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("iterating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(e.progress),
	)

	l.Info("export started", zap.String("dir", e.dir))

	var errs error
	it := e.client.Drops()
	for {
		result, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return multierr.Append(errs, errors.Wrap(err, "enumeration failed"))
		}

		if result.Record != nil {
			if err := e.saveBroken(ctx, result.Record); err != nil {
				l.Error("failed to save broken record", zap.Error(err))
				errs = multierr.Append(errs, err)
			}
			metrics.BrokenRecordsCounter.WithLabelValues().Inc()
			_ = bar.Add(1)
			continue
		}

		d := result.Drop
		bar.Describe(fmt.Sprintf("%-8s %s %s", d.Type, d.Uploaded.Format(time.RFC3339), d.Slug))
		if d.Total > 0 {
			bar.ChangeMax(d.Total)
		}

		if err := e.save(ctx, d); err != nil {
			l.Error("failed to save drop", zap.String("slug", d.Slug), zap.Error(err))
			metrics.DropsFailedCounter.WithLabelValues().Inc()
			errs = multierr.Append(errs, errors.Wrapf(err, "drop %s", d.Slug))
		} else {
			l.Debug("saved drop",
				zap.String("slug", d.Slug),
				zap.String("type", d.Type),
				zap.Int("index", d.Index),
				zap.Int("total", d.Total),
			)
			metrics.DropsExportedCounter.WithLabelValues().Inc()
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	counters, err := metrics.Summary()
	if err != nil {
		l.Warn("failed to read counters", zap.Error(err))
	}
	l.Info("export finished",
		zap.Duration("duration", time.Since(start)),
		zap.Any("counters", counters),
	)
	return errs
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (e *Exporter) save(ctx context.Context, d *drop.Drop) error {
	if err := d.Save(ctx, filepath.Join(e.dir, filepath.FromSlash(d.StoragePath()))); err != nil {
		return err
	}
	if e.mirror != nil {
		snapshot, err := d.Snapshot()
		if err != nil {
			return err
		}
		if err := e.mirror.Write(ctx, d.StoragePath()+".info.json", snapshot); err != nil {
			return errors.Wrap(err, "failed to mirror snapshot")
		}
	}
	return nil
}

// saveBroken writes the raw listing record of a drop whose detail
// retrieval failed, so the degraded data still survives the export.
func (e *Exporter) saveBroken(ctx context.Context, record map[string]interface{}) error {
	name := fmt.Sprintf("broken--%s--%s--%s.info.json",
		drop.FieldString(record, "item_type"),
		drop.FieldString(record, "id"),
		drop.FieldString(record, "name"),
	)

	data, err := drop.EncodeRecord(record)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(e.dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create export directory")
	}
	if err := os.WriteFile(filepath.Join(e.dir, name), data, 0600); err != nil {
		return errors.Wrap(err, "failed to write broken record")
	}

	if e.mirror != nil {
		if err := e.mirror.Write(ctx, name, data); err != nil {
			return errors.Wrap(err, "failed to mirror broken record")
		}
	}
	return nil
}
