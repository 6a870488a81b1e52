package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
)

// Result summarizes one ingestion of a file into a dataset.
type Result struct {
	DatasetID string        `json:"dataset_id"`
	File      string        `json:"file"`
	Format    Format        `json:"format"`
	Total     int           `json:"total"`
	Added     int           `json:"added"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"-"`
}

// Loader reads source files and persists their records.
type Loader struct {
	store  *facts.Store
	logger *zap.SugaredLogger
}

// NewLoader creates a loader writing to store. A nil store still allows
// Load and LoadDataset.
func NewLoader(store *facts.Store, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{store: store, logger: logger}
}

// LoadDataset parses path with the format sniffed from its name.
func (l *Loader) LoadDataset(datasetID, path string) ([]facts.Record, error) {
	src, err := Describe(path, "")
	if err != nil {
		return nil, err
	}
	return l.Load(datasetID, src)
}

// Load reads and parses src. The whole file is rejected on its first bad
// row; errors name the file.
func (l *Loader) Load(datasetID string, src Source) ([]facts.Record, error) {
	if strings.TrimSpace(datasetID) == "" {
		return nil, errors.NewInvalidRequestError("dataset id is required")
	}

	adapter, err := src.Format.Adapter()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("file %s", src.Path)
		}
		return nil, errors.Wrapf(err, "read %s", src.Path)
	}

	records, err := adapter(datasetID, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filepath.Base(src.Path))
	}

	l.logger.Debugw("Source parsed",
		"dataset_id", datasetID,
		"file", src.Path,
		"format", src.Format,
		"count", len(records),
	)
	return records, nil
}

// Ingest loads src and proposes every record to the store. Records already
// present are skipped, so ingesting the same file twice adds nothing. When
// ctx ends mid-batch the records stored so far stay committed; the partial
// Result is returned and recorded along with the error.
func (l *Loader) Ingest(ctx context.Context, datasetID string, src Source) (*Result, error) {
	if l.store == nil {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "loader has no store")
	}

	start := time.Now()
	records, err := l.Load(datasetID, src)
	if err != nil {
		return nil, err
	}

	added, storeErr := l.store.AddRecords(ctx, records)
	if storeErr != nil {
		storeErr = errors.Wrapf(storeErr, "store %s", filepath.Base(src.Path))
		if added == nil {
			return nil, storeErr
		}
	}

	res := &Result{
		DatasetID: datasetID,
		File:      src.Path,
		Format:    src.Format,
		Total:     added.Total,
		Added:     added.Added,
		Skipped:   added.Skipped,
		Failed:    added.Failed,
		Duration:  time.Since(start),
	}

	run := facts.Run{
		DatasetID: res.DatasetID,
		File:      res.File,
		Format:    res.Format.String(),
		Total:     res.Total,
		Added:     res.Added,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Duration:  res.Duration,
	}
	if err := l.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		// Records are already committed
		l.logger.Warnw("Failed to record ingest run", "dataset_id", datasetID, "error", err)
	}

	fields := []interface{}{
		"dataset_id", datasetID,
		"file", src.Path,
		"format", src.Format,
		"total", res.Total,
		"added", res.Added,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if storeErr != nil {
		l.logger.Warnw("Dataset ingest interrupted", append(fields, "error", storeErr)...)
		return res, storeErr
	}
	l.logger.Infow("Dataset ingested", fields...)
	return res, nil
}
