package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cota-capital/internal/dataset"
	"cota-capital/internal/logging"
	"cota-capital/internal/spreadsheet"
	statement "cota-capital/internal/statement/domain"
	"cota-capital/internal/warehouse"
)

// IndexLoader loads the account index workbook.
type IndexLoader interface {
	Load(ctx context.Context, path string) (*dataset.Table, error)
}

// Consolidation is the consolidated record set for one run.
type Consolidation struct {
	Records    []statement.AccountRecord
	RemoteRows int
	IndexRows  int
	Warnings   int
}

// Consolidator joins the warehouse account table with the index workbook.
type Consolidator struct {
	querier     warehouse.Querier
	loader      IndexLoader
	statement   string
	indexPath   string
	maxAttempts int
	clock       func() time.Time
	logger      zerolog.Logger
}

// ConsolidatorConfig holds the fixed inputs of a consolidation.
type ConsolidatorConfig struct {
	Statement   string
	IndexPath   string
	MaxAttempts int
}

// NewConsolidator constructs a Consolidator.
func NewConsolidator(querier warehouse.Querier, loader IndexLoader, cfg ConsolidatorConfig, logger zerolog.Logger) (*Consolidator, error) {
	if querier == nil {
		return nil, errors.New("consolidator: nil querier")
	}
	if loader == nil {
		return nil, errors.New("consolidator: nil index loader")
	}
	if cfg.Statement == "" {
		return nil, errors.New("consolidator: empty statement")
	}
	if cfg.IndexPath == "" {
		return nil, errors.New("consolidator: empty index path")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Consolidator{
		querier:     querier,
		loader:      loader,
		statement:   cfg.Statement,
		indexPath:   cfg.IndexPath,
		maxAttempts: cfg.MaxAttempts,
		clock:       time.Now,
		logger:      logger,
	}, nil
}

// Consolidate fetches both sources and returns one record per matching account row.
func (c *Consolidator) Consolidate(ctx context.Context) (Consolidation, error) {
	log := logging.FromContext(ctx, c.logger)
	log.Info().Msg("fetching account data from warehouse")
	remote, err := c.querier.Execute(ctx, c.statement, c.maxAttempts)
	if err != nil {
		return Consolidation{}, fmt.Errorf("consolidator: warehouse: %w", err)
	}
	log.Info().Int("rows", remote.Len()).Int("columns", len(remote.Columns)).Msg("account data fetched")

	index, err := c.loader.Load(ctx, c.indexPath)
	if err != nil {
		return Consolidation{}, fmt.Errorf("consolidator: index: %w", err)
	}
	log.Info().Int("rows", index.Len()).Int("columns", len(index.Columns)).Msg("index data loaded")

	merged, err := Join(index, remote, ColumnAccount)
	if err != nil {
		return Consolidation{}, err
	}

	result := Consolidation{
		Records:    make([]statement.AccountRecord, 0, len(merged)),
		RemoteRows: remote.Len(),
		IndexRows:  index.Len(),
	}
	runDate := c.clock()
	for _, row := range merged {
		record, warnings := mapRecord(row, runDate)
		for _, w := range warnings {
			log.Warn().Str("account", record.AccountID).Msg(w)
		}
		result.Warnings += len(warnings)
		result.Records = append(result.Records, record)
	}
	log.Info().Int("records", len(result.Records)).Int("warnings", result.Warnings).Msg("consolidation finished")
	return result, nil
}

// Join inner-joins index and remote on key. Output follows index order, then remote order for
// keys matched more than once. On column collisions the index value wins unless it is blank.
func Join(index, remote *dataset.Table, key string) ([]map[string]string, error) {
	if _, err := index.Index(key); err != nil {
		return nil, fmt.Errorf("consolidator: index %s: %w", key, err)
	}
	if _, err := remote.Index(key); err != nil {
		return nil, fmt.Errorf("consolidator: warehouse %s: %w", key, err)
	}

	byKey := make(map[string][]int, remote.Len())
	for i := 0; i < remote.Len(); i++ {
		k := spreadsheet.NormalizeAccountID(remote.Value(i, key))
		if k == "" {
			continue
		}
		byKey[k] = append(byKey[k], i)
	}

	var merged []map[string]string
	for i := 0; i < index.Len(); i++ {
		k := spreadsheet.NormalizeAccountID(index.Value(i, key))
		if k == "" {
			continue
		}
		for _, j := range byKey[k] {
			out := index.RowMap(i)
			for col, value := range remote.RowMap(j) {
				if out[col] == "" {
					out[col] = value
				}
			}
			out[dataset.FoldHeader(key)] = k
			merged = append(merged, out)
		}
	}
	return merged, nil
}
