package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mindmesh-ai/mindmesh-engine/pkg/apperrors"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/database"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/repositories"
	"github.com/mindmesh-ai/mindmesh-engine/pkg/schema"
)

// RowCountRefresher periodically recounts the rows of every managed table
// and stores the result on the table's status record, so schema listings can
// show sizes without counting on demand.
type RowCountRefresher struct {
	db       *database.DB
	registry *schema.Registry
	records  repositories.RegistryRepository
	logger   *zap.Logger
}

// NewRowCountRefresher creates a refresher over the managed tables.
func NewRowCountRefresher(
	db *database.DB,
	registry *schema.Registry,
	records repositories.RegistryRepository,
	logger *zap.Logger,
) *RowCountRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowCountRefresher{
		db:       db,
		registry: registry,
		records:  records,
		logger:   logger.Named("rowcount-refresher"),
	}
}

// Start launches the background loop. It refreshes immediately, then on the
// given interval. Cancel the context to stop it.
func (r *RowCountRefresher) Start(ctx context.Context, interval time.Duration) {
	go func() {
		r.logger.Info("Row count refresher started",
			zap.Duration("interval", interval),
			zap.Int("tables", r.registry.Len()))

		r.RefreshAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Row count refresher stopped")
				return
			case <-ticker.C:
				r.RefreshAll(ctx)
			}
		}
	}()
}

// RefreshAll recounts every managed table once. Tables that do not exist yet
// or are not registered are skipped quietly.
func (r *RowCountRefresher) RefreshAll(ctx context.Context) {
	for _, table := range r.registry.Tables() {
		if ctx.Err() != nil {
			return
		}

		// Table names are validated identifiers at registration time.
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table.Name)
		if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
			r.logger.Debug("Skipping row count, table not countable",
				zap.String("table", table.Name),
				zap.Error(err))
			continue
		}

		if err := r.records.UpdateRowCount(ctx, table.Name, count); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				r.logger.Debug("Skipping row count, table not registered",
					zap.String("table", table.Name))
				continue
			}
			r.logger.Warn("Failed to update row count",
				zap.String("table", table.Name),
				zap.Error(err))
		}
	}
}
