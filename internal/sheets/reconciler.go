package sheets

import (
	"context"

	"go.uber.org/zap"

	"lunchbot-api/internal/ledger"
)

// SyncResult reports one reconciliation pass.
type SyncResult struct {
	Rows    int
	Updated int
	Skipped int
	Failed  int
}

// Reconciler performs a one-way pull: sheet rows overwrite the stored
// balance and daily price. Rows for unknown users are skipped, never
// created; registration happens only through the chatbot.
type Reconciler struct {
	source     RowSource
	repository ledger.LedgerRepository
	logger     *zap.Logger
}

// NewReconciler creates a reconciler over the given source and store.
func NewReconciler(source RowSource, repository ledger.LedgerRepository, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		source:     source,
		repository: repository,
		logger:     logger,
	}
}

// Sync fetches the authoritative rows and applies them. Per-row failures
// are logged and counted, never fatal to the pass; a fetch failure aborts
// before any write.
func (r *Reconciler) Sync(ctx context.Context) (*SyncResult, error) {
	rows, err := r.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Rows: len(rows)}
	for _, row := range rows {
		if err := r.applyRow(row); err != nil {
			if _, notFound := err.(rowSkipped); notFound {
				result.Skipped++
				continue
			}
			r.logger.Error("Failed to apply sheet row",
				zap.Int64("telegramID", row.TelegramID),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Updated++
	}

	r.logger.Info("Sheet sync completed",
		zap.Int("rows", result.Rows),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

type rowSkipped struct{}

func (rowSkipped) Error() string { return "row skipped: user not registered" }

func (r *Reconciler) applyRow(row Row) error {
	return r.repository.WithTransaction(func(tx ledger.LedgerRepository) error {
		user, err := tx.GetUser(row.TelegramID)
		if err != nil {
			return rowSkipped{}
		}

		if user.Balance == row.Balance && user.DailyPrice == row.DailyPrice {
			return nil
		}

		user.Balance = row.Balance
		user.DailyPrice = row.DailyPrice
		return tx.UpdateUser(user)
	})
}
