// Package audit — чтение журнала переходов состояний подписки.
// Записи добавляет хранилище в транзакции самого перехода.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finwire/finwire/internal/models"
)

// Repository — хранилище журнала.
type Repository interface {
	AuditHistory(ctx context.Context, subscriptionID string) ([]models.AuditEntry, error)
}

// Recorder читает журнал.
type Recorder struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Recorder {
	return &Recorder{repo: repo, log: log}
}

// History возвращает журнал подписки, новые записи первыми.
func (r *Recorder) History(ctx context.Context, subscriptionID string) ([]models.AuditEntry, error) {
	const op = "audit.History"
	entries, err := r.repo.AuditHistory(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}
