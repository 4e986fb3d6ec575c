package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/infrastructure/persistence/sqlite/model"
	"almsync/internal/ports"
)

type SyncLedgerRepository struct {
	db *gorm.DB
}

func NewSyncLedgerRepository(db *gorm.DB) *SyncLedgerRepository {
	return &SyncLedgerRepository{db: db}
}

func (r *SyncLedgerRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *SyncLedgerRepository) Begin(ctx context.Context, input ports.LedgerBegin) (string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	var prior int64
	if err := db.Model(&model.SyncStatus{}).
		Where("entity_id = ? AND direction = ?", input.EntityID, input.Direction).
		Count(&prior).Error; err != nil {
		return "", errs.Wrap(err, "count prior attempts")
	}

	row := model.SyncStatus{
		SyncID:     uuid.NewString(),
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Direction:  input.Direction,
		Status:     domainsync.StatusPending,
		RetryCount: int(prior),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if key := strings.TrimSpace(input.TrackerKey); key != "" {
		row.TrackerKey = &key
	}

	if err := db.Create(&row).Error; err != nil {
		return "", errs.Wrap(err, "insert sync status")
	}
	return row.SyncID, nil
}

func (r *SyncLedgerRepository) Complete(ctx context.Context, syncID string, status string, trackerKey string, errorMessage string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":        status,
		"error_message": errorMessage,
		"completed_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if key := strings.TrimSpace(trackerKey); key != "" {
		updates["tracker_key"] = key
	}

	if err := db.Model(&model.SyncStatus{}).
		Where("sync_id = ?", syncID).
		Updates(updates).Error; err != nil {
		return errs.Wrap(err, "complete sync status")
	}
	return nil
}

func (r *SyncLedgerRepository) Recent(ctx context.Context, limit int) ([]ports.LedgerEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.SyncStatus{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.SyncStatus
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query sync status")
	}
	return mapLedgerEntries(rows), nil
}

func (r *SyncLedgerRepository) HistoryFor(ctx context.Context, entityID string) ([]ports.LedgerEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SyncStatus
	if err := db.Model(&model.SyncStatus{}).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query sync history")
	}
	return mapLedgerEntries(rows), nil
}

func mapLedgerEntries(rows []model.SyncStatus) []ports.LedgerEntry {
	items := make([]ports.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.LedgerEntry{
			SyncID:       row.SyncID,
			EntityType:   row.EntityType,
			EntityID:     row.EntityID,
			TrackerKey:   row.TrackerKey,
			Direction:    row.Direction,
			Status:       row.Status,
			ErrorMessage: row.ErrorMessage,
			RetryCount:   row.RetryCount,
			CreatedAt:    row.CreatedAt,
			CompletedAt:  row.CompletedAt,
		})
	}
	return items
}
