package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"almsync/internal/errs"
	"almsync/internal/infrastructure/persistence/sqlite/model"
	"almsync/internal/ports"
)

type IssueRepository struct {
	db *gorm.DB
}

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

// UpsertIssue performs the insert-or-overwrite as one conditional statement,
// so concurrent deliveries for the same issue serialize at the storage
// layer. created_at keeps its original value on conflict.
func (r *IssueRepository) UpsertIssue(ctx context.Context, record ports.IssueRecord) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Issue{
		IssueID:       record.IssueID,
		IssueType:     record.IssueType,
		Title:         record.Title,
		Description:   record.Description,
		Priority:      record.Priority,
		Status:        record.Status,
		Assignee:      record.Assignee,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
		SyncTimestamp: record.SyncTimestamp,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "issue_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"issue_type",
			"title",
			"description",
			"priority",
			"status",
			"assignee",
			"updated_at",
			"sync_timestamp",
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert issue")
	}
	return nil
}

func (r *IssueRepository) GetIssue(ctx context.Context, issueID string) (ports.IssueRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.IssueRecord{}, err
	}

	var row model.Issue
	if err := db.Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IssueRecord{}, ports.ErrIssueNotFound
		}
		return ports.IssueRecord{}, errs.Wrap(err, "query issue")
	}

	return ports.IssueRecord{
		IssueID:       row.IssueID,
		IssueType:     row.IssueType,
		Title:         row.Title,
		Description:   row.Description,
		Priority:      row.Priority,
		Status:        row.Status,
		Assignee:      row.Assignee,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		SyncTimestamp: row.SyncTimestamp,
	}, nil
}
