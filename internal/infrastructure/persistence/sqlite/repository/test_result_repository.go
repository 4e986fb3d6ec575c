package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domainsync "almsync/internal/domain/sync"
	"almsync/internal/errs"
	"almsync/internal/infrastructure/persistence/sqlite/model"
	"almsync/internal/ports"
)

type TestResultRepository struct {
	db *gorm.DB
}

func NewTestResultRepository(db *gorm.DB) *TestResultRepository {
	return &TestResultRepository{db: db}
}

func (r *TestResultRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

const failureDetailSelect = "tr.test_result_id, tr.test_case_id, tr.status, tr.failure_reason, " +
	"tr.actual_result, tr.execution_timestamp, tr.defect_id, tc.test_name, tc.test_desc, " +
	"tc.expected_result, i.issue_id AS requirement_key, i.title AS requirement_title"

type failureDetailRow struct {
	TestResultID       string
	TestCaseID         string
	TestName           string
	TestDesc           string
	ExpectedResult     string
	ActualResult       string
	FailureReason      string
	Status             string
	ExecutionTimestamp string
	RequirementKey     string
	RequirementTitle   string
	DefectID           *string
}

func (r *TestResultRepository) GetFailureDetail(ctx context.Context, testResultID string) (ports.FailureDetail, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.FailureDetail{}, err
	}

	var row failureDetailRow
	if err := db.Table("test_results AS tr").
		Select(failureDetailSelect).
		Joins("JOIN test_cases AS tc ON tr.test_case_id = tc.test_case_id").
		Joins("JOIN issues AS i ON tc.issue_id = i.issue_id").
		Where("tr.test_result_id = ? AND tr.status IN ?", testResultID,
			[]string{domainsync.TestStatusFailed, domainsync.TestStatusError}).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.FailureDetail{}, ports.ErrTestResultNotFound
		}
		return ports.FailureDetail{}, errs.Wrap(err, "query failure detail")
	}

	return ports.FailureDetail{
		TestResultID:       row.TestResultID,
		TestCaseID:         row.TestCaseID,
		TestName:           row.TestName,
		TestDesc:           row.TestDesc,
		ExpectedResult:     row.ExpectedResult,
		ActualResult:       row.ActualResult,
		FailureReason:      row.FailureReason,
		Status:             row.Status,
		ExecutionTimestamp: row.ExecutionTimestamp,
		RequirementKey:     row.RequirementKey,
		RequirementTitle:   row.RequirementTitle,
		DefectID:           row.DefectID,
	}, nil
}

// AttachDefect writes the defect linkage only when no defect is linked yet.
// The WHERE clause is the compare-and-set: under duplicate delivery exactly
// one attempt observes RowsAffected == 1.
func (r *TestResultRepository) AttachDefect(ctx context.Context, testResultID string, defectKey string, createdAt string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.TestResult{}).
		Where("test_result_id = ? AND defect_id IS NULL", testResultID).
		Updates(map[string]any{
			"defect_id":                defectKey,
			"defect_created_timestamp": createdAt,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "attach defect")
	}
	return result.RowsAffected > 0, nil
}

func (r *TestResultRepository) ListUnlinkedFailures(ctx context.Context, limit int) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.TestResult{}).
		Select("test_result_id").
		Where("status IN ? AND (defect_id IS NULL OR defect_id = '')",
			[]string{domainsync.TestStatusFailed, domainsync.TestStatusError}).
		Order("execution_timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var ids []string
	if err := query.Find(&ids).Error; err != nil {
		return nil, errs.Wrap(err, "query unlinked failures")
	}
	return ids, nil
}
