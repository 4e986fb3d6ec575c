package model

type TestResult struct {
	TestResultID           string  `gorm:"column:test_result_id;primaryKey;type:text"`
	TestCaseID             string  `gorm:"column:test_case_id;type:text;not null;index"`
	Status                 string  `gorm:"column:status;type:text;not null;index"`
	FailureReason          string  `gorm:"column:failure_reason;type:text"`
	ActualResult           string  `gorm:"column:actual_result;type:text"`
	ExecutionTimestamp     string  `gorm:"column:execution_timestamp;type:text;not null;index"`
	DefectID               *string `gorm:"column:defect_id;type:text"`
	DefectCreatedTimestamp *string `gorm:"column:defect_created_timestamp;type:text"`
}

func (TestResult) TableName() string {
	return "test_results"
}
