package model

type TestCase struct {
	TestCaseID     string `gorm:"column:test_case_id;primaryKey;type:text"`
	IssueID        string `gorm:"column:issue_id;type:text;not null;index"`
	TestName       string `gorm:"column:test_name;type:text;not null"`
	TestDesc       string `gorm:"column:test_desc;type:text"`
	ExpectedResult string `gorm:"column:expected_result;type:text"`
}

func (TestCase) TableName() string {
	return "test_cases"
}
