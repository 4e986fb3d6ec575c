package sync

import "almsync/internal/ports"

// buildDefectDescription renders the failure detail as an Atlassian Document
// Format doc, the rich-text shape the tracker's v3 API requires.
func buildDefectDescription(detail ports.FailureDetail) map[string]any {
	related := detail.RequirementKey
	if detail.RequirementTitle != "" {
		related += " - " + detail.RequirementTitle
	}

	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			adfLabeledParagraph("Test Case: ", detail.TestName),
			adfLabeledParagraph("Test Description: ", detail.TestDesc),
			adfLabeledParagraph("Related Requirement: ", related),
			adfRule(),
			adfHeading(3, "Failure Details"),
			map[string]any{
				"type": "bulletList",
				"content": []any{
					adfListItem("Expected Result: ", detail.ExpectedResult),
					adfListItem("Actual Result: ", detail.ActualResult),
					adfListItem("Failure Reason: ", detail.FailureReason),
					adfListItem("Execution Time: ", detail.ExecutionTimestamp),
				},
			},
			adfRule(),
			adfLabeledParagraph("Test Case ID: ", detail.TestCaseID),
			adfLabeledParagraph("Test Result ID: ", detail.TestResultID),
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{
						"type":  "text",
						"text":  "This defect was automatically created by the sync engine.",
						"marks": []any{map[string]any{"type": "em"}},
					},
				},
			},
		},
	}
}

func adfLabeledParagraph(label string, text string) map[string]any {
	return map[string]any{
		"type": "paragraph",
		"content": []any{
			map[string]any{
				"type":  "text",
				"text":  label,
				"marks": []any{map[string]any{"type": "strong"}},
			},
			map[string]any{"type": "text", "text": orDash(text)},
		},
	}
}

func adfListItem(label string, text string) map[string]any {
	return map[string]any{
		"type":    "listItem",
		"content": []any{adfLabeledParagraph(label, text)},
	}
}

func adfHeading(level int, text string) map[string]any {
	return map[string]any{
		"type":    "heading",
		"attrs":   map[string]any{"level": level},
		"content": []any{map[string]any{"type": "text", "text": text}},
	}
}

func adfRule() map[string]any {
	return map[string]any{"type": "rule"}
}

// ADF rejects empty text nodes.
func orDash(text string) string {
	if text == "" {
		return "-"
	}
	return text
}
