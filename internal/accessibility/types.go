package accessibility

import "time"

// WCAGLevel represents different WCAG compliance levels.
type WCAGLevel string

const (
	WCAGLevelA  WCAGLevel = "A"
	WCAGLevelAA WCAGLevel = "AA"
)

// WCAGCriteria represents the specific WCAG success criteria.
type WCAGCriteria string

const (
	Criteria1_1_1 WCAGCriteria = "1.1.1" // Non-text Content
	Criteria1_3_1 WCAGCriteria = "1.3.1" // Info and Relationships
	Criteria2_1_1 WCAGCriteria = "2.1.1" // Keyboard
	Criteria4_1_1 WCAGCriteria = "4.1.1" // Parsing
	Criteria4_1_2 WCAGCriteria = "4.1.2" // Name, Role, Value
)

// WCAG pairs a level with a success criterion.
type WCAG struct {
	Level    WCAGLevel    `json:"level"`
	Criteria WCAGCriteria `json:"criteria"`
}

// ViolationSeverity represents the severity level of an accessibility violation.
type ViolationSeverity string

const (
	SeverityError   ViolationSeverity = "error"
	SeverityWarning ViolationSeverity = "warning"
	SeverityInfo    ViolationSeverity = "info"
)

// ViolationImpact represents the potential impact of an accessibility violation.
type ViolationImpact string

const (
	ImpactCritical ViolationImpact = "critical"
	ImpactSerious  ViolationImpact = "serious"
	ImpactModerate ViolationImpact = "moderate"
	ImpactMinor    ViolationImpact = "minor"
)

// Rule is one check the engine runs.
type Rule struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Impact      ViolationImpact `json:"impact"`
	WCAG        WCAG            `json:"wcag"`
	Suggestion  string          `json:"suggestion"`
}

// Violation is a single accessibility issue found in the page.
type Violation struct {
	Rule       string            `json:"rule"`
	Severity   ViolationSeverity `json:"severity"`
	Impact     ViolationImpact   `json:"impact"`
	WCAG       WCAG              `json:"wcag"`
	Selector   string            `json:"selector"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// Summary provides high-level statistics about an audit.
type Summary struct {
	TotalRules      int     `json:"total_rules"`
	PassedRules     int     `json:"passed_rules"`
	FailedRules     int     `json:"failed_rules"`
	TotalViolations int     `json:"total_violations"`
	ErrorViolations int     `json:"error_violations"`
	WarnViolations  int     `json:"warn_violations"`
	InfoViolations  int     `json:"info_violations"`
	OverallScore    float64 `json:"overall_score"` // 0-100
}

// Report is the result of auditing one page.
type Report struct {
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Violations []Violation   `json:"violations"`
	Passed     []string      `json:"passed"`
	Summary    Summary       `json:"summary"`
}

// HasErrors reports whether any violation has error severity.
func (r *Report) HasErrors() bool {
	return r.Summary.ErrorViolations > 0
}
