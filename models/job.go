package models

import "time"

// Field names keyed into JobRecord.Confidence. They match the JSON
// field names of the record itself so downstream consumers can join
// confidence scores back onto fields.
const (
	FieldTitle    = "title"
	FieldCompany  = "company"
	FieldSalary   = "salary"
	FieldLocation = "work_location"
	FieldLink     = "url"
)

// Placeholder values written into a JobRecord when a field could not
// be extracted at all. Records carrying placeholders also carry a
// warning naming the failed field.
const (
	PlaceholderTitle    = "职位信息获取失败"
	PlaceholderCompany  = "公司信息获取失败"
	PlaceholderSalary   = "薪资面议"
	PlaceholderLocation = "地点待确认"
)

// JobRecord is a single normalized job posting.
type JobRecord struct {
	Title        string `json:"title"`
	Company      string `json:"company"`
	Salary       string `json:"salary"`
	WorkLocation string `json:"work_location"`

	// SalaryMin/SalaryMax are the parsed monthly salary bounds in
	// thousands of CNY. Zero when the salary text did not parse.
	SalaryMin float64 `json:"salary_min,omitempty"`
	SalaryMax float64 `json:"salary_max,omitempty"`

	Experience string   `json:"experience,omitempty"`
	Education  string   `json:"education,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	URL        string   `json:"url,omitempty"`

	// Description summarizes the card's skill tags; listing pages
	// carry no full posting text.
	Description string `json:"description,omitempty"`

	// Requirements summarizes the experience and education demands.
	Requirements string `json:"requirements,omitempty"`

	// Confidence holds per-field extraction confidence in [0,1].
	Confidence map[string]float64 `json:"confidence,omitempty"`

	// Warnings lists fields that fell back to placeholders or
	// degraded text parsing.
	Warnings []string `json:"warnings,omitempty"`

	// Source names the extraction path that produced the record,
	// e.g. "selector" or "degraded".
	Source string `json:"source,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// Usable reports whether the record carries at least a real title or
// company, i.e. it is not made of placeholders only.
func (r *JobRecord) Usable() bool {
	return (r.Title != "" && r.Title != PlaceholderTitle) ||
		(r.Company != "" && r.Company != PlaceholderCompany)
}

// FieldExtraction is the result of extracting one field from one
// container element.
type FieldExtraction struct {
	Value      string
	Selector   string
	Confidence float64
	Warnings   []string
}
