package crawl

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// Degraded extraction: when per-field selectors all miss, the
// container's flattened text still carries the fields in reading
// order. Line-level heuristics recover what they can; each recovered
// field gets a reduced confidence.

const degradedConfidence = 0.4

var (
	degradedSalaryRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*[KkWw万千]?\s*[-~—～]\s*\d+(?:\.\d+)?\s*[KkWw万千]`)
	cityLineRe       = regexp.MustCompile(`^(北京|上海|广州|深圳|杭州|南京|武汉|成都)([·.][\p{Han}]+)?$`)
)

var companyMarkers = []string{"有限公司", "股份", "集团", "科技", "银行", "咨询", "金融", "信息技术"}

// ParseContainerText recovers fields from a container's flattened
// text. Returned record fields are empty where nothing matched; the
// caller merges them under existing selector-extracted values.
func ParseContainerText(text string) models.JobRecord {
	var rec models.JobRecord
	if rec.Confidence == nil {
		rec.Confidence = make(map[string]float64)
	}

	for _, line := range strings.Split(text, "\n") {
		line = CollapseSpace(line)
		if line == "" {
			continue
		}

		switch {
		case rec.Salary == "" && (degradedSalaryRe.MatchString(line) || line == "薪资面议"):
			rec.Salary = CleanSalary(degradedSalaryRe.FindString(line))
			if rec.Salary == "" {
				rec.Salary = line
			}
			rec.Confidence[models.FieldSalary] = degradedConfidence

		case rec.WorkLocation == "" && cityLineRe.MatchString(line):
			rec.WorkLocation = CleanLocation(line)
			rec.Confidence[models.FieldLocation] = degradedConfidence

		case rec.Company == "" && isCompanyLine(line):
			rec.Company = CleanCompany(line)
			rec.Confidence[models.FieldCompany] = degradedConfidence

		case rec.Title == "" && isTitleLine(line):
			var loc string
			rec.Title, loc = CleanTitle(line)
			rec.Confidence[models.FieldTitle] = degradedConfidence
			if rec.WorkLocation == "" && loc != "" {
				rec.WorkLocation = CleanLocation(loc)
				rec.Confidence[models.FieldLocation] = degradedConfidence
			}
		}
	}

	if rec.Salary != "" {
		rec.SalaryMin, rec.SalaryMax, _ = ParseSalary(rec.Salary)
	}
	rec.Source = "degraded"
	return rec
}

func isCompanyLine(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < 2 || n > 30 {
		return false
	}
	for _, m := range companyMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func isTitleLine(line string) bool {
	n := utf8.RuneCountInString(line)
	if n < 2 || n > 40 {
		return false
	}
	if degradedSalaryRe.MatchString(line) || cityLineRe.MatchString(line) {
		return false
	}
	for _, m := range companyMarkers {
		if strings.Contains(line, m) {
			return false
		}
	}
	// Tag rows like "经验不限 本科" read as titles otherwise.
	for _, kw := range []string{"经验", "学历不限", "应届", "社招", "校招"} {
		if strings.Contains(line, kw) {
			return false
		}
	}
	return true
}
