package selector

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// rules validates extracted text per field. Quality starts at 1.0 and
// each violated rule subtracts its penalty; the result is clamped to
// [0, 1]. A quality above SuccessThreshold counts as a successful
// extraction for stats purposes.
type rules struct {
	minLen  int
	maxLen  int
	pattern *regexp.Regexp

	forbiddenWords []string
	forbiddenChars string
	requiredWords  []string
	requiredChars  string
}

// Penalty weights. Required-character misses weigh most because they
// indicate the selector grabbed a different field entirely.
const (
	penaltyMinLen        = 0.3
	penaltyMaxLen        = 0.2
	penaltyForbiddenWord = 0.4
	penaltyForbiddenChar = 0.2
	penaltyRequiredChar  = 0.5
	penaltyRequiredWord  = 0.3
	penaltyPattern       = 0.4
)

// SuccessThreshold is the minimum quality for an extraction to count
// as a success.
const SuccessThreshold = 0.3

var salaryShape = regexp.MustCompile(`\d+[KkWw万千]`)

var fieldRules = map[string]rules{
	FieldContainer: {
		minLen: 20,
		maxLen: 2000,
	},
	FieldTitle: {
		minLen:         2,
		maxLen:         40,
		forbiddenWords: []string{"登录", "注册", "APP", "下载"},
		forbiddenChars: "¥",
	},
	FieldCompany: {
		minLen:         2,
		maxLen:         30,
		forbiddenWords: []string{"薪资", "经验", "学历", "登录"},
		forbiddenChars: "¥·",
	},
	FieldSalary: {
		minLen:         2,
		maxLen:         20,
		pattern:        salaryShape,
		requiredChars:  "0123456789面",
		forbiddenWords: []string{"公司", "经验"},
	},
	FieldLocation: {
		minLen:         2,
		maxLen:         20,
		pattern:        regexp.MustCompile(`\p{Han}{2}`),
		forbiddenChars: "¥",
		forbiddenWords: []string{"K", "k", "经验", "学历", "薪资"},
	},
	FieldLink: {
		minLen: 5,
		maxLen: 500,
		requiredWords: []string{
			"job_detail",
		},
	},
}

// Score rates extracted text against the field's validation rules.
func Score(text, field string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	r, ok := fieldRules[field]
	if !ok {
		return 1
	}

	q := 1.0
	n := utf8.RuneCountInString(text)
	if r.minLen > 0 && n < r.minLen {
		q -= penaltyMinLen
	}
	if r.maxLen > 0 && n > r.maxLen {
		q -= penaltyMaxLen
	}
	for _, w := range r.forbiddenWords {
		if strings.Contains(text, w) {
			q -= penaltyForbiddenWord
			break
		}
	}
	if r.forbiddenChars != "" && strings.ContainsAny(text, r.forbiddenChars) {
		q -= penaltyForbiddenChar
	}
	if r.requiredChars != "" && !strings.ContainsAny(text, r.requiredChars) {
		q -= penaltyRequiredChar
	}
	for _, w := range r.requiredWords {
		if !strings.Contains(text, w) {
			q -= penaltyRequiredWord
			break
		}
	}
	if r.pattern != nil && !r.pattern.MatchString(text) {
		q -= penaltyPattern
	}

	if q < 0 {
		return 0
	}
	return q
}
