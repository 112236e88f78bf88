package crawl

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Text normalization for extracted fields. The target site injects
// anti-scraping artifacts into salary text and concatenates fields
// when markup shifts, so cleaning has to handle several shapes.

var (
	salaryRangeRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([KkWw万千]?)\s*[-~—～]\s*(\d+(?:\.\d+)?)\s*([KkWw万千])`)
	salarySingleRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([KkWw万千])`)
	// Mangled ranges like "-K" or "25K-" appear when the site swaps
	// digits out of the DOM for unauthenticated visitors.
	salaryArtifactRe = regexp.MustCompile(`(^|[^\d])[-~][KkWw万千]|[KkWw万千][-~]($|[^\d])`)

	whitespaceRe = regexp.MustCompile(`\s+`)
	// Trailing parentheticals on company names, ASCII and fullwidth.
	companyParenRe = regexp.MustCompile(`[(（][^)）]*[)）]`)
)

var cities = []string{"北京", "上海", "广州", "深圳", "杭州", "南京", "武汉", "成都"}

// CollapseSpace trims and collapses all whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CleanSalary normalizes salary display text. Mangled anti-scraping
// artifacts come back as empty so the caller substitutes a
// placeholder.
func CleanSalary(s string) string {
	s = strings.ReplaceAll(CollapseSpace(s), " ", "")
	if s == "" {
		return ""
	}
	if salaryArtifactRe.MatchString(s) && !salaryRangeRe.MatchString(s) {
		return ""
	}
	return s
}

// ParseSalary extracts the monthly salary bounds in thousands of CNY
// from display text like "30-50K·15薪", "2-3万" or "15K".
func ParseSalary(s string) (min, max float64, ok bool) {
	s, _, _ = strings.Cut(s, "·")

	if m := salaryRangeRe.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		unit := m[4]
		loUnit := m[2]
		if loUnit == "" {
			loUnit = unit
		}
		min, max = toThousands(lo, loUnit), toThousands(hi, unit)
		if min > max {
			return 0, 0, false
		}
		return min, max, true
	}

	if m := salarySingleRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, 0, false
		}
		v = toThousands(v, m[2])
		return v, v, true
	}
	return 0, 0, false
}

func toThousands(v float64, unit string) float64 {
	switch unit {
	case "W", "w", "万":
		return v * 10
	default: // K, k, 千
		return v
	}
}

// CleanTitle normalizes a job title. Some markup variants flatten the
// title and location into one "title-location" string; when the tail
// looks like a place, it is cut off and returned so the caller can
// backfill a missing location from it.
func CleanTitle(s string) (title, location string) {
	s = CollapseSpace(s)
	for _, sep := range []string{"-", "–", "·"} {
		head, tail, found := strings.Cut(s, sep)
		if !found {
			continue
		}
		head, tail = strings.TrimSpace(head), strings.TrimSpace(tail)
		if head == "" || tail == "" {
			continue
		}
		if looksLikePlace(tail) && utf8.RuneCountInString(head) >= 2 {
			return head, tail
		}
	}
	return s, ""
}

func looksLikePlace(s string) bool {
	for _, c := range cities {
		if strings.HasPrefix(s, c) {
			return true
		}
	}
	return strings.HasSuffix(s, "区") || strings.HasSuffix(s, "市")
}

// CleanCompany strips legal-form parentheticals like "（上海）" and
// collapses whitespace.
func CleanCompany(s string) string {
	s = companyParenRe.ReplaceAllString(s, "")
	return CollapseSpace(s)
}

// CleanLocation normalizes "city district" shapes to "city·district".
func CleanLocation(s string) string {
	s = CollapseSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, " ", "·")
	s = strings.ReplaceAll(s, "··", "·")
	return strings.Trim(s, "·")
}

// AbsoluteURL resolves site-relative job links.
func AbsoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return "https://www.zhipin.com" + href
	}
	return "https://www.zhipin.com/" + href
}
