package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
	"github.com/JJJJun123/boss-automation-sub000/selector"
	"github.com/JJJJun123/boss-automation-sub000/simhash"
)

const (
	// minConfidence is the floor reported for title and company even
	// when extraction fell back to placeholders, so downstream
	// consumers can still rank records.
	minConfidence = 0.1

	maxTags = 5
)

var (
	experienceRe = regexp.MustCompile(`^(\d+-\d+年|\d+年以[上下]|经验不限|应届生?|在校生?)$`)
	educationRe  = regexp.MustCompile(`^(初中及以下|中专|高中|大专|本科|硕士|博士|学历不限)$`)

	// jobKeywordRe marks text that plausibly belongs to a job card,
	// used by the generic pseudo-container scan.
	jobKeywordRe = regexp.MustCompile(`经理|工程师|专员|主管|总监|顾问|助理|实习|开发|设计|运营|销售|分析师|\d+-\d+[Kk]`)
)

// Extractor turns container elements into JobRecords using the
// selector engine with degraded text fallback.
type Extractor struct {
	log *slog.Logger
	sel *selector.Engine
}

// NewExtractor creates an Extractor. A nil logger uses slog.Default.
func NewExtractor(log *slog.Logger, sel *selector.Engine) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log, sel: sel}
}

// Extract pulls up to limit job records out of the page. Zero results
// never fail: when no container selector matches, a generic keyword
// scan looks for pseudo-containers, and as a last resort a few
// clearly labeled placeholder records are returned so the failure is
// visible downstream. Only structural query errors propagate.
func (x *Extractor) Extract(ctx context.Context, page selector.Page, limit int) ([]models.JobRecord, error) {
	containers, err := x.findContainers(page)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		containers = x.scanGenericContainers(page)
	}
	if len(containers) == 0 {
		x.log.Warn("no job containers found, emitting placeholder records")
		return placeholderRecords(limit), nil
	}

	fields := []string{
		selector.FieldTitle, selector.FieldCompany, selector.FieldSalary,
		selector.FieldLocation, selector.FieldLink,
	}
	discovered := make(map[string][]string, len(fields))
	for _, f := range fields {
		discovered[f] = x.sel.Discover(containers, f)
	}

	records := make([]models.JobRecord, 0, limit)
	seenURL := make(map[string]bool)
	var fingerprints []uint64
	duplicates := 0

	for i, container := range containers {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if len(records) >= limit {
			break
		}

		rec := x.extractRecord(container, discovered)
		if !rec.Usable() {
			x.log.Debug("skipping unusable container", "index", i)
			continue
		}
		if rec.URL != "" && seenURL[rec.URL] {
			duplicates++
			continue
		}
		// Reposted listings keep the same identity with cosmetic text
		// tweaks, so dedup is by near-duplicate fingerprint rather
		// than exact match.
		fp := simhash.Fingerprint(rec.Title, rec.Company, rec.Salary, rec.WorkLocation)
		if isNearDuplicate(fp, fingerprints) {
			duplicates++
			continue
		}
		if rec.URL != "" {
			seenURL[rec.URL] = true
		}
		fingerprints = append(fingerprints, fp)
		records = append(records, rec)
	}

	x.log.Info("extraction finished",
		"containers", len(containers),
		"records", len(records),
		"duplicates", duplicates,
		"limit", limit,
	)
	return records, nil
}

func isNearDuplicate(fp uint64, seen []uint64) bool {
	for _, s := range seen {
		if simhash.Similar(fp, s, simhash.DefaultThreshold) {
			return true
		}
	}
	return false
}

// findContainers locates visible job containers, deduplicated by
// layout position (or content when the backend has no layout). An
// empty result is not an error; the caller falls back further.
func (x *Extractor) findContainers(page selector.Page) ([]selector.Element, error) {
	sels := x.sel.BestContainers(page)
	if len(sels) == 0 {
		return nil, nil
	}

	els, err := page.QueryAll(sels[0])
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeParsing,
			fmt.Sprintf("container query %q failed", sels[0]), err)
	}
	return dedupeContainers(els, func(text string) bool {
		return selector.Score(text, selector.FieldContainer) > selector.SuccessThreshold
	}), nil
}

// scanGenericContainers is the last structural fallback: sweep broad
// tags for elements whose text reads like a job card.
func (x *Extractor) scanGenericContainers(page selector.Page) []selector.Element {
	for _, query := range []string{"li", "div"} {
		els, err := page.QueryAll(query)
		if err != nil {
			continue
		}
		found := dedupeContainers(els, func(text string) bool {
			return jobKeywordRe.MatchString(text) &&
				selector.Score(text, selector.FieldContainer) > selector.SuccessThreshold
		})
		if len(found) > 0 {
			x.log.Info("generic container scan matched", "tag", query, "count", len(found))
			return found
		}
	}
	return nil
}

func dedupeContainers(els []selector.Element, keep func(text string) bool) []selector.Element {
	seen := make(map[string]bool)
	out := make([]selector.Element, 0, len(els))
	for _, el := range els {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		text, err := el.Text()
		if err != nil || !keep(text) {
			continue
		}

		var key string
		if bx, by, ok := el.Box(); ok {
			key = fmt.Sprintf("%d:%d", int(bx), int(by))
		} else {
			key = text
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, el)
	}
	return out
}

// formatRequirements renders the demand summary with the site's
// wording for unspecified fields.
func formatRequirements(experience, education string) string {
	if experience == "" {
		experience = "经验不限"
	}
	if education == "" {
		education = "学历不限"
	}
	return experience + " · " + education
}

// placeholderRecords synthesizes a small batch of clearly labeled
// failures so an empty page is visible downstream instead of silent.
func placeholderRecords(limit int) []models.JobRecord {
	n := 3
	if limit < n {
		n = limit
	}
	records := make([]models.JobRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.JobRecord{
			Title:        models.PlaceholderTitle,
			Company:      models.PlaceholderCompany,
			Salary:       models.PlaceholderSalary,
			WorkLocation: models.PlaceholderLocation,
			Confidence: map[string]float64{
				models.FieldTitle:   minConfidence,
				models.FieldCompany: minConfidence,
			},
			Warnings:    []string{"no job containers found on page"},
			Source:      "degraded",
			ExtractedAt: time.Now(),
		})
	}
	return records
}

func (x *Extractor) extractRecord(container selector.Element, discovered map[string][]string) models.JobRecord {
	rec := models.JobRecord{
		Confidence:  make(map[string]float64),
		Source:      "selector",
		ExtractedAt: time.Now(),
	}

	title := x.sel.Extract(container, selector.FieldTitle, discovered[selector.FieldTitle])
	cleanedTitle, recoveredLoc := CleanTitle(title.Value)
	rec.Title = cleanedTitle
	rec.Confidence[models.FieldTitle] = title.Confidence

	company := x.sel.Extract(container, selector.FieldCompany, discovered[selector.FieldCompany])
	rec.Company = CleanCompany(company.Value)
	rec.Confidence[models.FieldCompany] = company.Confidence

	salary := x.sel.Extract(container, selector.FieldSalary, discovered[selector.FieldSalary])
	rec.Salary = CleanSalary(salary.Value)
	rec.Confidence[models.FieldSalary] = salary.Confidence

	location := x.sel.Extract(container, selector.FieldLocation, discovered[selector.FieldLocation])
	rec.WorkLocation = CleanLocation(location.Value)
	rec.Confidence[models.FieldLocation] = location.Confidence
	if rec.WorkLocation == "" && recoveredLoc != "" {
		// A "title-location" split carries the only location signal.
		rec.WorkLocation = CleanLocation(recoveredLoc)
		rec.Confidence[models.FieldLocation] = title.Confidence
	}

	link := x.sel.Extract(container, selector.FieldLink, discovered[selector.FieldLink])
	rec.URL = AbsoluteURL(link.Value)
	rec.Confidence[models.FieldLink] = link.Confidence

	x.fillDegraded(container, &rec)
	x.fillTags(container, &rec)
	x.finalize(&rec)
	return rec
}

// fillDegraded backfills missing fields from the container's
// flattened text.
func (x *Extractor) fillDegraded(container selector.Element, rec *models.JobRecord) {
	if rec.Title != "" && rec.Company != "" && rec.Salary != "" && rec.WorkLocation != "" {
		return
	}
	text, err := container.Text()
	if err != nil || text == "" {
		return
	}
	deg := ParseContainerText(text)

	merge := func(dst *string, field, value string) {
		if *dst == "" && value != "" {
			*dst = value
			rec.Confidence[field] = deg.Confidence[field]
			rec.Warnings = append(rec.Warnings, field+": recovered from container text")
			rec.Source = "degraded"
		}
	}
	merge(&rec.Title, models.FieldTitle, deg.Title)
	merge(&rec.Company, models.FieldCompany, deg.Company)
	merge(&rec.Salary, models.FieldSalary, deg.Salary)
	merge(&rec.WorkLocation, models.FieldLocation, deg.WorkLocation)
}

func (x *Extractor) fillTags(container selector.Element, rec *models.JobRecord) {
	for _, c := range selector.Candidates(selector.FieldTags) {
		els, err := container.QueryAll(c.Query)
		if err != nil || len(els) == 0 {
			continue
		}
		for _, el := range els {
			text, err := el.Text()
			if err != nil {
				continue
			}
			text = CollapseSpace(text)
			if text == "" {
				continue
			}
			switch {
			case experienceRe.MatchString(text):
				if rec.Experience == "" {
					rec.Experience = text
				}
			case educationRe.MatchString(text):
				if rec.Education == "" {
					rec.Education = text
				}
			default:
				if len(rec.Tags) < maxTags {
					rec.Tags = append(rec.Tags, text)
				}
			}
		}
		break
	}
}

// finalize substitutes placeholders for fields that stayed empty and
// applies the confidence floor.
func (x *Extractor) finalize(rec *models.JobRecord) {
	sub := func(dst *string, field, placeholder string) {
		if *dst == "" {
			*dst = placeholder
			rec.Warnings = append(rec.Warnings, field+": extraction failed")
		}
	}
	sub(&rec.Title, models.FieldTitle, models.PlaceholderTitle)
	sub(&rec.Company, models.FieldCompany, models.PlaceholderCompany)
	sub(&rec.Salary, models.FieldSalary, models.PlaceholderSalary)
	sub(&rec.WorkLocation, models.FieldLocation, models.PlaceholderLocation)

	for _, f := range []string{models.FieldTitle, models.FieldCompany} {
		if rec.Confidence[f] < minConfidence {
			rec.Confidence[f] = minConfidence
		}
	}

	if rec.Salary != models.PlaceholderSalary {
		rec.SalaryMin, rec.SalaryMax, _ = ParseSalary(rec.Salary)
	}

	if len(rec.Tags) > 0 {
		rec.Description = strings.Join(rec.Tags, "、")
	}
	rec.Requirements = formatRequirements(rec.Experience, rec.Education)

	// Strip the tail separator junk some variants leave on titles.
	rec.Title = strings.Trim(rec.Title, "-·|~ ")
}
