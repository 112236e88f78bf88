package selector

// Fields the engine knows how to locate.
const (
	FieldContainer = "container"
	FieldTitle     = "title"
	FieldCompany   = "company"
	FieldSalary    = "salary"
	FieldLocation  = "location"
	FieldLink      = "link"
	FieldTags      = "tags"
)

// Tier orders candidate probing: primary selectors match the current
// production markup, fallback selectors match older or A/B variants,
// generic selectors are a last resort that leans on validation rules
// to reject junk.
type Tier int

const (
	TierPrimary Tier = iota
	TierFallback
	TierGeneric
)

// Candidate is one CSS selector to try for a field.
type Candidate struct {
	Query string
	Tier  Tier
}

// candidates holds the built-in selector tables per field. Container
// selectors are matched against the page; all others are matched
// inside a container element.
var candidates = map[string][]Candidate{
	FieldContainer: {
		{"li.job-card-wrapper", TierPrimary},
		{".job-card-wrapper", TierPrimary},
		{".job-list-box li", TierFallback},
		{"ul.job-list-box > li", TierFallback},
		{".search-job-result li", TierFallback},
		{"li[class*='job-card']", TierGeneric},
		{"div[class*='job-card']", TierGeneric},
	},
	FieldTitle: {
		{".job-name", TierPrimary},
		{".job-title .job-name", TierPrimary},
		{"a[href*='job_detail'] .job-name", TierFallback},
		{".job-title", TierFallback},
		{"span[class*='job-name']", TierGeneric},
		{"a", TierGeneric},
	},
	FieldCompany: {
		{".company-name a", TierPrimary},
		{".company-name", TierPrimary},
		{".company-info .name", TierFallback},
		{"h3[class*='company']", TierGeneric},
		{"[class*='company'] a", TierGeneric},
	},
	FieldSalary: {
		{".salary", TierPrimary},
		{".job-salary", TierPrimary},
		{".job-limit .red", TierFallback},
		{"span.red", TierFallback},
		{"span[class*='salary']", TierGeneric},
	},
	FieldLocation: {
		{".job-area", TierPrimary},
		{".job-area-wrap .job-area", TierPrimary},
		{".company-location", TierFallback},
		{"span[class*='area']", TierGeneric},
		{"span[class*='location']", TierGeneric},
	},
	FieldLink: {
		{"a[href*='job_detail']", TierPrimary},
		{"a.job-card-left", TierFallback},
		{"a[href]", TierGeneric},
	},
	FieldTags: {
		{".tag-list .tag", TierPrimary},
		{".job-tags span", TierFallback},
		{"ul.tag-list li", TierFallback},
	},
}

// Candidates returns the built-in table for a field in tier order.
func Candidates(field string) []Candidate {
	return candidates[field]
}
