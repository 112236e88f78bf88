package selector

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// Weights for ranking selectors. Historical recommendation leans
// harder on success rate because it accumulates across pages;
// per-page discovery gives sample quality more say.
const (
	recommendSuccessWeight = 0.7
	recommendQualityWeight = 0.3
	discoverSuccessWeight  = 0.6
	discoverQualityWeight  = 0.4

	// minAttempts gates recommendations so one lucky hit does not
	// outrank the built-in tables.
	minAttempts = 3

	minRecommendRate  = 0.3
	minDiscoverScore  = 0.2
	maxRanked         = 3
	defaultSampleSize = 3
)

// stat tracks one (field, selector) pair's history.
type stat struct {
	attempts   int
	successes  int
	qualitySum float64
	lastUsed   time.Time
}

func (s *stat) successRate() float64 {
	if s.attempts == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.attempts)
}

func (s *stat) avgQuality() float64 {
	if s.successes == 0 {
		return 0
	}
	return s.qualitySum / float64(s.successes)
}

// SelectorStats is the exported view of one selector's history.
type SelectorStats struct {
	Field       string  `json:"field"`
	Selector    string  `json:"selector"`
	Attempts    int     `json:"attempts"`
	SuccessRate float64 `json:"success_rate"`
	AvgQuality  float64 `json:"avg_quality"`
}

// Engine probes candidate selectors, validates what they extract, and
// learns which ones work. Safe for concurrent use.
type Engine struct {
	log *slog.Logger

	mu    sync.Mutex
	stats map[string]*stat // key: field + "|" + selector
}

// NewEngine creates an Engine. A nil logger uses slog.Default.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log, stats: make(map[string]*stat)}
}

// Record feeds one extraction outcome back into the stats.
func (e *Engine) Record(field, sel string, success bool, quality float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := field + "|" + sel
	s, ok := e.stats[key]
	if !ok {
		s = &stat{}
		e.stats[key] = s
	}
	s.attempts++
	if success {
		s.successes++
		s.qualitySum += quality
	}
	s.lastUsed = time.Now()
}

// Recommend returns up to three historically reliable selectors for a
// field, best first. Selectors need at least minAttempts recorded
// attempts and a success rate above minRecommendRate to qualify.
func (e *Engine) Recommend(field string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	type scored struct {
		sel   string
		score float64
	}
	var ranked []scored
	prefix := field + "|"
	for key, s := range e.stats {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if s.attempts < minAttempts || s.successRate() <= minRecommendRate {
			continue
		}
		ranked = append(ranked, scored{
			sel:   strings.TrimPrefix(key, prefix),
			score: s.successRate()*recommendSuccessWeight + s.avgQuality()*recommendQualityWeight,
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxRanked {
		ranked = ranked[:maxRanked]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.sel
	}
	return out
}

// BestContainers probes container selectors against the page and
// returns the ones that yielded valid containers, best first.
// Historically recommended selectors are tried before the built-in
// tiers. A valid container is visible and carries enough text to
// plausibly hold a job posting.
func (e *Engine) BestContainers(page Page) []string {
	type scored struct {
		sel   string
		count int
		score float64
	}
	var ranked []scored

	for _, sel := range e.probeOrder(FieldContainer) {
		els, err := page.QueryAll(sel)
		if err != nil || len(els) == 0 {
			e.Record(FieldContainer, sel, false, 0)
			continue
		}

		sample := els
		if len(sample) > defaultSampleSize {
			sample = sample[:defaultSampleSize]
		}
		var qualitySum float64
		valid := 0
		for _, el := range sample {
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
			text, err := el.Text()
			if err != nil {
				continue
			}
			if q := Score(text, FieldContainer); q > SuccessThreshold {
				qualitySum += q
				valid++
			}
		}
		if valid == 0 {
			e.Record(FieldContainer, sel, false, 0)
			continue
		}

		avg := qualitySum / float64(valid)
		e.Record(FieldContainer, sel, true, avg)
		ranked = append(ranked, scored{
			sel:   sel,
			count: len(els),
			score: float64(valid)/float64(len(sample))*discoverSuccessWeight + avg*discoverQualityWeight,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxRanked {
		ranked = ranked[:maxRanked]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.sel
	}
	return out
}

// Discover tests a field's candidate selectors against sample
// containers and returns the ones that extract valid values, best
// first. Selectors below minDiscoverScore are dropped so downstream
// extraction does not waste queries on junk.
func (e *Engine) Discover(samples []Element, field string) []string {
	if len(samples) > defaultSampleSize {
		samples = samples[:defaultSampleSize]
	}
	type scored struct {
		sel   string
		score float64
	}
	var ranked []scored

	for _, sel := range e.probeOrder(field) {
		hits := 0
		var qualitySum float64
		for _, sample := range samples {
			value, ok := e.extractOne(sample, field, sel)
			if !ok {
				continue
			}
			if q := Score(value, field); q > SuccessThreshold {
				hits++
				qualitySum += q
			}
		}
		if hits == 0 {
			continue
		}
		rate := float64(hits) / float64(len(samples))
		avg := qualitySum / float64(hits)
		score := rate*discoverSuccessWeight + avg*discoverQualityWeight
		if score > minDiscoverScore {
			ranked = append(ranked, scored{sel: sel, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxRanked {
		ranked = ranked[:maxRanked]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.sel
	}
	return out
}

// Extract pulls one field out of a container element, trying the
// discovered selectors first and the built-in table after. The
// returned extraction has an empty Value when nothing validated.
func (e *Engine) Extract(container Element, field string, discovered []string) models.FieldExtraction {
	tried := make(map[string]bool)
	order := make([]string, 0, len(discovered)+8)
	for _, sel := range discovered {
		if !tried[sel] {
			tried[sel] = true
			order = append(order, sel)
		}
	}
	for _, c := range Candidates(field) {
		if !tried[c.Query] {
			tried[c.Query] = true
			order = append(order, c.Query)
		}
	}

	best := models.FieldExtraction{}
	for _, sel := range order {
		value, ok := e.extractOne(container, field, sel)
		if !ok {
			e.Record(field, sel, false, 0)
			continue
		}
		q := Score(value, field)
		success := q > SuccessThreshold
		e.Record(field, sel, success, q)
		if success {
			return models.FieldExtraction{Value: value, Selector: sel, Confidence: q}
		}
		if q > best.Confidence {
			best = models.FieldExtraction{Value: value, Selector: sel, Confidence: q}
		}
	}
	if best.Value != "" {
		best.Warnings = append(best.Warnings, field+": low confidence extraction")
	}
	return best
}

// extractOne reads a field's raw value from the first matching,
// visible descendant. Links read the href attribute, everything else
// reads text.
func (e *Engine) extractOne(container Element, field, sel string) (string, bool) {
	els, err := container.QueryAll(sel)
	if err != nil || len(els) == 0 {
		return "", false
	}
	for _, el := range els {
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		var value string
		if field == FieldLink {
			value, err = el.Attr("href")
		} else {
			value, err = el.Text()
		}
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// probeOrder is recommendations first, then built-in candidates in
// tier order, deduplicated.
func (e *Engine) probeOrder(field string) []string {
	seen := make(map[string]bool)
	var order []string
	for _, sel := range e.Recommend(field) {
		if !seen[sel] {
			seen[sel] = true
			order = append(order, sel)
		}
	}
	for _, c := range Candidates(field) {
		if !seen[c.Query] {
			seen[c.Query] = true
			order = append(order, c.Query)
		}
	}
	return order
}

// Snapshot exports all recorded selector stats, sorted by field then
// attempts descending.
func (e *Engine) Snapshot() []SelectorStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SelectorStats, 0, len(e.stats))
	for key, s := range e.stats {
		field, sel, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		out = append(out, SelectorStats{
			Field:       field,
			Selector:    sel,
			Attempts:    s.attempts,
			SuccessRate: s.successRate(),
			AvgQuality:  s.avgQuality(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Attempts > out[j].Attempts
	})
	return out
}
