package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "bosscrawl API base URL")
	location = flag.String("location", "shanghai", "target city for every search")
	limit    = flag.Int("limit", 20, "records requested per search")
	runs     = flag.Int("runs", 2, "runs per keyword; the second run measures the cache path")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test keywords covering distinct search result shapes.
var testKeywords = []struct {
	Label   string
	Keyword string
}{
	{"Common", "风控"},
	{"Specific", "市场风险管理"},
	{"Technical", "Java开发"},
	{"Niche", "量化策略研究员"},
	{"Broad", "数据分析"},
}

// --- Request / Response types (mirrors models package) ---

type searchRequest struct {
	Keyword     string `json:"keyword"`
	Location    string `json:"location"`
	Limit       int    `json:"limit"`
	Wait        bool   `json:"wait"`
	WaitSeconds int    `json:"wait_seconds"`
}

type searchResponse struct {
	Task    taskInfo     `json:"task"`
	Records []jobRecord  `json:"records"`
	Error   *errorDetail `json:"error,omitempty"`
}

type taskInfo struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	FromCache   bool   `json:"from_cache"`
	RecordCount int    `json:"record_count"`
	Attempts    int    `json:"attempts"`
}

type jobRecord struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run       int    `json:"run"`
	TotalMs   int64  `json:"total_ms"`
	Records   int    `json:"records"`
	Degraded  int    `json:"degraded"`
	Warned    int    `json:"warned"`
	FromCache bool   `json:"from_cache"`
	Attempts  int    `json:"attempts"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type keywordResult struct {
	Keyword string      `json:"keyword"`
	Label   string      `json:"label"`
	Runs    []runResult `json:"runs"`
}

type benchmarkReport struct {
	Timestamp     string          `json:"timestamp"`
	APIURL        string          `json:"api_url"`
	Location      string          `json:"location"`
	RunsPerSearch int             `json:"runs_per_search"`
	Results       []keywordResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== bosscrawl Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Location:  %s\n", *location)
	fmt.Printf("Runs/kw:   %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure bosscrawl is running and logged in\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		APIURL:        *apiURL,
		Location:      *location,
		RunsPerSearch: *runs,
	}

	for _, t := range testKeywords {
		fmt.Printf("Searching [%s] %q ...\n", t.Label, t.Keyword)
		kr := keywordResult{Keyword: t.Keyword, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkSearch(t.Keyword, i)
			if rr.Success {
				source := "live"
				if rr.FromCache {
					source = "cache"
				}
				fmt.Printf("OK  %dms  %d records  (%s)\n", rr.TotalMs, rr.Records, source)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			kr.Runs = append(kr.Runs, rr)
		}

		report.Results = append(report.Results, kr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkSearch(keyword string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := searchRequest{
		Keyword:     keyword,
		Location:    *location,
		Limit:       *limit,
		Wait:        true,
		WaitSeconds: 300,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/search", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	client := &http.Client{Timeout: 310 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.TotalMs = time.Since(start).Milliseconds()

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = resp.StatusCode == http.StatusOK && sr.Error == nil
	rr.Records = len(sr.Records)
	rr.FromCache = sr.Task.FromCache
	rr.Attempts = sr.Task.Attempts
	for _, rec := range sr.Records {
		if rec.Source == "degraded" {
			rr.Degraded++
		}
		if len(rec.Warnings) > 0 {
			rr.Warned++
		}
	}

	if sr.Error != nil {
		rr.Error = sr.Error.Message
	}
	return rr
}

func printTable(results []keywordResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Keyword\tLive Latency\tCache Latency\tRecords\tDegraded\n")
	fmt.Fprintf(w, "───────\t────────────\t─────────────\t───────\t────────\n")

	for _, r := range results {
		live, cached := splitRuns(r.Runs)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Keyword,
			formatLatency(live),
			formatLatency(cached),
			formatCount(live, func(rr runResult) int { return rr.Records }),
			formatCount(live, func(rr runResult) int { return rr.Degraded }),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

// splitRuns separates live searches from cache answers.
func splitRuns(runs []runResult) (live, cached []runResult) {
	for _, r := range runs {
		if !r.Success {
			continue
		}
		if r.FromCache {
			cached = append(cached, r)
		} else {
			live = append(live, r)
		}
	}
	return live, cached
}

func formatLatency(runs []runResult) string {
	if len(runs) == 0 {
		return "-"
	}
	var total int64
	for _, r := range runs {
		total += r.TotalMs
	}
	return fmt.Sprintf("%dms", total/int64(len(runs)))
}

func formatCount(runs []runResult, pick func(runResult) int) string {
	if len(runs) == 0 {
		return "-"
	}
	total := 0
	for _, r := range runs {
		total += pick(r)
	}
	return fmt.Sprintf("%d", total/len(runs))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
