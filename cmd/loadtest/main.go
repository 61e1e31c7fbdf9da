// Command loadtest drives GET or POST /api/v1/extract with a corpus of
// relative-time phrases and prints throughput, latency percentiles, cache
// hit rate, the status code mix and the slowest phrases.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
//	go run ./cmd/loadtest -corpus phrases.txt -post -ref 2024-06-01T00:00:00Z
package main

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

var defaultCorpus = []string{
	"5 days ago",
	"two weeks ago",
	"last year",
	"in 3 months",
	"the past 24 hours",
	"a couple of days back",
	"2y",
	"1y 2mo ago",
	"yesterday and the day before",
	"next week",
	"reports from 3 quarters ago",
	"sales between 2014-2015",
	"January 15, 2024",
	"an hour and a half ago",
	"nothing temporal here",
}

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	post        bool
	ref         string
	corpus      []string
}

// extractResult is the subset of the extract response the report needs.
type extractResult struct {
	CacheHit      bool              `json:"cache_hit"`
	RelativeTimes []json.RawMessage `json:"relative_times"`
}

type sample struct {
	text     string
	latency  time.Duration
	status   int
	failed   bool
	cacheHit bool
	resolved bool
}

// report accumulates samples from every worker.
type report struct {
	mu      sync.Mutex
	samples []sample
}

func (r *report) add(s sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func main() {
	var (
		opts       options
		corpusPath string
	)
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the extractor service")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.BoolVar(&opts.post, "post", false, "send texts as JSON bodies instead of query strings")
	flag.StringVar(&opts.ref, "ref", "", "RFC 3339 reference time sent with every request")
	flag.StringVar(&corpusPath, "corpus", "", "file with one phrase per line (default: built-in corpus)")
	flag.Parse()

	opts.corpus = defaultCorpus
	if corpusPath != "" {
		corpus, err := readCorpus(corpusPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		opts.corpus = corpus
	}

	mode := "GET"
	if opts.post {
		mode = "POST"
	}
	fmt.Println("=== Relative Time Engine Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Mode:        %s\n", mode)
	fmt.Printf("Phrases:     %d\n\n", len(opts.corpus))

	rep := run(opts)
	if !rep.print(opts.duration) {
		os.Exit(1)
	}
}

func readCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	var corpus []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			corpus = append(corpus, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("corpus %s is empty", path)
	}
	return corpus, nil
}

func run(opts options) *report {
	rep := &report{}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fmt.Print(".")
			}
		}
	}()

	fmt.Print("Running")
	var wg sync.WaitGroup
	for w := range opts.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				text := opts.corpus[i%len(opts.corpus)]
				s, ok := fire(ctx, client, opts, text)
				if ok {
					rep.add(s)
				}
			}
		}()
	}
	wg.Wait()
	fmt.Print(" done!\n\n")
	return rep
}

// fire sends one request. ok is false when the run ended mid-request.
func fire(ctx context.Context, client *http.Client, opts options, text string) (s sample, ok bool) {
	s.text = text
	req, err := newRequest(ctx, opts, text)
	if err != nil {
		s.failed = true
		return s, true
	}
	start := time.Now()
	resp, err := client.Do(req)
	s.latency = time.Since(start)
	if err != nil {
		s.failed = true
		return s, ctx.Err() == nil
	}
	defer resp.Body.Close()
	s.status = resp.StatusCode
	s.failed = resp.StatusCode >= 300

	var result extractResult
	if body, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(body, &result) == nil {
		s.cacheHit = result.CacheHit
		s.resolved = len(result.RelativeTimes) > 0
	}
	return s, true
}

func newRequest(ctx context.Context, opts options, text string) (*http.Request, error) {
	endpoint := opts.baseURL + "/api/v1/extract"
	if opts.post {
		payload := map[string]string{"text": text}
		if opts.ref != "" {
			payload["reference"] = opts.ref
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	q := url.Values{"q": {text}}
	if opts.ref != "" {
		q.Set("ref", opts.ref)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
}

// print writes the report and reports whether any request completed.
func (r *report) print(elapsed time.Duration) bool {
	r.mu.Lock()
	samples := slices.Clone(r.samples)
	r.mu.Unlock()

	var failed, hits, resolved int
	codes := make(map[int]int)
	perText := make(map[string][]time.Duration)
	latencies := make([]time.Duration, 0, len(samples))
	for _, s := range samples {
		if s.failed {
			failed++
		}
		if s.status != 0 {
			codes[s.status]++
			latencies = append(latencies, s.latency)
			perText[s.text] = append(perText[s.text], s.latency)
		}
		if s.cacheHit {
			hits++
		}
		if s.resolved {
			resolved++
		}
	}
	total := len(samples)
	ok := total - failed

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", ok)
	fmt.Printf("Errors:          %d\n", failed)
	if total == 0 {
		fmt.Println("\nWARNING: No requests completed. Is the extractor running?")
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", pct(failed, total))
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	if ok > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", pct(hits, ok))
		fmt.Printf("With Times:      %.2f%%\n", pct(resolved, ok))
	}

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Println("\n=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", sum/time.Duration(len(latencies)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-2.0f:    %s\n", p, percentile(latencies, p))
		}
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println("\n=== Status Codes ===")
	for _, code := range slices.Sorted(maps.Keys(codes)) {
		fmt.Printf("  %d: %d\n", code, codes[code])
	}

	type slow struct {
		text string
		p95  time.Duration
	}
	var slowest []slow
	for text, ls := range perText {
		slices.Sort(ls)
		slowest = append(slowest, slow{text, percentile(ls, 95)})
	}
	slices.SortFunc(slowest, func(a, b slow) int { return cmp.Compare(b.p95, a.p95) })
	fmt.Println("\n=== Slowest Phrases (p95) ===")
	for _, s := range slowest[:min(5, len(slowest))] {
		fmt.Printf("  %-12s %q\n", s.p95, s.text)
	}
	return true
}

func pct(n, of int) float64 {
	return float64(n) / float64(of) * 100
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
