// main.go - Synthetic tracking traffic for blogstats
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "blogstats/api/v1"
)

// LoadConfig holds the configuration for a load run
type LoadConfig struct {
	BaseURL     string
	SiteOrigin  string
	Concurrency int
	Duration    time.Duration
	Rate        int
	Timeout     time.Duration
}

// Result captures the outcome of a single track request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Err        error
	NewVisitor bool
}

// Stats aggregates results across workers
type Stats struct {
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	failures    int64
	newVisitors int64
}

func (s *Stats) add(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Err != nil {
		s.failures++
		return
	}
	s.latencies = append(s.latencies, r.Duration)
	s.statusCodes[r.StatusCode]++
	if r.NewVisitor {
		s.newVisitors++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the blogstats server")
	origin := flag.String("origin", "https://myblog.example", "Blog origin used for referrers")
	concurrency := flag.Int("c", 10, "Number of simulated readers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	rate := flag.Int("rate", 0, "Target requests per second across all readers (0 = unlimited)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := &LoadConfig{
		BaseURL:     *baseURL,
		SiteOrigin:  *origin,
		Concurrency: *concurrency,
		Duration:    *duration,
		Rate:        *rate,
		Timeout:     *timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	logger.Info("Starting load run",
		slog.String("target", cfg.BaseURL+"/api/analytics/track"),
		slog.Int("readers", cfg.Concurrency),
		slog.Duration("duration", cfg.Duration),
		slog.Int("rate", cfg.Rate))

	stats := &Stats{statusCodes: make(map[int]int64)}
	start := time.Now()

	if err := run(ctx, cfg, stats); err != nil {
		logger.Error("Load run failed", slog.Any("error", err))
		os.Exit(1)
	}

	printResults(stats, time.Since(start))
}

// run starts one goroutine per simulated reader. Each reader keeps its own
// cookie jar so repeat views reuse the issued visitor id.
func run(ctx context.Context, cfg *LoadConfig, stats *Stats) error {
	var perReader time.Duration
	if cfg.Rate > 0 {
		perReader = time.Duration(float64(time.Second) * float64(cfg.Concurrency) / float64(cfg.Rate))
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: cfg.Timeout, Jar: jar}
			r := newReader()

			var ticker *time.Ticker
			if perReader > 0 {
				ticker = time.NewTicker(perReader)
				defer ticker.Stop()
			}

			for {
				if ticker != nil {
					select {
					case <-ticker.C:
					case <-ctx.Done():
						return nil
					}
				} else if ctx.Err() != nil {
					return nil
				}

				stats.add(sendTrack(ctx, client, cfg, r))
			}
		})
	}
	return g.Wait()
}

type reader struct {
	userAgent string
	ip        string
	referrer  string
}

func newReader() *reader {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	}
	referrers := []string{"", "https://www.google.com/", "https://news.ycombinator.com/", "https://www.reddit.com/r/golang/"}

	return &reader{
		userAgent: userAgents[rand.IntN(len(userAgents))],
		ip:        fmt.Sprintf("198.51.%d.%d", rand.IntN(256), rand.IntN(254)+1),
		referrer:  referrers[rand.IntN(len(referrers))],
	}
}

func sendTrack(ctx context.Context, client *http.Client, cfg *LoadConfig, r *reader) Result {
	paths := []string{"/", "/about", "/blog/hello-world", "/blog/sqlite-in-production", "/blog/tiny-http-router"}
	postIDs := []uint{0, 0, 1, 2, 3}
	i := rand.IntN(len(paths))

	payload := v1.TrackRequest{PagePath: paths[i]}
	if postIDs[i] > 0 {
		id := postIDs[i]
		payload.PostID = &id
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/analytics/track", bytes.NewReader(body))
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("X-Forwarded-For", r.ip)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if r.referrer != "" {
		req.Header.Set("Referer", r.referrer)
	}
	// Next views of this reader come from the blog itself.
	r.referrer = cfg.SiteOrigin + paths[i]

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Err: ctx.Err()}
		}
		return Result{Duration: elapsed, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	newVisitor := false
	for _, c := range resp.Cookies() {
		if c.Name == "visitor_id" {
			newVisitor = true
		}
	}

	return Result{Duration: elapsed, StatusCode: resp.StatusCode, NewVisitor: newVisitor}
}

// percentile returns the p-th percentile of sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

func printResults(stats *Stats, elapsed time.Duration) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	sort.Slice(stats.latencies, func(i, j int) bool { return stats.latencies[i] < stats.latencies[j] })
	total := int64(len(stats.latencies)) + stats.failures

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n=== Load run results ===")
	fmt.Fprintf(w, "Requests\t%d\n", total)
	fmt.Fprintf(w, "Transport failures\t%d\n", stats.failures)
	fmt.Fprintf(w, "New visitors\t%d\n", stats.newVisitors)
	fmt.Fprintf(w, "Elapsed\t%v\n", elapsed.Round(time.Millisecond))
	if elapsed > 0 {
		fmt.Fprintf(w, "Throughput\t%.1f req/s\n", float64(total)/elapsed.Seconds())
	}
	fmt.Fprintf(w, "p50\t%v\n", percentile(stats.latencies, 50))
	fmt.Fprintf(w, "p95\t%v\n", percentile(stats.latencies, 95))
	fmt.Fprintf(w, "p99\t%v\n", percentile(stats.latencies, 99))

	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "HTTP %d\t%d\n", code, stats.statusCodes[code])
	}
	w.Flush()
}
