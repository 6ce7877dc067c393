// rift-loadgen is a tiny, dependency-free HTTP load generator for driving
// traffic at a running rift imposter. It reuses HTTP connections (keep-alive)
// and supports concurrency so demo/benchmark scripts run fast without
// relying on external tools.
//
// Modes:
//   - single: send N requests at a single path
//   - zipf:   approximate 80/20 skew (hot/cold) without PRNG: hit the hot
//     path 4/5 of the time, round-robining a pool of cold paths the rest
//
// Usage examples:
//
//	rift-loadgen -base=http://127.0.0.1:2525 -mode=single -path=/orders -n=5000 -c=16
//	rift-loadgen -base=http://127.0.0.1:2525 -mode=zipf -hot_path=/orders/1 -cold_paths=50 -n=8000 -c=16
//
// Notes:
//   - -method selects the HTTP verb sent on every request (default GET);
//     -body, if non-empty, is sent as the request body on every request.
//   - Prints a one-line summary with duration and approximate throughput.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeSingle modeType = "single"
	modeZipf   modeType = "zipf"
)

func main() {
	var (
		base     = flag.String("base", "http://127.0.0.1:2525", "Base URL of the imposter, including scheme and host")
		path     = flag.String("path", "/", "Request path for single mode")
		method   = flag.String("method", http.MethodGet, "HTTP method to send on every request")
		body     = flag.String("body", "", "Request body to send on every request (empty means no body)")
		modeS    = flag.String("mode", string(modeSingle), "Mode: single|zipf")
		hotPath  = flag.String("hot_path", "/hot", "Hot path for zipf mode")
		coldN    = flag.Int("cold_paths", 50, "Number of cold paths to round-robin in zipf mode")
		N        = flag.Int("n", 5000, "Total requests to send")
		conc     = flag.Int("c", 8, "Number of concurrent workers")
		hotEvery = flag.Int("hot_every", 5, "Zipf-like skew period (hot_every-1 of every hot_every requests go to the hot path; minimum 2)")

		timeout    = flag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeSingle && m != modeZipf {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want single|zipf)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m == modeZipf {
		if *coldN <= 0 {
			fmt.Fprintln(os.Stderr, "-cold_paths must be > 0 in zipf mode")
			os.Exit(2)
		}
		if *hotEvery < 2 { // at least 1 hot : 1 cold
			*hotEvery = 2
		}
	}

	baseURL := strings.TrimRight(*base, "/")
	verb := strings.ToUpper(*method)

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var done, failed int64

	requestPath := func(i, id int) string {
		if m == modeSingle {
			return *path
		}
		// 80/20-ish deterministic skew: (i+id)%hotEvery != 0 => hot path
		if ((i + id) % *hotEvery) != 0 {
			return *hotPath
		}
		idx := ((i + id) % *coldN) + 1
		return fmt.Sprintf("/cold/%d", idx)
	}

	worker := func(id, count int) {
		defer atomic.AddInt64(&done, int64(count))
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			u := baseURL + requestPath(i, id)
			var reader io.Reader
			if *body != "" {
				reader = bytes.NewBufferString(*body)
			}
			req, _ := http.NewRequestWithContext(ctx, verb, u, reader)
			resp, err := client.Do(req)
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			} else {
				atomic.AddInt64(&failed, 1)
				time.Sleep(200 * time.Microsecond)
			}
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s method=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s Failed=%d\n",
		m, verb, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops, failed)
}
