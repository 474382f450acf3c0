// Package fetch is the merge engine's HTTP fetcher: a dnscache-backed,
// http2-enabled client, plus the batch-bounded concurrent fetch helper
// the Orchestrator's deep-analysis pass and the Merge Emitter share.
package fetch

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/viki-org/dnscache"
)

const connTimeout = 5 * time.Second

var resolver = dnscache.New(15 * time.Minute)
var client = newHTTPClient()

func newHTTPClient() *http.Client {
	t := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		Dial: func(network, address string) (net.Conn, error) {
			sep := strings.LastIndex(address, ":")
			ip, err := resolver.FetchOne(address[:sep])
			if err != nil {
				return nil, err
			}
			ipStr := ip.String()
			if ip.To4() == nil {
				ipStr = fmt.Sprintf("[%s]", ipStr)
			}
			return net.DialTimeout("tcp", ipStr+address[sep:], connTimeout)
		},
	}
	if err := http2.ConfigureTransport(t); err != nil {
		fmt.Printf("Err configuring http2: %+v\n", err)
	}
	return &http.Client{Transport: t}
}

// Get issues a GET with a browser-like User-Agent so CDNs fronting mod
// hosts don't reject the request as a bare Go client.
func Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	return client.Do(req)
}

// Bytes fetches url and returns the full response body, treating any
// non-2xx status as an error.
func Bytes(url string) ([]byte, error) {
	resp, err := Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return data, nil
}

// Job is one unit of work submitted to BatchFetch.
type Job struct {
	Key string // opaque identifier the caller uses to match results to input
	URL string
}

// Result is BatchFetch's output for one Job, preserving Job.Key so the
// caller can re-associate it with the file/pack that requested it.
type Result struct {
	Key  string
	Data []byte
	Err  error
}

// BatchFetch runs jobs in fixed-size concurrent batches: a batch of size
// batchSize runs concurrently, and the caller awaits the full batch
// before the next one is dispatched. Results are returned in the same
// order as jobs, regardless of completion order, so a consumer that
// walks results in submission order preserves pack/file priority order.
func BatchFetch(jobs []Job, batchSize int) []Result {
	if batchSize <= 0 {
		batchSize = 5
	}

	results := make([]Result, len(jobs))

	for start := 0; start < len(jobs); start += batchSize {
		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				data, err := Bytes(jobs[i].URL)
				results[i] = Result{Key: jobs[i].Key, Data: data, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}
