package services

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Fetcher 远程数据获取接口，便于测试时用固定数据替换
type Fetcher interface {
	Fetch(url string) (map[string]interface{}, error)
	FetchRaw(url string) ([]byte, error)
}

// FetcherConfig HTTP获取器配置
type FetcherConfig struct {
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxRetries:     3,
		RetryBackoff:   2 * time.Second,
		RequestTimeout: 30 * time.Second,
		RateLimit:      rate.Limit(10),
		RateBurst:      20,
	}
}

// HTTPFetcher 按来源主机限流并熔断的HTTP获取器
type HTTPFetcher struct {
	client   *http.Client
	conf     FetcherConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

func NewHTTPFetcher(conf FetcherConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: conf.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		conf:     conf,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

func (f *HTTPFetcher) Fetch(rawURL string) (map[string]interface{}, error) {
	body, err := f.FetchRaw(rawURL)
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	return decoded, nil
}

func (f *HTTPFetcher) FetchRaw(rawURL string) ([]byte, error) {
	host := hostOf(rawURL)
	limiter, breaker := f.endpointControls(host)

	var lastErr error
	for attempt := 0; attempt <= f.conf.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(f.conf.RetryBackoff)
		}
		if err := limiter.Wait(context.Background()); err != nil {
			return nil, &RemoteFetchError{URL: rawURL, Err: err}
		}
		body, err := breaker.Execute(func() ([]byte, error) {
			return f.doGet(rawURL)
		})
		if err == nil {
			return body, nil
		}
		lastErr = err
		// 4xx不重试
		if fe, ok := err.(*RemoteFetchError); ok && fe.Status >= 400 && fe.Status < 500 {
			break
		}
		log.Printf("fetch attempt %d for %s failed: %v", attempt+1, rawURL, err)
	}
	if _, ok := lastErr.(*RemoteFetchError); ok {
		return nil, lastErr
	}
	return nil, &RemoteFetchError{URL: rawURL, Err: lastErr}
}

func (f *HTTPFetcher) doGet(rawURL string) ([]byte, error) {
	resp, err := f.client.Get(rawURL)
	if err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &RemoteFetchError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) endpointControls(host string) (*rate.Limiter, *gobreaker.CircuitBreaker[[]byte]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(f.conf.RateLimit, f.conf.RateBurst)
		f.limiters[host] = limiter
	}
	breaker, ok := f.breakers[host]
	if !ok {
		breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    host,
			Timeout: 60 * time.Second,
		})
		f.breakers[host] = breaker
	}
	return limiter, breaker
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// StubFetcher 测试用获取器，URL到固定响应的映射
type StubFetcher struct {
	Responses map[string][]byte
}

func (f *StubFetcher) Fetch(rawURL string) (map[string]interface{}, error) {
	body, err := f.FetchRaw(rawURL)
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	return decoded, nil
}

func (f *StubFetcher) FetchRaw(rawURL string) ([]byte, error) {
	body, ok := f.Responses[rawURL]
	if !ok {
		return nil, &RemoteFetchError{URL: rawURL, Status: http.StatusNotFound}
	}
	return body, nil
}
