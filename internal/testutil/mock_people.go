// Package testutil provides testing utilities for the people enricher.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockPeopleResponse defines a canned response for one person.
type MockPeopleResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockPeople is a configurable mock of the people attribute service. By
// default it answers GET /people/{id}/age with the age returned by AgeFunc.
type MockPeople struct {
	server *httptest.Server

	mu        sync.RWMutex
	ageFunc   func(id int64) int
	responses map[int64]MockPeopleResponse
	headers   map[string]string
	delay     time.Duration

	// rate limiting
	rateLimitRemaining int
	retryAfter         string

	// Tracking
	requestCount      int
	perID             map[int64]int
	inFlight          int
	maxInFlight       int
	rateLimitedAt     []time.Time
	requestTimes      []time.Time
	LastRequestHeader http.Header
}

// NewMockPeople creates a new mock people service. Ages default to id mod 100.
func NewMockPeople() *MockPeople {
	mock := &MockPeople{
		ageFunc:   func(id int64) int { return int(id % 100) },
		responses: make(map[int64]MockPeopleResponse),
		headers:   make(map[string]string),
		perID:     make(map[int64]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockPeople) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPeople) Close() {
	m.server.Close()
}

// SetAgeFunc replaces the default age function.
func (m *MockPeople) SetAgeFunc(fn func(id int64) int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ageFunc = fn
}

// SetResponse overrides the response for one person.
func (m *MockPeople) SetResponse(id int64, resp MockPeopleResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = resp
}

// FailWith makes every request for id answer with status.
func (m *MockPeople) FailWith(id int64, status int) {
	m.SetResponse(id, MockPeopleResponse{StatusCode: status, Body: http.StatusText(status)})
}

// SetHeader adds a header to every successful response.
func (m *MockPeople) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// SetDelay makes every request take at least d.
func (m *MockPeople) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RateLimitNext answers the next n requests with 429 and the given
// Retry-After value (seconds or HTTP date; empty omits the header).
func (m *MockPeople) RateLimitNext(n int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitRemaining = n
	m.retryAfter = retryAfter
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPeople) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetRequestCountFor returns the number of requests made for one person.
func (m *MockPeople) GetRequestCountFor(id int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perID[id]
}

// GetMaxInFlight returns the highest number of concurrent requests observed.
func (m *MockPeople) GetMaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// GetRateLimitedTimes returns when rate-limited responses were served.
func (m *MockPeople) GetRateLimitedTimes() []time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Time(nil), m.rateLimitedAt...)
}

// GetRequestTimes returns the arrival time of every request.
func (m *MockPeople) GetRequestTimes() []time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Time(nil), m.requestTimes...)
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockPeople) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// Reset clears all tracking counters.
func (m *MockPeople) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.perID = make(map[int64]int)
	m.maxInFlight = 0
	m.rateLimitedAt = nil
	m.requestTimes = nil
	m.LastRequestHeader = nil
}

func (m *MockPeople) serve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAgePath(r.URL.Path)

	m.mu.Lock()
	m.requestCount++
	m.requestTimes = append(m.requestTimes, time.Now())
	m.LastRequestHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	if ok {
		m.perID[id]++
	}
	delay := m.delay
	limited := m.rateLimitRemaining > 0
	if limited {
		m.rateLimitRemaining--
		m.rateLimitedAt = append(m.rateLimitedAt, time.Now())
	}
	retryAfter := m.retryAfter
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if !ok || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	if limited {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("Too Many Requests"))
		return
	}

	m.mu.RLock()
	resp, overridden := m.responses[id]
	age := m.ageFunc(id)
	headers := make(map[string]string, len(m.headers))
	for k, v := range m.headers {
		headers[k] = v
	}
	m.mu.RUnlock()

	if overridden {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
		return
	}

	for key, value := range headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%d", age)
}

// parseAgePath extracts the id from /people/{id}/age.
func parseAgePath(path string) (int64, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "people" || parts[2] != "age" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
