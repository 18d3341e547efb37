package stitch_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/msnidal/stitch-connect/pkg/stitch"
)

// Fixture identifiers, mirroring the account/source pair from the Stitch UI
// URL pattern.
const (
	testAccountID  = "12345"
	testSourceID   = "67890"
	testStreamID   = "54321"
	testSourceName = "boo"
	testStreamName = "bar"
	testJobName    = "baz"
)

// stubAPI is a scripted Stitch API for contract tests.
type stubAPI struct {
	t        *testing.T
	mu       sync.Mutex
	counts   map[string]int
	handlers map[string]http.HandlerFunc
	server   *httptest.Server
}

func newStubAPI(t *testing.T) *stubAPI {
	s := &stubAPI{
		t:        t,
		counts:   make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.counts[key]++
		h := s.handlers[key]
		s.mu.Unlock()

		if h == nil {
			http.Error(w, `{"error":"no route"}`, http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(s.server.Close)
	return s
}

// handleJSON registers a static JSON response for method+path.
func (s *stubAPI) handleJSON(method, path, body string) {
	s.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
}

func (s *stubAPI) handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

// count returns how many requests hit method+path.
func (s *stubAPI) count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+path]
}

// total returns the number of requests served.
func (s *stubAPI) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// client builds a Stitch client pointed at the stub.
func (s *stubAPI) client() *stitch.Client {
	c, err := stitch.New(stitch.Config{
		AccountID:    testAccountID,
		APIToken:     "test-token",
		BaseURL:      s.server.URL,
		PollInterval: 5 * time.Millisecond,
	})
	if err != nil {
		s.t.Fatalf("client setup failed: %v", err)
	}
	return c
}

// --- Fixture bodies ---

func sourceBody() string {
	return fmt.Sprintf(`{"id":%s,"name":%q,"display_name":"Testy test test","type":"platform.github","stitch_client_id":%s}`,
		testSourceID, testSourceName, testAccountID)
}

func syncJobBody() string {
	return fmt.Sprintf(`{"job_name":%q}`, testJobName)
}

func streamsBody() string {
	return fmt.Sprintf(`[{"selected":true,"stream_id":%s,"tap_stream_id":%q,"stream_name":%q,"metadata":{"forced-replication-method":"FULL_TABLE","selected":true,"inclusion":"available","table-key-properties":["id"]}}]`,
		testStreamID, testStreamName, testStreamName)
}

// extractionBody renders the account extraction envelope for one job.
func extractionBody(jobName string, tapExit int, tapDescription, startTime string) string {
	tapDesc := "null"
	if tapDescription != "" {
		tapDesc = fmt.Sprintf("%q", tapDescription)
	}
	return fmt.Sprintf(`{"data":[{"target_exit_status":0,"job_name":%q,"start_time":%q,"stitch_client_id":%s,"tap_exit_status":%d,"source_type":"tap-github","target_description":null,"discovery_exit_status":0,"discovery_description":null,"tap_description":%s,"completion_time":"2023-02-19T03:11:56Z","source_id":%s}],"page":1,"total":1,"links":{}}`,
		jobName, startTime, testAccountID, tapExit, tapDesc, testSourceID)
}

// loadsBody renders the account loads envelope for one stream.
func loadsBody(loadedAt, errorState string) string {
	loaded := "null"
	if loadedAt != "" {
		loaded = fmt.Sprintf("%q", loadedAt)
	}
	return fmt.Sprintf(`{"data":[{"stitch_client_id":%s,"source_name":%q,"stream_name":%q,"last_batch_loaded_at":%s,"error_state":%s}],"page":1,"total":1,"links":{}}`,
		testAccountID, testSourceName, testStreamName, loaded, errorState)
}

func schemaBody() string {
	return `{"schema":"{\"type\": \"object\", \"properties\": {\"id\": {\"type\": \"integer\"}, \"name\": {\"type\": \"string\"}}}","metadata":[{"breadcrumb":[],"metadata":{"forced-replication-method":"INCREMENTAL","inclusion":"available","selected":true,"table-key-properties":["sha"],"valid-replication-keys":"updated_at"}},{"breadcrumb":["properties","author"],"metadata":{"inclusion":"available","selected":true}},{"breadcrumb":["properties","description"],"metadata":{"inclusion":"available","selected":true}},{"breadcrumb":["properties","ignored"],"metadata":{"inclusion":"available","selected":false}}],"non-discoverable-metadata-keys":["selected"]}`
}

func futureTimestamp() string {
	return time.Now().UTC().Add(24 * time.Hour).Format(stitch.TimeFormat)
}

func recentTimestamp() string {
	return time.Now().UTC().Format(stitch.TimeFormat)
}

// installSyncFixtures wires the nominal happy-path responses.
func (s *stubAPI) installSyncFixtures() {
	s.handleJSON("GET", "/sources/"+testSourceID, sourceBody())
	s.handleJSON("POST", "/sources/"+testSourceID+"/sync", syncJobBody())
	s.handleJSON("GET", "/"+testAccountID+"/extractions", extractionBody(testJobName, 0, "", recentTimestamp()))
	s.handleJSON("GET", "/sources/"+testSourceID+"/streams", streamsBody())
	s.handleJSON("GET", "/"+testAccountID+"/loads", loadsBody(futureTimestamp(), "null"))
	s.handleJSON("GET", "/sources/"+testSourceID+"/streams/"+testStreamID, schemaBody())
}
