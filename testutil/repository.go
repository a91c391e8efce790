package testutil

import (
	"bytes"
	"compress/gzip"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/andybalholm/brotli"
)

// RecordedRequest is one request seen by a RepositoryServer.
type RecordedRequest struct {
	Method         string
	URI            string
	IfNoneMatch    string
	AcceptEncoding string
	Body           []byte
}

type resource struct {
	body        []byte
	etag        string
	contentType string
}

type failure struct {
	status int
	body   []byte
}

// RepositoryServer is an in-process fake of the repository REST API. It
// serves registered resources with ETags, answers matching validators with
// 304, and records every request for inspection.
type RepositoryServer struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]resource
	failures  map[string]failure
	requests  []RecordedRequest
	encoding  string
	noETag    bool
}

// NewRepositoryServer starts a server that is closed when the test ends.
func NewRepositoryServer(t testing.TB) *RepositoryServer {
	t.Helper()
	s := &RepositoryServer{
		resources: make(map[string]resource),
		failures:  make(map[string]failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Put registers a list response {"selected": elements} at path.
func (s *RepositoryServer) Put(path string, elements ...map[string]any) {
	if elements == nil {
		elements = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{"selected": elements})
	s.PutRaw(path, "application/json", body)
}

// PutUsers registers the /user/ listing with users selected and current as
// the logged-in account.
func (s *RepositoryServer) PutUsers(current map[string]any, users ...map[string]any) {
	if users == nil {
		users = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{
		"selected":       users,
		"selected_range": []int{0, len(users)},
		"logged_in_as":   current,
	})
	s.PutRaw("/user/", "application/json", body)
}

// PutRaw registers an arbitrary body at path.
func (s *RepositoryServer) PutRaw(path, contentType string, body []byte) {
	sum := sha1.Sum(body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[key(path)] = resource{
		body:        body,
		etag:        `"` + hex.EncodeToString(sum[:]) + `"`,
		contentType: contentType,
	}
	delete(s.failures, key(path))
}

// Fail makes every request for path answer with status. A non-nil body is
// sent as JSON.
func (s *RepositoryServer) Fail(path string, status int, body map[string]any) {
	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key(path)] = failure{status: status, body: data}
}

// Forget removes the resource at path.
func (s *RepositoryServer) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, key(path))
}

// ETag returns the validator currently served for path.
func (s *RepositoryServer) ETag(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[key(path)].etag
}

// Compress encodes bodies with "br" or "gzip" when the client accepts it.
func (s *RepositoryServer) Compress(encoding string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoding = encoding
}

// OmitETag stops the server from sending ETag headers.
func (s *RepositoryServer) OmitETag(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noETag = omit
}

// Requests returns a copy of all recorded requests.
func (s *RepositoryServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests with method hit path.
func (s *RepositoryServer) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && key(r.URI) == key(path) {
			n++
		}
	}
	return n
}

// Reset drops the recorded requests.
func (s *RepositoryServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *RepositoryServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:         r.Method,
		URI:            r.URL.RequestURI(),
		IfNoneMatch:    r.Header.Get("If-None-Match"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Body:           body,
	})
	k := key(r.URL.Path)
	fail, failing := s.failures[k]
	res, found := s.resources[k]
	encoding := s.encoding
	noETag := s.noETag
	s.mu.Unlock()

	if failing {
		if fail.body != nil {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(fail.status)
		_, _ = w.Write(fail.body)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "object not found"})
			return
		}
		if !noETag {
			w.Header().Set("ETag", res.etag)
			if r.Header.Get("If-None-Match") == res.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		w.Header().Set("Content-Type", res.contentType)
		writeEncoded(w, r, http.StatusOK, res.body, encoding)

	case http.MethodPost:
		if found {
			w.Header().Set("Content-Type", res.contentType)
			writeEncoded(w, r, http.StatusOK, res.body, encoding)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": "object created"})

	case http.MethodDelete:
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "object not found"})
			return
		}
		s.Forget(k)
		writeJSON(w, http.StatusOK, map[string]any{"message": "object deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeEncoded(w http.ResponseWriter, r *http.Request, status int, body []byte, encoding string) {
	if encoding == "" || !strings.Contains(r.Header.Get("Accept-Encoding"), encoding) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	var buf bytes.Buffer
	switch encoding {
	case "br":
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write(body)
		_ = bw.Close()
	case "gzip":
		gw := gzip.NewWriter(&buf)
		_, _ = gw.Write(body)
		_ = gw.Close()
	default:
		buf.Write(body)
		encoding = ""
	}
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// key normalises a request path: no query, no trailing slash.
func key(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
