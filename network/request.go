package network

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sony/gobreaker"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
)

// get issues one conditional GET and classifies the outcome.
func (e *Executor) get(ctx context.Context, rawURL string) Response {
	path := model.OmitHost(rawURL)
	resp := Response{URL: path, Message: DefaultMessage}

	etag, ok := e.cache.ETagFor(path)
	if !ok {
		etag = PlaceholderETag
	}

	raw, err := e.do(ctx, http.MethodGet, path, nil, func(req *http.Request) {
		req.Header.Set("If-None-Match", etag)
	})
	if err != nil {
		return e.transportFailure(resp, err)
	}
	resp.Status = raw.status

	switch {
	case raw.status == http.StatusOK:
		if !raw.json() {
			return fail(resp, fmt.Sprintf("Severe Error: wrong content type or no content (%d)", raw.status))
		}
		var body Body
		if err := json.Unmarshal(raw.body, &body); err != nil {
			return fail(resp, fmt.Sprintf("Severe Error: wrong content type or no content (%d)", raw.status))
		}
		resp.Data = &body
		if raw.etag != "" {
			e.cache.Store(path, raw.etag, &body)
		}
		resp.Message = messageOf(&body)

	case raw.status == http.StatusNotModified:
		validator := raw.etag
		if validator == "" {
			validator = etag
		}
		body, ok := e.cache.ContentForETag(validator)
		if !ok {
			e.logger.Warn("not modified without cached content", "url", path, "etag", validator,
				"error", errors.Wrap(errors.ErrCacheMiss, "Executor", "get", "resolve 304"))
			return fail(resp, fmt.Sprintf("Severe Error: cache miss etag = '%s' (%d)", validator, raw.status))
		}
		resp.Data = body
		resp.Message = messageOf(body)

	default:
		return classifyFailure(resp, raw)
	}

	return resp
}

// rawResponse is a fully read and decoded HTTP response.
type rawResponse struct {
	status      int
	contentType string
	etag        string
	body        []byte
}

func (r *rawResponse) json() bool {
	if len(r.body) == 0 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.contentType)
	return err == nil && mediaType == "application/json"
}

// do sends one request through the breaker and reads the body. Transport
// failures, 5xx answers and an open breaker come back as errors; every
// other status is a response.
func (e *Executor) do(ctx context.Context, method, path string, body []byte,
	prepare func(*http.Request)) (*rawResponse, error) {
	start := time.Now()
	status := 0
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordHTTPRequest(method, status, time.Since(start))
		}
	}()

	call := func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, e.resolve(path), reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if e.compression {
			req.Header.Set("Accept-Encoding", "br, gzip")
		}
		if prepare != nil {
			prepare(req)
		}

		httpResp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := readBody(httpResp)
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{
			status:      httpResp.StatusCode,
			contentType: httpResp.Header.Get("Content-Type"),
			etag:        httpResp.Header.Get("ETag"),
			body:        data,
		}
		if raw.status >= 500 {
			return raw, &serverFailure{status: raw.status}
		}
		return raw, nil
	}

	var (
		result interface{}
		err    error
	)
	if e.breaker != nil {
		result, err = e.breaker.Execute(call)
	} else {
		result, err = call()
	}

	var sf *serverFailure
	if stderrors.As(err, &sf) {
		raw := result.(*rawResponse)
		status = raw.status
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	raw := result.(*rawResponse)
	status = raw.status
	return raw, nil
}

// readBody reads the response body, undoing any content encoding the
// transport did not handle itself.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func (e *Executor) transportFailure(resp Response, err error) Response {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return fail(resp, "Server Error: circuit breaker open (0)")
	}
	e.logger.Debug("request failed", "url", resp.URL, "error", err)
	return fail(resp, "Server Error: unresolved (0)")
}

// classifyFailure describes a non-success answer. Client errors surface the
// server's own message when the body is JSON.
func classifyFailure(resp Response, raw *rawResponse) Response {
	resp.Status = raw.status
	if raw.status >= 400 && raw.status < 500 {
		if raw.json() {
			var body Body
			if err := json.Unmarshal(raw.body, &body); err == nil {
				if msg := messageOf(&body); msg != DefaultMessage {
					return fail(resp, msg)
				}
			}
		}
		return fail(resp, fmt.Sprintf("Client Error: unresolved (%d)", raw.status))
	}
	return fail(resp, fmt.Sprintf("Server Error: unresolved (%d)", raw.status))
}

func fail(resp Response, message string) Response {
	resp.Error = true
	resp.Data = nil
	resp.Message = message
	return resp
}

func messageOf(body *Body) string {
	switch {
	case body == nil:
		return DefaultMessage
	case body.Message != "":
		return body.Message
	case body.Details != "":
		return body.Details
	default:
		return DefaultMessage
	}
}
