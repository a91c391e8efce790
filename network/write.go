package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/G-Node/wdat2-sub001/model"
)

// Set posts data as JSON to rawURL. 200 and 201 are success; the parsed
// answer, if any, becomes the response data. Writes bypass the cache.
func (e *Executor) Set(ctx context.Context, rawURL string, data map[string]any) Result {
	path := model.OmitHost(rawURL)
	resp := Response{URL: path, Message: DefaultMessage}

	payload, err := json.Marshal(data)
	if err != nil {
		return single(fail(resp, fmt.Sprintf("Client Error: unresolved (%d)", 0)))
	}

	raw, err := e.do(ctx, http.MethodPost, path, payload, nil)
	if err != nil {
		return single(e.transportFailure(resp, err))
	}
	return single(e.written(resp, raw))
}

// Delete sends a DELETE for rawURL.
func (e *Executor) Delete(ctx context.Context, rawURL string) Result {
	path := model.OmitHost(rawURL)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resp := Response{URL: path, Message: DefaultMessage}

	raw, err := e.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return single(e.transportFailure(resp, err))
	}
	return single(e.written(resp, raw))
}

// FetchData loads a slice of a data file. The decoded JSON answer is handed
// back untouched in Raw and never cached.
func (e *Executor) FetchData(ctx context.Context, link string, rng DataRange) Response {
	path := model.OmitHost(link)
	resp := Response{URL: path, Message: DefaultMessage}

	if q := rng.query(); q != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + q
	}

	raw, err := e.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return e.transportFailure(resp, err)
	}
	resp.Status = raw.status
	if raw.status != http.StatusOK {
		return classifyFailure(resp, raw)
	}
	if !raw.json() || !json.Valid(raw.body) {
		return fail(resp, fmt.Sprintf("Severe Error: wrong content type or no content (%d)", raw.status))
	}
	resp.Raw = json.RawMessage(raw.body)
	return resp
}

func (e *Executor) written(resp Response, raw *rawResponse) Response {
	resp.Status = raw.status
	switch raw.status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		return classifyFailure(resp, raw)
	}
	if raw.json() {
		var body Body
		if err := json.Unmarshal(raw.body, &body); err == nil {
			resp.Data = &body
			resp.Message = messageOf(&body)
		}
	}
	return resp
}

func single(resp Response) Result {
	return Result{Primary: []Response{resp}, Secondary: []Response{}}
}

func (r DataRange) query() string {
	values := url.Values{}
	if r.Start != nil {
		values.Set("start", strconv.FormatFloat(*r.Start, 'f', -1, 64))
	}
	if r.End != nil {
		values.Set("end", strconv.FormatFloat(*r.End, 'f', -1, 64))
	}
	if r.MaxPoints > 0 {
		values.Set("max_points", strconv.Itoa(r.MaxPoints))
	}
	return values.Encode()
}
