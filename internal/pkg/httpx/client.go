// Package httpx holds the outbound HTTP plumbing shared by the service adapters.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
)

const userAgent = "brooks/1.0"

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 256

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// NewClient returns a fasthttp client tuned for small JSON exchanges.
func NewClient(timeout time.Duration) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                userAgent,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 30 * time.Second,
		MaxConnsPerHost:     16,
	}
}

// Request describes one outbound call.
type Request struct {
	Method      string
	URL         string
	Bearer      string
	ContentType string
	Body        []byte
	Header      map[string]string
}

// Do executes req and returns the response body of a 2xx response. The
// exchange is abandoned when ctx is done; fasthttp has no native context
// support so the call runs on its own goroutine.
func Do(ctx context.Context, client *fasthttp.Client, r Request) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(r.URL)
	if r.Method == "" {
		r.Method = fasthttp.MethodGet
	}
	req.Header.SetMethod(r.Method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.Header.SetUserAgent(userAgent)
	if r.Bearer != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+r.Bearer)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	if r.Body != nil {
		ct := r.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.SetContentType(ct)
		req.SetBody(r.Body)
	}

	errc := make(chan error, 1)
	go func() {
		if deadline, ok := ctx.Deadline(); ok {
			errc <- client.DoDeadline(req, resp, deadline)
			return
		}
		errc <- client.Do(req, resp)
	}()

	select {
	case <-ctx.Done():
		// The goroutine still owns req/resp; let it release them.
		go func() {
			<-errc
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()
		return nil, ctx.Err()
	case err := <-errc:
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)
		if err != nil {
			if err == fasthttp.ErrTimeout {
				return nil, context.DeadlineExceeded
			}
			return nil, err
		}
		status := resp.StatusCode()
		if status < 200 || status > 299 {
			return nil, &StatusError{Status: status, Body: snippet(resp.Body())}
		}
		body := make([]byte, len(resp.Body()))
		copy(body, resp.Body())
		return body, nil
	}
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, client *fasthttp.Client, url, bearer string, out any) error {
	body, err := Do(ctx, client, Request{URL: url, Bearer: bearer})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// snippet trims an error body for inclusion in a message. Error bodies are
// not assumed to be JSON. The cut lands on a rune boundary.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
