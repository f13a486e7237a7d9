package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// maxResponseBody bounds how much of a provider response is read.
const maxResponseBody = 4 << 20

// retryPolicy is the attempt budget and exponential backoff shared by the
// HTTP runtimes.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func newRetryPolicy(attempts int, base, max time.Duration, defBase, defMax time.Duration) retryPolicy {
	if attempts <= 0 {
		attempts = 1
	}
	if base <= 0 {
		base = defBase
	}
	if max <= 0 {
		max = defMax
	}
	return retryPolicy{attempts: attempts, base: base, max: max}
}

// delay is the jittered wait before retrying after attempt (1-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.base << (attempt - 1)
	if d <= 0 || d > p.max {
		d = p.max
	}
	d = withJitter(d)
	if d > p.max {
		d = p.max
	}
	return d
}

// classifyFunc turns a non-2xx response into the runtime's typed error.
type classifyFunc func(apiErr *APIError, resp *http.Response) error

// do sends the request produced by build until it succeeds, fails with a
// non-retryable status, or the policy runs out of attempts. 429 and 5xx are
// retried; Retry-After wins over the computed backoff. Transport errors are
// passed through netErr before being returned.
func (p retryPolicy) do(ctx context.Context, hc *http.Client, build func(context.Context) (*http.Request, error), classify classifyFunc, netErr func(error) error) ([]byte, string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		req, err := build(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("build request: %w", err)
		}
		resp, err := hc.Do(req)
		if err != nil {
			lastErr = netErr(err)
			if isRetryableNetErr(err) && attempt < p.attempts {
				if err := sleepCtx(ctx, p.delay(attempt)); err != nil {
					return nil, "", err
				}
				continue
			}
			return nil, "", lastErr
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		reqID := extractRequestID(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, reqID, fmt.Errorf("read response: %w", readErr)
			}
			return body, reqID, nil
		}

		apiErr := parseAPIError(resp.StatusCode, body)
		apiErr.RequestID = reqID
		lastErr = classify(apiErr, resp)
		if !retryableStatus(resp.StatusCode) || attempt == p.attempts {
			return nil, reqID, lastErr
		}
		wait := p.delay(attempt)
		if ra := retryAfter(resp); ra > 0 {
			wait = ra
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, reqID, err
		}
	}
	return nil, "", lastErr
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseAPIError reads the error payload shapes used by OpenAI-compatible
// APIs ({"error":{"message","code"}}), Ollama ({"error":"..."}) and Google
// ({"error":{"code":403,"message","status"}}).
func parseAPIError(status int, body []byte) *APIError {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: status, Raw: raw}
	switch v := raw["error"].(type) {
	case string:
		apiErr.Message = v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			apiErr.Message = msg
		}
		switch code := v["code"].(type) {
		case string:
			apiErr.Code = code
		case float64:
			if s, ok := v["status"].(string); ok {
				apiErr.Code = s
			}
		}
	}
	if apiErr.Message == "" {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := parseRetryAfterSeconds(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseRetryAfterSeconds interprets a Retry-After header as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Goog-Request-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
