package atproto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// xrpcError is the body shape every XRPC endpoint uses for failures.
type xrpcError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *xrpcError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// isAuthError reports whether the failure means the credentials are no
// longer usable, as opposed to a transient transport problem.
func isAuthError(err error) bool {
	var xerr *xrpcError
	if !errors.As(err, &xerr) {
		return false
	}
	switch xerr.Code {
	case "ExpiredToken", "InvalidToken", "AccountTakedown", "AuthenticationRequired":
		return true
	}
	return xerr.StatusCode == http.StatusUnauthorized
}

type xrpcClient struct {
	http    *http.Client
	baseURL string
}

func (c *xrpcClient) procedure(ctx context.Context, token, nsid string, input, output any) error {
	return c.call(ctx, http.MethodPost, token, nsid, nil, input, output)
}

func (c *xrpcClient) query(ctx context.Context, token, nsid string, params map[string]string, output any) error {
	return c.call(ctx, http.MethodGet, token, nsid, params, nil, output)
}

func (c *xrpcClient) call(ctx context.Context, method, token, nsid string, params map[string]string, input, output any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/xrpc/" + nsid

	var body io.Reader
	if input != nil {
		encoded, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", nsid, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", nsid, err)
	}
	if input != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for key, value := range params {
			q.Set(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", nsid, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", nsid, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		xerr := &xrpcError{StatusCode: resp.StatusCode}
		if decodeErr := json.Unmarshal(payload, xerr); decodeErr != nil || xerr.Code == "" {
			xerr.Code = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s: %w", nsid, xerr)
	}

	if output != nil {
		if err := json.Unmarshal(payload, output); err != nil {
			return fmt.Errorf("decode %s response: %w", nsid, err)
		}
	}

	return nil
}
