package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	httpAdapter "github.com/iho/marketledger/internal/adapter/http"
	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/adapter/http/middleware"
)

type clientOptions struct {
	baseURL   string
	timeout   time.Duration
	token     string
	principal string
	role      string
}

type apiClient struct {
	opts *clientOptions
	http *http.Client
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func newAPIClient(opts *clientOptions) *apiClient {
	return &apiClient{opts: opts, http: &http.Client{Timeout: opts.timeout}}
}

// do sends a request under the billing prefix and returns the raw body.
// Mutating requests carry a fresh idempotency key.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := strings.TrimRight(c.opts.baseURL, "/") + httpAdapter.APIPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(middleware.IdempotencyKeyHeader, ulid.Make().String())
	}
	if c.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	} else {
		req.Header.Set(middleware.PrincipalIDHeader, c.opts.principal)
		req.Header.Set(middleware.PrincipalRoleHeader, c.opts.role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode}
		var errBody dto.ErrorResponse
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.Code = errBody.Error
			apiErr.Message = errBody.Message
		}
		return nil, apiErr
	}

	return data, nil
}

// printJSON re-indents a JSON body for terminal output.
func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, werr := w.Write(data)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
