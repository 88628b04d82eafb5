package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paypal-gateway/internal/auth"
	commonhttp "paypal-gateway/internal/common/http"
)

const tokenTTL = 5 * time.Minute

type client struct {
	baseURL    string
	secret     string
	subject    string
	httpClient *http.Client
}

func newClient(opts *options) *client {
	return &client{
		baseURL:    strings.TrimRight(opts.server, "/"),
		secret:     opts.secret,
		subject:    opts.subject,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
	}
}

// call sends one operator request and prints the indented JSON response.
// Non-2xx responses are returned as errors after printing the body.
func (c *client) call(ctx context.Context, out io.Writer, method, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if c.secret != "" {
		token, err := auth.IssueToken(c.secret, c.subject, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to mint operator token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	body, err := commonhttp.ReadBody(resp, commonhttp.MaxResponseBytes)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, body, "", "  ") == nil {
			body = pretty.Bytes()
		}
		fmt.Fprintln(out, string(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
