// Package carrier issues outbound requests against third-party carrier
// tracking APIs. Request shape (URL, method, headers, body template) comes
// verbatim from provider configuration; payload interpretation lives in the
// parse subpackage.
package carrier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/providers"
)

const (
	placeholder      = "{trackingId}"
	maxResponseBytes = 4 << 20
)

// Result is the raw outcome of one carrier fetch.
type Result struct {
	Body       []byte
	RequestURL string
	HTTPStatus int
}

type Client struct {
	std *http.Client
	// insecure tolerates legacy/misconfigured TLS on carrier endpoints.
	// Selected per provider via its InsecureTLS flag, never globally.
	insecure *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	legacyTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
		},
	}
	return &Client{
		std:      &http.Client{Timeout: timeout},
		insecure: &http.Client{Timeout: timeout, Transport: legacyTransport},
	}
}

// Fetch builds and issues the request for one tracking id. It never
// interprets the payload beyond transport-level success.
func (c *Client) Fetch(ctx context.Context, prov providers.Provider, trackingID string) (Result, error) {
	if prov.Endpoint == "" {
		return Result{}, errors.Wrap(ErrProviderConfig, prov.Name)
	}

	finalURL := strings.ReplaceAll(prov.Endpoint, placeholder, trackingID)

	method := prov.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if prov.BodyTemplate != "" {
		rendered, err := renderBody(prov.BodyTemplate, trackingID)
		if err != nil {
			return Result{}, err
		}
		body = bytes.NewReader(rendered)
	}

	req, err := http.NewRequestWithContext(ctx, method, finalURL, body)
	if err != nil {
		return Result{}, errors.Wrapf(ErrRequestSetup, "build request: %v", err)
	}
	for k, v := range prov.Headers {
		req.Header.Set(k, strings.ReplaceAll(v, placeholder, trackingID))
	}

	httpc := c.std
	if prov.InsecureTLS {
		httpc = c.insecure
	}

	resp, err := httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, errors.Wrapf(ErrNetwork, "%s: %v", prov.Name, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, errors.Wrapf(ErrNetwork, "%s: read body: %v", prov.Name, err)
	}

	if resp.StatusCode/100 != 2 {
		return Result{RequestURL: finalURL, HTTPStatus: resp.StatusCode},
			&APIError{HTTPStatus: resp.StatusCode, Status: resp.Status}
	}

	return Result{Body: b, RequestURL: finalURL, HTTPStatus: resp.StatusCode}, nil
}

// renderBody substitutes the tracking id into the body template. Templates
// are JSON with placeholders and must still parse as JSON after
// substitution.
func renderBody(template, trackingID string) ([]byte, error) {
	s := strings.ReplaceAll(template, placeholder, trackingID)
	if !json.Valid([]byte(s)) {
		return nil, errors.Wrap(ErrRequestSetup, "body template is not valid JSON after substitution")
	}
	return []byte(s), nil
}
