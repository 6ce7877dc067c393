// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proxy implements the proxy client (C8): forwarding a captured
// request to an upstream and, for the self-modifying modes, recording what
// it learned back onto the imposter's stub list (§4.5).
package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/riftmock/rift/internal/reqmodel"
	"github.com/riftmock/rift/internal/riftkind"
	"github.com/riftmock/rift/internal/stubmodel"
)

// DefaultTimeout bounds a single upstream round trip when Config.Timeout is
// left zero.
const DefaultTimeout = 10 * time.Second

// hopByHop lists header names that apply only to one transport hop and must
// never be forwarded (RFC 7230 §6.1, plus Mountebank's own practice here).
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Config configures a Client.
type Config struct {
	// Timeout bounds a single upstream request (default DefaultTimeout).
	Timeout time.Duration
}

// Client forwards captured requests to proxy upstreams. No redirects are
// followed by default, per §4.5 ("the raw response is what gets captured").
type Client struct {
	http *http.Client
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Close releases idle upstream connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Forward replays req against the upstream named by to, stripping
// hop-by-hop headers, and captures the raw response as an *IsResponse.
// Failures are wrapped as riftkind.ProxyUpstream; callers translate that
// into the 502 JSON envelope from §4.5.
func (c *Client) Forward(ctx context.Context, to string, req *reqmodel.Request) (*stubmodel.IsResponse, error) {
	target := strings.TrimRight(to, "/") + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	upstream, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, riftkind.Wrap(riftkind.ProxyUpstream, "build upstream request", err)
	}
	for name, vals := range req.Headers {
		if _, skip := hopByHop[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range vals {
			upstream.Header.Add(name, v)
		}
	}

	resp, err := c.http.Do(upstream)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.ProxyUpstream, "upstream request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, riftkind.Wrap(riftkind.ProxyUpstream, "read upstream response", err)
	}

	headers := resp.Header.Clone()
	return &stubmodel.IsResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}
