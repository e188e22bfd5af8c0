// Package gateway posts JSON bodies to the authentication API and reports each request's
// terminal outcome exactly once.
//
// The session cookie lives in a cookie jar owned by the gateway. Callers never see it;
// they only say per request whether it may be sent and set (Request.WithCredentials).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/andrasnagy-data/authscreen/internal/shared/config"
)

// maxErrorBody bounds how much of a failed response is kept as payload
const maxErrorBody = 1 << 20

type (
	// Request is a single POST against the API base URL
	Request struct {
		Path            string
		Body            any
		WithCredentials bool
	}

	// Failure is a non-2xx response or a transport error. Status is 0 for transport errors.
	// Payload is always valid JSON: the response body, a JSON string, or null.
	Failure struct {
		Status  int
		Payload json.RawMessage
	}

	// Outcome is Success when Failure is nil
	Outcome struct {
		Failure *Failure
	}

	Gateway struct {
		baseURL      string
		timeout      time.Duration
		anonymous    *http.Client
		credentialed *http.Client
		logger       zerolog.Logger
	}
)

func (f *Failure) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", f.Status, f.Payload)
}

// Succeeded reports whether the outcome is Success
func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

// NewGateway builds a Gateway for cfg.APIURL with cfg.RequestTimeout
func NewGateway(cfg *config.Config, logger zerolog.Logger) (*Gateway, error) {
	return New(cfg.APIURL, cfg.RequestTimeout, logger)
}

// New builds a Gateway for baseURL. A zero timeout leaves requests pending until the
// transport gives up on its own.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Gateway, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	return &Gateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		anonymous:    &http.Client{Transport: transport},
		credentialed: &http.Client{Transport: transport, Jar: jar},
		logger:       logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// Post issues req without blocking. The returned channel yields exactly one Outcome and is then closed.
func (g *Gateway) Post(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		out <- g.do(ctx, req)
	}()
	return out
}

func (g *Gateway) do(ctx context.Context, req Request) Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	url := g.baseURL + req.Path
	logger := g.logger.With().
		Str("url", url).
		Bool("with_credentials", req.WithCredentials).
		Logger()

	body, err := json.Marshal(req.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode request body")
		return transportFailure(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build request")
		return transportFailure(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")

	client := g.anonymous
	if req.WithCredentials {
		client = g.credentialed
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Request failed before a response arrived")
		return transportFailure(err)
	}
	defer resp.Body.Close()

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Response received")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("Failed to read error body")
		return Outcome{Failure: &Failure{Status: resp.StatusCode, Payload: jsonString(err.Error())}}
	}
	return Outcome{Failure: &Failure{Status: resp.StatusCode, Payload: payloadOf(raw)}}
}

// payloadOf turns a response body into the failure payload: compacted JSON when the body
// is JSON, the text as a JSON string otherwise, null when empty.
func payloadOf(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.Bytes()
		}
	}
	return jsonString(string(body))
}

func transportFailure(err error) Outcome {
	return Outcome{Failure: &Failure{Payload: jsonString(err.Error())}}
}

// jsonString encodes s without HTML escaping so the user sees the text as sent
func jsonString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
