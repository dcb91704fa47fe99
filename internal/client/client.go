// Package client calls the wheelsmith HTTP API. Server-side error kinds are
// mapped back onto the model sentinels, so callers branch the same way they
// would against the in-process service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/model"
)

const (
	defaultTimeout      = 5 * time.Minute
	defaultPollInterval = 250 * time.Millisecond
	maxErrorBody        = 64 << 10
)

// Client talks to one wheelsmith server.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPollInterval sets how often Wait polls a job.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New returns a client for the server at baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildWheel posts req to /wheels.
func (c *Client) BuildWheel(ctx context.Context, req model.BuildRequest) (*model.Wheel, error) {
	var w model.Wheel
	if err := c.do(ctx, http.MethodPost, "/wheels", req, http.StatusOK, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ComputeStats queries /bounds.
func (c *Client) ComputeStats(ctx context.Context, n, k, m int) (bounds.Stats, error) {
	q := url.Values{}
	q.Set("n", strconv.Itoa(n))
	q.Set("k", strconv.Itoa(k))
	q.Set("m", strconv.Itoa(m))
	var raw struct {
		CountingBound   json.Number `json:"counting_bound"`
		SchoenheimBound json.Number `json:"schoenheim_bound"`
		LowerBound      json.Number `json:"lower_bound"`
		UniverseSize    json.Number `json:"universe_size"`
		AllTickets      json.Number `json:"all_tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/bounds?"+q.Encode(), nil, http.StatusOK, &raw); err != nil {
		return bounds.Stats{}, err
	}
	var st bounds.Stats
	for _, f := range []struct {
		dst **big.Int
		src json.Number
	}{
		{&st.CountingBound, raw.CountingBound},
		{&st.SchoenheimBound, raw.SchoenheimBound},
		{&st.LowerBound, raw.LowerBound},
		{&st.UniverseSize, raw.UniverseSize},
		{&st.AllTickets, raw.AllTickets},
	} {
		v, ok := new(big.Int).SetString(f.src.String(), 10)
		if !ok {
			return bounds.Stats{}, fmt.Errorf("client: malformed bound %q", f.src)
		}
		*f.dst = v
	}
	return st, nil
}

// SubmitVerification posts req to /verifications and returns the job id.
func (c *Client) SubmitVerification(ctx context.Context, req model.VerifyRequest) (string, error) {
	var ack struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/verifications", req, http.StatusAccepted, &ack); err != nil {
		return "", err
	}
	return ack.JobID, nil
}

// PollVerification fetches a job snapshot.
func (c *Client) PollVerification(ctx context.Context, id string) (model.Job, error) {
	var j model.Job
	err := c.do(ctx, http.MethodGet, "/verifications/"+url.PathEscape(id), nil, http.StatusOK, &j)
	return j, err
}

// Wait polls id until the job is terminal or ctx ends. onPoll, when set,
// sees every snapshot.
func (c *Client) Wait(ctx context.Context, id string, onPoll func(model.Job)) (model.Job, error) {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()
	for {
		j, err := c.PollVerification(ctx, id)
		if err != nil {
			return j, err
		}
		if onPoll != nil {
			onPoll(j)
		}
		if j.Status.Terminal() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-t.C:
		}
	}
}

// Stats fetches /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.do(ctx, http.MethodGet, "/stats", nil, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}

// decodeError turns an API error body back into a model error.
func decodeError(method, path string, resp *http.Response) error {
	op := "client." + strings.ToLower(method) + " " + path
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var kind error
	switch body.Code {
	case "invalid_parameters":
		kind = model.ErrInvalidParameters
	case "infeasible_constraints":
		kind = model.ErrInfeasibleConstraints
	case "capacity_exceeded":
		kind = model.ErrCapacityExceeded
	case "not_found":
		kind = model.ErrJobNotFound
	case "backpressure":
		kind = model.ErrBackpressure
	default:
		return fmt.Errorf("%s: %s (status %d): %s", op, body.Code, resp.StatusCode, body.Message)
	}
	return &model.Error{Op: op, Kind: kind, Msg: body.Message}
}
