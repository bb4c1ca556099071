package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "deployrota/pkg/logx"
)

// PostgREST talks to a Supabase/PostgREST endpoint.
type PostgREST struct {
	base    string
	table   string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func newPostgREST(cfg Config, client *http.Client, log logx.Logger) (*PostgREST, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("remote.url is required for postgrest driver")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote.url: %w", err)
	}
	// Calls are bounded by the caller's context only.
	if client == nil {
		client = &http.Client{}
	}
	p := &PostgREST{
		base:   base,
		table:  cfg.table(),
		apiKey: strings.TrimSpace(cfg.APIKey),
		http:   client,
		log:    log,
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return p, nil
}

func (p *PostgREST) endpoint(q url.Values) string {
	return p.base + "/rest/v1/" + url.PathEscape(p.table) + "?" + q.Encode()
}

func (p *PostgREST) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("on_conflict", "deploy_date")
	req, err := p.newRequest(ctx, http.MethodPost, p.endpoint(q), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := p.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p *PostgREST) Select(ctx context.Context) ([]Row, error) {
	q := url.Values{}
	q.Set("select", "deploy_date,responsible_name")
	q.Set("order", "deploy_date.asc")
	req, err := p.newRequest(ctx, http.MethodGet, p.endpoint(q), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", p.table, err)
	}
	return rows, nil
}

func (p *PostgREST) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

func (p *PostgREST) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

// do sends req and turns non-2xx answers into errors carrying the
// PostgREST message when one is present.
func (p *PostgREST) do(req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	p.log.Debug("postgrest request",
		logx.String("method", req.Method),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(started)),
	)
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	var out struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out)
	if out.Message != "" {
		return nil, fmt.Errorf("postgrest %s %s failed: %s (code=%s http=%d)", req.Method, p.table, out.Message, out.Code, resp.StatusCode)
	}
	return nil, fmt.Errorf("postgrest %s %s failed: http=%d", req.Method, p.table, resp.StatusCode)
}
