package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

const (
	pathAction  = "/action"
	pathSetup   = "/settingup"
	pathBeacon  = "/data_rcv"
	verbSetup   = Verb("settingup")
	verbBeacon  = Verb("data_rcv")
	defaultWait = 30 * time.Second
)

// Sender issues one verb for one job.
type Sender interface {
	Send(ctx context.Context, job core.JobName, verb Verb, args Args) (*Response, error)
}

// Client talks to the remote job service. It issues exactly one request per
// call and never retries.
type Client struct {
	http    *resty.Client
	baseURL string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithDebug(enabled bool) Option {
	return func(c *Client) {
		c.http.SetDebug(enabled)
	}
}

// NewClient validates baseURL and builds a client for it.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("server URL must be absolute, got: %s", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	c := &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultWait).
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts one verb to /action. A transport failure returns a
// *TransportError; a JSON object without a status comes back as a Response
// with an empty Status.
func (c *Client) Send(ctx context.Context, job core.JobName, verb Verb, args Args) (*Response, error) {
	log := logger.FromContext(ctx)
	optional, err := json.Marshal(optionalArgs{
		SelectedTab:  args.SelectedTab,
		ProgressXpnd: args.Expanded,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode optional args: %w", err)
	}
	form := map[string]string{
		"action":        job.String(),
		"cmd":           verb.String(),
		"optional_args": string(optional),
	}
	resp, err := c.post(ctx, pathAction, form)
	if err != nil {
		return nil, &TransportError{Job: job, Verb: verb, Err: err}
	}
	out, terr := decodeResponse(resp)
	if terr != nil {
		terr.Job, terr.Verb = job, verb
		log.Debug("action transport failure", "job", job, "verb", verb, "error", terr)
		return nil, terr
	}
	if out.Status == "" {
		log.Debug("action response without status", "job", job, "verb", verb, "error", ErrMalformedResponse)
	}
	log.Debug("action sent", "job", job, "verb", verb, "status", out.Status)
	return out, nil
}

// Setup posts the settings form for one module.
func (c *Client) Setup(ctx context.Context, req SetupRequest) (*Response, error) {
	resp, err := c.post(ctx, pathSetup, map[string]string{
		"module":          req.Module.String(),
		"selected_module": req.SelectedModule,
		"cookies":         req.Cookies,
	})
	if err != nil {
		return nil, &TransportError{Verb: verbSetup, Err: err}
	}
	out, terr := decodeResponse(resp)
	if terr != nil {
		terr.Verb = verbSetup
		return nil, terr
	}
	logger.FromContext(ctx).Debug("settings sent", "module", req.Module, "status", out.Status)
	return out, nil
}

// Beacon flushes the UI selection. The response body is ignored.
func (c *Client) Beacon(ctx context.Context, sel Selection) error {
	resp, err := c.post(ctx, pathBeacon, map[string]string{
		"selected_pill_id":      sel.PillID,
		"selected_parsed_tab":   sel.ParsedTab,
		"selected_exported_tab": sel.ExportedTab,
	})
	if err != nil {
		return &TransportError{Verb: verbBeacon, Err: err}
	}
	if resp.IsError() {
		return &TransportError{Verb: verbBeacon, StatusCode: resp.StatusCode()}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form map[string]string) (*resty.Response, error) {
	return c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(path)
}

// decodeResponse validates the raw body before reading any field so a
// truncated or HTML error page never reaches status branching.
func decodeResponse(resp *resty.Response) (*Response, *TransportError) {
	if resp.IsError() {
		return nil, &TransportError{StatusCode: resp.StatusCode()}
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, &TransportError{Err: fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)}
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, &TransportError{Err: fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)}
	}
	out := &Response{
		Msg:           parsed.Get("msg").String(),
		StatusbarTmpl: parsed.Get("statusbar_tmpl").String(),
		TitleTmpl:     parsed.Get("title_tmpl").String(),
	}
	if status := parsed.Get("status"); status.Type == gjson.String {
		out.Status = status.String()
	}
	return out, nil
}
