// Package backend is the HTTP client for the transformation service.
//
// The service owns the folio counter and turns ERP exports into load
// workbooks. Three endpoints are used:
//
//	GET  /ultimo-folio   -> {"ultimo_folio": n}
//	PUT  /folio/         {"nuevo_folio": n} -> {"nuevo_folio": n}
//	POST /procesar       multipart "file" -> {"mensaje", "archivo_salida"} | {"error"}
//
// Every failure is returned as a *core.TransportError. StatusCode is set
// when the service answered with a non-2xx status. A body that cannot be
// decoded wraps core.ErrMalformedResponse.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/erpload/internal/core"
	"github.com/JonMunkholm/erpload/internal/logging"
)

// Default paths and field names of the transformation service.
const (
	DefaultSubmitPath  = "/procesar"
	DefaultSubmitField = "file"
	DefaultTimeout     = 30 * time.Second

	currentFolioPath = "/ultimo-folio"
	setFolioPath     = "/folio/"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20
)

var _ core.Backend = (*Client)(nil)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	SubmitPath  string
	SubmitField string
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to one transformation service instance.
type Client struct {
	base        *url.URL
	submitPath  string
	submitField string
	httpClient  *http.Client
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend URL %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend URL %q: missing host", opts.BaseURL)
	}

	if opts.SubmitPath == "" {
		opts.SubmitPath = DefaultSubmitPath
	}
	if !strings.HasPrefix(opts.SubmitPath, "/") {
		opts.SubmitPath = "/" + opts.SubmitPath
	}
	if opts.SubmitField == "" {
		opts.SubmitField = DefaultSubmitField
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:        base,
		submitPath:  opts.SubmitPath,
		submitField: opts.SubmitField,
		httpClient:  hc,
	}, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.base.String() }

type currentFolioResponse struct {
	UltimoFolio *int64 `json:"ultimo_folio"`
}

type folioBody struct {
	NuevoFolio *int64 `json:"nuevo_folio"`
}

// archivo_salida is null when the export held no new rows.
type submitResponse struct {
	Mensaje       string `json:"mensaje"`
	ArchivoSalida string `json:"archivo_salida"`
	Error         string `json:"error"`
}

// CurrentFolio returns the last folio the service has issued.
func (c *Client) CurrentFolio(ctx context.Context) (int64, error) {
	const op = "get current folio"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(currentFolioPath), nil)
	if err != nil {
		return 0, &core.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	var out currentFolioResponse
	if _, err := c.doJSON(req, op, &out); err != nil {
		return 0, err
	}
	if out.UltimoFolio == nil {
		return 0, malformed(op, errors.New("missing ultimo_folio"))
	}
	return *out.UltimoFolio, nil
}

// SetFolio asks the service to continue numbering from folio and returns
// the value it confirms.
func (c *Client) SetFolio(ctx context.Context, folio int64) (int64, error) {
	const op = "set folio"

	payload, err := json.Marshal(folioBody{NuevoFolio: &folio})
	if err != nil {
		return 0, &core.TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(setFolioPath), bytes.NewReader(payload))
	if err != nil {
		return 0, &core.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out folioBody
	if _, err := c.doJSON(req, op, &out); err != nil {
		return 0, err
	}
	if out.NuevoFolio == nil {
		return 0, malformed(op, errors.New("missing nuevo_folio"))
	}
	return *out.NuevoFolio, nil
}

// SubmitFile uploads content as a multipart form. A 2xx answer whose body
// carries "error" is returned as a receipt with Error set, not as an error.
func (c *Client) SubmitFile(ctx context.Context, name string, content []byte) (core.SubmitReceipt, error) {
	const op = "submit file"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(c.submitField, name)
	if err != nil {
		return core.SubmitReceipt{}, &core.TransportError{Op: op, Err: err}
	}
	if _, err := part.Write(content); err != nil {
		return core.SubmitReceipt{}, &core.TransportError{Op: op, Err: err}
	}
	if err := mw.Close(); err != nil {
		return core.SubmitReceipt{}, &core.TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.submitPath), &buf)
	if err != nil {
		return core.SubmitReceipt{}, &core.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out submitResponse
	status, err := c.doJSON(req, op, &out)
	if err != nil {
		return core.SubmitReceipt{}, err
	}
	return core.SubmitReceipt{
		StatusCode: status,
		Message:    out.Mensaje,
		OutputFile: out.ArchivoSalida,
		Error:      out.Error,
	}, nil
}

// doJSON sends req, decodes a 2xx JSON body into out and returns the status.
func (c *Client) doJSON(req *http.Request, op string, out any) (int, error) {
	logger := logging.WithFields(req.Context(), "op", op, "method", req.Method, "url", req.URL.Path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("backend: request failed", "error", err)
		return 0, &core.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, &core.TransportError{Op: op, StatusCode: statusIfFailed(resp.StatusCode), Err: fmt.Errorf("read body: %w", err)}
	}

	logger.Debug("backend: response",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(body),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &core.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s%s", resp.Status, detail(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, malformed(op, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func malformed(op string, cause error) error {
	return &core.TransportError{Op: op, Err: fmt.Errorf("%w: %v", core.ErrMalformedResponse, cause)}
}

func statusIfFailed(code int) int {
	if code < 200 || code > 299 {
		return code
	}
	return 0
}

// detail extracts a short server message from an error body. FastAPI puts
// it under "detail", the transform endpoint under "error".
func detail(body []byte) string {
	var e struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	switch {
	case e.Error != "":
		return ": " + e.Error
	case len(e.Detail) > 0:
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return ": " + s
		}
		d := string(e.Detail)
		if len(d) > 200 {
			d = d[:200]
		}
		return ": " + d
	}
	return ""
}
