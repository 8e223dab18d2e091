package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/vctrl/vctrl/pkg/object"
)

// Endpoint identifies an HTTP object-transport endpoint.
// BaseURL carries no credentials and no trailing slash.
type Endpoint struct {
	Raw     string
	BaseURL string
	user    string
	pass    string
}

// ParseEndpoint parses a remote URL into a canonical endpoint.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("remote URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse remote URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Endpoint{}, fmt.Errorf("remote URL must be http(s) and include a host")
	}

	endpointURL := *u
	endpointURL.RawQuery = ""
	endpointURL.Fragment = ""
	user := ""
	pass := ""
	if endpointURL.User != nil {
		user = endpointURL.User.Username()
		pass, _ = endpointURL.User.Password()
	}
	endpointURL.User = nil

	return Endpoint{
		Raw:     raw,
		BaseURL: strings.TrimRight(endpointURL.String(), "/"),
		user:    user,
		pass:    pass,
	}, nil
}

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 60s)
	MaxAttempts int           // retry attempts (default 3)
	Backoff     time.Duration // first retry delay, doubled per attempt (default 1s)
}

// Response limits per endpoint type.
const (
	responseLimitDefault = 2 << 20  // 2MB
	responseLimitRefs    = 8 << 20  // 8MB
	responseLimitList    = 64 << 20 // 64MB
	responseLimitObject  = 32 << 20 // 32MB
)

// Client talks to a `vctrl serve` endpoint.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	token       string
	user        string
	pass        string
	maxAttempts int
	backoff     time.Duration
}

var _ Remote = (*Client)(nil)

// NewClient creates a client with default options.
//
// Auth resolution order:
// 1) VCTRL_TOKEN (Bearer)
// 2) VCTRL_USERNAME + VCTRL_PASSWORD (Basic)
// 3) URL userinfo (Basic)
func NewClient(remoteURL string) (*Client, error) {
	return NewClientWithOptions(remoteURL, ClientOptions{})
}

// NewClientWithOptions creates a client with configurable options.
// Zero-value or negative fields in opts receive defaults.
func NewClientWithOptions(remoteURL string, opts ClientOptions) (*Client, error) {
	endpoint, err := ParseEndpoint(remoteURL)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	token := strings.TrimSpace(os.Getenv("VCTRL_TOKEN"))
	user := strings.TrimSpace(os.Getenv("VCTRL_USERNAME"))
	pass := os.Getenv("VCTRL_PASSWORD")
	if token == "" && user == "" && endpoint.user != "" {
		user = endpoint.user
		pass = endpoint.pass
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		token:       token,
		user:        user,
		pass:        pass,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}, nil
}

// Endpoint returns the parsed endpoint metadata.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// String implements Remote.
func (c *Client) String() string {
	return c.endpoint.BaseURL
}

// ListRefs returns the remote's branch refs (e.g. heads/main).
func (c *Client) ListRefs(ctx context.Context) (map[string]object.Oid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/refs", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doWithLimit(req, http.StatusOK, responseLimitRefs)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode refs response: %w", err)
	}
	refs := make(map[string]object.Oid, len(raw))
	for name, oid := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		o := object.Oid(strings.TrimSpace(oid))
		if err := object.ValidateOid(o); err != nil {
			return nil, fmt.Errorf("invalid oid for ref %q: %w", name, err)
		}
		refs[name] = o
	}
	return refs, nil
}

// ListObjects returns every oid the remote stores.
func (c *Client) ListObjects(ctx context.Context) ([]object.Oid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/objects", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doWithLimit(req, http.StatusOK, responseLimitList)
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode objects response: %w", err)
	}
	oids := make([]object.Oid, 0, len(raw))
	for _, s := range raw {
		o := object.Oid(strings.TrimSpace(s))
		if err := object.ValidateOid(o); err != nil {
			return nil, fmt.Errorf("decode objects response: %w", err)
		}
		oids = append(oids, o)
	}
	return oids, nil
}

// ReadObject downloads one stored object. The returned bytes are the
// compressed on-disk form and have been checked against oid.
func (c *Client) ReadObject(ctx context.Context, oid object.Oid) ([]byte, error) {
	if err := object.ValidateOid(oid); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL+"/objects/"+string(oid), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doWithLimit(req, http.StatusOK, responseLimitObject)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("read object %s: %w", oid, object.ErrObjectNotFound)
		}
		return nil, err
	}
	if err := object.VerifyRaw(oid, body); err != nil {
		return nil, fmt.Errorf("read object %s: %w", oid, err)
	}
	return body, nil
}

// WriteObject uploads one stored object.
func (c *Client) WriteObject(ctx context.Context, oid object.Oid, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint.BaseURL+"/objects/"+string(oid), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	_, err = c.doWithLimit(req, http.StatusNoContent, responseLimitDefault)
	return err
}

// WriteRef points a remote branch ref (e.g. heads/main) at oid.
func (c *Client) WriteRef(ctx context.Context, name string, oid object.Oid) error {
	payload, err := json.Marshal(refUpdateRequest{Oid: string(oid)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint.BaseURL+"/refs/"+name, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.doWithLimit(req, http.StatusNoContent, responseLimitDefault)
	return err
}

func (c *Client) doWithLimit(req *http.Request, expectedStatus int, maxBytes int64) ([]byte, error) {
	c.applyAuth(req)
	resp, err := retryDo(c.httpClient, req, c.maxAttempts, c.backoff)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := readBody(resp.Body, resp.Header.Get("Content-Encoding"), maxBytes)
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode != expectedStatus {
		if re := tryParseRemoteError(resp.StatusCode, body); re != nil {
			return nil, re
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RemoteError{
			Status:  resp.StatusCode,
			Code:    statusCode(resp.StatusCode),
			Message: fmt.Sprintf("remote request failed (%s %s)", req.Method, req.URL.Path),
			Detail:  msg,
		}
	}
	return body, nil
}

func (c *Client) applyAuth(req *http.Request) {
	req.Header.Set(headerProtocol, ProtocolVersion)
	req.Header.Set("Accept-Encoding", encodingZstd)

	if strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	if strings.TrimSpace(c.user) != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusConflict:
		return codeConflict
	case http.StatusBadRequest:
		return codeBadRequest
	default:
		return codeInternal
	}
}
