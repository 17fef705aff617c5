// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/openmicroscopy/omero-go/sdk/go/config"
	"github.com/openmicroscopy/omero-go/sdk/go/httpserver"
)

// A Client is an HTTP client for the OMERO.web JSON API.
//
// It offers methods for accessing individual API endpoints, and
// methods that implement common patterns like fetching multiple pages
// of results or saving an object graph in one request. A Client is
// safe for concurrent use once Login has returned.
type Client struct {
	// HTTP client used to make requests. If nil,
	// DefaultSecureClient or InsecureHTTPClient will be used.
	Client *http.Client `json:"-"`

	// Protocol scheme: "http", "https", or "" (https)
	Scheme string

	// Hostname (or host:port) of the OMERO.web gateway.
	WebHost string

	// Accept unverified certificates. This works only if the
	// Client field is nil: otherwise, it has no effect.
	Insecure bool

	// Timeout for requests. NewClientFromConfig and
	// NewClientFromEnv return a Client with a default 5 minute
	// timeout. Within this time, retryable errors are
	// automatically retried with exponential backoff.
	//
	// To disable automatic retries, set Timeout to zero and use a
	// context deadline to establish a maximum request time.
	Timeout time.Duration

	// Group to scope requests to. -1 means all groups the session
	// can see, 0 means unselected: queries run across all groups
	// and writes go to the session's default group. Use WithGroup
	// or SelectGroup instead of setting this directly on a client
	// that is shared between goroutines.
	GroupID int64

	// Server to select at login time, for OMERO.web installs that
	// front more than one OMERO server. 0 means use the only
	// server offered.
	ServerID int64

	// HTTP headers to add/override in outgoing requests.
	SendHeader http.Header

	defaultRequestID string

	// WebHost etc. were loaded from OMERO_* env vars / settings
	// file (used to customize "no host" error messages)
	loadedFromEnv bool

	// Session state shared by all copies of this client made with
	// WithGroup, AllGroups, and WithRequestID, so a Login through
	// one copy is visible to the others.
	shared *clientState
}

// clientState holds everything a login session accumulates. It is
// always used through a pointer and never copied.
type clientState struct {
	mtx     sync.Mutex
	baseURL string            // versioned API base, e.g. https://host/api/v0/
	dir     map[string]string // URL directory served at baseURL
	csrf    string
	cookies map[string]*http.Cookie
	session *Session

	// Track/limit concurrent outgoing API calls. Note this
	// differs from an outgoing connection limit (a feature
	// provided by http.Transport) when concurrent calls are
	// multiplexed on a single http2 connection.
	limiter requestLimiter

	last503 atomic.Value
}

// setupMtx guards materialization of Client.shared.
var setupMtx sync.Mutex

// state returns the shared session state, materializing it first if
// needed. Methods that copy the Client must call state() before
// copying so the original and the copy end up sharing.
func (c *Client) state() *clientState {
	setupMtx.Lock()
	defer setupMtx.Unlock()
	if c.shared == nil {
		c.shared = &clientState{}
	}
	return c.shared
}

func (s *clientState) getCSRF() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.csrf
}

func (s *clientState) setCSRF(token string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.csrf = token
}

// setCookies merges Set-Cookie values from a response into the
// session. OMERO.web rotates csrftoken at login time, so the header
// value tracks the cookie when one arrives.
func (s *clientState) setCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.cookies == nil {
		s.cookies = map[string]*http.Cookie{}
	}
	for _, cookie := range cookies {
		if cookie.MaxAge < 0 {
			delete(s.cookies, cookie.Name)
		} else {
			s.cookies[cookie.Name] = cookie
		}
	}
	if cookie := s.cookies["csrftoken"]; cookie != nil {
		s.csrf = cookie.Value
	}
}

func (s *clientState) cookieList() []*http.Cookie {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	list := make([]*http.Cookie, 0, len(s.cookies))
	for _, cookie := range s.cookies {
		list = append(list, cookie)
	}
	return list
}

// InsecureHTTPClient is the default http.Client used by a Client with
// Insecure==true and Client==nil.
var InsecureHTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true}}}

// DefaultSecureClient is the default http.Client used by a Client otherwise.
var DefaultSecureClient = &http.Client{}

// NewClientFromConfig creates a new Client from the given settings.
//
// Credentials are not carried in Settings; the caller supplies them
// to Login.
func NewClientFromConfig(settings config.Settings) (*Client, error) {
	scheme, host := "https", settings.WebHost
	if u, err := url.Parse(host); err == nil && u.Scheme != "" && u.Host != "" {
		scheme, host = u.Scheme, u.Host
	}
	if host == "" {
		return nil, errors.New("no web host in settings")
	}
	timeout := time.Duration(settings.Timeout)
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	client := &Client{
		Scheme:   scheme,
		WebHost:  host,
		Insecure: settings.Insecure,
		Timeout:  timeout,
		ServerID: settings.ServerID,
	}
	if settings.Group != "" {
		// A numeric group selects it outright; a group name can
		// only be resolved after login (the CLI does this).
		if gid, err := strconv.ParseInt(settings.Group, 10, 64); err == nil {
			client.GroupID = gid
		}
	}
	return client, nil
}

// NewClientFromEnv creates a new Client from the settings file
// overlaid with the OMERO_* environment variables.
func NewClientFromEnv() (*Client, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	client, err := NewClientFromConfig(settings)
	if err != nil {
		return nil, err
	}
	client.loadedFromEnv = true
	return client, nil
}

var reqIDGen = httpserver.IDGenerator{Prefix: "req-"}

var nopCancelFunc context.CancelFunc = func() {}

var reqErrorRe = regexp.MustCompile(`net/http: invalid header `)

// Do augments (*http.Client)Do(): adds X-Request-Id, session cookies,
// and CSRF headers, delays in order to comply with rate-limiting
// restrictions, and retries failed requests when it is safe to do so.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	state := c.state()

	if req.Header.Get("X-Request-Id") == "" {
		var reqid string
		if ctxreqid, _ := ctx.Value(contextKeyRequestID{}).(string); ctxreqid != "" {
			reqid = ctxreqid
		} else if c.defaultRequestID != "" {
			reqid = c.defaultRequestID
		} else {
			reqid = reqIDGen.Next()
		}
		if req.Header == nil {
			req.Header = http.Header{"X-Request-Id": {reqid}}
		} else {
			req.Header.Set("X-Request-Id", reqid)
		}
	}
	for _, cookie := range state.cookieList() {
		req.AddCookie(cookie)
	}
	if token := state.getCSRF(); token != "" {
		// OMERO.web rejects mutating requests unless they
		// repeat the CSRF token and a same-origin Referer.
		req.Header.Set("X-CSRFToken", token)
		if req.Header.Get("Referer") == "" {
			req.Header.Set("Referer", c.apiURL(""))
		}
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}

	cancel := nopCancelFunc
	var lastResp *http.Response
	var lastRespBody io.ReadCloser
	var lastErr error
	var checkRetryCalled int

	rclient := retryablehttp.NewClient()
	rclient.HTTPClient = c.httpClient()
	rclient.Backoff = exponentialBackoff
	if c.Timeout > 0 {
		rclient.RetryWaitMin = time.Second / 4
		rclient.RetryWaitMax = c.Timeout / 10
		if rclient.RetryWaitMax > time.Minute {
			rclient.RetryWaitMax = time.Minute
		}
		rclient.RetryMax = 32
	} else {
		rclient.RetryMax = 0
	}
	rclient.CheckRetry = func(ctx context.Context, resp *http.Response, respErr error) (bool, error) {
		checkRetryCalled++
		if state.limiter.Report(resp, respErr) {
			state.last503.Store(time.Now())
		}
		if c.Timeout == 0 {
			return false, nil
		}
		// This check can be removed when
		// https://github.com/hashicorp/go-retryablehttp/pull/210
		// (or equivalent) is merged and we update go.mod --
		// see TestNonRetryableStdlibError.
		if respErr != nil && reqErrorRe.MatchString(respErr.Error()) {
			return false, nil
		}
		retrying, err := retryablehttp.DefaultRetryPolicy(ctx, resp, respErr)
		if retrying && resp != nil && !idempotent(req.Method) {
			// The request reached the server, so sending
			// a mutating verb again could apply it twice.
			// Let the caller see the error response.
			retrying, err = false, nil
		}
		if !retrying && err == nil && respErr == nil && resp != nil && idempotent(req.Method) {
			switch resp.StatusCode {
			case http.StatusRequestTimeout, http.StatusLocked:
				retrying = true
			}
		}
		if retrying {
			if lastRespBody != nil {
				lastRespBody.Close()
			}
			lastResp, lastRespBody, lastErr = resp, nil, respErr
			if resp != nil {
				// Steal the response body so we can
				// return it to the caller if the
				// deadline arrives before the next
				// attempt succeeds. retryablehttp
				// still drains and closes resp.Body,
				// so leave a stub in its place.
				lastRespBody = resp.Body
				resp.Body = io.NopCloser(bytes.NewReader(nil))
			}
		}
		return retrying, err
	}
	rclient.Logger = nil

	if c.Timeout > 0 {
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(c.Timeout))
		rreq = rreq.WithContext(ctx)
	}

	lim := &state.limiter
	lim.Acquire(ctx)
	if ctx.Err() != nil {
		lim.Release()
		cancel()
		return nil, ctx.Err()
	}

	resp, err := rclient.Do(rreq)
	if (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) && (lastResp != nil || lastErr != nil) {
		resp = lastResp
		err = lastErr
		if checkRetryCalled > 0 && err != nil {
			// Mimic retryablehttp's "giving up after X
			// attempt(s)" message even though we gave up
			// early because of our own deadline.
			err = fmt.Errorf("%s %s giving up after %d attempt(s): %w", req.Method, req.URL.String(), checkRetryCalled, err)
		}
		if resp != nil {
			resp.Body = lastRespBody
		}
	} else if lastRespBody != nil {
		lastRespBody.Close()
	}
	if err != nil {
		lim.Release()
		cancel()
		return nil, err
	}
	state.setCookies(resp.Cookies())
	// We need to release the limiter slot and call cancel()
	// eventually, but we can't use "defer" because the context has
	// to stay alive until the caller has finished reading the
	// response body.
	resp.Body = cancelOnClose{
		ReadCloser: resp.Body,
		cancel: func() {
			lim.Release()
			cancel()
		},
	}
	return resp, nil
}

// Idempotent requests are safe to send again after a failure
// response. Mutating verbs are retried only when the failure happened
// before the server sent anything back.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Implements retryablehttp.Backoff: the server-provided Retry-After
// header when present, otherwise nearly-full-jitter exponential
// backoff, in both cases bounded by max.
func exponentialBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if attemptNum > 0 {
		if min <= 0 {
			// Never retry in a busy loop.
			min = time.Millisecond
		}
		e := float64(attemptNum - 1)
		if maxE := math.Log2(float64(max)/float64(min)) - 1; max > 0 && e > maxE {
			// Clamp the exponent, not the result, so delays
			// stay jittered below max instead of every
			// retrier synchronizing at exactly max.
			e = maxE
		}
		min = time.Duration(float64(min) * math.Pow(2, e+mathrand.Float64()))
	}
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if s := resp.Header.Get("Retry-After"); s != "" {
			var after time.Duration
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
				after = time.Duration(n) * time.Second
			} else if t, err := time.Parse(time.RFC1123, s); err == nil {
				after = time.Until(t)
			}
			if after > min {
				min = after
			}
		}
	}
	if max > 0 && min > max {
		min = max
	}
	return min
}

// Last503 returns the time of the most recent HTTP 503 response
// received through c (or another client sharing its session). Zero
// time means none yet.
func (c *Client) Last503() time.Time {
	t, _ := c.state().last503.Load().(time.Time)
	return t
}

// cancelOnClose calls a provided CancelFunc when its wrapped
// ReadCloser's Close() method is called.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (coc cancelOnClose) Close() error {
	err := coc.ReadCloser.Close()
	coc.cancel()
	return err
}

// DoAndDecode performs req and unmarshals the response (which must be
// JSON) into dst. Use this instead of RequestAndDecode if you need
// more control of the http.Request object.
func (c *Client) DoAndDecode(dst interface{}, req *http.Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return newTransactionError(req, resp, buf)
	case dst == nil || resp.StatusCode == http.StatusNoContent || len(buf) == 0:
		return nil
	default:
		return json.Unmarshal(buf, dst)
	}
}

// Convert an arbitrary struct to url.Values. For example,
//
//	Foo{Bar: []int{1,2,3}, Baz: "waz"}
//
// becomes
//
//	url.Values{`bar`:`{"a":[1,2,3]}`,`Baz`:`waz`}
//
// params itself is returned if it is already an url.Values.
func anythingToValues(params interface{}) (url.Values, error) {
	if v, ok := params.(url.Values); ok {
		return v, nil
	}
	// TODO: Do this more efficiently, possibly using
	// json.Decode/Encode, so the whole thing doesn't have to get
	// encoded, decoded, and re-encoded.
	j, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	dec := json.NewDecoder(bytes.NewBuffer(j))
	dec.UseNumber()
	err = dec.Decode(&generic)
	if err != nil {
		return nil, err
	}
	urlValues := url.Values{}
	for k, v := range generic {
		if v, ok := v.(string); ok {
			urlValues.Set(k, v)
			continue
		}
		if v, ok := v.(json.Number); ok {
			urlValues.Set(k, v.String())
			continue
		}
		if v, ok := v.(bool); ok {
			if v {
				urlValues.Set(k, "true")
			} else {
				// "foo=false", "foo=0", and "foo="
				// are all taken as true strings, so
				// don't send false values at all --
				// rely on the default being false.
			}
			continue
		}
		j, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(j, []byte("null")) {
			// don't add it to urlValues at all
			continue
		}
		urlValues.Set(k, string(j))
	}
	return urlValues, nil
}

// RequestAndDecode performs an API request and unmarshals the
// response (which must be JSON) into dst. Method and body arguments
// are the same as for http.NewRequest(). The given path is resolved
// against the client's scheme/host unless it is already absolute (the
// API URL directory hands out absolute URLs).
//
// Params are sent as the query string for GET, HEAD, and DELETE
// requests, and for requests with a caller-supplied body. Otherwise
// they are marshaled to a JSON request body.
//
// path must not contain a query string.
func (c *Client) RequestAndDecode(dst interface{}, method, path string, body io.Reader, params interface{}) error {
	return c.RequestAndDecodeContext(context.Background(), dst, method, path, body, params)
}

// RequestAndDecodeContext does the same as RequestAndDecode, but with a context
func (c *Client) RequestAndDecodeContext(ctx context.Context, dst interface{}, method, path string, body io.Reader, params interface{}) error {
	if body, ok := body.(io.Closer); ok {
		// Ensure body is closed even if we error out early
		defer body.Close()
	}
	if c.WebHost == "" {
		if c.loadedFromEnv {
			return errors.New("OMERO_WEB_HOST environment variable is not set")
		}
		return errors.New("omero.Client cannot perform request: WebHost is not set")
	}
	urlString := c.apiURL(path)
	contentType := ""
	if params != nil {
		if body == nil && method != http.MethodGet && method != http.MethodHead && method != http.MethodDelete {
			j, err := json.Marshal(params)
			if err != nil {
				return err
			}
			body = bytes.NewReader(j)
			contentType = "application/json"
		} else {
			urlValues, err := anythingToValues(params)
			if err != nil {
				return err
			}
			u, err := url.Parse(urlString)
			if err != nil {
				return err
			}
			u.RawQuery = urlValues.Encode()
			urlString = u.String()
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, urlString, body)
	if err != nil {
		return err
	}
	if contentType == "" && body != nil {
		contentType = "application/json"
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.SendHeader {
		req.Header[k] = v
	}
	return c.DoAndDecode(dst, req)
}

// WithRequestID returns a new shallow copy of c that sends the given
// X-Request-Id value (instead of a new randomly generated one) with
// each subsequent request that doesn't provide its own via context or
// header. The copy shares c's login session.
func (c *Client) WithRequestID(reqid string) *Client {
	c.state()
	cc := *c
	cc.defaultRequestID = reqid
	return &cc
}

func (c *Client) httpClient() *http.Client {
	switch {
	case c.Client != nil:
		return c.Client
	case c.Insecure:
		return InsecureHTTPClient
	default:
		return DefaultSecureClient
	}
}

func (c *Client) apiURL(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + c.WebHost + "/" + strings.TrimPrefix(path, "/")
}

// getBytes fetches a non-JSON endpoint (plane data, rendered images,
// file downloads) and returns the whole response body.
func (c *Client) getBytes(ctx context.Context, path string, query url.Values) ([]byte, error) {
	urlString := c.apiURL(path)
	if len(query) > 0 {
		urlString += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlString, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newTransactionError(req, resp, buf)
	}
	return buf, nil
}

// sendBytes uploads a raw (non-JSON) request body and decodes a JSON
// response into dst, if dst is non-nil.
func (c *Client) sendBytes(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, dst interface{}) error {
	urlString := c.apiURL(path)
	if len(query) > 0 {
		urlString += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, urlString, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.DoAndDecode(dst, req)
}
