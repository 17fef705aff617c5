// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	check "gopkg.in/check.v1"
)

// Gocheck boilerplate
func Test(t *testing.T) {
	check.TestingT(t)
}

var _ = check.Suite(&HTTPServerSuite{})

type HTTPServerSuite struct{}

func (s *HTTPServerSuite) TestIDGeneratorUnique(c *check.C) {
	gen := IDGenerator{Prefix: "zzzzz-"}
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := gen.Next()
		c.Check(id[:6], check.Equals, "zzzzz-")
		c.Check(seen[id], check.Equals, false, check.Commentf("duplicate ID %q", id))
		seen[id] = true
	}
}

func (s *HTTPServerSuite) TestAddRequestIDs(c *check.C) {
	var seen string
	h := AddRequestIDs(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = req.Header.Get("X-Request-Id")
	}))

	// A request without an ID gets one, and the response echoes it.
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest("GET", "/", nil))
	c.Check(seen, check.Matches, `req-[0-9a-z]+`)
	c.Check(resp.Header().Get("X-Request-Id"), check.Equals, seen)

	// A caller-supplied ID passes through verbatim.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "req-12345abcde")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	c.Check(seen, check.Equals, "req-12345abcde")
	c.Check(resp.Header().Get("X-Request-Id"), check.Equals, "req-12345abcde")
}

func (s *HTTPServerSuite) TestLogRequests(c *check.C) {
	captured := &bytes.Buffer{}
	logger := ctxlog.New(captured, "json", "debug")
	h := LogRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest("GET", "/projects/?childCount=true", nil)
	req.Header.Set("X-Request-Id", "req-logtest")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	gotReq := make(map[string]interface{})
	gotResp := make(map[string]interface{})
	dec := json.NewDecoder(captured)
	c.Assert(dec.Decode(&gotReq), check.IsNil)
	c.Assert(dec.Decode(&gotResp), check.IsNil)
	c.Check(gotReq["msg"], check.Equals, "request")
	c.Check(gotReq["RequestID"], check.Equals, "req-logtest")
	c.Check(gotReq["reqPath"], check.Equals, "/projects/")
	c.Check(gotReq["reqQuery"], check.Equals, "childCount=true")
	c.Check(gotResp["msg"], check.Equals, "response")
	c.Check(gotResp["respStatusCode"], check.Equals, float64(http.StatusTeapot))
	c.Check(gotResp["respBytes"], check.Equals, float64(len("short and stout")))
}

func (s *HTTPServerSuite) TestErrors(c *check.C) {
	resp := httptest.NewRecorder()
	Error(resp, "no such project", http.StatusNotFound)
	c.Check(resp.Code, check.Equals, http.StatusNotFound)
	c.Check(resp.Header().Get("Content-Type"), check.Equals, "application/json")
	var body ErrorResponse
	c.Assert(json.Unmarshal(resp.Body.Bytes(), &body), check.IsNil)
	c.Check(body.Errors, check.DeepEquals, []string{"no such project"})
}
