// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omerotest

import (
	"net/http"
	"sync"
)

// StubResponse is a canned status and body.
type StubResponse struct {
	Status int
	Body   string
}

// ServerStub is an http.Handler that plays back canned responses by
// request path. A Status of -1 sends the client into a redirect loop.
// Paths with no stubbed response get a 500.
type ServerStub struct {
	Responses map[string]StubResponse

	mtx      sync.Mutex
	requests []*http.Request
}

func (stub *ServerStub) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	stub.mtx.Lock()
	stub.requests = append(stub.requests, req)
	stub.mtx.Unlock()

	if req.URL.Path == "/redirect-loop" {
		http.Redirect(resp, req, "/redirect-loop", http.StatusFound)
		return
	}

	pathResponse := stub.Responses[req.URL.Path]
	if pathResponse.Status == -1 {
		http.Redirect(resp, req, "/redirect-loop", http.StatusFound)
	} else if pathResponse.Body != "" {
		resp.Header().Set("Content-Type", "application/json")
		resp.WriteHeader(pathResponse.Status)
		resp.Write([]byte(pathResponse.Body))
	} else {
		resp.WriteHeader(500)
		resp.Write([]byte(``))
	}
}

// Requests returns the requests handled so far.
func (stub *ServerStub) Requests() []*http.Request {
	stub.mtx.Lock()
	defer stub.mtx.Unlock()
	return append([]*http.Request(nil), stub.requests...)
}
