// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&errorSuite{})

type errorSuite struct{}

func (*errorSuite) TestTransactionErrorString(c *check.C) {
	u, err := url.Parse("https://omero.example.net/api/v0/m/projects/42/")
	c.Assert(err, check.IsNil)
	te := TransactionError{Method: "GET", URL: *u}
	c.Check(te.Error(), check.Equals, "request failed: https://omero.example.net/api/v0/m/projects/42/")
	te.Status = "404 Not Found"
	c.Check(te.Error(), check.Equals, "request failed: https://omero.example.net/api/v0/m/projects/42/: 404 Not Found")
	te.Errors = []string{"no such container", "check the ID"}
	c.Check(te.Error(), check.Equals, "request failed: https://omero.example.net/api/v0/m/projects/42/: 404 Not Found: no such container; check the ID")
}

func (*errorSuite) TestNewTransactionError(c *check.C) {
	req, err := http.NewRequest("POST", "https://omero.example.net/api/v0/m/save/", nil)
	c.Assert(err, check.IsNil)
	resp := &http.Response{Status: "400 Bad Request", StatusCode: 400}

	te := newTransactionError(req, resp, []byte(`{"message":"bad group","errors":["a","b"]}`))
	c.Check(te.Method, check.Equals, "POST")
	c.Check(te.StatusCode, check.Equals, 400)
	c.Check(te.Status, check.Equals, "400 Bad Request")
	c.Check(te.Errors, check.DeepEquals, []string{"a", "b", "bad group"})

	// A non-JSON body (e.g. an HTML error page) is tolerated.
	te = newTransactionError(req, resp, []byte("<html>nope</html>"))
	c.Check(te.Errors, check.HasLen, 0)
	c.Check(te.StatusCode, check.Equals, 400)
}

func (*errorSuite) TestWrapNotFound(c *check.C) {
	te := &TransactionError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	err := wrapNotFound(te, "image 7")
	c.Check(errors.Is(err, ErrNotFound), check.Equals, true)
	c.Check(err, check.ErrorMatches, `image 7: not found`)

	// ...including when the 404 is wrapped deeper in the chain.
	err = wrapNotFound(fmt.Errorf("listing datasets: %w", te), "project 42")
	c.Check(errors.Is(err, ErrNotFound), check.Equals, true)
	c.Check(err, check.ErrorMatches, `project 42: not found`)

	// Other status codes pass through unchanged.
	te500 := &TransactionError{StatusCode: http.StatusInternalServerError}
	err = wrapNotFound(te500, "image 7")
	c.Check(err, check.Equals, error(te500))
	c.Check(errors.Is(err, ErrNotFound), check.Equals, false)

	plain := errors.New("boom")
	c.Check(wrapNotFound(plain, "image 7"), check.Equals, plain)
	c.Check(wrapNotFound(nil, "image 7"), check.IsNil)
}

func (*errorSuite) TestIsConflict(c *check.C) {
	te := &TransactionError{StatusCode: http.StatusConflict}
	c.Check(isConflict(te), check.Equals, true)
	c.Check(isConflict(fmt.Errorf("linking: %w", te)), check.Equals, true)
	c.Check(isConflict(&TransactionError{StatusCode: http.StatusNotFound}), check.Equals, false)
	c.Check(isConflict(errors.New("boom")), check.Equals, false)
	c.Check(isConflict(nil), check.Equals, false)
}

func (*errorSuite) TestBoundsErrorString(c *check.C) {
	err := BoundsError{Axis: "X", Want: 10, Size: 8}
	c.Check(err.Error(), check.Equals, "region exceeds image bounds on axis X: 10 > 8 (use Pad to zero-fill)")
}
