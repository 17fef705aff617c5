// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package omero

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrNotFound is returned (wrapped) when a requested object
	// does not exist on the server, or is not visible with the
	// current session's permissions.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned (wrapped) when arguments are
	// rejected client side, before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrListArguments is returned when more than one of the
	// mutually exclusive container filters (project, dataset,
	// screen, plate, well) is set on a single query.
	ErrListArguments = errors.New("only one container filter may be given")

	// ErrNoSession is returned by requests that need a login when
	// the client has not logged in.
	ErrNoSession = errors.New("client is not logged in")
)

// TransactionError is an error occurring during an API request. The
// request may have reached the server, in which case StatusCode and
// Status report the server's response, and Errors carries any error
// strings it included in its JSON body (OMERO.web uses both a
// "message" string and an "errors" list, depending on the endpoint).
type TransactionError struct {
	Method     string
	URL        url.URL
	StatusCode int
	Status     string
	Errors     []string
}

func (e TransactionError) Error() string {
	s := fmt.Sprintf("request failed: %s", e.URL.Redacted())
	if e.Status != "" {
		s = s + ": " + e.Status
	}
	if len(e.Errors) > 0 {
		s = s + ": " + strings.Join(e.Errors, "; ")
	}
	return s
}

func newTransactionError(req *http.Request, resp *http.Response, buf []byte) *TransactionError {
	var e TransactionError
	var body struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	if json.Unmarshal(buf, &body) == nil {
		e.Errors = body.Errors
		if body.Message != "" {
			e.Errors = append(e.Errors, body.Message)
		}
	}
	e.Method = req.Method
	e.URL = *req.URL
	if resp != nil {
		e.Status = resp.Status
		e.StatusCode = resp.StatusCode
	}
	return &e
}

// wrapNotFound converts a 404 TransactionError into an ErrNotFound
// wrapper mentioning what was being fetched. Other errors pass
// through unchanged.
func wrapNotFound(err error, what string) error {
	var te *TransactionError
	if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// isConflict reports whether err is a 409 response, which the link
// helpers treat as "already linked".
func isConflict(err error) bool {
	var te *TransactionError
	return errors.As(err, &te) && te.StatusCode == http.StatusConflict
}

// BoundsError is returned by pixel-region operations when the
// requested region extends past the edge of the image and padding
// was not requested.
type BoundsError struct {
	Axis string // "X", "Y", "Z", "C", or "T"
	Want int    // requested start+span on that axis
	Size int    // image size on that axis
}

func (e BoundsError) Error() string {
	return fmt.Sprintf("region exceeds image bounds on axis %s: %d > %d (use Pad to zero-fill)", e.Axis, e.Want, e.Size)
}
