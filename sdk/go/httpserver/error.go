// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body sent with an error status.
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

// Error writes a JSON-formatted error response, like http.Error but
// with a body the client SDK can decode.
func Error(w http.ResponseWriter, error string, code int) {
	Errors(w, []string{error}, code)
}

// Errors writes a JSON-formatted multi-error response.
func Errors(w http.ResponseWriter, errors []string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Errors: errors})
}
