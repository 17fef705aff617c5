// Copyright (C) The omero-go Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"net/http"
	"time"

	"github.com/openmicroscopy/omero-go/sdk/go/ctxlog"
	"github.com/sirupsen/logrus"
)

// LogRequests wraps an http.Handler, logging each request and
// response via the logger attached to the request context (see
// ctxlog.Context), or the given logger if the context has none.
func LogRequests(logger logrus.FieldLogger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(wrapped http.ResponseWriter, req *http.Request) {
		w := &responseRecorder{ResponseWriter: wrapped}
		lgr := logger
		if lgr == nil {
			lgr = ctxlog.FromContext(req.Context())
		}
		lgr = lgr.WithFields(logrus.Fields{
			"RequestID":  req.Header.Get("X-Request-Id"),
			"remoteAddr": req.RemoteAddr,
			"reqMethod":  req.Method,
			"reqPath":    req.URL.Path,
			"reqQuery":   req.URL.RawQuery,
			"reqBytes":   req.ContentLength,
		})
		req = req.WithContext(ctxlog.Context(req.Context(), lgr))
		t0 := time.Now()
		lgr.Debug("request")
		h.ServeHTTP(w, req)
		code := w.code
		if code == 0 {
			code = http.StatusOK
		}
		lgr.WithFields(logrus.Fields{
			"respStatusCode": code,
			"respStatus":     http.StatusText(code),
			"respBytes":      w.bytes,
			"timeTotal":      time.Since(t0).Seconds(),
		}).Info("response")
	})
}

type responseRecorder struct {
	http.ResponseWriter
	code  int
	bytes int64
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.code == 0 {
		rr.code = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(p []byte) (int, error) {
	n, err := rr.ResponseWriter.Write(p)
	rr.bytes += int64(n)
	return n, err
}
