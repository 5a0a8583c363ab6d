package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthcheckCLI(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/readyz":
			if ready.Load() {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, healthcheckCLI([]string{"-url", srv.URL}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "successful (ready)")

	ready.Store(false)
	stderr.Reset()
	assert.Equal(t, 1, healthcheckCLI([]string{"-url", srv.URL}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "503")

	assert.Equal(t, 0, healthcheckCLI([]string{"-url", srv.URL, "-mode", "live"}, &stdout, &stderr))
}
