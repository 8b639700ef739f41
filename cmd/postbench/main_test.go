package main

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	url := ts.URL + "/collections"

	assert.Equal(t, 0, run([]string{"--url", url, "--batch-size", "2"}))
	assert.Equal(t, int64(2), hits.Load())

	assert.Equal(t, 1, run([]string{"--url", url, "--batch-size", "5"}), "third request fails")
	assert.Equal(t, int64(3), hits.Load(), "no request after the failure")

	assert.Equal(t, 2, run([]string{"--url", url, "--mode", "parallel"}))
	assert.Equal(t, 2, run([]string{"--unknown"}))
}

func TestRunEnvironmentConfig(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	t.Setenv("POSTBENCH_TARGET_URL", ts.URL+"/collections")
	t.Setenv("POSTBENCH_BATCH_SIZE", strconv.Itoa(4))
	t.Setenv("POSTBENCH_DISPATCH_MODE", "concurrent")
	t.Setenv("POSTBENCH_COMPRESSION_TYPE", "gzip")

	assert.Equal(t, 0, run(nil))
	assert.Equal(t, int64(4), hits.Load())
}
