package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pollrelay/pollrelay/cfg"
	"github.com/pollrelay/pollrelay/clock"
	"github.com/pollrelay/pollrelay/poller"
)

func buildServer(t *testing.T) *httptest.Server {
	config := cfg.NewConfig()
	config.Instance = "test"
	config.Upstream_url = "http://pool.example.com:8124"

	p, err := poller.New(clock.System(), config.Upstream_url, time.Second, time.Second, 0, time.Millisecond, time.Second)
	assert.NoError(t, err)

	return httptest.NewServer(Handler(config, p, false))
}

func TestStatusEndpoint(t *testing.T) {
	srv := buildServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status poller.Status
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, int64(0), status.Polls)
}

func TestConfigEndpoint(t *testing.T) {
	srv := buildServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/config")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got cfg.Config
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "test", got.Instance)
}

func TestStatusRejectsPost(t *testing.T) {
	srv := buildServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
