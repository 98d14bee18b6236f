package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   string
	ctype  string
}

func fakeS3(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, body: string(b), ctype: r.Header.Get("Content-Type")})
		mu.Unlock()
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "", Config{Provider: ProviderAWS}.endpoint())
	assert.Equal(t, "https://s3.eu-west-1.wasabisys.com", Config{Provider: ProviderWasabi, Region: "eu-west-1"}.endpoint())
	assert.Equal(t, "https://s3.wasabisys.com", Config{Provider: ProviderWasabi, Region: "mars-1"}.endpoint())
	assert.Equal(t, "https://minio.local:9000", Config{Endpoint: "minio.local:9000"}.endpoint())
	assert.Equal(t, "http://127.0.0.1:9000", Config{Endpoint: "http://127.0.0.1:9000"}.endpoint())
}

func TestNewS3Archive_RequiresBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3Archive_Put(t *testing.T) {
	srv, requests := fakeS3(t)
	a, err := NewS3Archive(context.Background(), Config{
		Bucket:          "exports",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        srv.URL,
		Prefix:          "/inbox/",
	})
	require.NoError(t, err)

	key, err := a.Put(context.Background(), "messages.xlsx", "application/octet-stream", []byte("xlsx-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "inbox/messages.xlsx", key)

	reqs := requests()
	require.NotEmpty(t, reqs)
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPut, last.method)
	assert.Equal(t, "/exports/inbox/messages.xlsx", last.path)
	assert.Equal(t, "application/octet-stream", last.ctype)
	assert.Contains(t, last.body, "xlsx-bytes")
}

func TestS3Archive_Ping(t *testing.T) {
	srv, _ := fakeS3(t)
	cfg := Config{Region: "us-east-1", AccessKeyID: "key", SecretAccessKey: "secret", Endpoint: srv.URL}

	cfg.Bucket = "exports"
	ok, err := NewS3Archive(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, ok.Ping(context.Background()))

	cfg.Bucket = "missing"
	missing, err := NewS3Archive(context.Background(), cfg)
	require.NoError(t, err)
	assert.Error(t, missing.Ping(context.Background()))
}
