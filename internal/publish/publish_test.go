package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/storage"
)

func testClient(maxRetries int) *Client {
	c := config.NewConfig()
	c.MaxRetries = maxRetries
	c.RetryBackoff = time.Millisecond
	c.PrimaryTimeout = time.Second
	c.BackupTimeout = time.Second
	return NewClient(c, nil)
}

func testFile() File {
	return File{Name: "cat.png", ContentType: "image/png", Data: []byte("png-bytes")}
}

func gateway(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int32)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, calls.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestPublishSendsMultipartWithUserAgent(t *testing.T) {
	srv, calls := gateway(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "imgpub-test/1", r.Header.Get("User-Agent"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "png-bytes", string(body))
		assert.Equal(t, "cat.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))

		_, _ = fmt.Fprint(w, `{"Name":"cat.png","Hash":"QmPrimary","Size":"42"}`)
	})

	res, err := testClient(2).Publish(context.Background(), Settings{
		GatewayURL: srv.URL,
		UserAgent:  "imgpub-test/1",
		MirrorBase: "https://ipfs.io/ipfs/",
	}, testFile())

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, "QmPrimary", res.ContentID)
	assert.Equal(t, "ipfs://QmPrimary", res.NativeURI)
	assert.Equal(t, "https://ipfs.io/ipfs/QmPrimary", res.GatewayURL)
	assert.Equal(t, int64(42), res.ByteSize)
	assert.Equal(t, models.EndpointPrimary, res.Endpoint)
}

func TestPublishFailsOverToBackup(t *testing.T) {
	primary, primaryCalls := gateway(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	backup, backupCalls := gateway(t, func(w http.ResponseWriter, _ *http.Request, call int32) {
		if call == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `{"data":{"cid":"bafyBackup"}}`)
	})

	res, err := testClient(2).Publish(context.Background(), Settings{
		GatewayURL: primary.URL,
		BackupURL:  backup.URL,
		MirrorBase: "https://ipfs.io/ipfs",
	}, testFile())

	require.NoError(t, err)
	assert.Equal(t, int32(2), primaryCalls.Load())
	assert.Equal(t, int32(2), backupCalls.Load())
	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Equal(t, "bafyBackup", res.ContentID)
	assert.Equal(t, models.EndpointBackup, res.Endpoint)
	assert.Equal(t, int64(len("png-bytes")), res.ByteSize, "missing size falls back to the payload length")
}

func TestPublishDoesNotFailOverOnOtherErrors(t *testing.T) {
	primary, primaryCalls := gateway(t, func(w http.ResponseWriter, _ *http.Request, call int32) {
		if call < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `{"cid":"bafyPrimary","size":9}`)
	})
	backup, backupCalls := gateway(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = fmt.Fprint(w, `{"cid":"bafyBackup"}`)
	})

	res, err := testClient(2).Publish(context.Background(), Settings{GatewayURL: primary.URL, BackupURL: backup.URL}, testFile())

	require.NoError(t, err)
	assert.Equal(t, "bafyPrimary", res.ContentID)
	assert.Equal(t, int32(3), primaryCalls.Load())
	assert.Equal(t, int32(0), backupCalls.Load())
}

func TestPublishExhaustsAttempts(t *testing.T) {
	primary, calls := gateway(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := testClient(2).Publish(context.Background(), Settings{GatewayURL: primary.URL}, testFile())

	var perr *PublishError
	require.True(t, errors.As(err, &perr), "expected PublishError, got %v", err)
	assert.Equal(t, 3, perr.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusInternalServerError, gwErr.StatusCode)
}

func TestPublishStopsOnClientError(t *testing.T) {
	primary, calls := gateway(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := testClient(2).Publish(context.Background(), Settings{GatewayURL: primary.URL}, testFile())

	var perr *PublishError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishTimeoutIsAFailedAttempt(t *testing.T) {
	primary, _ := gateway(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := testClient(0)
	client.PrimaryTimeout = 50 * time.Millisecond
	_, err := client.Publish(context.Background(), Settings{GatewayURL: primary.URL}, testFile())

	var perr *PublishError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishWithoutGateway(t *testing.T) {
	_, err := testClient(2).Publish(context.Background(), Settings{}, testFile())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestResolveSettings(t *testing.T) {
	ctx := context.Background()
	fallback := Settings{GatewayURL: "https://fallback.example/upload", UserAgent: "fallback/1", MirrorBase: "https://ipfs.io/ipfs"}

	t.Run("store values win", func(t *testing.T) {
		store := storage.NewStorageMemory()
		require.NoError(t, store.UpsertConfig(ctx, models.ConfigKeyGatewayURL, "https://stored.example/upload"))
		require.NoError(t, store.UpsertConfig(ctx, models.ConfigKeyUserAgent, "stored/2"))

		s, err := ResolveSettings(ctx, store, fallback)
		require.NoError(t, err)
		assert.Equal(t, "https://stored.example/upload", s.GatewayURL)
		assert.Equal(t, "stored/2", s.UserAgent)
		assert.Equal(t, fallback.MirrorBase, s.MirrorBase)
	})

	t.Run("missing keys fall back", func(t *testing.T) {
		s, err := ResolveSettings(ctx, storage.NewStorageMemory(), fallback)
		require.NoError(t, err)
		assert.Equal(t, fallback, s)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := ResolveSettings(ctx, storage.NewStorageMemory(), Settings{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("store not connected", func(t *testing.T) {
		_, err := ResolveSettings(ctx, &storage.StorageDB{}, Settings{})
		require.ErrorIs(t, err, ErrNotConfigured)

		s, err := ResolveSettings(ctx, &storage.StorageDB{}, fallback)
		require.NoError(t, err)
		assert.Equal(t, fallback.GatewayURL, s.GatewayURL)
	})
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCID  string
		wantSize int64
		wantErr  bool
	}{
		{name: "kubo", raw: `{"Name":"a","Hash":"QmA","Size":"123"}`, wantCID: "QmA", wantSize: 123},
		{name: "pinning service", raw: `{"IpfsHash":"QmB","PinSize":77,"Timestamp":"x"}`, wantCID: "QmB", wantSize: 77},
		{name: "lowercase", raw: `{"cid":"bafyC","size":5}`, wantCID: "bafyC", wantSize: 5},
		{name: "nested", raw: `{"ok":true,"value":{"cid":"bafyD","size":8}}`, wantCID: "bafyD", wantSize: 8},
		{name: "dag json link", raw: `{"cid":{"/":"bafyE"}}`, wantCID: "bafyE"},
		{name: "ndjson", raw: "{\"Name\":\"dir\",\"Hash\":\"QmDir\"}\n{\"Name\":\"a\",\"Hash\":\"QmLast\",\"Size\":\"9\"}\n", wantCID: "QmLast", wantSize: 9},
		{name: "pretty printed", raw: "{\n  \"Hash\": \"QmPretty\"\n}\n", wantCID: "QmPretty"},
		{name: "no cid", raw: `{"status":"ok"}`, wantErr: true},
		{name: "not json", raw: `<html>bad gateway</html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cid, size, err := parseResponse([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCID, cid)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}
