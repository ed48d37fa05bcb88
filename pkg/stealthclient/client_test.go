package stealthclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photosync/backend/pkg/stealthclient/manifest"
)

// fakeAdmissionServer is a minimal in-memory stand-in for the real
// /api/cloud/{chunks,manifests} surface, enough to exercise the wire
// format httpServerClient produces.
type fakeAdmissionServer struct {
	mu        sync.Mutex
	manifests map[string]string // manifestId -> encryptedManifest
	chunks    map[string][]byte
	failNext  int // if > 0, the next N chunk/manifest writes return 503
}

func newFakeAdmissionServer() *fakeAdmissionServer {
	return &fakeAdmissionServer{
		manifests: make(map[string]string),
		chunks:    make(map[string][]byte),
	}
}

func (s *fakeAdmissionServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.failNext > 0 && r.Method == http.MethodPost {
			s.failNext--
			s.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		s.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/cloud/chunks":
			chunkID := r.Header.Get("X-Chunk-Id")
			body, _ := io.ReadAll(r.Body)
			s.mu.Lock()
			s.chunks[chunkID] = body
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"stored":true}`))

		case r.Method == http.MethodPost && r.URL.Path == "/api/cloud/manifests":
			var req manifestUploadRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			s.mu.Lock()
			s.manifests[req.ManifestID] = req.EncryptedManifest
			s.mu.Unlock()
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodGet && r.URL.Path == "/api/cloud/manifests":
			s.mu.Lock()
			ids := make([]string, 0, len(s.manifests))
			for id := range s.manifests {
				ids = append(ids, id)
			}
			s.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"manifestIds": ids,
				"total":       len(ids),
			})

		case r.Method == http.MethodGet:
			id := r.URL.Path[len("/api/cloud/manifests/"):]
			s.mu.Lock()
			encrypted, ok := s.manifests[id]
			s.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"encryptedManifest": encrypted})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New(Config{
		BaseURL:    srv.URL,
		Token:      "test-token",
		DeviceUUID: "11111111-1111-1111-1111-111111111111",
	}, "user@example.com", "correct-horse")
}

func TestUploadChunkSendsRawCiphertextWithHeader(t *testing.T) {
	fake := newFakeAdmissionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := testClient(t, srv)
	hc := &httpServerClient{cfg: c.cfg}

	err := hc.UploadChunk(context.Background(), "deadbeef", []byte("ciphertext-bytes"))
	require.NoError(t, err)

	fake.mu.Lock()
	stored := fake.chunks["deadbeef"]
	fake.mu.Unlock()
	require.Equal(t, []byte("ciphertext-bytes"), stored)
}

func TestUploadManifestThenFetchRoundTripsWireFormat(t *testing.T) {
	fake := newFakeAdmissionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := testClient(t, srv)
	hc := &httpServerClient{cfg: c.cfg}

	m := manifest.Manifest{Version: 1, Filename: "a.jpg", OriginalSize: 10, ChunkIDs: []string{"x"}, ChunkSizes: []int64{10}}
	env, err := manifest.Seal(c.masterKey, m)
	require.NoError(t, err)

	manifestID := manifest.StableID(m.Filename, m.OriginalSize)
	require.NoError(t, hc.UploadManifest(context.Background(), manifestID, env))

	fetched, err := hc.FetchManifest(context.Background(), manifestID)
	require.NoError(t, err)
	require.Equal(t, env, fetched)

	opened, err := manifest.Open(c.masterKey, fetched)
	require.NoError(t, err)
	require.Equal(t, m, opened)
}

func TestListManifestIDsPaginatesUntilExhausted(t *testing.T) {
	fake := newFakeAdmissionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := testClient(t, srv)
	hc := &httpServerClient{cfg: c.cfg}

	for i := 0; i < 3; i++ {
		m := manifest.Manifest{Version: 1, Filename: manifestName(i), OriginalSize: int64(i + 1)}
		env, err := manifest.Seal(c.masterKey, m)
		require.NoError(t, err)
		require.NoError(t, hc.UploadManifest(context.Background(), manifest.StableID(m.Filename, m.OriginalSize), env))
	}

	ids, err := hc.ListManifestIDs(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 3)
}

func TestDoRetriesOn503ThenSucceeds(t *testing.T) {
	fake := newFakeAdmissionServer()
	fake.failNext = 1
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := testClient(t, srv)
	hc := &httpServerClient{cfg: c.cfg}

	err := hc.UploadChunk(context.Background(), "retry-me", []byte("payload"))
	require.NoError(t, err)

	fake.mu.Lock()
	_, stored := fake.chunks["retry-me"]
	fake.mu.Unlock()
	require.True(t, stored)
}

func manifestName(i int) string {
	return "file-" + string(rune('a'+i)) + ".jpg"
}
