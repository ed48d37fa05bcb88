// Package stealthclient implements the StealthCloud end-to-end-encrypted
// upload client: key derivation, chunking, dedup, and the bounded-
// concurrency upload pipeline, wired against the admission HTTP surface.
package stealthclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/photosync/backend/pkg/stealthclient/keys"
	"github.com/photosync/backend/pkg/stealthclient/manifest"
	"github.com/photosync/backend/pkg/stealthclient/uploader"
)

// Config identifies the server and the credentials this client presents on
// every authenticated request.
type Config struct {
	BaseURL    string
	Token      string
	DeviceUUID string
	HTTPClient *http.Client
}

// Client is a StealthCloud client bound to one user's master key and
// device identity.
type Client struct {
	cfg       Config
	masterKey [keys.MasterKeySize]byte
}

// New derives master_key from email/password and builds a Client against
// cfg. cfg.HTTPClient defaults to http.DefaultClient if nil.
func New(cfg Config, email, password string) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg, masterKey: keys.DeriveMasterKey(email, password)}
}

// Pipeline builds an uploader.Pipeline over this client's HTTP transport
// and master key.
func (c *Client) Pipeline(perceptualThreshold int) *uploader.Pipeline {
	return uploader.NewPipeline(&httpServerClient{cfg: c.cfg}, c.masterKey, perceptualThreshold)
}

// httpServerClient implements uploader.ServerClient against the real
// admission HTTP surface (spec §6).
type httpServerClient struct {
	cfg Config
}

// do issues method/path, retrying per uploader.WithRetry's classification
// (timeouts, connection errors, 5xx). newBody is called once per attempt
// so a retried request re-reads its payload from the start.
func (h *httpServerClient) do(ctx context.Context, method, path, contentType string, newBody func() io.Reader, headers map[string]string) (*http.Response, error) {
	return uploader.WithRetry(ctx, func() (*http.Response, error) {
		var body io.Reader
		if newBody != nil {
			body = newBody()
		}

		req, err := http.NewRequestWithContext(ctx, method, h.cfg.BaseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+h.cfg.Token)
		req.Header.Set("X-Device-UUID", h.cfg.DeviceUUID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return h.cfg.HTTPClient.Do(req)
	})
}

type manifestListResponse struct {
	ManifestIDs []string `json:"manifestIds"`
	Total       int      `json:"total"`
}

func (h *httpServerClient) ListManifestIDs(ctx context.Context) ([]string, error) {
	var ids []string
	offset := 0
	const pageSize = 500

	for {
		resp, err := h.do(ctx, http.MethodGet, fmt.Sprintf("/api/cloud/manifests?offset=%d&limit=%d", offset, pageSize), "", nil, nil)
		if err != nil {
			return nil, err
		}
		var page manifestListResponse
		err = decodeJSON(resp, &page)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page.ManifestIDs...)
		offset += len(page.ManifestIDs)
		if len(page.ManifestIDs) == 0 || offset >= page.Total {
			break
		}
	}
	return ids, nil
}

func (h *httpServerClient) FetchManifest(ctx context.Context, manifestID string) (manifest.Envelope, error) {
	resp, err := h.do(ctx, http.MethodGet, "/api/cloud/manifests/"+manifestID, "", nil, nil)
	if err != nil {
		return manifest.Envelope{}, err
	}
	var env struct {
		EncryptedManifest string `json:"encryptedManifest"`
	}
	if err := decodeJSON(resp, &env); err != nil {
		return manifest.Envelope{}, err
	}
	return manifest.EnvelopeFromWire(env.EncryptedManifest)
}

func (h *httpServerClient) UploadChunk(ctx context.Context, chunkID string, ciphertext []byte) error {
	resp, err := h.do(ctx, http.MethodPost, "/api/cloud/chunks", "application/octet-stream",
		func() io.Reader { return bytes.NewReader(ciphertext) },
		map[string]string{"X-Chunk-Id": chunkID},
	)
	if err != nil {
		return err
	}
	return drainAndCheck(resp)
}

type manifestUploadRequest struct {
	ManifestID        string `json:"manifestId"`
	EncryptedManifest string `json:"encryptedManifest"`
}

func (h *httpServerClient) UploadManifest(ctx context.Context, manifestID string, env manifest.Envelope) error {
	wire, err := env.ToWire()
	if err != nil {
		return err
	}
	body, err := json.Marshal(manifestUploadRequest{ManifestID: manifestID, EncryptedManifest: wire})
	if err != nil {
		return err
	}
	resp, err := h.do(ctx, http.MethodPost, "/api/cloud/manifests", "application/json",
		func() io.Reader { return bytes.NewReader(body) }, nil,
	)
	if err != nil {
		return err
	}
	return drainAndCheck(resp)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("stealthclient: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func drainAndCheck(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stealthclient: unexpected status %d: %s", resp.StatusCode, data)
	}
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
