// Package uploader drives the bounded-concurrency dedup-then-upload
// pipeline: build the dedup index from existing manifests, then for each
// local file run the nine-step check before ever sealing or sending a
// byte.
package uploader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/photosync/backend/pkg/stealthclient/chunker"
	"github.com/photosync/backend/pkg/stealthclient/dedup"
	"github.com/photosync/backend/pkg/stealthclient/keys"
	"github.com/photosync/backend/pkg/stealthclient/manifest"
)

const (
	// FileConcurrency bounds simultaneous file uploads, per spec §4.I.
	FileConcurrency = 6
	// ChunkConcurrency bounds simultaneous chunk uploads within one file.
	ChunkConcurrency = 8
	// IndexConcurrency bounds simultaneous manifest fetches while building
	// the initial dedup index.
	IndexConcurrency = 10
)

// ServerClient is every network operation the pipeline needs against the
// admission HTTP surface. Implemented by pkg/stealthclient's concrete HTTP
// client; kept as an interface here so the pipeline's concurrency and
// dedup logic can be tested without a live server.
type ServerClient interface {
	ListManifestIDs(ctx context.Context) ([]string, error)
	FetchManifest(ctx context.Context, manifestID string) (manifest.Envelope, error)
	// UploadChunk is idempotent: the server returns stored:true without
	// re-reserving quota if the chunk id already exists, so the pipeline
	// never needs a separate existence check before sending one.
	UploadChunk(ctx context.Context, chunkID string, ciphertext []byte) error
	UploadManifest(ctx context.Context, manifestID string, env manifest.Envelope) error
}

// FileInput is one local file offered to the pipeline.
type FileInput struct {
	Path         string
	Filename     string
	MediaType    string
	OriginalSize int64
	Open         func() (ReadSeekCloser, error)
}

// ReadSeekCloser is the minimal file handle the pipeline needs: one pass
// to compute signatures, a second to stream chunks.
type ReadSeekCloser interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// Result records one file's pipeline outcome for the caller's progress
// reporting.
type Result struct {
	File     FileInput
	Uploaded bool
	Dedup    dedup.Step
	ChunkIDs []string
	Manifest string
	Err      error
}

// Pipeline coordinates dedup index construction and bounded-concurrency
// upload of a batch of files.
type Pipeline struct {
	client              ServerClient
	masterKey           [keys.MasterKeySize]byte
	perceptualThreshold int
}

// NewPipeline builds a Pipeline against client, using masterKey to unwrap
// fetched manifests and seal new ones.
func NewPipeline(client ServerClient, masterKey [keys.MasterKeySize]byte, perceptualThreshold int) *Pipeline {
	return &Pipeline{client: client, masterKey: masterKey, perceptualThreshold: perceptualThreshold}
}

// BuildIndex fetches every existing manifest id, decrypts each one (up to
// IndexConcurrency in flight), and populates a fresh dedup.Index.
func (p *Pipeline) BuildIndex(ctx context.Context) (*dedup.Index, error) {
	ids, err := p.client.ListManifestIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}

	idx := dedup.NewIndex()
	sem := semaphore.NewWeighted(IndexConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, id := range ids {
		id := id
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			env, err := p.client.FetchManifest(gctx, id)
			if err != nil {
				return fmt.Errorf("fetch manifest %s: %w", id, err)
			}
			m, err := manifest.Open(p.masterKey, env)
			if err != nil {
				// A manifest this client cannot decrypt belongs to a
				// different master key (or is corrupt); skip rather than
				// fail the whole index build.
				return nil
			}
			idx.Add(dedup.Entry{
				ManifestID:      id,
				Filename:        m.Filename,
				BaseFilename:    dedup.BaseFilename(m.Filename),
				OriginalSize:    m.OriginalSize,
				ExifCaptureTime: m.ExifCaptureTime,
				ExifMake:        m.ExifMake,
				ExifModel:       m.ExifModel,
				FileHash:        m.FileHash,
				PerceptualHash:  m.PerceptualHash,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Upload runs the dedup check and, on a miss, chunks/seals/uploads each
// file in files, bounded to FileConcurrency in flight. idx is updated
// in-place after each successful upload so later files in the same batch
// see it.
func (p *Pipeline) Upload(ctx context.Context, idx *dedup.Index, files []FileInput, candidateOf func(FileInput) (dedup.Candidate, [keys.FileKeySize]byte, [keys.BaseNonceSize]byte, manifest.Manifest, error)) []Result {
	results := make([]Result, len(files))
	sem := semaphore.NewWeighted(FileConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range files {
		i, f := i, f
		if err := sem.Acquire(gctx, 1); err != nil {
			results[i] = Result{File: f, Err: err}
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = p.uploadOne(gctx, idx, f, candidateOf)
			return nil
		})
	}

	_ = g.Wait() // per-file errors are carried in results, not propagated
	return results
}

func (p *Pipeline) uploadOne(
	ctx context.Context,
	idx *dedup.Index,
	f FileInput,
	candidateOf func(FileInput) (dedup.Candidate, [keys.FileKeySize]byte, [keys.BaseNonceSize]byte, manifest.Manifest, error),
) Result {
	candidate, fileKey, baseNonce, m, err := candidateOf(f)
	if err != nil {
		return Result{File: f, Err: fmt.Errorf("build candidate: %w", err)}
	}

	decision := dedup.Decide(idx, candidate, p.perceptualThreshold)
	if decision.Duplicate {
		return Result{File: f, Uploaded: false, Dedup: decision.Step}
	}

	handle, err := f.Open()
	if err != nil {
		return Result{File: f, Err: fmt.Errorf("open file: %w", err)}
	}
	defer handle.Close()

	chunks, err := chunker.Split(handle, fileKey, baseNonce)
	if err != nil {
		return Result{File: f, Err: fmt.Errorf("split chunks: %w", err)}
	}

	chunkIDs, err := p.uploadChunks(ctx, chunks)
	if err != nil {
		return Result{File: f, Err: err}
	}

	m.ChunkIDs = chunkIDs
	m.ChunkSizes = chunkSizes(chunks)

	env, err := manifest.Seal(p.masterKey, m)
	if err != nil {
		return Result{File: f, Err: fmt.Errorf("seal manifest: %w", err)}
	}

	if err := p.client.UploadManifest(ctx, candidate.ManifestID, env); err != nil {
		return Result{File: f, Err: fmt.Errorf("upload manifest: %w", err)}
	}

	idx.Add(dedup.Entry{
		ManifestID:      candidate.ManifestID,
		Filename:        candidate.Filename,
		BaseFilename:    dedup.BaseFilename(candidate.Filename),
		OriginalSize:    candidate.OriginalSize,
		ExifCaptureTime: candidate.ExifCaptureTime,
		ExifMake:        candidate.ExifMake,
		ExifModel:       candidate.ExifModel,
		FileHash:        candidate.FileHash,
		PerceptualHash:  candidate.PerceptualHash,
	})

	return Result{File: f, Uploaded: true, ChunkIDs: chunkIDs, Manifest: candidate.ManifestID}
}

func (p *Pipeline) uploadChunks(ctx context.Context, chunks []chunker.Chunk) ([]string, error) {
	ids := make([]string, len(chunks))
	sem := semaphore.NewWeighted(ChunkConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, c := range chunks {
		i, c := i, c
		ids[i] = c.ChunkID
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)

			if err := p.client.UploadChunk(gctx, c.ChunkID, c.Ciphertext); err != nil {
				return fmt.Errorf("upload chunk %s: %w", c.ChunkID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func chunkSizes(chunks []chunker.Chunk) []int64 {
	sizes := make([]int64, len(chunks))
	for i, c := range chunks {
		sizes[i] = int64(len(c.Plaintext))
	}
	return sizes
}
