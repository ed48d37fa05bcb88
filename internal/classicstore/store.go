// Package classicstore implements the per-device plaintext object store
// (spec §4.E): whole-file upload with hash/filename dedup, list, download,
// and purge.
package classicstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/pathlayout"
)

// ErrPathEscape is re-exported for handler-layer error mapping.
var ErrPathEscape = pathlayout.ErrPathEscape

// Store implements classic-mode upload/list/download/purge against
// uploads/<device_uuid>/<filename>.
type Store struct {
	db        *gorm.DB
	uploadDir string
}

// NewStore builds a Store rooted at uploadDir.
func NewStore(db *gorm.DB, uploadDir string) *Store {
	return &Store{db: db, uploadDir: uploadDir}
}

// DeviceDir returns (and creates) the per-device directory for deviceUUID.
func (s *Store) DeviceDir(deviceUUID string) (string, error) {
	dir, err := pathlayout.SafeJoin(s.uploadDir, pathlayout.SanitizeTenantKey(deviceUUID))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create device directory: %w", err)
	}
	return dir, nil
}

// UploadResult reports the outcome of Ingest.
type UploadResult struct {
	Duplicate bool
	Filename  string
	Size      int64
	MimeType  string
}

// Ingest stores one file read from r under filename for deviceUUID's tenant,
// computing the SHA-256 incrementally, and performs the hash/filename dedup
// check common to both the multipart and raw upload paths (the Open
// Question about unifying those two code paths is resolved this way — see
// DESIGN.md).
func (s *Store) Ingest(userID uint, deviceUUID, filename string, r io.Reader) (*UploadResult, error) {
	dir, err := s.DeviceDir(deviceUUID)
	if err != nil {
		return nil, err
	}

	finalPath, err := pathlayout.SafeJoin(dir, filename)
	if err != nil {
		return nil, err
	}

	tmpPath := finalPath + ".uploading"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanupTmp := true
	defer func() {
		tmpFile.Close()
		if cleanupTmp {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmpFile, hasher), r)
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))

	existing, err := s.findExisting(userID, filename, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existingPath, err := pathlayout.SafeJoin(dir, existing.Filename)
		if err == nil {
			if _, statErr := os.Stat(existingPath); statErr == nil {
				return &UploadResult{Duplicate: true, Filename: existing.Filename, Size: existing.Size, MimeType: existing.MimeType}, nil
			}
		}
		// Row present but file missing on disk: stale, drop it and fall
		// through to a fresh insert.
		s.db.Delete(&dbmodel.File{}, existing.ID)
	}

	mime := mimetype.Detect(nil)
	if f, err := os.Open(tmpPath); err == nil {
		if detected, derr := mimetype.DetectReader(f); derr == nil {
			mime = detected
		}
		f.Close()
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	cleanupTmp = false

	row := dbmodel.File{
		UserID:    userID,
		Filename:  filename,
		FileHash:  hash,
		MimeType:  mime.String(),
		Size:      size,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("index upload: %w", err)
	}

	return &UploadResult{Filename: filename, Size: size, MimeType: mime.String()}, nil
}

// findExisting looks up a row matching filename OR hash for this user.
func (s *Store) findExisting(userID uint, filename, hash string) (*dbmodel.File, error) {
	var row dbmodel.File
	err := s.db.Where("user_id = ? AND (filename = ? OR file_hash = ?)", userID, filename, hash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup existing file: %w", err)
	}
	return &row, nil
}

// Entry is one row in a listing response.
type Entry struct {
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
}

// List returns the tenant's files sorted lexicographically by filename,
// paginated by offset/limit, plus the total count.
func (s *Store) List(deviceUUID string, offset, limit int) ([]Entry, int, error) {
	dir, err := s.DeviceDir(deviceUUID)
	if err != nil {
		return nil, 0, err
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("list device directory: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if name == "" || name[0] == '.' {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Filename: name, Size: info.Size(), ModifiedTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Filename < entries[j].Filename })

	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	return entries[offset:end], total, nil
}

// Download resolves filename to an absolute path inside the tenant
// directory, returning ErrPathEscape if it would escape.
func (s *Store) Download(deviceUUID, filename string) (string, error) {
	dir, err := s.DeviceDir(deviceUUID)
	if err != nil {
		return "", err
	}
	return pathlayout.SafeJoin(dir, filename)
}

// Purge removes the tenant directory and all index rows for userID,
// returning the number of files deleted.
func (s *Store) Purge(userID uint, deviceUUID string) (int, error) {
	dir, err := pathlayout.SafeJoin(s.uploadDir, pathlayout.SanitizeTenantKey(deviceUUID))
	if err != nil {
		return 0, err
	}

	var count int64
	s.db.Model(&dbmodel.File{}).Where("user_id = ?", userID).Count(&count)

	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("remove device directory: %w", err)
	}
	if err := s.db.Where("user_id = ?", userID).Delete(&dbmodel.File{}).Error; err != nil {
		return 0, fmt.Errorf("delete file rows: %w", err)
	}

	return int(count), nil
}

// AbsUploadRoot exposes the root directory of the classic upload tree.
func (s *Store) AbsUploadRoot() string {
	return s.uploadDir
}
