package beaconsdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/beacon-library/beacon-agent/internal/utils"
)

// ErrDuplicateFile signals that the server refused an `ask` upload because
// the target path already exists. The wrapped DuplicateError carries the
// conflict payload the caller must resolve before retrying with a concrete
// policy.
var ErrDuplicateFile = errors.New("sdk: duplicate file")

type DuplicateError struct {
	Conflict *DuplicateConflict
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate file: %s", e.Conflict.Message)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateFile
}

// UploadJob describes one whole-file chunked upload.
type UploadJob struct {
	LibraryID   string
	DirectoryID string
	Filename    string
	FilePath    string
	OnDuplicate OnDuplicate
	Callback    ProgressCallback
}

// Upload drives a full init, sequential parts, complete cycle for a
// single file. Parts go up strictly in order with no parallel fan-out
// and no internal retry. A failed part abandons the session with a
// best-effort abort and surfaces the error to the caller, which retries
// at whole-file granularity.
func (f *FilesAPI) Upload(ctx context.Context, job *UploadJob) (*UploadCompleteResponse, error) {
	if !utils.FileExists(job.FilePath) {
		return nil, ErrFileNotFound
	}

	info, err := os.Stat(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	init, err := f.InitUpload(ctx, &InitUploadParams{
		LibraryID:   job.LibraryID,
		DirectoryID: job.DirectoryID,
		Filename:    job.Filename,
		ContentType: utils.DetectContentType(job.Filename),
		SizeBytes:   info.Size(),
		OnDuplicate: job.OnDuplicate,
	})
	if err != nil {
		return nil, err
	}

	if init.IsDuplicate() {
		return nil, &DuplicateError{Conflict: init.Duplicate}
	}

	session := init.Session
	result, err := f.uploadParts(ctx, job, session, info.Size())
	if err != nil {
		// leave no orphaned multipart session behind; best-effort only,
		// the server also expires stale sessions
		if abortErr := f.AbortUpload(context.WithoutCancel(ctx), session.UploadID); abortErr != nil {
			slog.Debug("upload abort failed", "uploadId", session.UploadID, "error", abortErr)
		}
		return nil, err
	}

	return result, nil
}

func (f *FilesAPI) uploadParts(ctx context.Context, job *UploadJob, session *UploadSession, size int64) (*UploadCompleteResponse, error) {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	checksum := sha256.New()
	parts := make([]*UploadPartResponse, 0, session.TotalChunks)
	var uploaded int64

	for partNumber := 1; partNumber <= session.TotalChunks; partNumber++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		offset := int64(partNumber-1) * session.ChunkSize
		chunkSize := partSizeFor(size, session.ChunkSize, partNumber)
		section := io.NewSectionReader(file, offset, chunkSize)

		// hash while streaming so complete() can ship the whole-file checksum
		part, err := f.UploadPart(ctx, session.UploadID, partNumber, io.TeeReader(section, checksum))
		if err != nil {
			return nil, fmt.Errorf("part %d/%d: %w", partNumber, session.TotalChunks, err)
		}

		parts = append(parts, part)
		uploaded += chunkSize

		if job.Callback != nil {
			job.Callback(&UploadProgress{
				LoadedBytes:  uploaded,
				TotalBytes:   size,
				Percent:      percentOf(uploaded, size),
				CurrentChunk: partNumber,
				TotalChunks:  session.TotalChunks,
			})
		}
	}

	return f.CompleteUpload(ctx, &CompleteUploadParams{
		UploadID:       session.UploadID,
		Parts:          parts,
		ChecksumSHA256: hex.EncodeToString(checksum.Sum(nil)),
	})
}

// partSizeFor returns the byte length of one part. All parts are chunkSize
// long except the final one, which takes the remainder.
func partSizeFor(size, chunkSize int64, partNumber int) int64 {
	offset := int64(partNumber-1) * chunkSize
	if offset >= size {
		return 0
	}

	remaining := size - offset
	if remaining < chunkSize {
		return remaining
	}
	return chunkSize
}

// TotalChunks computes the part count for a file. Zero-byte files still
// occupy a single part so the server has something to assemble.
func TotalChunks(size, chunkSize int64) int {
	if size == 0 {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

func percentOf(loaded, total int64) float64 {
	if total == 0 {
		return 100
	}
	return float64(loaded) / float64(total) * 100
}
