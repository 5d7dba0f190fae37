package beaconsdk

import (
	"time"
)

// OnDuplicate tells the server how to react when the upload target path
// already holds a file.
type OnDuplicate string

const (
	OnDuplicateAsk       OnDuplicate = "ask"
	OnDuplicateOverwrite OnDuplicate = "overwrite"
	OnDuplicateRename    OnDuplicate = "rename"
)

// FileMetadata is the server's file record.
type FileMetadata struct {
	ID             string    `json:"id"`
	LibraryID      string    `json:"library_id"`
	DirectoryID    string    `json:"directory_id,omitempty"`
	Filename       string    `json:"filename"`
	Path           string    `json:"path"`
	SizeBytes      int64     `json:"size_bytes"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
	ContentType    string    `json:"content_type"`
	CurrentVersion int       `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	DownloadURL    string    `json:"download_url,omitempty"`
}

// FileVersion is one immutable version of a file's content.
type FileVersion struct {
	ID             string    `json:"id"`
	FileID         string    `json:"file_id"`
	VersionNumber  int       `json:"version_number"`
	SizeBytes      int64     `json:"size_bytes"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
	CreatedAt      time.Time `json:"created_at"`
}

// ===================================================================================================

type InitUploadParams struct {
	LibraryID   string
	Filename    string
	ContentType string
	SizeBytes   int64
	DirectoryID string
	OnDuplicate OnDuplicate
}

// UploadSession is the handle for an open chunked upload.
type UploadSession struct {
	UploadID    string `json:"upload_id"`
	FileID      string `json:"file_id"`
	ChunkSize   int64  `json:"chunk_size"`
	TotalChunks int    `json:"total_chunks"`
}

// DuplicateConflict is the server's answer to an `ask` upload against an
// existing path.
type DuplicateConflict struct {
	Conflict      bool          `json:"conflict"`
	Message       string        `json:"message"`
	Options       []string      `json:"options"`
	ExistingFile  *FileMetadata `json:"existing_file"`
	SuggestedName string        `json:"suggested_name"`
}

// InitUploadResult is the tagged union of the two init responses. Exactly
// one of Session or Duplicate is set.
type InitUploadResult struct {
	Session   *UploadSession
	Duplicate *DuplicateConflict
}

func (r *InitUploadResult) IsDuplicate() bool {
	return r.Duplicate != nil
}

// ===================================================================================================

type UploadPartResponse struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	SizeBytes  int64  `json:"size_bytes"`
}

type CompleteUploadParams struct {
	UploadID       string                `json:"upload_id"`
	Parts          []*UploadPartResponse `json:"parts"`
	ChecksumSHA256 string                `json:"checksum_sha256,omitempty"`
}

type UploadCompleteResponse struct {
	File    *FileMetadata `json:"file"`
	Version *FileVersion  `json:"version"`
}

// ===================================================================================================

type DownloadCallback func(downloadedBytes int64, totalBytes int64)
