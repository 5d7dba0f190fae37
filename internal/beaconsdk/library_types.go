package beaconsdk

import (
	"time"
)

const (
	ItemTypeDirectory = "directory"
	ItemTypeFile      = "file"
)

// Library is a remote document library (the unit of synchronization).
type Library struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LibraryListResponse struct {
	Items []*Library `json:"items"`
	Total int        `json:"total"`
}

// BrowseItem is a single entry of a directory listing. Directory-only and
// file-only fields are zero for the other type.
type BrowseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // directory | file
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// file-specific
	SizeBytes      int64  `json:"size_bytes,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	ChecksumSHA256 string `json:"checksum_sha256,omitempty"`
	CurrentVersion int    `json:"current_version,omitempty"`

	// directory-specific
	ItemCount int `json:"item_count,omitempty"`
}

func (b *BrowseItem) IsDir() bool {
	return b.Type == ItemTypeDirectory
}

type BrowseParams struct {
	LibraryID string
	Path      string
	Page      int
	PageSize  int
}

type BrowseResponse struct {
	LibraryID string        `json:"library_id"`
	Path      string        `json:"path"`
	Items     []*BrowseItem `json:"items"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	HasMore   bool          `json:"has_more"`
}
