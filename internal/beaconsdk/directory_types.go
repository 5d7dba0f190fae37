package beaconsdk

import (
	"time"
)

type Directory struct {
	ID        string    `json:"id"`
	LibraryID string    `json:"library_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DirectoryCreateParams struct {
	LibraryID string
	Name      string
	ParentID  string
}
