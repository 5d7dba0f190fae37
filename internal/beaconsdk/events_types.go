package beaconsdk

const (
	EventFileCreated      = "file.created"
	EventFileUpdated      = "file.updated"
	EventFileDeleted      = "file.deleted"
	EventDirectoryCreated = "directory.created"
	EventDirectoryDeleted = "directory.deleted"
)

// RemoteEvent is one server-sent change notification.
type RemoteEvent struct {
	Type      string
	LibraryID string
	Data      RemoteEventData
}

type RemoteEventData struct {
	FileID      string `json:"file_id,omitempty"`
	DirectoryID string `json:"directory_id,omitempty"`
	Path        string `json:"path,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// IsFileEvent reports whether the event concerns file content the engine
// should reconcile.
func (e *RemoteEvent) IsFileEvent() bool {
	switch e.Type {
	case EventFileCreated, EventFileUpdated, EventFileDeleted:
		return true
	}
	return false
}
