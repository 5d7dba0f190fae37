package beaconsdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	directoriesURL = "/api/directories"
)

type DirectoriesAPI struct {
	client *req.Client
}

func newDirectoriesAPI(client *req.Client) *DirectoriesAPI {
	return &DirectoriesAPI{
		client: client,
	}
}

// Create creates a single directory under parentID (root when empty).
// A 409 means the directory already exists; callers that only need the
// directory to exist should treat that as success after a re-browse.
func (d *DirectoriesAPI) Create(ctx context.Context, params *DirectoryCreateParams) (apiResp *Directory, err error) {
	body := map[string]any{
		"name": params.Name,
	}
	if params.ParentID != "" {
		body["parent_id"] = params.ParentID
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("library_id", params.LibraryID).
		SetBody(body).
		SetSuccessResult(&apiResp).
		Post(directoriesURL)

	if err := handleAPIError(resp, err, "directory create"); err != nil {
		return nil, err
	}

	return apiResp, nil
}
