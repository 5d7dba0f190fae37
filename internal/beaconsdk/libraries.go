package beaconsdk

import (
	"context"
	"fmt"

	"github.com/imroc/req/v3"
)

const (
	browseURL    = "/api/libraries/%s/browse"
	librariesURL = "/api/libraries"

	browsePageSize = 500
)

type LibrariesAPI struct {
	client *req.Client
}

func newLibrariesAPI(client *req.Client) *LibrariesAPI {
	return &LibrariesAPI{
		client: client,
	}
}

// List returns the libraries visible to the authenticated user.
func (l *LibrariesAPI) List(ctx context.Context) (apiResp *LibraryListResponse, err error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(librariesURL)

	if err := handleAPIError(resp, err, "library list"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// Browse lists one page of a single directory. The listing is per-directory,
// not recursive; walking subdirectories is the caller's job.
func (l *LibrariesAPI) Browse(ctx context.Context, params *BrowseParams) (apiResp *BrowseResponse, err error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = browsePageSize
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("path", params.Path).
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		SetQueryParam("page_size", fmt.Sprintf("%d", pageSize)).
		SetSuccessResult(&apiResp).
		Get(fmt.Sprintf(browseURL, params.LibraryID))

	if err := handleAPIError(resp, err, "library browse"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// BrowseAll drains pagination for a single directory.
func (l *LibrariesAPI) BrowseAll(ctx context.Context, libraryID, path string) ([]*BrowseItem, error) {
	var items []*BrowseItem

	for page := 1; ; page++ {
		resp, err := l.Browse(ctx, &BrowseParams{
			LibraryID: libraryID,
			Path:      path,
			Page:      page,
		})
		if err != nil {
			return nil, err
		}

		items = append(items, resp.Items...)
		if !resp.HasMore {
			return items, nil
		}
	}
}
