package beaconsdk

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/imroc/req/v3"
)

const (
	uploadInitURL     = "/api/files/upload/init"
	uploadPartURL     = "/api/files/upload/part"
	uploadCompleteURL = "/api/files/upload/complete"
	uploadAbortURL    = "/api/files/upload/%s"
	fileDownloadURL   = "/api/files/%s/download"
	fileURL           = "/api/files/%s"
)

type FilesAPI struct {
	client *req.Client
}

func newFilesAPI(client *req.Client) *FilesAPI {
	return &FilesAPI{
		client: client,
	}
}

// InitUpload opens an upload session. With OnDuplicate == "ask" the server
// answers with a duplicate-conflict payload instead of a session when a
// same-path file already exists; the result is a tagged union and callers
// must check IsDuplicate before touching the session.
func (f *FilesAPI) InitUpload(ctx context.Context, params *InitUploadParams) (*InitUploadResult, error) {
	onDuplicate := params.OnDuplicate
	if onDuplicate == "" {
		onDuplicate = OnDuplicateAsk
	}

	request := f.client.R().
		SetContext(ctx).
		SetQueryParam("library_id", params.LibraryID).
		SetQueryParam("filename", params.Filename).
		SetQueryParam("content_type", params.ContentType).
		SetQueryParam("size_bytes", strconv.FormatInt(params.SizeBytes, 10)).
		SetQueryParam("on_duplicate", string(onDuplicate))

	if params.DirectoryID != "" {
		request.SetQueryParam("directory_id", params.DirectoryID)
	}

	resp, err := request.Post(uploadInitURL)
	if err := handleAPIError(resp, err, "upload init"); err != nil {
		return nil, err
	}

	// the response body is a union of two shapes; sniff the discriminant
	// before committing to either
	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("upload init: read response: %w", err)
	}

	var probe struct {
		Conflict bool `json:"conflict"`
	}
	if err := jsonUnmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("upload init: decode response: %w", err)
	}

	if probe.Conflict {
		var dup DuplicateConflict
		if err := jsonUnmarshal(body, &dup); err != nil {
			return nil, fmt.Errorf("upload init: decode conflict: %w", err)
		}
		return &InitUploadResult{Duplicate: &dup}, nil
	}

	var session UploadSession
	if err := jsonUnmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("upload init: decode session: %w", err)
	}
	return &InitUploadResult{Session: &session}, nil
}

// UploadPart uploads a single part. Parts are 1-based and strictly
// sequential; retrying is the caller's responsibility at whole-file
// granularity, so the per-request retry is disabled here.
func (f *FilesAPI) UploadPart(ctx context.Context, uploadID string, partNumber int, part io.Reader) (apiResp *UploadPartResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetQueryParam("upload_id", uploadID).
		SetQueryParam("part_number", strconv.Itoa(partNumber)).
		SetFileReader("file", fmt.Sprintf("part-%d", partNumber), part).
		SetSuccessResult(&apiResp).
		Post(uploadPartURL)

	if err := handleAPIError(resp, err, "upload part"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// CompleteUpload assembles the uploaded parts into the final object. The
// server verifies the parts are contiguous and, when a checksum is
// supplied, integrity-checks the assembled object.
func (f *FilesAPI) CompleteUpload(ctx context.Context, params *CompleteUploadParams) (apiResp *UploadCompleteResponse, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(uploadCompleteURL)

	if err := handleAPIError(resp, err, "upload complete"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// AbortUpload discards an in-flight upload session so the server can free
// any parts already stored.
func (f *FilesAPI) AbortUpload(ctx context.Context, uploadID string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf(uploadAbortURL, uploadID))

	return handleAPIError(resp, err, "upload abort")
}

// Download streams the whole file to destPath. The body is written to a
// sibling temp file first and renamed into place so a failed download never
// clobbers an existing local file.
func (f *FilesAPI) Download(ctx context.Context, fileID string, destPath string, callback DownloadCallback) error {
	if err := utils.EnsureParent(destPath); err != nil {
		return fmt.Errorf("sdk: download %q: %w", fileID, err)
	}

	tmpPath := destPath + ".beacon-part"

	resp, err := f.client.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetRetryCount(0).
		SetOutputFile(tmpPath).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			if info.Response.Response != nil && callback != nil {
				callback(info.DownloadedSize, info.Response.ContentLength)
			}
		}, time.Second).
		Get(fmt.Sprintf(fileDownloadURL, fileID))

	if err := handleAPIError(resp, err, "file download"); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sdk: download %q: %w", fileID, err)
	}

	return nil
}

// Get fetches file metadata.
func (f *FilesAPI) Get(ctx context.Context, fileID string) (apiResp *FileMetadata, err error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(fmt.Sprintf(fileURL, fileID))

	if err := handleAPIError(resp, err, "file get"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// Delete removes the remote file (server-side soft delete).
func (f *FilesAPI) Delete(ctx context.Context, fileID string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf(fileURL, fileID))

	return handleAPIError(resp, err, "file delete")
}
