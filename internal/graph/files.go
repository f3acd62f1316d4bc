package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// FileHandle identifies a resolved remote file. Handles are time-sensitive
// (lock and version state changes between syncs), so callers re-resolve on
// every sync attempt instead of caching.
type FileHandle struct {
	FileID  string
	DriveID string
	WebURL  string
	Name    string
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported — callers use FileHandle via toHandle() normalization.
type driveItemResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	WebURL          string     `json:"webUrl"`
	ParentReference *parentRef `json:"parentReference"`
}

type parentRef struct {
	DriveID string `json:"driveId"`
}

type childrenResponse struct {
	Value []driveItemResponse `json:"value"`
}

// toHandle normalizes a driveItem response into a FileHandle.
// Drive IDs are lowercased — the API returns inconsistent casing across
// endpoints.
func (d *driveItemResponse) toHandle() *FileHandle {
	h := &FileHandle{
		FileID: d.ID,
		WebURL: d.WebURL,
		Name:   d.Name,
	}

	if d.ParentReference != nil {
		h.DriveID = strings.ToLower(d.ParentReference.DriveID)
	}

	return h
}

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into API URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// ResolveFile locates a file in a site's default drive by its path relative
// to the drive root. Direct path lookup is tried first; if that fails, the
// parent folder's children are listed and matched by name, which tolerates
// path quirks the direct endpoint rejects.
func (c *Client) ResolveFile(ctx context.Context, siteID, filePath string) (*FileHandle, error) {
	filePath = strings.Trim(filePath, "/")

	c.logger.Info("resolving remote file",
		slog.String("site_id", siteID),
		slog.String("path", filePath),
	)

	handle, err := c.resolveByPath(ctx, siteID, filePath)
	if err == nil {
		return handle, nil
	}

	c.logger.Warn("direct path lookup failed, searching parent folder",
		slog.String("path", filePath),
		slog.String("error", err.Error()),
	)

	return c.resolveBySearch(ctx, siteID, filePath)
}

// resolveByPath performs the direct path-based lookup.
func (c *Client) resolveByPath(ctx context.Context, siteID, filePath string) (*FileHandle, error) {
	path := fmt.Sprintf("/sites/%s/drive/root:/%s", siteID, encodePathSegments(filePath))

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding item response: %w", err)
	}

	handle := dir.toHandle()

	c.logger.Info("resolved file by path",
		slog.String("file_id", handle.FileID),
		slog.String("drive_id", handle.DriveID),
	)

	return handle, nil
}

// resolveBySearch lists the parent folder's children and matches by name.
func (c *Client) resolveBySearch(ctx context.Context, siteID, filePath string) (*FileHandle, error) {
	var listPath, fileName string

	if idx := strings.LastIndex(filePath, "/"); idx < 0 {
		fileName = filePath
		listPath = fmt.Sprintf("/sites/%s/drive/root/children", siteID)
	} else {
		fileName = filePath[idx+1:]
		folder := filePath[:idx]
		listPath = fmt.Sprintf("/sites/%s/drive/root:/%s:/children", siteID, encodePathSegments(folder))
	}

	resp, err := c.Do(ctx, http.MethodGet, listPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var children childrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&children); err != nil {
		return nil, fmt.Errorf("graph: decoding children response: %w", err)
	}

	for i := range children.Value {
		if children.Value[i].Name == fileName {
			handle := children.Value[i].toHandle()

			c.logger.Info("resolved file by folder search",
				slog.String("file_id", handle.FileID),
				slog.String("drive_id", handle.DriveID),
			)

			return handle, nil
		}
	}

	return nil, &APIError{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("file %q not found in folder listing", fileName),
		Err:        ErrNotFound,
	}
}

// DownloadContent fetches a file's raw bytes. The request carries only the
// bearer token — no JSON content type, per the /content endpoint contract.
func (c *Client) DownloadContent(ctx context.Context, siteID, fileID string) ([]byte, error) {
	c.logger.Info("downloading file content",
		slog.String("file_id", fileID),
	)

	path := fmt.Sprintf("/sites/%s/drive/items/%s/content", siteID, fileID)

	resp, err := c.DoRaw(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graph: reading file content: %w", err)
	}

	c.logger.Info("downloaded file content",
		slog.Int("bytes", len(data)),
	)

	return data, nil
}

// UploadContent replaces a file's content with a single PUT.
func (c *Client) UploadContent(ctx context.Context, siteID, fileID string, content []byte) error {
	c.logger.Info("uploading file content",
		slog.String("file_id", fileID),
		slog.Int("bytes", len(content)),
	)

	path := fmt.Sprintf("/sites/%s/drive/items/%s/content", siteID, fileID)

	resp, err := c.DoRaw(ctx, http.MethodPut, path, "application/octet-stream", bytes.NewReader(content))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 200 or 201 — drain so the connection is reusable.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("graph: draining upload response body: %w", copyErr)
	}

	return nil
}
