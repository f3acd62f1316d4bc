package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemJSON = `{
	"id": "item-1",
	"name": "quotes.xlsx",
	"webUrl": "https://example.sharepoint.com/quotes.xlsx",
	"parentReference": {"driveId": "B!DRIVE-Upper"}
}`

func TestResolveFileByPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, itemJSON)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	handle, err := c.ResolveFile(context.Background(), "site-1", "/Shared Documents/quotes.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "/sites/site-1/drive/root:/Shared Documents/quotes.xlsx", gotPath)
	assert.Equal(t, "item-1", handle.FileID)
	assert.Equal(t, "b!drive-upper", handle.DriveID, "drive IDs are normalized to lower case")
	assert.Equal(t, "quotes.xlsx", handle.Name)
	assert.Equal(t, "https://example.sharepoint.com/quotes.xlsx", handle.WebURL)
}

func TestResolveFileFallsBackToFolderSearch(t *testing.T) {
	var pathCalls, listCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sites/site-1/drive/root:/Docs/quotes.xlsx":
			pathCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case "/sites/site-1/drive/root:/Docs:/children":
			listCalls.Add(1)
			fmt.Fprintf(w, `{"value":[{"id":"other","name":"notes.txt"},%s]}`, itemJSON)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	handle, err := c.ResolveFile(context.Background(), "site-1", "Docs/quotes.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "item-1", handle.FileID)
	assert.Equal(t, int32(1), pathCalls.Load())
	assert.Equal(t, int32(1), listCalls.Load())
}

func TestResolveFileRootLevelSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sites/site-1/drive/root:/quotes.xlsx":
			w.WriteHeader(http.StatusNotFound)
		case "/sites/site-1/drive/root/children":
			fmt.Fprintf(w, `{"value":[%s]}`, itemJSON)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	handle, err := c.ResolveFile(context.Background(), "site-1", "quotes.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "item-1", handle.FileID)
}

func TestResolveFileNotFoundAnywhere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sites/site-1/drive/root/children" {
			fmt.Fprint(w, `{"value":[{"id":"other","name":"notes.txt"}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ResolveFile(context.Background(), "site-1", "quotes.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, `"quotes.xlsx"`)
}

func TestEncodePathSegments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Docs/quotes.xlsx", "Docs/quotes.xlsx"},
		{"Docs/Q1 #5.xlsx", "Docs/Q1%20%235.xlsx"},
		{"a%b/c?d", "a%25b/c%3Fd"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, encodePathSegments(tt.in), tt.in)
	}
}

func TestDownloadContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/site-1/drive/items/item-1/content", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("workbook bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	data, err := c.DownloadContent(context.Background(), "site-1", "item-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("workbook bytes"), data)
}

func TestUploadContent(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/site-1/drive/items/item-1/content", r.URL.Path)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.UploadContent(context.Background(), "site-1", "item-1", []byte("new bytes")))
	assert.Equal(t, "new bytes", string(gotBody))
}

func TestUploadContentLocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.UploadContent(context.Background(), "site-1", "item-1", []byte("bytes"))
	assert.ErrorIs(t, err, ErrLocked)
}
