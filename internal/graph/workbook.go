package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// sessionHeader carries the workbook session token on every in-session call.
const sessionHeader = "Workbook-Session-Id"

type createSessionRequest struct {
	PersistChanges bool `json:"persistChanges"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

type worksheetsResponse struct {
	Value []struct {
		Name string `json:"name"`
	} `json:"value"`
}

type usedRangeResponse struct {
	RowCount    int `json:"rowCount"`
	ColumnCount int `json:"columnCount"`
}

type rangeUpdateRequest struct {
	Values [][]any `json:"values"`
}

// CreateWorkbookSession opens a persistent workbook session for the given
// file and returns the session token. Sessions allow edits while the file is
// held open elsewhere and must be closed by the caller.
func (c *Client) CreateWorkbookSession(ctx context.Context, driveID, fileID string) (string, error) {
	c.logger.Info("creating workbook session",
		slog.String("drive_id", driveID),
		slog.String("file_id", fileID),
	)

	path := fmt.Sprintf("/drives/%s/items/%s/workbook/createSession", driveID, fileID)

	body, err := json.Marshal(createSessionRequest{PersistChanges: true})
	if err != nil {
		return "", fmt.Errorf("graph: marshaling session request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var csr createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&csr); err != nil {
		return "", fmt.Errorf("graph: decoding session response: %w", err)
	}

	if csr.ID == "" {
		return "", fmt.Errorf("graph: session response missing id")
	}

	c.logger.Info("workbook session created")

	return csr.ID, nil
}

// CloseWorkbookSession releases a workbook session. Callers invoke this from
// a defer; a failure here only delays server-side expiry, so errors are
// returned for logging but carry no further consequence.
func (c *Client) CloseWorkbookSession(ctx context.Context, driveID, fileID, sessionID string) error {
	c.logger.Info("closing workbook session",
		slog.String("drive_id", driveID),
		slog.String("file_id", fileID),
	)

	path := fmt.Sprintf("/drives/%s/items/%s/workbook/closeSession", driveID, fileID)

	resp, err := c.DoWithHeaders(ctx, http.MethodPost, path, nil, http.Header{
		sessionHeader: {sessionID},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 204 No Content — drain to reuse the connection.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("graph: draining close-session response: %w", copyErr)
	}

	return nil
}

// Worksheets lists the workbook's worksheet names in workbook order.
func (c *Client) Worksheets(ctx context.Context, driveID, fileID, sessionID string) ([]string, error) {
	path := fmt.Sprintf("/drives/%s/items/%s/workbook/worksheets", driveID, fileID)

	resp, err := c.DoWithHeaders(ctx, http.MethodGet, path, nil, http.Header{
		sessionHeader: {sessionID},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wr worksheetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("graph: decoding worksheets response: %w", err)
	}

	names := make([]string, 0, len(wr.Value))
	for _, ws := range wr.Value {
		names = append(names, ws.Name)
	}

	c.logger.Debug("listed worksheets",
		slog.Int("count", len(names)),
	)

	return names, nil
}

// UsedRangeRowCount returns the number of rows in the worksheet's used range
// (valuesOnly, so trailing formatting does not inflate the count). The next
// empty row is rowCount + 1.
func (c *Client) UsedRangeRowCount(
	ctx context.Context, driveID, fileID, worksheet, sessionID string,
) (int, error) {
	path := fmt.Sprintf(
		"/drives/%s/items/%s/workbook/worksheets('%s')/usedRange(valuesOnly=true)",
		driveID, fileID, worksheet,
	)

	resp, err := c.DoWithHeaders(ctx, http.MethodGet, path, nil, http.Header{
		sessionHeader: {sessionID},
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var ur usedRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return 0, fmt.Errorf("graph: decoding used range response: %w", err)
	}

	c.logger.Debug("fetched used range",
		slog.String("worksheet", worksheet),
		slog.Int("row_count", ur.RowCount),
	)

	return ur.RowCount, nil
}

// UpdateRange writes values into the addressed range (e.g. "Sheet1!A7:B7")
// within the session. values must match the range dimensions.
func (c *Client) UpdateRange(
	ctx context.Context, driveID, fileID, worksheet, address, sessionID string, values [][]any,
) error {
	path := fmt.Sprintf(
		"/drives/%s/items/%s/workbook/worksheets('%s')/range(address='%s')",
		driveID, fileID, worksheet, address,
	)

	body, err := json.Marshal(rangeUpdateRequest{Values: values})
	if err != nil {
		return fmt.Errorf("graph: marshaling range update: %w", err)
	}

	resp, err := c.DoWithHeaders(ctx, http.MethodPatch, path, bytes.NewReader(body), http.Header{
		sessionHeader: {sessionID},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("graph: draining range update response: %w", copyErr)
	}

	return nil
}
