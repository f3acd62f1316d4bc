package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brideal/dealsync/internal/graph"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

// workbookServer fakes the workbook endpoints for one drive item and records
// the range updates it receives.
type workbookServer struct {
	mu sync.Mutex

	rowCount   int
	worksheets []string

	sessionCreates int
	sessionCloses  int
	denyCreate     int // HTTP status to return from createSession, 0 for OK
	failWriteAt    int // 1-based write index to fail with 400, 0 for none

	writeAddresses []string
	writeValues    [][][]any
	writeSessions  []string
}

func (ws *workbookServer) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.mu.Lock()
		defer ws.mu.Unlock()

		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/workbook/createSession"):
			ws.sessionCreates++
			if ws.denyCreate != 0 {
				w.WriteHeader(ws.denyCreate)
				return
			}
			var body struct {
				PersistChanges bool `json:"persistChanges"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.PersistChanges, "session must persist changes")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"sess-1"}`)

		case strings.HasSuffix(path, "/workbook/closeSession"):
			ws.sessionCloses++
			assert.Equal(t, "sess-1", r.Header.Get("Workbook-Session-Id"))
			w.WriteHeader(http.StatusNoContent)

		case strings.HasSuffix(path, "/workbook/worksheets"):
			sheets := make([]map[string]string, 0, len(ws.worksheets))
			for _, name := range ws.worksheets {
				sheets = append(sheets, map[string]string{"name": name})
			}
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"value": sheets}))

		case strings.Contains(path, "/usedRange(valuesOnly=true)"):
			assert.Equal(t, "sess-1", r.Header.Get("Workbook-Session-Id"))
			fmt.Fprintf(w, `{"rowCount":%d,"columnCount":2}`, ws.rowCount)

		case strings.Contains(path, "/range(address="):
			if ws.failWriteAt != 0 && len(ws.writeAddresses)+1 == ws.failWriteAt {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"bad range"}}`)
				return
			}
			start := strings.Index(path, "address='") + len("address='")
			end := strings.LastIndex(path, "')")
			ws.writeAddresses = append(ws.writeAddresses, path[start:end])
			ws.writeSessions = append(ws.writeSessions, r.Header.Get("Workbook-Session-Id"))
			var body struct {
				Values [][]any `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			ws.writeValues = append(ws.writeValues, body.Values)
			fmt.Fprint(w, `{}`)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newSessionFixture(t *testing.T, ws *workbookServer) (*SessionAppend, *graph.FileHandle, func()) {
	t.Helper()

	srv := httptest.NewServer(ws.handler(t))
	client := graph.NewClient(srv.URL, srv.Client(), staticToken("tok"), discardLogger())
	strategy := NewSessionAppend(client, 0, discardLogger())
	handle := &graph.FileHandle{FileID: "item1", DriveID: "drive1", Name: "quotes.xlsx"}

	return strategy, handle, srv.Close
}

func TestSessionAppendWritesRowRanges(t *testing.T) {
	ws := &workbookServer{rowCount: 6, worksheets: []string{"Sheet1"}}
	strategy, handle, done := newSessionFixture(t, ws)
	defer done()

	batch := testBatch(t)
	batch.TargetSheet = "Sheet1"

	require.NoError(t, strategy.Attempt(context.Background(), batch, handle))

	assert.Equal(t, []string{"Sheet1!A7:B7", "Sheet1!A8:B8"}, ws.writeAddresses)
	require.Len(t, ws.writeValues, 2)
	assert.Equal(t, [][]any{{"Q-100", 125000.5}, {"Q-101", float64(9800)}},
		[][]any{ws.writeValues[0][0], ws.writeValues[1][0]})
	assert.Equal(t, []string{"sess-1", "sess-1"}, ws.writeSessions)
	assert.Equal(t, 1, ws.sessionCreates)
	assert.Equal(t, 1, ws.sessionCloses)
}

func TestSessionAppendDefaultsToFirstWorksheet(t *testing.T) {
	ws := &workbookServer{rowCount: 0, worksheets: []string{"Quotes 2026", "Archive"}}
	strategy, handle, done := newSessionFixture(t, ws)
	defer done()

	require.NoError(t, strategy.Attempt(context.Background(), testBatch(t), handle))

	require.Len(t, ws.writeAddresses, 2)
	assert.Equal(t, "Quotes 2026!A1:B1", ws.writeAddresses[0])
}

func TestSessionAppendSessionDenied(t *testing.T) {
	ws := &workbookServer{denyCreate: http.StatusLocked}
	strategy, handle, done := newSessionFixture(t, ws)
	defer done()

	err := strategy.Attempt(context.Background(), testBatch(t), handle)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrLocked)
	assert.Empty(t, ws.writeAddresses, "no writes without a session")
	assert.Equal(t, 0, ws.sessionCloses, "nothing to close when the session was denied")
}

func TestSessionAppendRowFailureClosesSession(t *testing.T) {
	ws := &workbookServer{rowCount: 6, worksheets: []string{"Sheet1"}, failWriteAt: 2}
	strategy, handle, done := newSessionFixture(t, ws)
	defer done()

	err := strategy.Attempt(context.Background(), testBatch(t), handle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 of 2")
	assert.ErrorIs(t, err, graph.ErrBadRequest)
	assert.Equal(t, 1, ws.sessionCloses, "session must be closed on failure")
}

func TestSessionAppendRejectsBadHandle(t *testing.T) {
	strategy := NewSessionAppend(graph.NewClient("http://unused", nil, staticToken("tok"), discardLogger()), 0, discardLogger())

	err := strategy.Attempt(context.Background(), testBatch(t), &graph.FileHandle{FileID: "item1"})
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestSessionAppendNameAndOutcome(t *testing.T) {
	strategy := NewSessionAppend(graph.NewClient("http://unused", nil, staticToken("tok"), discardLogger()), 2, discardLogger())

	assert.Equal(t, "session_append", strategy.Name())
	assert.Equal(t, OutcomeAppendedViaSession, strategy.Outcome())
	assert.NotNil(t, strategy.limiter)
}
