package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/inkforge/boardsync/internal/database"
	"github.com/inkforge/boardsync/internal/persistence"
	"github.com/inkforge/boardsync/internal/presence"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

func newTestSnapshotService(testContext *testing.T) *persistence.Service {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "router-test.db")
	db, err := database.OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("open database: %v", err)
	}
	snapshots, err := persistence.NewService(persistence.ServiceConfig{Database: db})
	if err != nil {
		testContext.Fatalf("snapshot service: %v", err)
	}
	return snapshots
}

func newTestHandler(testContext *testing.T) http.Handler {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	handler, err := NewHTTPHandler(Dependencies{
		Hub:       NewBroadcastHub(),
		Snapshots: newTestSnapshotService(testContext),
		Cursors:   NewMemoryCursorStore(nil),
	})
	if err != nil {
		testContext.Fatalf("handler: %v", err)
	}
	return handler
}

func performRequest(handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestHealthEndpoint(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodGet, "/healthz", nil)
	if response.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
}

func TestSnapshotSaveLoadRoundTrip(testContext *testing.T) {
	handler := newTestHandler(testContext)

	payload := snapshotSavePayload{
		SavedBy: "user-1",
		Scene: &scene.Scene{
			Objects: []*scene.CanvasObject{{
				ID:     "obj-1",
				Type:   scene.ObjectTypeRectangle,
				X:      10,
				Y:      20,
				Width:  100,
				Height: 60,
				ZIndex: 1,
			}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		testContext.Fatalf("marshal payload: %v", err)
	}

	saveResponse := performRequest(handler, http.MethodPut, "/canvas/canvas-1/snapshot", body)
	if saveResponse.Code != http.StatusOK {
		testContext.Fatalf("save expected 200, got %d: %s", saveResponse.Code, saveResponse.Body.String())
	}

	loadResponse := performRequest(handler, http.MethodGet, "/canvas/canvas-1/snapshot", nil)
	if loadResponse.Code != http.StatusOK {
		testContext.Fatalf("load expected 200, got %d: %s", loadResponse.Code, loadResponse.Body.String())
	}
	var loaded scene.Scene
	if err := json.Unmarshal(loadResponse.Body.Bytes(), &loaded); err != nil {
		testContext.Fatalf("decode snapshot: %v", err)
	}
	if len(loaded.Objects) != 1 || loaded.Objects[0].ID != "obj-1" {
		testContext.Fatalf("unexpected snapshot contents: %+v", loaded)
	}
}

func TestSnapshotLoadMissingCanvas(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodGet, "/canvas/canvas-empty/snapshot", nil)
	if response.Code != http.StatusNotFound {
		testContext.Fatalf("expected 404, got %d: %s", response.Code, response.Body.String())
	}
	if !strings.Contains(response.Body.String(), "snapshot_not_found") {
		testContext.Fatalf("unexpected body: %s", response.Body.String())
	}
}

func TestSnapshotSaveRejectsMalformedBody(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodPut, "/canvas/canvas-1/snapshot", []byte("{not json"))
	if response.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400, got %d: %s", response.Code, response.Body.String())
	}
}

func TestSnapshotSaveRejectsMissingScene(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodPut, "/canvas/canvas-1/snapshot", []byte(`{"savedBy":"user-1"}`))
	if response.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400, got %d: %s", response.Code, response.Body.String())
	}
}

func TestCanvasIDValidation(testContext *testing.T) {
	handler := newTestHandler(testContext)
	oversized := strings.Repeat("x", 400)
	response := performRequest(handler, http.MethodGet, "/canvas/"+oversized+"/snapshot", nil)
	if response.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400, got %d: %s", response.Code, response.Body.String())
	}
	if !strings.Contains(response.Body.String(), "invalid_canvas_id") {
		testContext.Fatalf("unexpected body: %s", response.Body.String())
	}
}

func TestCursorSetAndList(testContext *testing.T) {
	handler := newTestHandler(testContext)

	cursor := presence.Cursor{X: 42, Y: 17, Name: "Ada", Color: "#ff0000", Timestamp: time.Now().UTC()}
	body, err := json.Marshal(cursor)
	if err != nil {
		testContext.Fatalf("marshal cursor: %v", err)
	}
	setResponse := performRequest(handler, http.MethodPut, "/canvas/canvas-1/cursors/user-1", body)
	if setResponse.Code != http.StatusOK {
		testContext.Fatalf("set expected 200, got %d: %s", setResponse.Code, setResponse.Body.String())
	}

	listResponse := performRequest(handler, http.MethodGet, "/canvas/canvas-1/cursors", nil)
	if listResponse.Code != http.StatusOK {
		testContext.Fatalf("list expected 200, got %d: %s", listResponse.Code, listResponse.Body.String())
	}
	var cursors map[string]presence.Cursor
	if err := json.Unmarshal(listResponse.Body.Bytes(), &cursors); err != nil {
		testContext.Fatalf("decode cursors: %v", err)
	}
	listed, ok := cursors["user-1"]
	if !ok {
		testContext.Fatalf("expected cursor for user-1, got %v", cursors)
	}
	if listed.X != 42 || listed.Y != 17 {
		testContext.Fatalf("unexpected cursor: %+v", listed)
	}
}

func TestCursorDeleteRemovesFromListing(testContext *testing.T) {
	handler := newTestHandler(testContext)

	cursor := presence.Cursor{X: 1, Y: 2, Timestamp: time.Now().UTC()}
	body, _ := json.Marshal(cursor)
	performRequest(handler, http.MethodPut, "/canvas/canvas-1/cursors/user-1", body)

	deleteResponse := performRequest(handler, http.MethodDelete, "/canvas/canvas-1/cursors/user-1", nil)
	if deleteResponse.Code != http.StatusOK {
		testContext.Fatalf("delete expected 200, got %d: %s", deleteResponse.Code, deleteResponse.Body.String())
	}

	listResponse := performRequest(handler, http.MethodGet, "/canvas/canvas-1/cursors", nil)
	var cursors map[string]presence.Cursor
	if err := json.Unmarshal(listResponse.Body.Bytes(), &cursors); err != nil {
		testContext.Fatalf("decode cursors: %v", err)
	}
	if len(cursors) != 0 {
		testContext.Fatalf("expected empty listing, got %v", cursors)
	}
}

func TestCursorTouchUnknownUserStillOK(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodPost, "/canvas/canvas-1/cursors/user-ghost/touch", nil)
	if response.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
}

func TestExportMissingSnapshot(testContext *testing.T) {
	handler := newTestHandler(testContext)
	response := performRequest(handler, http.MethodGet, "/canvas/canvas-empty/export.pdf", nil)
	if response.Code != http.StatusNotFound {
		testContext.Fatalf("expected 404, got %d: %s", response.Code, response.Body.String())
	}
}

func TestExportReturnsPDF(testContext *testing.T) {
	handler := newTestHandler(testContext)

	payload := snapshotSavePayload{
		SavedBy: "user-1",
		Scene: &scene.Scene{
			Objects: []*scene.CanvasObject{{
				ID:     "obj-1",
				Type:   scene.ObjectTypeRectangle,
				X:      0,
				Y:      0,
				Width:  200,
				Height: 100,
				ZIndex: 1,
			}},
		},
	}
	body, _ := json.Marshal(payload)
	performRequest(handler, http.MethodPut, "/canvas/canvas-1/snapshot", body)

	response := performRequest(handler, http.MethodGet, "/canvas/canvas-1/export.pdf", nil)
	if response.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if contentType := response.Header().Get("Content-Type"); contentType != "application/pdf" {
		testContext.Fatalf("unexpected content type: %s", contentType)
	}
	if !bytes.HasPrefix(response.Body.Bytes(), []byte("%PDF")) {
		testContext.Fatalf("body is not a PDF, starts with %q", response.Body.Bytes()[:8])
	}
}

func TestCanvasStreamReleasesGoroutinesOnDisconnect(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewBroadcastHub()
	handler, err := NewHTTPHandler(Dependencies{
		Hub:       hub,
		Snapshots: newTestSnapshotService(testContext),
		Cursors:   NewMemoryCursorStore(nil),
	})
	if err != nil {
		testContext.Fatalf("handler: %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	streamURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/canvas/canvas-1/ws"
	baseline := runtime.NumGoroutine()
	for i := 0; i < 8; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(streamURL, nil)
		if err != nil {
			testContext.Fatalf("dial %d: %v", i, err)
		}
		if err := conn.Close(); err != nil {
			testContext.Fatalf("close %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for hub.SubscriberCount("canvas-1") > 0 {
		if time.Now().After(deadline) {
			testContext.Fatalf("subscribers still registered: %d", hub.SubscriberCount("canvas-1"))
		}
		time.Sleep(10 * time.Millisecond)
	}
	for runtime.NumGoroutine() > baseline+2 {
		if time.Now().After(deadline) {
			testContext.Fatalf("stream goroutines leaked: baseline=%d now=%d", baseline, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
