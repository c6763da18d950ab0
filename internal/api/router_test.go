// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/plexport/plexport/internal/auth"
	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/models"
	"github.com/plexport/plexport/internal/plex"
	"github.com/plexport/plexport/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// mockPlex fakes the whole provider surface: the identity endpoints the
// auth flow needs and the catalog endpoints the handlers need.
type mockPlex struct {
	mu         sync.Mutex
	authorized bool
	noServers  bool

	lastTypeFilter string
	lastQuery      string
}

func (m *mockPlex) authorize() {
	m.mu.Lock()
	m.authorized = true
	m.mu.Unlock()
}

func (m *mockPlex) typeFilter() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTypeFilter
}

func (m *mockPlex) query() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *mockPlex) RequestPIN(ctx context.Context) (*models.AuthPin, error) {
	return &models.AuthPin{ID: 12345, Code: "ABCD"}, nil
}

func (m *mockPlex) CheckPIN(ctx context.Context, pinID int) (*models.AuthPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin := &models.AuthPin{ID: pinID, Code: "ABCD"}
	if m.authorized {
		pin.AuthToken = "plex-token-1"
	}
	return pin, nil
}

func (m *mockPlex) GetUser(ctx context.Context, authToken string) (*models.Account, error) {
	if authToken != "plex-token-1" {
		return nil, plex.ErrInvalidToken
	}
	return &models.Account{ID: "42", Username: "alice", Email: "alice@example.com"}, nil
}

func (m *mockPlex) GetServers(ctx context.Context, authToken string) []models.ServerDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noServers {
		return nil
	}
	return []models.ServerDescriptor{{
		Name:        "Home Server",
		Host:        "https://home.example.com:32400",
		Port:        32400,
		AccessToken: "server-token",
	}}
}

func (m *mockPlex) BuildAuthURL(code string) string {
	return "https://app.plex.tv/auth#?code=" + code
}

func (m *mockPlex) GetLibraries(ctx context.Context, serverURL, authToken string) ([]models.LibrarySection, error) {
	return []models.LibrarySection{{Key: "1", Type: "movie", Title: "Movies"}}, nil
}

func (m *mockPlex) GetLibraryContent(ctx context.Context, serverURL, authToken, sectionKey, typeFilter string) (*plex.LibraryContent, error) {
	m.mu.Lock()
	m.lastTypeFilter = typeFilter
	m.mu.Unlock()
	return &plex.LibraryContent{
		Items: []models.MediaItem{{RatingKey: "101", Title: "Inception", Year: 2010}},
		Total: 1,
	}, nil
}

func (m *mockPlex) SearchLibrary(ctx context.Context, serverURL, authToken, sectionKey, query string) ([]models.MediaItem, error) {
	m.mu.Lock()
	m.lastQuery = query
	m.mu.Unlock()
	return []models.MediaItem{{RatingKey: "101", Title: "Inception"}}, nil
}

func (m *mockPlex) GetCollections(ctx context.Context, serverURL, authToken, sectionKey string) ([]models.Collection, error) {
	return []models.Collection{{RatingKey: "301", Title: "Favorites"}}, nil
}

func (m *mockPlex) GetPlaylists(ctx context.Context, serverURL, authToken string) ([]models.Collection, error) {
	return []models.Collection{{RatingKey: "401", Title: "Road Trip"}}, nil
}

func (m *mockPlex) GetCollectionItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error) {
	return []models.MediaItem{{RatingKey: "101", Title: "Inception"}}, nil
}

func (m *mockPlex) GetPlaylistItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error) {
	return []models.MediaItem{{RatingKey: "102", Title: "Heat"}}, nil
}

func newTestServer(t *testing.T, mock *mockPlex) (*httptest.Server, *session.Codec) {
	t.Helper()
	cfg := &config.Config{
		Session:   config.SessionConfig{Secret: testSecret, TTL: 7 * 24 * time.Hour},
		RateLimit: config.RateLimitConfig{Disabled: true},
	}
	codec, err := session.NewCodec(&cfg.Session)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	flow := auth.NewFlow(mock, codec)
	gate := auth.NewGate(codec)
	handler := NewHandler(flow, gate, mock, cfg)
	server := httptest.NewServer(NewRouter(handler, cfg).Setup())
	t.Cleanup(server.Close)
	return server, codec
}

func mintSessionCookie(t *testing.T, codec *session.Codec) *http.Cookie {
	t.Helper()
	token, err := codec.Encode(session.IdentityClaims{AuthToken: "plex-token-1", UserID: "42", Username: "alice"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: token}
}

func doJSONRequest(t *testing.T, method, url string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

func sessionCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestAuthFlowEndToEnd(t *testing.T) {
	mock := &mockPlex{}
	server, _ := newTestServer(t, mock)

	// 1. Request a PIN.
	resp := doJSONRequest(t, http.MethodPost, server.URL+"/auth/pin", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /auth/pin status = %d", resp.StatusCode)
	}
	pin := decodeBody(t, resp)
	authURL, _ := pin["authUrl"].(string)
	if pin["code"] != "ABCD" || !strings.Contains(authURL, "code=ABCD") {
		t.Fatalf("pin response = %v", pin)
	}

	// 2. Check before authorization: pending, no cookie, any number of times.
	for i := 0; i < 3; i++ {
		resp = doJSONRequest(t, http.MethodPost, server.URL+"/auth/check", map[string]int{"pinId": 12345}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST /auth/check status = %d", resp.StatusCode)
		}
		if c := sessionCookieFrom(resp); c != nil {
			t.Fatal("pending check set a session cookie")
		}
		body := decodeBody(t, resp)
		if body["authorized"] != false {
			t.Fatalf("pending check body = %v", body)
		}
	}

	// 3. User authorizes the PIN on plex.tv.
	mock.authorize()

	// 4. Check again: authorized, user summary, session cookie set.
	resp = doJSONRequest(t, http.MethodPost, server.URL+"/auth/check", map[string]int{"pinId": 12345}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /auth/check status = %d", resp.StatusCode)
	}
	cookie := sessionCookieFrom(resp)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("authorized check did not set the session cookie")
	}
	body := decodeBody(t, resp)
	if body["authorized"] != true {
		t.Fatalf("authorized check body = %v", body)
	}
	user, _ := body["user"].(map[string]interface{})
	if user == nil || user["username"] != "alice" {
		t.Fatalf("user = %v", user)
	}

	// 5. Session endpoint with the cookie.
	resp = doJSONRequest(t, http.MethodGet, server.URL+"/auth/session", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /auth/session status = %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["authenticated"] != true {
		t.Fatalf("session body = %v", body)
	}
	srv, _ := body["server"].(map[string]interface{})
	if srv == nil || srv["name"] != "Home Server" {
		t.Fatalf("server = %v", srv)
	}

	// 6. Without the cookie: 401.
	resp = doJSONRequest(t, http.MethodGet, server.URL+"/auth/session", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GET /auth/session without cookie status = %d, want 401", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["authenticated"] != false {
		t.Fatalf("unauthenticated session body = %v", body)
	}
}

func TestCheckPIN_MissingPinID(t *testing.T) {
	server, _ := newTestServer(t, &mockPlex{})

	resp := doJSONRequest(t, http.MethodPost, server.URL+"/auth/check", map[string]string{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "pinId is required" {
		t.Errorf("body = %v", body)
	}
}

func TestLogout(t *testing.T) {
	server, codec := newTestServer(t, &mockPlex{})
	cookie := mintSessionCookie(t, codec)

	resp := doJSONRequest(t, http.MethodPost, server.URL+"/auth/logout", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	cleared := sessionCookieFrom(resp)
	if cleared == nil {
		t.Fatal("logout did not touch the session cookie")
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("logout cookie = %+v, want cleared", cleared)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	server, _ := newTestServer(t, &mockPlex{})

	for _, path := range []string{"/libraries", "/collections", "/media"} {
		resp := doJSONRequest(t, http.MethodGet, server.URL+path, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without cookie status = %d, want 401", path, resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] != "Unauthorized" {
			t.Errorf("GET %s body = %v", path, body)
		}
	}
}

func TestLibraries(t *testing.T) {
	server, codec := newTestServer(t, &mockPlex{})
	cookie := mintSessionCookie(t, codec)

	resp := doJSONRequest(t, http.MethodGet, server.URL+"/libraries", nil, cookie)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	libraries, _ := body["libraries"].([]interface{})
	if len(libraries) != 1 {
		t.Fatalf("libraries = %v", body)
	}
}

func TestNoServerAvailable(t *testing.T) {
	server, codec := newTestServer(t, &mockPlex{noServers: true})
	cookie := mintSessionCookie(t, codec)

	for _, path := range []string{"/libraries", "/collections?sectionKey=1", "/media?sectionKey=1"} {
		resp := doJSONRequest(t, http.MethodGet, server.URL+path, nil, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, resp.StatusCode)
			resp.Body.Close()
			continue
		}
		body := decodeBody(t, resp)
		if body["error"] != "No Plex server available" {
			t.Errorf("GET %s body = %v", path, body)
		}
	}
}

func TestMedia(t *testing.T) {
	mock := &mockPlex{}
	server, codec := newTestServer(t, mock)
	cookie := mintSessionCookie(t, codec)

	t.Run("section listing", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/media?sectionKey=1", nil, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["total"] != float64(1) {
			t.Errorf("total = %v", body["total"])
		}
	})

	t.Run("view modes pick the item type", func(t *testing.T) {
		doJSONRequest(t, http.MethodGet, server.URL+"/media?sectionKey=2&viewMode=artists", nil, cookie).Body.Close()
		if got := mock.typeFilter(); got != "8" {
			t.Errorf("artists type filter = %q, want 8", got)
		}
		doJSONRequest(t, http.MethodGet, server.URL+"/media?sectionKey=2&viewMode=albums", nil, cookie).Body.Close()
		if got := mock.typeFilter(); got != "9" {
			t.Errorf("albums type filter = %q, want 9", got)
		}
	})

	t.Run("query switches to search", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/media?sectionKey=1&query=incep", nil, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp.Body.Close()
		if got := mock.query(); got != "incep" {
			t.Errorf("search query = %q, want incep", got)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/media", nil, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("collection and playlist sources", func(t *testing.T) {
		for _, path := range []string{
			"/media?collectionKey=/library/collections/301/children",
			"/media?playlistKey=/playlists/401",
		} {
			resp := doJSONRequest(t, http.MethodGet, server.URL+path, nil, cookie)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s status = %d", path, resp.StatusCode)
			}
			resp.Body.Close()
		}
	})
}

func TestCollections(t *testing.T) {
	server, codec := newTestServer(t, &mockPlex{})
	cookie := mintSessionCookie(t, codec)

	t.Run("section collections", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/collections?sectionKey=1", nil, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		items, _ := body["items"].([]interface{})
		if len(items) != 1 {
			t.Fatalf("items = %v", body)
		}
	})

	t.Run("playlists need no section", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/collections?type=playlists", nil, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("missing sectionKey", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodGet, server.URL+"/collections", nil, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestExport(t *testing.T) {
	server, codec := newTestServer(t, &mockPlex{})
	cookie := mintSessionCookie(t, codec)

	items := []models.MediaItem{{
		RatingKey: "101",
		Title:     "Inception",
		Year:      2010,
		Duration:  8880000,
		Genre:     []models.Tag{{Tag: "Sci-Fi"}, {Tag: "Action"}},
	}}

	t.Run("csv download", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodPost, server.URL+"/export", map[string]interface{}{
			"items": items, "libraryType": "movie", "format": "csv",
		}, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("Content-Type = %q", ct)
		}
		cd := resp.Header.Get("Content-Disposition")
		if !strings.HasPrefix(cd, "attachment; filename=") || !strings.Contains(cd, "plex-export-") {
			t.Errorf("Content-Disposition = %q", cd)
		}

		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		if !strings.Contains(buf.String(), "Inception") || !strings.Contains(buf.String(), "148") {
			t.Errorf("csv body = %q", buf.String())
		}
	})

	t.Run("json download", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodPost, server.URL+"/export", map[string]interface{}{
			"items": items, "libraryType": "movie", "format": "json",
		}, cookie)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q", ct)
		}
		var decoded []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("body is not a JSON array: %v", err)
		}
		if len(decoded) != 1 || decoded[0]["duration"] != float64(148) {
			t.Errorf("decoded = %v", decoded)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodPost, server.URL+"/export", map[string]interface{}{
			"items": items, "libraryType": "movie", "format": "xml",
		}, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("empty items", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodPost, server.URL+"/export", map[string]interface{}{
			"items": []models.MediaItem{}, "libraryType": "movie", "format": "csv",
		}, cookie)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("requires session", func(t *testing.T) {
		resp := doJSONRequest(t, http.MethodPost, server.URL+"/export", map[string]interface{}{
			"items": items, "libraryType": "movie", "format": "csv",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, &mockPlex{})

	resp := doJSONRequest(t, http.MethodGet, server.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
