package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roomies/backend/internal/api/handler"
	"roomies/backend/internal/blocking"
	"roomies/backend/internal/chathub"
	"roomies/backend/internal/config"
	"roomies/backend/internal/localization"
	"roomies/backend/internal/matching"
	"roomies/backend/internal/meeting"
	"roomies/backend/internal/models"
	"roomies/backend/internal/report"
	"roomies/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router *gin.Engine
	auth   *handler.Authenticator
	hub    *chathub.ManagerService
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storage.NewMemory()
	blocks := blocking.NewRegistry(mem, nil)
	hub := chathub.NewManagerService(mem, blocks, nil, config.GatewayConfig{OpTimeout: time.Second})
	svc := matching.NewService(mem, blocks, nil, config.MatchingConfig{CandidateLimit: 20, ScoreWorkers: 2})
	sched := meeting.NewScheduler(mem, nil)
	reports := report.NewService(mem, blocks, svc, nil)
	messages, err := localization.Default()
	require.NoError(t, err)
	auth := handler.NewAuthenticator(config.AuthConfig{JWTSecret: "test-secret", Issuer: "roomies-test", TokenTTL: time.Hour})
	srvCfg := config.ServerConfig{Mode: gin.TestMode, AllowedOrigins: []string{"*"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := handler.NewHandler(handler.Services{
		Hub:      hub,
		Matching: svc,
		Blocks:   blocks,
		Meetings: sched,
		Reports:  reports,
		Messages: messages,
	}, auth, srvCfg)
	return testAPI{router: handler.NewRouter(h, srvCfg), auth: auth, hub: hub}
}

func (a testAPI) token(t *testing.T, identity string) string {
	t.Helper()
	tok, err := a.auth.GenerateToken(identity)
	require.NoError(t, err)
	return tok
}

func (a testAPI) do(t *testing.T, identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, identity))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func profileBody() map[string]any {
	return map[string]any{
		"age":                24,
		"university":         "Uni Wien",
		"location":           "Wien",
		"cleanliness":        4,
		"sleep_schedule":     "early_bird",
		"social_level":       "moderate",
		"personality":        "introvert",
		"interests":          []string{"hiking", "baking"},
		"smoking_preference": "No smoking",
		"pet_tolerance":      "No pets",
		"budget_min":         600,
		"budget_max":         900,
	}
}

// withProfiles stores a complete profile for every identity.
func (a testAPI) withProfiles(t *testing.T, identities ...string) {
	t.Helper()
	for _, id := range identities {
		w := a.do(t, id, http.MethodPut, "/api/profile", profileBody())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestAuth_Required(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/candidates", "/ws"} {
		w := api.do(t, "", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := handler.NewAuthenticator(config.AuthConfig{JWTSecret: "other", Issuer: "roomies-test", TokenTTL: time.Hour})
	forged, err := other.GenerateToken("alice")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfile_PutAndGet(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, "alice", http.MethodPut, "/api/profile", profileBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[models.Profile](t, w)
	assert.Equal(t, "alice", saved.IdentityID)
	assert.True(t, saved.IsActive)

	w = api.do(t, "alice", http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, saved.ID, decode[models.Profile](t, w).ID)

	bad := profileBody()
	bad["cleanliness"] = 11
	w = api.do(t, "alice", http.MethodPut, "/api/profile", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, "nobody", http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.withProfiles(t, "alice", "bob")

	w := api.do(t, "alice", http.MethodGet, "/api/candidates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	candidates := decode[struct {
		Candidates []struct {
			Profile models.Profile `json:"profile"`
			Score   int            `json:"score"`
		} `json:"candidates"`
	}](t, w)
	require.Len(t, candidates.Candidates, 1)
	assert.Equal(t, "bob", candidates.Candidates[0].Profile.IdentityID)
	assert.Equal(t, 100, candidates.Candidates[0].Score)

	w = api.do(t, "alice", http.MethodPost, "/api/pairs/bob/interest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	match := decode[models.MatchRecord](t, w)
	assert.Equal(t, models.MatchPending, match.Status)

	w = api.do(t, "alice", http.MethodPost, "/api/matches/"+match.ID+"/meetings",
		map[string]any{"type": "video_call", "scheduled_at": "2026-11-03T18:00:00Z"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending matches cannot host meetings")

	w = api.do(t, "bob", http.MethodPost, "/api/pairs/alice/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MatchConfirmed, decode[models.MatchRecord](t, w).Status)

	w = api.do(t, "alice", http.MethodPost, "/api/pairs/bob/decline", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, "alice", http.MethodPost, "/api/matches/"+match.ID+"/meetings",
		map[string]any{"type": "external_link", "scheduled_at": "2026-11-03T18:00:00Z"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "external_link needs a link")

	w = api.do(t, "alice", http.MethodPost, "/api/matches/"+match.ID+"/meetings",
		map[string]any{"type": "external_link", "link": "https://meet.example.org/x", "scheduled_at": "2026-11-03T18:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	mt := decode[models.Meeting](t, w)

	w = api.do(t, "bob", http.MethodPost, "/api/meetings/"+mt.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MeetingCompleted, decode[models.Meeting](t, w).Status)

	w = api.do(t, "mallory", http.MethodGet, "/api/matches/"+match.ID+"/meetings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, "alice", http.MethodGet, "/api/candidates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"candidates":[]`, "confirmed pairs leave the listing")
}

func TestBlocks(t *testing.T) {
	api := newTestAPI(t)
	api.withProfiles(t, "alice")

	assert.Equal(t, http.StatusBadRequest, api.do(t, "alice", http.MethodPost, "/api/blocks/alice", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, "alice", http.MethodPost, "/api/blocks/bob", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, "alice", http.MethodPost, "/api/blocks/bob", nil).Code, "repeat block succeeds")

	w := api.do(t, "bob", http.MethodPost, "/api/messages", map[string]any{"recipient_id": "alice", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, http.StatusNoContent, api.do(t, "alice", http.MethodDelete, "/api/blocks/bob", nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, "alice", http.MethodDelete, "/api/blocks/bob", nil).Code)

	w = api.do(t, "bob", http.MethodPost, "/api/messages", map[string]any{"recipient_id": "alice", "content": "hi"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestThreadsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.withProfiles(t, "bob")

	var threadID string
	for i := 0; i < 3; i++ {
		w := api.do(t, "alice", http.MethodPost, "/api/messages",
			map[string]any{"recipient_id": "bob", "context_id": "flat-12", "content": "still available?"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		threadID = decode[models.Message](t, w).ThreadID
	}

	w := api.do(t, "bob", http.MethodGet, "/api/threads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	threads := decode[struct {
		Threads []struct {
			ID     string `json:"id"`
			Unread int    `json:"unread"`
		} `json:"threads"`
	}](t, w)
	require.Len(t, threads.Threads, 1)
	assert.Equal(t, threadID, threads.Threads[0].ID)
	assert.Equal(t, 3, threads.Threads[0].Unread)

	w = api.do(t, "bob", http.MethodGet, "/api/threads/"+threadID+"/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, w).Messages, 2)

	w = api.do(t, "bob", http.MethodPost, "/api/threads/"+threadID+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"marked":3}`, w.Body.String())

	w = api.do(t, "mallory", http.MethodGet, "/api/threads/"+threadID+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, "bob", http.MethodPost, "/api/threads/"+threadID+"/messages", map[string]any{"content": "yes!"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestReports(t *testing.T) {
	api := newTestAPI(t)
	api.withProfiles(t, "mallory", "alice", "bob")
	for _, to := range []string{"alice", "bob"} {
		w := api.do(t, "mallory", http.MethodPost, "/api/messages", map[string]any{"recipient_id": to, "content": "deposit first"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	scam := map[string]any{"type": "profile", "reported_id": "mallory", "category": "scam"}

	w := api.do(t, "alice", http.MethodPost, "/api/reports", map[string]any{"type": "profile", "reported_id": "mallory", "category": "gossip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, "carol", http.MethodPost, "/api/reports", scam)
	assert.Equal(t, http.StatusForbidden, w.Code, "no thread or match with mallory")
	assert.Equal(t, "no_contact", decode[map[string]string](t, w)["code"])

	w = api.do(t, "alice", http.MethodPost, "/api/reports", scam)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "mallory", decode[models.Report](t, w).ReportedID)

	w = api.do(t, "mallory", http.MethodPost, "/api/messages", map[string]any{"recipient_id": "alice", "content": "why?"})
	assert.Equal(t, http.StatusForbidden, w.Code, "reporting blocks the reported identity")

	w = api.do(t, "mallory", http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.Profile](t, w).IsActive, "one reporter does not suspend")

	w = api.do(t, "bob", http.MethodPost, "/api/reports", scam)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, "mallory", http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.Profile](t, w).IsActive, "two scam reports suspend the profile")
}

func TestErrorsAreLocalized(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+api.token(t, "nobody"))
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "profile_not_found", body["code"])
	assert.Equal(t, "Profil nicht gefunden", body["error"])

	w = api.do(t, "nobody", http.MethodGet, "/api/profile", nil)
	assert.Equal(t, "profile not found", decode[map[string]string](t, w)["error"])
}

func dialWS(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, frameType string) models.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f models.ServerFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == frameType {
			return f
		}
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	api := newTestAPI(t)
	api.withProfiles(t, "bob")
	server := httptest.NewServer(api.router)
	defer server.Close()

	alice := dialWS(t, server, api.token(t, "alice"))
	bob := dialWS(t, server, api.token(t, "bob"))

	require.NoError(t, alice.WriteJSON(models.ClientFrame{Type: models.FrameSend, RecipientID: "bob", Content: "hello", RequestID: "1"}))
	ack := readFrame(t, alice, models.FrameAck)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "1", ack.RequestID)

	require.NoError(t, bob.WriteJSON(models.ClientFrame{Type: models.FrameJoin, ThreadID: ack.ThreadID}))
	readFrame(t, bob, models.FrameJoined)

	require.NoError(t, alice.WriteJSON(models.ClientFrame{Type: models.FrameSend, ThreadID: ack.ThreadID, Content: "wire the deposit via western union"}))
	got := readFrame(t, bob, models.FrameMessage)
	require.NotNil(t, got.Message)
	assert.Equal(t, "wire the deposit via western union", got.Message.Content)
	assert.NotEmpty(t, got.Message.Flags)

	require.NoError(t, bob.WriteJSON(models.ClientFrame{Type: "typing"}))
	assert.Equal(t, "unknown_frame", readFrame(t, bob, models.FrameError).Code)
}

func TestWebSocket_QueryToken(t *testing.T) {
	api := newTestAPI(t)
	server := httptest.NewServer(api.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?access_token=" + api.token(t, "carol")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return api.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
