package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/botpanel/internal/dispatcher"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/panel"
	"github.com/xaenox/botpanel/internal/presenter"
	"github.com/xaenox/botpanel/internal/secrets"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type testEnv struct {
	server   *Server
	store    *storage.MemoryStorage
	verifier *identity.Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStorage()
	key, err := secrets.GenerateIdentity()
	require.NoError(t, err)
	vault, err := secrets.NewVault(store, key)
	require.NoError(t, err)

	service := panel.NewService(store, vault, dispatcher.New(store, logger), logger)
	sessions := panel.NewSessions(store, time.Hour, logger)
	t.Cleanup(sessions.Close)

	verifier := identity.NewVerifier(testSecret)
	return &testEnv{
		server:   New(service, sessions, verifier, logger),
		store:    store,
		verifier: verifier,
	}
}

func (e *testEnv) token(t *testing.T, id identity.Identity) string {
	t.Helper()
	tok, err := e.verifier.Issue(id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/bots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/bots", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := identity.NewVerifier("another-secret")
	forged, err := other.Issue(identity.Identity{UserID: "alice", Role: identity.RoleOperator}, time.Hour)
	require.NoError(t, err)
	w = env.do(t, http.MethodGet, "/api/bots", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	agentTok := env.token(t, identity.Identity{UserID: "alice", Role: identity.RoleAgent, BotID: "b1"})
	w = env.do(t, http.MethodGet, "/api/bots", agentTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateAndCommandFlow(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, identity.Identity{UserID: "alice", Role: identity.RoleOperator})

	w := env.do(t, http.MethodPost, "/api/bots", tok, panel.CreateBotRequest{ID: "b1", Username: "u", Password: "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.BotRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.StatusStopped, created.Status)
	assert.True(t, secrets.IsHandle(created.Credentials.PasswordRef))

	w = env.do(t, http.MethodPost, "/api/bots", tok, panel.CreateBotRequest{ID: "b1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The write refreshed the session, so the listing already shows the bot.
	w = env.do(t, http.MethodGet, "/api/bots", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bots BotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bots))
	require.Len(t, bots.Bots, 1)
	assert.Equal(t, "b1", bots.Bots[0].ID)

	w = env.do(t, http.MethodPost, "/api/bots/b1/commands", tok, CommandRequest{
		Command: models.CommandJoinRoom,
		Extras:  models.CommandExtras{TargetRoom: "roomX"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var ack dispatcher.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, int64(1), ack.Seq)
	assert.False(t, ack.Superseded)

	w = env.do(t, http.MethodPost, "/api/bots/b1/commands", tok, CommandRequest{Command: models.CommandStop})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Superseded)
	assert.Equal(t, models.CommandJoinRoom, ack.SupersededKind)

	w = env.do(t, http.MethodGet, "/api/summary", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum presenter.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.ActiveBotCount)
	assert.Equal(t, "STOPPED", sum.DisplayStatus)
	assert.Equal(t, "Idle", sum.DisplayActivity)
	assert.Equal(t, "-", sum.LastSeen)
	require.NotNil(t, sum.FocusBot)
	assert.Equal(t, models.CommandStop, sum.FocusBot.Command)
}

func TestCommandValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, identity.Identity{UserID: "alice", Role: identity.RoleOperator})
	w := env.do(t, http.MethodPost, "/api/bots", tok, panel.CreateBotRequest{ID: "b1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/b1/commands", tok, CommandRequest{Command: "DANCE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/b1/commands", tok, CommandRequest{Command: models.CommandJoinRoom})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/b1/messages", tok, MessageRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/missing/messages", tok, MessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	rec, err := env.store.GetBot(identity.Operator(t.Context(), "alice"), "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.CommandSeq)
}

func TestSaveSettings(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, identity.Identity{UserID: "alice", Role: identity.RoleOperator})
	w := env.do(t, http.MethodPost, "/api/bots", tok, panel.CreateBotRequest{ID: "b1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPut, "/api/bots/b1/config", tok, panel.SettingsForm{
		Config: models.BotConfig{AIEnabled: true},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/bots/b1/config", tok, panel.SettingsForm{
		Username: "bot",
		Config: models.BotConfig{
			AIEnabled: true,
			Providers: []models.Provider{{Name: models.ProviderGemini, Enabled: true, APIKey: "AIza-key"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "AIza-key")

	rec, err := env.store.GetBot(identity.Operator(t.Context(), "alice"), "b1")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", rec.Config.Providers[0].Model)
	assert.True(t, secrets.IsHandle(rec.Config.Providers[0].APIKey))
}

func TestOwnersAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, identity.Identity{UserID: "alice", Role: identity.RoleOperator})
	bob := env.token(t, identity.Identity{UserID: "bob", Role: identity.RoleOperator})

	w := env.do(t, http.MethodPost, "/api/bots", alice, panel.CreateBotRequest{ID: "b1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/bots/b1/commands", bob, CommandRequest{Command: models.CommandStop})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/refresh", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/bots", bob, nil)
	var bots BotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bots))
	assert.Empty(t, bots.Bots)
}
