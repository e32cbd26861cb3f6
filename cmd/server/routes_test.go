package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	svc    *appServices
	queue  *services.SyncQueue
	token  string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	cfg.Server.WriteRPS = 1000
	cfg.Server.WriteBurst = 1000
	cfg.IOS = map[string]string{"github_token": "ghp_test"}
	if mutate != nil {
		mutate(cfg)
	}
	utils.SetJWTSecret(cfg.Auth.Secret)

	db, err := models.Open(&cfg.Database, false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	queue := services.NewSyncQueue()
	svc := newAppServices(cfg, db, queue)
	t.Cleanup(svc.shutdown)

	r := gin.New()
	registerRoutes(r, svc)
	return &testServer{t: t, router: r, svc: svc, queue: queue}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) data(w *httptest.ResponseRecorder, status int, out interface{}) {
	s.t.Helper()
	require.Equal(s.t, status, w.Code, w.Body.String())
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, out))
	}
}

func (s *testServer) createProject(title string) models.Project {
	var p models.Project
	s.data(s.do("POST", "/api/ios/projects", map[string]interface{}{
		"entity_ref":              "component:default/" + title,
		"project_title":           title,
		"project_version":         "1.0",
		"project_repository_link": "https://github.com/org/" + title,
	}), http.StatusCreated, &p)
	return p
}

func TestProjectRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.createProject("demo")
	require.NotZero(t, p.ID)
	require.True(t, p.StartDate.Equal(p.UpdateDate))

	var got models.Project
	s.data(s.do("GET", "/api/ios/projects/id/1", nil), http.StatusOK, &got)
	require.Equal(t, "demo", got.Title)

	s.data(s.do("GET", "/api/ios/projects/component:default%2Fdemo", nil), http.StatusOK, &got)
	require.Equal(t, p.ID, got.ID)

	s.data(s.do("GET", "/api/ios/projects/ref/component:default/demo", nil), http.StatusOK, &got)
	require.Equal(t, p.ID, got.ID)

	var version map[string]interface{}
	s.data(s.do("GET", "/api/ios/projects/id/1/version", nil), http.StatusOK, &version)
	require.Equal(t, "1.0", version["project_version"])

	s.data(s.do("PUT", "/api/ios/projects/1", map[string]interface{}{"project_title": "X"}), http.StatusOK, &got)
	require.Equal(t, "X", got.Title)
	require.Equal(t, "https://github.com/org/demo", got.RepositoryLink)

	s.data(s.do("PUT", "/api/ios/projects/views/1/12", nil), http.StatusOK, &got)
	require.Equal(t, 12, got.Views)
	require.Equal(t, http.StatusBadRequest, s.do("PUT", "/api/ios/projects/rating/1/-1", nil).Code)

	var all []models.Project
	s.data(s.do("GET", "/api/ios/projects", nil), http.StatusOK, &all)
	require.Len(t, all, 1)

	var page services.ProjectListResponse
	s.data(s.do("GET", "/api/ios/projects?page=1&page_size=5&title=X", nil), http.StatusOK, &page)
	require.Equal(t, int64(1), page.Total)

	require.Equal(t, http.StatusConflict, s.do("POST", "/api/ios/projects", map[string]interface{}{
		"entity_ref": "component:default/other", "project_title": "X",
	}).Code)
	require.Equal(t, http.StatusBadRequest, s.do("POST", "/api/ios/projects", map[string]interface{}{
		"entity_ref": "component:default/other",
	}).Code)
	require.Equal(t, http.StatusNotFound, s.do("GET", "/api/ios/projects/id/99", nil).Code)
	require.Equal(t, http.StatusBadRequest, s.do("GET", "/api/ios/projects/id/abc", nil).Code)
	require.Equal(t, http.StatusNotFound, s.do("PUT", "/api/ios/projects/99", map[string]interface{}{"project_title": "Y"}).Code)

	s.data(s.do("DELETE", "/api/ios/projects/1", nil), http.StatusOK, nil)
	require.Equal(t, http.StatusNotFound, s.do("DELETE", "/api/ios/projects/1", nil).Code)
}

func TestCommentRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	s.createProject("demo")

	var top models.Comment
	s.data(s.do("POST", "/api/ios/projects/1/comments", map[string]interface{}{"comment_text": "first"}), http.StatusCreated, &top)
	require.Equal(t, "user:default/guest", top.UserRef, "author defaults to the caller")
	require.Equal(t, "1.0", top.Version)

	var reply models.Comment
	s.data(s.do("POST", "/api/ios/projects/1/comments", map[string]interface{}{
		"comment_text": "reply", "comment_id_ref": top.ID, "user_id_ref": "bob",
	}), http.StatusCreated, &reply)
	require.Equal(t, "user:default/bob", reply.UserRef)

	require.Equal(t, http.StatusBadRequest, s.do("POST", "/api/ios/projects/1/comments", map[string]interface{}{
		"comment_text": "nested", "comment_id_ref": reply.ID,
	}).Code)

	s.data(s.do("PUT", "/api/ios/projects/1", map[string]interface{}{"project_version": "2.0"}), http.StatusOK, nil)
	s.data(s.do("POST", "/api/ios/projects/1/comments", map[string]interface{}{"comment_text": "second"}), http.StatusCreated, nil)

	var comments []models.Comment
	s.data(s.do("GET", "/api/ios/projects/1/comments", nil), http.StatusOK, &comments)
	require.Len(t, comments, 2)
	require.Equal(t, "second", comments[0].Text)

	s.data(s.do("GET", "/api/ios/projects/1/comments?version=current", nil), http.StatusOK, &comments)
	require.Len(t, comments, 1)
	require.Equal(t, "second", comments[0].Text)

	var replies []models.Comment
	s.data(s.do("GET", "/api/ios/projects/replies/1", nil), http.StatusOK, &replies)
	require.Len(t, replies, 1)

	s.data(s.do("DELETE", "/api/ios/projects/1/comments/1", nil), http.StatusOK, nil)
	s.data(s.do("GET", "/api/ios/projects/replies/1", nil), http.StatusOK, &replies)
	require.Empty(t, replies)
}

func TestLedgerAndEngagementRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	s.createProject("one")
	s.createProject("two")

	var added map[string]interface{}
	body := map[string]interface{}{"project_id": 1, "user_entity_ref": "user:default/alice", "user_avatar": "a.png"}
	s.data(s.do("POST", "/api/ios/ios_members", body), http.StatusOK, &added)
	require.Equal(t, true, added["added"])
	s.data(s.do("POST", "/api/ios/ios_members", body), http.StatusOK, &added)
	require.Equal(t, false, added["added"])

	var members []services.MemberInfo
	s.data(s.do("GET", "/api/ios/ios_members/1", nil), http.StatusOK, &members)
	require.Equal(t, []services.MemberInfo{{UserRef: "user:default/alice", Avatar: "a.png"}}, members)

	var set map[string][]uint
	s.data(s.do("PUT", "/api/ios/ios_members/user:default%2Falice", map[string]interface{}{"projects_ids": []uint{2, 2}}), http.StatusOK, &set)
	require.Equal(t, []uint{2}, set["projects_ids"])

	s.data(s.do("PUT", "/api/ios/ios_members/add_view", map[string]interface{}{"user_entity_ref": "alice", "project_id": 1}), http.StatusOK, nil)
	var ids []uint
	s.data(s.do("POST", "/api/ios/ios_members/views", map[string]interface{}{"user_entity_ref": "alice"}), http.StatusOK, &ids)
	require.Equal(t, []uint{1}, ids)

	s.data(s.do("PUT", "/api/ios/ios_members/add_rate/2", map[string]interface{}{"user_entity_ref": "alice"}), http.StatusOK, nil)
	s.data(s.do("POST", "/api/ios/ios_members/rates", map[string]interface{}{"user_entity_ref": "alice"}), http.StatusOK, &ids)
	require.Equal(t, []uint{2}, ids)
	s.data(s.do("DELETE", "/api/ios/ios_members/rates_del/2", map[string]interface{}{"user_entity_ref": "alice"}), http.StatusOK, nil)
	s.data(s.do("POST", "/api/ios/ios_members/rates", map[string]interface{}{"user_entity_ref": "alice"}), http.StatusOK, &ids)
	require.Empty(t, ids)

	s.data(s.do("POST", "/api/ios/ios_members/views", map[string]interface{}{"user_entity_ref": "nobody"}), http.StatusOK, &ids)
	require.Empty(t, ids)

	var user services.UserLedger
	s.data(s.do("GET", "/api/ios/ios_members/user/user:default/alice", nil), http.StatusOK, &user)
	require.Equal(t, []uint{2}, user.MemberOf)
	require.Equal(t, []uint{1}, user.Viewed)

	// Engagement as the default caller.
	var e services.Engagement
	s.data(s.do("POST", "/api/ios/projects/1/view", nil), http.StatusOK, &e)
	require.True(t, e.Counted)
	require.Equal(t, 1, e.Views)
	s.data(s.do("POST", "/api/ios/projects/1/view", nil), http.StatusOK, &e)
	require.False(t, e.Counted)
	require.Equal(t, 1, e.Views)

	s.data(s.do("POST", "/api/ios/projects/1/rate", nil), http.StatusOK, &e)
	require.True(t, e.Rated)
	require.Equal(t, 1, e.Rating)
	s.data(s.do("POST", "/api/ios/projects/1/rate", nil), http.StatusOK, &e)
	require.False(t, e.Rated)
	require.Equal(t, 0, e.Rating)

	require.Equal(t, http.StatusNotFound, s.do("POST", "/api/ios/projects/9/view", nil).Code)

	// Without a ref the profile route answers for the caller.
	var me services.UserLedger
	s.data(s.do("GET", "/api/ios/ios_members/user", nil), http.StatusOK, &me)
	require.Equal(t, "user:default/guest", me.EntityRef)
	require.Equal(t, []uint{1}, me.Viewed)

	// A chunked request with an empty body falls back to the caller too.
	s.data(s.do("PUT", "/api/ios/ios_members/add_rate/1", nil), http.StatusOK, nil)
	req := httptest.NewRequest("DELETE", "/api/ios/ios_members/rates_del/1", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.data(w, http.StatusOK, &added)
	require.Equal(t, true, added["removed"])

	s.data(s.do("DELETE", "/api/ios/ios_members/2/alice", nil), http.StatusOK, &added)
	require.Equal(t, true, added["removed"])
}

func TestAuthEnabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
	})

	require.Equal(t, http.StatusOK, s.do("GET", "/api/ios/projects", nil).Code, "reads are public")
	require.Equal(t, http.StatusUnauthorized, s.do("POST", "/api/ios/projects", map[string]interface{}{
		"entity_ref": "component:default/x", "project_title": "x",
	}).Code)
	require.Equal(t, http.StatusUnauthorized, s.do("POST", "/api/ios/projects/1/view", nil).Code)

	token, err := utils.GenerateToken("alice", "Alice", "user", 1)
	require.NoError(t, err)
	s.token = token
	s.createProject("x")

	var e services.Engagement
	s.data(s.do("POST", "/api/ios/projects/1/view", nil), http.StatusOK, &e)
	require.True(t, e.Counted)

	var viewed []uint
	s.data(s.do("POST", "/api/ios/ios_members/views", nil), http.StatusOK, &viewed)
	require.Equal(t, []uint{1}, viewed, "the caller's own set")

	require.Equal(t, http.StatusForbidden, s.do("POST", "/api/ios/admin/reconcile", nil).Code)
	require.Equal(t, http.StatusForbidden, s.do("GET", "/api/ios/audit-logs", nil).Code)

	admin, err := utils.GenerateToken("root", "Root", "admin", 1)
	require.NoError(t, err)
	s.token = admin
	require.Equal(t, http.StatusOK, s.do("GET", "/api/ios/audit-logs", nil).Code)
}

func TestAuditAndReconcileRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	s.createProject("demo")
	s.data(s.do("PUT", "/api/ios/projects/views/1/50", nil), http.StatusOK, nil)
	s.data(s.do("POST", "/api/ios/projects/1/view", nil), http.StatusOK, nil)

	w := s.do("POST", "/api/ios/admin/reconcile?recount=true", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	s.queue.Wait()

	var p models.Project
	s.data(s.do("GET", "/api/ios/projects/id/1", nil), http.StatusOK, &p)
	require.Equal(t, 1, p.Views, "views recomputed from the ledger")

	require.Equal(t, http.StatusBadRequest, s.do("POST", "/api/ios/admin/reconcile?recount=maybe", nil).Code)

	var logs services.SystemLogListResponse
	s.data(s.do("GET", "/api/ios/audit-logs?module=projects", nil), http.StatusOK, &logs)
	require.GreaterOrEqual(t, logs.Total, int64(3))
	require.Equal(t, "user:default/guest", logs.Items[0].UserRef)
}

func TestMiscRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do("GET", "/api/ios/config/github_token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"response":"ghp_test"}`, w.Body.String())
	require.Equal(t, http.StatusNotFound, s.do("GET", "/api/ios/config/missing", nil).Code)

	w = s.do("GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)

	w = s.do("GET", "/health/detail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"queue_mode":"sync"`)

	s.createProject("demo")
	w = s.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "ios_projects_total 1")
	require.Contains(t, body, `ios_ledger_entries{kind="viewed"} 0`)
	require.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	require.NotEmpty(t, s.do("GET", "/health", nil).Header().Get("X-Request-ID"))
}
