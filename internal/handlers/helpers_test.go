package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
		want  uint
	}{
		{"42", true, 42},
		{"0", false, 0},
		{"-1", false, 0},
		{"abc", false, 0},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "project_id", Value: tt.value}}

		got, ok := parseID(c, "project_id")
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseID(%q) = (%d, %v), expected (%d, %v)", tt.value, got, ok, tt.want, tt.ok)
		}
		if !ok && w.Code != http.StatusBadRequest {
			t.Errorf("parseID(%q) should write 400, got %d", tt.value, w.Code)
		}
	}
}

func TestParseCount(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "views", Value: "0"}}
	if n, ok := parseCount(c, "views"); !ok || n != 0 {
		t.Errorf("zero should be accepted, got (%d, %v)", n, ok)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "views", Value: "-3"}}
	if _, ok := parseCount(c, "views"); ok {
		t.Error("negative counts should be rejected")
	}
}

func TestWildcardParamAndCaller(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "entity_ref", Value: "/component:default/demo"}}
	if got := wildcardParam(c, "entity_ref"); got != "component:default/demo" {
		t.Errorf("unexpected wildcard value %q", got)
	}

	c.Set(middleware.ContextUserRef, "user:default/alice")
	if got := callerOr(c, " "); got != "user:default/alice" {
		t.Errorf("blank ref should fall back to the caller, got %q", got)
	}
	if got := callerOr(c, "bob"); got != "bob" {
		t.Errorf("explicit ref should win, got %q", got)
	}
}

func TestFail(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{response.NewNotFound("project 1 not found"), http.StatusNotFound},
		{response.NewConflict("duplicate"), http.StatusConflict},
		{response.NewUnavailable("store down"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/x", nil)
		fail(c, "test", tt.err)
		if w.Code != tt.want {
			t.Errorf("fail(%v) wrote %d, expected %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestConfigHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IOS = map[string]string{"github_token": "ghp_abc"}
	h := NewConfigHandler(cfg)

	r := gin.New()
	r.GET("/config/:configId", h.Get)

	for _, key := range []string{"github_token", "ios.github_token"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/config/"+key, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Body.String() != `{"response":"ghp_abc"}` {
			t.Errorf("%s: got %d %s", key, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/config/unknown", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestBindOptionalJSON(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		contentLength int64
		ok            bool
		want          string
	}{
		{"no body", "", 0, true, ""},
		{"chunked empty body", "", -1, true, ""},
		{"chunked body", `{"user_entity_ref":"user:default/alice"}`, -1, true, "user:default/alice"},
		{"sized body", `{"user_entity_ref":"bob"}`, 25, true, "bob"},
		{"malformed body", `{"user_entity_ref":`, -1, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("DELETE", "/ios_members/rates_del/1", io.NopCloser(strings.NewReader(tt.body)))
			c.Request.ContentLength = tt.contentLength
			c.Request.Header.Set("Content-Type", "application/json")

			var req UserRefRequest
			ok := bindOptionalJSON(c, &req)
			if ok != tt.ok {
				t.Fatalf("bindOptionalJSON() = %v, expected %v (status %d, body %s)", ok, tt.ok, w.Code, w.Body.String())
			}
			if !ok && w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if req.UserRef != tt.want {
				t.Errorf("UserRef = %q, expected %q", req.UserRef, tt.want)
			}
		})
	}
}
