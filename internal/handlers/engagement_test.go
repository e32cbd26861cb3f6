package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/middleware"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handlers-test-secret")
}

func streamRouter(hub *services.EventHub, auth *config.AuthConfig) *gin.Engine {
	h := NewEngagementHandler(nil, hub, auth)
	r := gin.New()
	r.GET("/events", middleware.Identity(auth), h.Stream)
	return r
}

func TestStream_RequiresIdentityWhenAuthEnabled(t *testing.T) {
	r := streamRouter(services.NewEventHub(), &config.AuthConfig{Enabled: true})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/events", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/events?token=garbage", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d for a bad token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestStream_DeliversEvents(t *testing.T) {
	hub := services.NewEventHub()
	srv := httptest.NewServer(streamRouter(hub, &config.AuthConfig{Enabled: true}))
	defer srv.Close()

	token, err := utils.GenerateToken("alice", "", "", 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// The connected comment is written after Subscribe.
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q (%v)", line, err)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.ClientCount())
	}

	hub.Publish(services.EngagementEvent{ProjectID: 3, UserRef: "user:default/bob", Kind: services.EventRate, Rating: 1})

	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: rate" {
		t.Errorf("unexpected event line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "data: ") || !strings.Contains(lines[1], `"project_id":3`) {
		t.Errorf("unexpected data line %q", lines[1])
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("subscriber should be removed after the client disconnects")
	}
}

func TestViewAndRate_RequireCaller(t *testing.T) {
	h := NewEngagementHandler(nil, services.NewEventHub(), &config.AuthConfig{Enabled: true})
	r := gin.New()
	r.POST("/projects/:id/view", h.View)
	r.POST("/projects/:id/rate", h.Rate)

	for _, path := range []string{"/projects/1/view", "/projects/1/rate"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusUnauthorized, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/projects/zero/view", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for a bad id, got %d", http.StatusBadRequest, w.Code)
	}
}
