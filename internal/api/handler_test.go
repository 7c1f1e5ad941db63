package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/webpilot/backend/internal/config"
	"github.com/webpilot/backend/internal/usecase"
)

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	tasks := usecase.NewTask(&config.Config{}, nil, nil, nil, nil)
	NewHandler(tasks).SetupRoutes(app)
	return app
}

func TestHealth(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("status field = %v", got["status"])
	}
}

func TestSearchReportsValidation(t *testing.T) {
	app := newTestApp()

	t.Run("missing query and agent", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/reports/search", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != 400 {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("index not configured", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/reports/search?q=golang", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != 500 {
			t.Errorf("status = %d, want 500 without a report index", resp.StatusCode)
		}

		body, _ := io.ReadAll(resp.Body)
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["success"] != false || got["error"] == nil {
			t.Errorf("body = %v", got)
		}
	})
}

func TestDeleteReportsWithoutIndex(t *testing.T) {
	app := newTestApp()

	for _, target := range []string{"/api/v1/reports/r1", "/api/v1/tasks/ws_1/reports"} {
		resp, err := app.Test(httptest.NewRequest("DELETE", target, nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != 500 {
			t.Errorf("DELETE %s status = %d, want 500 without a report index", target, resp.StatusCode)
		}
	}
}

func TestExecuteRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"blank query", `{"query": ""}`},
		{"malformed json", `{"query": `},
	}

	app := newTestApp()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/tasks/execute", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != 400 {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}

			body, _ := io.ReadAll(resp.Body)
			var got map[string]any
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got["success"] != false {
				t.Errorf("success = %v, want false", got["success"])
			}
			if got["error"] == nil || got["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}
