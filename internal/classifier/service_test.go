package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/shared/config"
	"github.com/civicgrid/platform/internal/shared/types"
)

type staticResolver struct {
	byName map[string]types.ID
}

func (s *staticResolver) ResolveName(_ context.Context, name string) (types.ID, bool, error) {
	id, ok := s.byName[name]
	return id, ok, nil
}

func testConfig(url string) config.ClassifierConfig {
	return config.ClassifierConfig{
		URL:     url,
		Enabled: true,
		Timeout: time.Second,
		Scale:   ScaleUnit,
	}
}

// TestClassify tests the happy path against a stub service
func TestClassify(t *testing.T) {
	roads := types.NewID()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prioritize" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"priority_score": 0.9,
				"community_name": "Roads",
			},
		})
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL), &staticResolver{byName: map[string]types.ID{"Roads": roads}}, zap.NewNop())

	result := svc.Classify(context.Background(), "Pothole", "Deep pothole on main street")

	if result.Priority != domain.PriorityHigh {
		t.Errorf("Expected priority %s, got %s", domain.PriorityHigh, result.Priority)
	}
	if result.Category != "Roads" {
		t.Errorf("Expected category Roads, got %s", result.Category)
	}
	if result.DepartmentID == nil || *result.DepartmentID != roads {
		t.Errorf("Expected department %s, got %v", roads, result.DepartmentID)
	}
}

// TestClassifyWithoutScore tests that a score-less answer keeps the
// default priority while the category still applies
func TestClassifyWithoutScore(t *testing.T) {
	roads := types.NewID()

	payloads := []struct {
		name string
		body map[string]any
	}{
		{"Score omitted", map[string]any{"community_name": "Roads"}},
		{"Score zero", map[string]any{"priority_score": 0, "community_name": "Roads"}},
	}

	for _, tt := range payloads {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"result": tt.body})
			}))
			defer srv.Close()

			svc := NewService(testConfig(srv.URL), &staticResolver{byName: map[string]types.ID{"Roads": roads}}, zap.NewNop())
			result := svc.Classify(context.Background(), "Pothole", "Deep pothole")

			if result.Priority != domain.PriorityMedium {
				t.Errorf("Expected priority %s, got %s", domain.PriorityMedium, result.Priority)
			}
			if result.Category != "Roads" {
				t.Errorf("Expected category Roads, got %s", result.Category)
			}
			if result.DepartmentID == nil || *result.DepartmentID != roads {
				t.Errorf("Expected department %s, got %v", roads, result.DepartmentID)
			}
		})
	}
}

// TestClassifyFailSoft tests that errors degrade to defaults
func TestClassifyFailSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"Service error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"Garbage response", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			svc := NewService(testConfig(srv.URL), &staticResolver{}, zap.NewNop())
			result := svc.Classify(context.Background(), "Title", "Description")

			if result.Priority == "" || result.Category == "" {
				t.Errorf("Expected usable defaults, got %+v", result)
			}
			if result.DepartmentID != nil {
				t.Errorf("Expected no department, got %v", result.DepartmentID)
			}
		})
	}
}

// TestClassifyDisabled tests that a disabled classifier short-circuits
func TestClassifyDisabled(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Enabled = false

	svc := NewService(cfg, &staticResolver{}, zap.NewNop())
	result := svc.Classify(context.Background(), "Title", "Description")

	if result.Priority != domain.PriorityMedium || result.Category != domain.DefaultCategory {
		t.Errorf("Expected defaults, got %+v", result)
	}
}
