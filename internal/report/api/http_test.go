package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/classifier"
	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/shared/auth"
	"github.com/civicgrid/platform/internal/shared/config"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/events"
	"github.com/civicgrid/platform/internal/shared/types"
)

// fakeRepo is an in-memory domain.Repository for handler tests.
type fakeRepo struct {
	reports map[types.ID]*domain.Report
	notes   map[types.ID][]domain.Note
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		reports: make(map[types.ID]*domain.Report),
		notes:   make(map[types.ID][]domain.Note),
	}
}

func (f *fakeRepo) Save(_ context.Context, r *domain.Report) error {
	copied := *r
	f.reports[r.ID] = &copied
	return nil
}

func (f *fakeRepo) FindByID(_ context.Context, id types.ID) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, errors.NotFound("report", id.String())
	}
	copied := *r
	return &copied, nil
}

func (f *fakeRepo) List(_ context.Context, spec domain.QuerySpec) ([]domain.Report, int, error) {
	if spec.Empty {
		return []domain.Report{}, 0, nil
	}
	var out []domain.Report
	for _, r := range f.reports {
		if spec.Departments != nil {
			match := false
			for _, d := range spec.Departments {
				if r.AssignedDepartment != nil && *r.AssignedDepartment == d {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *r)
	}
	if out == nil {
		out = []domain.Report{}
	}
	return out, len(out), nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id types.ID, from, to domain.Status) error {
	r, ok := f.reports[id]
	if !ok {
		return errors.NotFound("report", id.String())
	}
	if r.Status != from {
		return errors.InvalidTransition(string(r.Status), string(to))
	}
	r.Status = to
	return nil
}

func (f *fakeRepo) AddNote(_ context.Context, note *domain.Note) error {
	f.notes[note.ReportID] = append(f.notes[note.ReportID], *note)
	return nil
}

func (f *fakeRepo) AddComment(_ context.Context, _ *domain.Comment) error {
	return nil
}

func (f *fakeRepo) ToggleLike(_ context.Context, reportID, actorID types.ID) (*domain.Report, error) {
	r, ok := f.reports[reportID]
	if !ok {
		return nil, errors.NotFound("report", reportID.String())
	}
	r.ToggleLike(actorID)
	copied := *r
	return &copied, nil
}

func (f *fakeRepo) Nearest(_ context.Context, _ types.Point, _ float64, limit int) ([]domain.Report, error) {
	var out []domain.Report
	for _, r := range f.reports {
		if len(out) == limit {
			break
		}
		out = append(out, *r)
	}
	if out == nil {
		out = []domain.Report{}
	}
	return out, nil
}

func (f *fakeRepo) ListByAuthor(_ context.Context, authorID types.ID) ([]domain.Report, error) {
	out := []domain.Report{}
	for _, r := range f.reports {
		if r.AuthorID == authorID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListNotes(_ context.Context, reportID types.ID) ([]domain.Note, error) {
	return f.notes[reportID], nil
}

type fakeResolver struct {
	byName map[string]types.ID
}

func (f *fakeResolver) ResolveName(_ context.Context, name string) (types.ID, bool, error) {
	id, ok := f.byName[name]
	return id, ok, nil
}

func newTestHandler(repo *fakeRepo, resolver domain.DepartmentResolver) *Handler {
	logger := zap.NewNop()
	cls := classifier.NewService(config.ClassifierConfig{Enabled: false, Timeout: time.Second}, resolver, logger)
	return NewHandler(repo, domain.NewEngine(resolver), cls, events.NewBus(logger), logger)
}

func doRequest(h *Handler, actor *auth.Actor, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if actor != nil {
		req = req.WithContext(auth.WithActor(req.Context(), actor))
	}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func seedReport(repo *fakeRepo, dept *types.ID, status domain.Status) *domain.Report {
	r, _ := domain.NewReport("Broken light", "It is dark", "", types.Point{Lng: 20.4, Lat: 44.8}, types.NewID())
	r.Status = status
	r.AssignedDepartment = dept
	repo.Save(context.Background(), r)
	return r
}

// TestCreateReport tests citizen submission with defaults
func TestCreateReport(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})
	actor := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	body := `{"title":"Pothole","description":"Deep hole","location":{"type":"Point","coordinates":[20.4,44.8]}}`
	rec := doRequest(h, actor, http.MethodPost, "/", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool          `json:"success"`
		Data    domain.Report `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Data.Status != domain.StatusNew {
		t.Errorf("Expected status %s, got %s", domain.StatusNew, resp.Data.Status)
	}
	if resp.Data.Priority != domain.PriorityMedium {
		t.Errorf("Expected default priority, got %s", resp.Data.Priority)
	}
	if resp.Data.AuthorID != actor.ID {
		t.Errorf("Expected author %s, got %s", actor.ID, resp.Data.AuthorID)
	}
}

// TestCreateReportValidation tests rejected submissions
func TestCreateReportValidation(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeResolver{})
	actor := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	tests := []struct {
		name string
		body string
	}{
		{"Missing title", `{"description":"x","location":{"type":"Point","coordinates":[20.4,44.8]}}`},
		{"Bad location", `{"title":"t","description":"x","location":{"type":"Point","coordinates":[200,44.8]}}`},
		{"Malformed JSON", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, actor, http.MethodPost, "/", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

// TestGetReportHidesForeignReports verifies denied admin reads look
// like missing reports.
func TestGetReportHidesForeignReports(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})

	roads := types.NewID()
	parks := types.NewID()
	report := seedReport(repo, &roads, domain.StatusNew)

	foreignAdmin := &auth.Actor{ID: types.NewID(), Role: auth.RoleDepartmentAdmin, DepartmentIDs: []types.ID{parks}}
	rec := doRequest(h, foreignAdmin, http.MethodGet, "/"+report.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign admin, got %d", rec.Code)
	}

	ownAdmin := &auth.Actor{ID: types.NewID(), Role: auth.RoleDepartmentAdmin, DepartmentIDs: []types.ID{roads}}
	rec = doRequest(h, ownAdmin, http.MethodGet, "/"+report.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for assigned admin, got %d", rec.Code)
	}

	citizen := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}
	rec = doRequest(h, citizen, http.MethodGet, "/"+report.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for citizen, got %d", rec.Code)
	}
}

// TestListIsAdminOnly verifies citizens cannot reach the listing at
// all, filters or not.
func TestListIsAdminOnly(t *testing.T) {
	repo := newFakeRepo()
	roads := types.NewID()
	h := newTestHandler(repo, &fakeResolver{byName: map[string]types.ID{"Roads": roads}})

	seedReport(repo, &roads, domain.StatusNew)
	seedReport(repo, &roads, domain.StatusNew)

	citizen := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	for _, target := range []string{"/", "/?department=Roads", "/?status=New"} {
		rec := doRequest(h, citizen, http.MethodGet, target, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s as citizen = %d, want 403", target, rec.Code)
		}
	}
}

// TestUpdateStatus tests the transition endpoint
func TestUpdateStatus(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})

	roads := types.NewID()
	report := seedReport(repo, &roads, domain.StatusNew)
	admin := &auth.Actor{ID: types.NewID(), Role: auth.RoleDepartmentAdmin, DepartmentIDs: []types.ID{roads}}

	rec := doRequest(h, admin, http.MethodPut, "/"+report.ID.String()+"/status", `{"status":"In Progress"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Skipping a step is rejected
	rec = doRequest(h, admin, http.MethodPut, "/"+report.ID.String()+"/status", `{"status":"Closed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid transition, got %d", rec.Code)
	}

	// Unknown status string is rejected
	rec = doRequest(h, admin, http.MethodPut, "/"+report.ID.String()+"/status", `{"status":"Done"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", rec.Code)
	}

	// Citizens get an explicit forbidden, not a 404
	citizen := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}
	rec = doRequest(h, citizen, http.MethodPut, "/"+report.ID.String()+"/status", `{"status":"Resolved"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for citizen, got %d", rec.Code)
	}
}

// TestToggleLikeEndpoint tests the like toggle response shape
func TestToggleLikeEndpoint(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})
	report := seedReport(repo, nil, domain.StatusNew)
	actor := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	rec := doRequest(h, actor, http.MethodPost, "/"+report.ID.String()+"/like", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Liked     bool `json:"liked"`
		LikeCount int  `json:"like_count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Liked || resp.LikeCount != 1 {
		t.Errorf("Expected liked with count 1, got %+v", resp)
	}

	rec = doRequest(h, actor, http.MethodPost, "/"+report.ID.String()+"/like", "")
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Liked || resp.LikeCount != 0 {
		t.Errorf("Expected unliked with count 0, got %+v", resp)
	}
}

// TestNotesAuthorization tests that notes are admin-only in both
// directions
func TestNotesAuthorization(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})

	roads := types.NewID()
	report := seedReport(repo, &roads, domain.StatusNew)

	admin := &auth.Actor{ID: types.NewID(), Role: auth.RoleDepartmentAdmin, DepartmentIDs: []types.ID{roads}}
	citizen := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	rec := doRequest(h, citizen, http.MethodPost, "/"+report.ID.String()+"/notes", `{"text":"hi"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for citizen note, got %d", rec.Code)
	}

	rec = doRequest(h, admin, http.MethodPost, "/"+report.ID.String()+"/notes", `{"text":"crew dispatched"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(h, citizen, http.MethodGet, "/"+report.ID.String()+"/notes", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for citizen reading notes, got %d", rec.Code)
	}

	rec = doRequest(h, admin, http.MethodGet, "/"+report.ID.String()+"/notes", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin reading notes, got %d", rec.Code)
	}
}

// TestListEnvelope tests the listing response shape
func TestListEnvelope(t *testing.T) {
	repo := newFakeRepo()
	roads := types.NewID()
	h := newTestHandler(repo, &fakeResolver{byName: map[string]types.ID{"Roads": roads}})

	seedReport(repo, &roads, domain.StatusNew)
	seedReport(repo, &roads, domain.StatusNew)

	admin := &auth.Actor{ID: types.NewID(), Role: auth.RoleDepartmentAdmin, DepartmentIDs: []types.ID{roads}}
	rec := doRequest(h, admin, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool            `json:"success"`
		Count   int             `json:"count"`
		Total   int             `json:"total"`
		Data    []domain.Report `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if !resp.Success || resp.Count != 2 || resp.Total != 2 {
		t.Errorf("Envelope = success %v count %d total %d", resp.Success, resp.Count, resp.Total)
	}

	// A department filter the admin does not administer yields an
	// empty page, not an error.
	rec = doRequest(h, admin, http.MethodGet, "/?department=Unknown", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if resp.Count != 0 || resp.Total != 0 {
		t.Errorf("Expected empty result, got count %d total %d", resp.Count, resp.Total)
	}
}

// TestFeedRequiresCoordinates tests the proximity feed parameters
func TestFeedRequiresCoordinates(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeResolver{})
	seedReport(repo, nil, domain.StatusNew)
	actor := &auth.Actor{ID: types.NewID(), Role: auth.RoleCitizen}

	rec := doRequest(h, actor, http.MethodGet, "/feed", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without coordinates, got %d", rec.Code)
	}

	rec = doRequest(h, actor, http.MethodGet, "/feed?latitude=44.8&longitude=20.4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Errorf("Expected 1 report in feed, got %d", resp.Count)
	}
}

// TestUnauthenticatedRequests tests the missing-actor guard
func TestUnauthenticatedRequests(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeResolver{})

	rec := doRequest(h, nil, http.MethodGet, "/", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
