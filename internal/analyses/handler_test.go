package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/documents"
	"docinsight-backend/internal/llm"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func setupAnalysisRouter(t *testing.T) (*gin.Engine, *Service, *documents.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docRepo := documents.NewMemoryRepo()
	analysisRepo := NewMemoryRepo()
	docRepo.SetCascade(analysisRepo)

	svc := &Service{
		Repo: analysisRepo,
		Docs: docRepo,
		Gen: &Generator{
			LLM: &fakeLLM{completion: llm.Completion{
				Content:    `{"summary": "Résumé structuré du document de test.", "keyPoints": ["point un", "point deux"], "actionItems": [{"title": "Vérifier", "description": "Vérifier les chiffres du rapport", "category": "Revue"}], "confidence": 86}`,
				Model:      "gpt-4-turbo-preview",
				TokensUsed: 200,
			}},
			Fallback: true,
		},
	}

	r := gin.New()
	api := r.Group("/api")
	NewHandler(svc).RegisterRoutes(api)
	return r, svc, docRepo
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v (%s)", method, path, err, resp.Body.String())
	}
	return resp, env
}

func TestGenerateEndpointLifecycle(t *testing.T) {
	r, _, docRepo := setupAnalysisRouter(t)
	doc := seedDocument(t, docRepo, documents.StatusCompleted, "texte extrait du PDF")

	resp, env := doJSON(t, r, http.MethodPost, "/api/analyses/documents/"+doc.ID, nil)
	if resp.Code != http.StatusCreated || !env.Success {
		t.Fatalf("generate: code=%d body=%s", resp.Code, resp.Body.String())
	}

	var created struct {
		ID       string `json:"id"`
		Document struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"document"`
		AnalysisResult struct {
			Summary    string   `json:"summary"`
			Confidence int      `json:"confidence"`
			KeyPoints  []string `json:"keyPoints"`
			WordCount  int      `json:"wordCount"`
		} `json:"analysisResult"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if created.AnalysisResult.Summary == "" {
		t.Fatal("expected non-empty summary")
	}
	if created.AnalysisResult.Confidence < 0 || created.AnalysisResult.Confidence > 100 {
		t.Fatalf("confidence out of range: %d", created.AnalysisResult.Confidence)
	}
	if len(created.AnalysisResult.KeyPoints) > 20 {
		t.Fatalf("too many key points: %d", len(created.AnalysisResult.KeyPoints))
	}
	if created.Document.ID != doc.ID {
		t.Fatalf("document block = %+v", created.Document)
	}
	if created.AnalysisResult.WordCount == 0 {
		t.Fatal("derived wordCount missing")
	}

	// Idempotent: second call returns the same analysis without a new row.
	resp, env = doJSON(t, r, http.MethodPost, "/api/analyses/documents/"+doc.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("second generate: code=%d", resp.Code)
	}
	var again struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &again); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected same analysis id, got %s vs %s", again.ID, created.ID)
	}

	// GET by id round-trips the payload.
	resp, env = doJSON(t, r, http.MethodGet, "/api/analyses/"+created.ID, nil)
	if resp.Code != http.StatusOK || !env.Success {
		t.Fatalf("get analysis: code=%d", resp.Code)
	}

	// Deleting the document cascades to the analysis.
	if err := docRepo.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	resp, _ = doJSON(t, r, http.MethodGet, "/api/analyses/"+created.ID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("analysis must be gone after cascade, code=%d", resp.Code)
	}
}

func TestGenerateEndpointPreconditionStatuses(t *testing.T) {
	r, _, docRepo := setupAnalysisRouter(t)

	resp, _ := doJSON(t, r, http.MethodPost, "/api/analyses/documents/unknown", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown document: code=%d", resp.Code)
	}

	processing := seedDocument(t, docRepo, documents.StatusProcessing, "")
	resp, _ = doJSON(t, r, http.MethodPost, "/api/analyses/documents/"+processing.ID, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("processing document: code=%d", resp.Code)
	}

	empty := seedDocument(t, docRepo, documents.StatusCompleted, "")
	resp, _ = doJSON(t, r, http.MethodPost, "/api/analyses/documents/"+empty.ID, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("empty text: code=%d", resp.Code)
	}
}

func TestGenerateEndpointParseFailureIs500(t *testing.T) {
	r, svc, docRepo := setupAnalysisRouter(t)
	svc.Gen.LLM = &fakeLLM{completion: llm.Completion{Content: "pas de JSON ici"}}
	doc := seedDocument(t, docRepo, documents.StatusCompleted, "texte")

	resp, env := doJSON(t, r, http.MethodPost, "/api/analyses/documents/"+doc.ID, nil)
	if resp.Code != http.StatusInternalServerError || env.Success {
		t.Fatalf("parse failure: code=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestStoreEndpointValidation(t *testing.T) {
	r, _, _ := setupAnalysisRouter(t)

	resp, env := doJSON(t, r, http.MethodPost, "/api/analyses", map[string]any{
		"documentName": "ab",
		"summary":      "court",
		"confidence":   150,
	})
	if resp.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("store invalid: code=%d", resp.Code)
	}
	if len(env.Errors) < 3 {
		t.Fatalf("expected itemized field errors, got %+v", env.Errors)
	}

	resp, env = doJSON(t, r, http.MethodPost, "/api/analyses", map[string]any{
		"documentName": "rapport externe",
		"summary":      strings.Repeat("résumé externe ", 3),
		"keyPoints":    []string{"un point valide"},
		"confidence":   77,
		"tags":         []string{"externe", "Externe"},
	})
	if resp.Code != http.StatusCreated || !env.Success {
		t.Fatalf("store valid: code=%d body=%s", resp.Code, resp.Body.String())
	}
	var stored struct {
		ID        string   `json:"id"`
		ModelUsed string   `json:"modelUsed"`
		Tags      []string `json:"tags"`
	}
	if err := json.Unmarshal(env.Data, &stored); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if stored.ModelUsed != "unknown" {
		t.Fatalf("modelUsed default = %q", stored.ModelUsed)
	}
	if len(stored.Tags) != 1 {
		t.Fatalf("tags not deduplicated: %v", stored.Tags)
	}
}

func TestListEndpointPaginationEnvelope(t *testing.T) {
	r, svc, _ := setupAnalysisRouter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		in := validInput()
		in.DocumentName = "rapport " + string(rune('A'+i))
		if _, err := svc.Store(ctx, in); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	resp, env := doJSON(t, r, http.MethodGet, "/api/analyses?page=2&limit=2", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list: code=%d", resp.Code)
	}
	var data struct {
		Analyses   []json.RawMessage `json:"analyses"`
		Pagination struct {
			Page       int  `json:"page"`
			Limit      int  `json:"limit"`
			Total      int  `json:"total"`
			TotalPages int  `json:"totalPages"`
			HasNext    bool `json:"hasNext"`
			HasPrev    bool `json:"hasPrev"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Analyses) != 1 || data.Pagination.Total != 3 || data.Pagination.TotalPages != 2 {
		t.Fatalf("pagination: %+v len=%d", data.Pagination, len(data.Analyses))
	}
	if data.Pagination.HasNext || !data.Pagination.HasPrev {
		t.Fatalf("pagination flags: %+v", data.Pagination)
	}
}

func TestSearchEndpointValidatesNumericFilters(t *testing.T) {
	r, _, _ := setupAnalysisRouter(t)

	resp, env := doJSON(t, r, http.MethodGet, "/api/analyses/search?confidence_min=abc", nil)
	if resp.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("search invalid filter: code=%d", resp.Code)
	}
	if len(env.Errors) != 1 || env.Errors[0].Field != "confidence_min" {
		t.Fatalf("field errors: %+v", env.Errors)
	}
}

func TestReadResponsesOmitUpdateTimestamp(t *testing.T) {
	r, svc, _ := setupAnalysisRouter(t)
	stored, err := svc.Store(context.Background(), validInput())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	for _, path := range []string{
		"/api/analyses/" + stored.ID,
		"/api/analyses",
		"/api/analyses/search?q=rapport",
	} {
		resp, _ := doJSON(t, r, http.MethodGet, path, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: code=%d", path, resp.Code)
		}
		if bytes.Contains(resp.Body.Bytes(), []byte("updatedAt")) {
			t.Fatalf("%s must not expose updatedAt: %s", path, resp.Body.String())
		}
		if !bytes.Contains(resp.Body.Bytes(), []byte("createdAt")) {
			t.Fatalf("%s should still expose createdAt", path)
		}
	}
}

func TestAddTagEndpoint(t *testing.T) {
	r, svc, _ := setupAnalysisRouter(t)
	stored, err := svc.Store(context.Background(), validInput())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	resp, env := doJSON(t, r, http.MethodPost, "/api/analyses/"+stored.ID+"/tags", map[string]string{"tag": "urgent"})
	if resp.Code != http.StatusOK || !env.Success {
		t.Fatalf("add tag: code=%d body=%s", resp.Code, resp.Body.String())
	}
	var tagged struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(env.Data, &tagged); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	found := false
	for _, tag := range tagged.Tags {
		if tag == "urgent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("tag not persisted: %v", tagged.Tags)
	}
}
