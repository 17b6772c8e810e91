package consensus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ares_api/internal/models"
)

type fakeConsensusRepo struct {
	decisions []*models.ConsensusDecision
	reviews   []*models.ReviewResult
}

func (f *fakeConsensusRepo) CreateDecision(d *models.ConsensusDecision) error {
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeConsensusRepo) GetDecisionByEdgeID(edgeID string) (*models.ConsensusDecision, error) {
	for _, d := range f.decisions {
		if d.EdgeID == edgeID {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeConsensusRepo) CreateReview(r *models.ReviewResult) error {
	f.reviews = append(f.reviews, r)
	return nil
}

func (f *fakeConsensusRepo) ListRecentReviews(limit int) ([]models.ReviewResult, error) {
	return nil, nil
}

// chatServer returns an httptest.Server that answers any chat-completion
// request with content, mimicking an OpenAI-compatible /chat/completions
// endpoint.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"id":    "test",
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEngine_EvaluateContext_WeightedApproval(t *testing.T) {
	approveSrv := chatServer(t, `{"approved": true, "confidence": 0.9, "reasoning": "looks good"}`)
	defer approveSrv.Close()
	rejectSrv := chatServer(t, `{"approved": false, "confidence": 0.8, "reasoning": "too risky"}`)
	defer rejectSrv.Close()

	endpoints := []ModelEndpoint{
		{Name: "model-a", BaseURL: approveSrv.URL, Weight: 2},
		{Name: "model-b", BaseURL: rejectSrv.URL, Weight: 1},
	}
	repo := &fakeConsensusRepo{}
	engine := New(endpoints, "test-model", 0.6, 5*time.Second, repo)

	approved, decisionID, err := engine.EvaluateContext(context.Background(), EdgeContext{EdgeID: "edge-1", TokenMint: "MintAAA"})
	if err != nil {
		t.Fatalf("EvaluateContext: %v", err)
	}
	if decisionID == "" {
		t.Fatalf("expected a decision id")
	}
	// weighted_agreement = (2*1 + 1*0) / 3 = 0.667, above the 0.6 threshold.
	if !approved {
		t.Fatalf("expected weighted agreement to clear threshold")
	}
	if len(repo.decisions) != 1 {
		t.Fatalf("expected one persisted decision, got %d", len(repo.decisions))
	}
}

func TestEngine_EvaluateContext_AllModelsFail(t *testing.T) {
	downSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer downSrv.Close()

	engine := New([]ModelEndpoint{{Name: "model-a", BaseURL: downSrv.URL, Weight: 1}}, "test-model", 0.6, 2*time.Second, &fakeConsensusRepo{})
	_, _, err := engine.EvaluateContext(context.Background(), EdgeContext{EdgeID: "edge-2"})
	if err == nil {
		t.Fatalf("expected ConsensusFailed when every model errors")
	}
}

func TestEngine_GenerateReview_DedupsAndTruncates(t *testing.T) {
	srv := chatServer(t, `[
		{"category": "risk_limit", "target": "strat-1", "confidence": 0.5, "reasoning": "a"},
		{"category": "risk_limit", "target": "strat-1", "confidence": 0.9, "reasoning": "b"},
		{"category": "venue_exclusion", "target": "raydium", "confidence": 0.7, "reasoning": "c"}
	]`)
	defer srv.Close()

	engine := New([]ModelEndpoint{{Name: "model-a", BaseURL: srv.URL, Weight: 1}}, "test-model", 0.6, 5*time.Second, &fakeConsensusRepo{})
	result, err := engine.GenerateReview(context.Background())
	if err != nil {
		t.Fatalf("GenerateReview: %v", err)
	}

	items, ok := result.Recommendations["items"].([]models.Recommendation)
	if !ok {
		t.Fatalf("expected recommendations items to be []models.Recommendation, got %T", result.Recommendations["items"])
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 deduped recommendations, got %d: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Category == "risk_limit" && it.Confidence != 0.9 {
			t.Fatalf("expected the higher-confidence duplicate to survive, got %+v", it)
		}
	}
}
