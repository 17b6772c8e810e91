// Package consensus implements the consensus engine (component K): a
// parallel multi-model query against edge context in approval mode, and
// a periodic multi-model review producing deduplicated recommendations
// in review mode. Approval-mode aggregation is weighted agreement over
// a configured per-model weight table; review mode dedups by
// (category, target) and keeps the highest-weighted-confidence entry.
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"
	"ares_api/pkg/llm"

	"github.com/google/uuid"
)

// approvalPrompt instructs a model to return a strict JSON verdict so the
// engine can parse it without a model-specific adapter.
const approvalPrompt = `You are one voice in a trading-bot consensus panel evaluating whether to execute a detected edge. Respond with ONLY a JSON object of the form {"approved": bool, "confidence": number between 0 and 1, "reasoning": string}. No prose outside the JSON.

Edge under evaluation:
- edge_id: %s
- edge_type: %s
- venue: %s
- token_mint: %s
- estimated_profit_lamports: %d
- risk_score: %.4f`

// reviewPrompt asks a model for a small set of improvement
// recommendations drawn from recent trading activity, again as strict JSON.
const reviewPrompt = `You are one voice in a periodic trading-strategy review panel. Respond with ONLY a JSON array of up to 5 objects of the form {"category": string, "target": string, "confidence": number between 0 and 1, "reasoning": string}. Categories are one of: strategy_tuning, risk_limit, venue_exclusion, capital_allocation. No prose outside the JSON array.`

type approvalVerdict struct {
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// EdgeContext is the subset of models.Edge the approval prompt needs.
// Defined locally so this package doesn't need the full Edge type's
// persistence tags to build a prompt.
type EdgeContext struct {
	EdgeID                  string
	EdgeType                string
	VenueType               string
	TokenMint               string
	EstimatedProfitLamports int64
	RiskScore               float64
}

// Engine queries every configured model in parallel and aggregates
// their votes (§4.11). A nil Engine is never constructed; the executor
// treats a nil ConsensusGate as "unavailable" instead.
type Engine struct {
	models    []ModelEndpoint
	clients   map[string]*llm.Client
	threshold float64
	timeout   time.Duration
	repo      repo.ConsensusRepository
}

// New builds an Engine from the parsed model table. apiModel is the
// model name sent in each chat-completion request; it's shared across
// endpoints since §4.11 only varies the endpoint URL per entry, not the
// wire-level model field, for a uniform deployment.
func New(endpoints []ModelEndpoint, apiModel string, threshold float64, timeout time.Duration, store repo.ConsensusRepository) *Engine {
	clients := make(map[string]*llm.Client, len(endpoints))
	for _, ep := range endpoints {
		clients[ep.Name] = llm.New(ep.Name, ep.BaseURL, apiModel, "")
	}
	return &Engine{models: endpoints, clients: clients, threshold: threshold, timeout: timeout, repo: store}
}

// Evaluate satisfies executor.ConsensusGate. Edge is accepted as
// *models.Edge to match that interface's exact signature; only the
// fields EdgeContext needs are read.
func (e *Engine) Evaluate(ctx context.Context, edge *models.Edge) (bool, string, error) {
	return e.EvaluateContext(ctx, EdgeContext{
		EdgeID:                  edge.EdgeID,
		EdgeType:                edge.EdgeType,
		VenueType:               edge.VenueType,
		TokenMint:               edge.TokenMint,
		EstimatedProfitLamports: edge.EstimatedProfitLamports,
		RiskScore:               edge.RiskScore,
	})
}

// EvaluateContext runs the approval-mode panel against ec and persists
// the decision. When every query fails or times out it persists an
// unapproved decision and returns a plain error whose message begins
// "consensus failed"; that error carries no tradingerr kind.
func (e *Engine) EvaluateContext(ctx context.Context, ec EdgeContext) (bool, string, error) {
	decisionID := uuid.New().String()
	prompt := fmt.Sprintf(approvalPrompt, ec.EdgeID, ec.EdgeType, ec.VenueType, ec.TokenMint, ec.EstimatedProfitLamports, ec.RiskScore)

	votes := e.queryAll(ctx, prompt)

	queried := make([]string, 0, len(e.models))
	for _, m := range e.models {
		queried = append(queried, m.Name)
	}

	if len(votes) == 0 {
		decision := &models.ConsensusDecision{
			DecisionID:    decisionID,
			EdgeID:        ec.EdgeID,
			RequestedAt:   time.Now().UTC(),
			ModelsQueried: models.JSONB{"models": queried},
			Approved:      false,
			Threshold:     e.threshold,
		}
		if err := e.repo.CreateDecision(decision); err != nil {
			log.Printf("[consensus] failed to persist failed decision %s: %v", decisionID, err)
		}
		return false, decisionID, fmt.Errorf("consensus failed: all %d model queries failed or timed out", len(e.models))
	}

	weightedAgreement, weightedConfidence := aggregate(votes, e.weightOf)
	approved := weightedAgreement >= e.threshold

	responded := make([]string, 0, len(votes))
	for _, v := range votes {
		responded = append(responded, v.Model)
	}

	decision := &models.ConsensusDecision{
		DecisionID:         decisionID,
		EdgeID:             ec.EdgeID,
		RequestedAt:        time.Now().UTC(),
		ModelsQueried:      models.JSONB{"models": queried},
		ModelsResponded:    models.JSONB{"models": responded},
		Approved:           approved,
		WeightedAgreement:  weightedAgreement,
		WeightedConfidence: weightedConfidence,
		PerModel:           models.JSONB{"votes": votes},
		Threshold:          e.threshold,
	}
	if err := e.repo.CreateDecision(decision); err != nil {
		log.Printf("[consensus] failed to persist decision %s: %v", decisionID, err)
	}

	return approved, decisionID, nil
}

// queryAll fans out prompt to every configured model with a shared
// per-query timeout, dropping any model that errors or times out from
// the tally entirely (§4.11).
func (e *Engine) queryAll(ctx context.Context, prompt string) []models.ModelVote {
	var (
		mu    sync.Mutex
		votes []models.ModelVote
		wg    sync.WaitGroup
	)

	for _, m := range e.models {
		m := m
		client, ok := e.clients[m.Name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			qCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			content, err := client.Complete(qCtx, []llm.Message{{Role: "user", Content: prompt}}, 0.2)
			latency := time.Since(start)
			if err != nil {
				log.Printf("[consensus] model %s query failed: %v", m.Name, err)
				return
			}

			var verdict approvalVerdict
			if !decodeJSONObject(content, &verdict) {
				log.Printf("[consensus] model %s returned unparseable verdict", m.Name)
				return
			}

			mu.Lock()
			votes = append(votes, models.ModelVote{
				Model:      m.Name,
				Approved:   verdict.Approved,
				Confidence: clamp01(verdict.Confidence),
				Reasoning:  verdict.Reasoning,
				LatencyMS:  latency.Milliseconds(),
			})
			mu.Unlock()
		}()
	}

	wg.Wait()
	return votes
}

func (e *Engine) weightOf(model string) float64 {
	for _, m := range e.models {
		if m.Name == model {
			return m.Weight
		}
	}
	return defaultWeight
}

// aggregate computes weighted_agreement and weighted_confidence per
// §4.11's formulas: Σ(weight_i×x_i)/Σ(weight_i) over responding models.
func aggregate(votes []models.ModelVote, weightOf func(string) float64) (agreement, confidence float64) {
	var agreeNum, confNum, denom float64
	for _, v := range votes {
		w := weightOf(v.Model)
		denom += w
		if v.Approved {
			agreeNum += w
		}
		confNum += w * v.Confidence
	}
	if denom == 0 {
		return 0, 0
	}
	return agreeNum / denom, confNum / denom
}

// GenerateReview runs periodic-review mode (§4.11): every configured
// model returns a list of recommendations, deduplicated by
// (category, target) keeping the highest weighted confidence, truncated
// to 5.
func (e *Engine) GenerateReview(ctx context.Context) (*models.ReviewResult, error) {
	var (
		mu   sync.Mutex
		all  []scoredRecommendation
		wg   sync.WaitGroup
	)

	for _, m := range e.models {
		m := m
		client, ok := e.clients[m.Name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			qCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			content, err := client.Complete(qCtx, []llm.Message{{Role: "user", Content: reviewPrompt}}, 0.4)
			if err != nil {
				log.Printf("[consensus] review model %s query failed: %v", m.Name, err)
				return
			}

			var recs []models.Recommendation
			if !decodeJSONArray(content, &recs) {
				log.Printf("[consensus] review model %s returned unparseable recommendations", m.Name)
				return
			}

			mu.Lock()
			for _, r := range recs {
				all = append(all, scoredRecommendation{rec: r, weighted: m.Weight * clamp01(r.Confidence)})
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	recommendations := dedupRecommendations(all)

	result := &models.ReviewResult{
		ReviewID:        uuid.New().String(),
		GeneratedAt:     time.Now().UTC(),
		Recommendations: models.JSONB{"items": recommendations},
	}
	if err := e.repo.CreateReview(result); err != nil {
		return result, err
	}
	return result, nil
}

type scoredRecommendation struct {
	rec      models.Recommendation
	weighted float64
}

// dedupRecommendations keeps, per (category, target) key, the
// recommendation with the highest weighted confidence, then truncates
// to the 5 highest-scoring survivors.
func dedupRecommendations(all []scoredRecommendation) []models.Recommendation {
	best := make(map[string]scoredRecommendation)
	for _, sr := range all {
		key := sr.rec.Category + "\x00" + sr.rec.Target
		if existing, ok := best[key]; !ok || sr.weighted > existing.weighted {
			best[key] = sr
		}
	}

	out := make([]scoredRecommendation, 0, len(best))
	for _, sr := range best {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].weighted > out[j].weighted })

	if len(out) > 5 {
		out = out[:5]
	}

	recs := make([]models.Recommendation, len(out))
	for i, sr := range out {
		recs[i] = sr.rec
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// decodeJSONObject extracts the first {...} span from content and
// decodes it into dst. Models routinely wrap JSON in prose or markdown
// fences despite instructions; this tolerates both.
func decodeJSONObject(content string, dst interface{}) bool {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(content[start:end+1]), dst) == nil
}

// decodeJSONArray extracts the first [...] span from content and
// decodes it into dst, for the review-mode recommendation list.
func decodeJSONArray(content string, dst interface{}) bool {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(content[start:end+1]), dst) == nil
}
