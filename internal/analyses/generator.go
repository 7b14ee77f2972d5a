package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docinsight-backend/internal/llm"
	"docinsight-backend/internal/shared/metrics"
	"docinsight-backend/internal/shared/telemetry"
)

const promptTextLimit = 8000

const systemPrompt = "Tu es un assistant expert en analyse de documents. " +
	"Tu dois produire des analyses structurées, claires et actionables en français."

const promptTemplate = `
Analyse le document suivant et génère une analyse structurée :

DOCUMENT: %q

CONTENU:
%s

INSTRUCTIONS:
1. Produis un résumé concis (200-300 mots maximum)
2. Identifie 4-6 points clés sous forme de liste
3. Suggère 1-3 actions concrètes avec titre, description, priorité (high/medium/low) et catégorie
4. Donne un score de confiance (0-100)

RÉPONDRE AU FORMAT JSON SUIVANT:
{
  "summary": "Résumé du document...",
  "keyPoints": [
    "Premier point clé",
    "Deuxième point clé"
  ],
  "actionItems": [
    {
      "title": "Titre de l'action",
      "description": "Description détaillée de l'action",
      "priority": "high",
      "category": "Stratégie"
    }
  ],
  "confidence": 85
}

Assure-toi que la réponse soit en français et uniquement au format JSON valide.
`

// Generator turns extracted document text into an analysis draft. Provider
// outages degrade to a deterministic demo draft when Fallback is enabled;
// that path never fails.
type Generator struct {
	LLM      llm.Client
	Fallback bool
}

// Generate builds the prompt, calls the provider and normalizes the result.
func (g *Generator) Generate(ctx context.Context, documentText, documentName string) (Draft, error) {
	start := time.Now()

	completion, err := g.LLM.Complete(ctx, systemPrompt, buildPrompt(documentText, documentName))
	elapsed := time.Since(start)
	metrics.ObserveGenerationDurationMs(float64(elapsed.Milliseconds()))

	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) && g.Fallback {
			telemetry.Warn("analysis.fallback", map[string]any{
				"documentName": documentName,
				"error":        err.Error(),
			})
			metrics.IncAnalysisFallback()
			return demoDraft(documentName, elapsed), nil
		}
		return Draft{}, err
	}

	draft, err := parseModelOutput(completion.Content)
	if err != nil {
		metrics.IncAnalysisParseFailure()
		return Draft{}, err
	}

	draft.ProcessingTime = elapsed.Seconds()
	draft.ModelUsed = completion.Model
	draft.TokensUsed = completion.TokensUsed
	metrics.IncAnalysisGenerated()
	return draft, nil
}

func buildPrompt(documentText, documentName string) string {
	content := documentText
	if len(content) > promptTextLimit {
		content = content[:promptTextLimit] + " [...texte tronqué...]"
	}
	return fmt.Sprintf(promptTemplate, documentName, content)
}

// modelOutput parses leniently: a well-formed JSON object with a wrongly
// typed field degrades to that field's default instead of failing.
type modelOutput struct {
	Summary     json.RawMessage `json:"summary"`
	KeyPoints   json.RawMessage `json:"keyPoints"`
	ActionItems json.RawMessage `json:"actionItems"`
	Confidence  json.RawMessage `json:"confidence"`
}

type modelActionItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

func parseModelOutput(content string) (Draft, error) {
	block, ok := extractJSONBlock(content)
	if !ok {
		return Draft{}, fmt.Errorf("%w: no JSON object in model output", ErrParseFailure)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	draft := Draft{
		KeyPoints:   []string{},
		ActionItems: []ActionItem{},
		Confidence:  80,
	}
	_ = json.Unmarshal(out.Summary, &draft.Summary)

	var keyPoints []string
	if err := json.Unmarshal(out.KeyPoints, &keyPoints); err == nil && keyPoints != nil {
		draft.KeyPoints = keyPoints
	}

	var items []modelActionItem
	if err := json.Unmarshal(out.ActionItems, &items); err == nil {
		for _, item := range items {
			normalized := ActionItem{
				ID:          uuid.NewString(),
				Title:       item.Title,
				Description: item.Description,
				Priority:    item.Priority,
				Category:    item.Category,
			}
			if normalized.Priority == "" {
				normalized.Priority = PriorityMedium
			}
			if normalized.Category == "" {
				normalized.Category = "General"
			}
			draft.ActionItems = append(draft.ActionItems, normalized)
		}
	}

	var confidence int
	if len(out.Confidence) > 0 && json.Unmarshal(out.Confidence, &confidence) == nil {
		draft.Confidence = confidence
	}

	return draft, nil
}

// extractJSONBlock returns the first balanced {...} block, skipping braces
// inside string literals.
func extractJSONBlock(content string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return content[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// demoDraft is the provider-outage fallback. Deterministic apart from the
// elapsed time and the generated action item id.
func demoDraft(documentName string, elapsed time.Duration) Draft {
	return Draft{
		Summary: fmt.Sprintf(
			"Analyse automatique du document %q. Ce document contient des informations importantes "+
				"qui nécessitent une attention particulière. Les points clés ont été identifiés et des "+
				"actions sont suggérées pour optimiser le traitement de ces informations.",
			documentName,
		),
		KeyPoints: []string{
			"Document analysé avec succès",
			"Contenu structuré et organisé",
			"Informations pertinentes identifiées",
			"Recommandations formulées",
		},
		ActionItems: []ActionItem{
			{
				ID:          uuid.NewString(),
				Title:       "Révision du contenu",
				Description: "Examiner en détail le contenu du document pour validation",
				Priority:    PriorityMedium,
				Category:    "Analyse",
			},
		},
		Confidence:     75,
		ProcessingTime: elapsed.Seconds(),
		ModelUsed:      "demo",
		TokensUsed:     150,
	}
}
