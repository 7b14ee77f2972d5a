package analyses

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docinsight-backend/internal/llm"
)

type fakeLLM struct {
	completion llm.Completion
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (llm.Completion, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return f.completion, nil
}

func TestGenerateParsesModelOutput(t *testing.T) {
	client := &fakeLLM{completion: llm.Completion{
		Content: `Voici l'analyse demandée :
{
  "summary": "Un résumé assez long du document.",
  "keyPoints": ["Premier point", "Second point"],
  "actionItems": [{"title": "Relire", "description": "Relire le chapitre trois", "priority": "high", "category": "Revue"}],
  "confidence": 91
}
Fin de la réponse.`,
		Model:      "gpt-4-turbo-preview",
		TokensUsed: 512,
	}}
	gen := &Generator{LLM: client, Fallback: true}

	draft, err := gen.Generate(context.Background(), "contenu du document", "rapport.pdf")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Summary != "Un résumé assez long du document." {
		t.Fatalf("summary = %q", draft.Summary)
	}
	if len(draft.KeyPoints) != 2 {
		t.Fatalf("keyPoints = %v", draft.KeyPoints)
	}
	if len(draft.ActionItems) != 1 {
		t.Fatalf("actionItems = %v", draft.ActionItems)
	}
	item := draft.ActionItems[0]
	if item.ID == "" {
		t.Fatal("expected generated action item id")
	}
	if item.Priority != PriorityHigh || item.Category != "Revue" {
		t.Fatalf("unexpected action item: %+v", item)
	}
	if draft.Confidence != 91 {
		t.Fatalf("confidence = %d", draft.Confidence)
	}
	if draft.ModelUsed != "gpt-4-turbo-preview" || draft.TokensUsed != 512 {
		t.Fatalf("model metadata: %q %d", draft.ModelUsed, draft.TokensUsed)
	}
}

func TestGenerateNormalizesMissingFields(t *testing.T) {
	client := &fakeLLM{completion: llm.Completion{
		Content: `{"keyPoints": "pas une liste", "actionItems": [{"title": "Agir"}]}`,
	}}
	gen := &Generator{LLM: client}

	draft, err := gen.Generate(context.Background(), "texte", "doc.pdf")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Summary != "" {
		t.Fatalf("summary = %q", draft.Summary)
	}
	if len(draft.KeyPoints) != 0 {
		t.Fatalf("keyPoints should be empty, got %v", draft.KeyPoints)
	}
	if draft.Confidence != 80 {
		t.Fatalf("default confidence = %d", draft.Confidence)
	}
	item := draft.ActionItems[0]
	if item.Priority != PriorityMedium || item.Category != "General" {
		t.Fatalf("defaults not applied: %+v", item)
	}
}

func TestGenerateTruncatesLongDocuments(t *testing.T) {
	client := &fakeLLM{completion: llm.Completion{Content: `{"summary": "ok"}`}}
	gen := &Generator{LLM: client}

	longText := strings.Repeat("x", promptTextLimit+500)
	if _, err := gen.Generate(context.Background(), longText, "gros.pdf"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(client.lastUser, "[...texte tronqué...]") {
		t.Fatal("expected truncation marker in prompt")
	}
	if strings.Contains(client.lastUser, strings.Repeat("x", promptTextLimit+1)) {
		t.Fatal("prompt carries more than the text limit")
	}
}

func TestGenerateShortDocumentNotTruncated(t *testing.T) {
	client := &fakeLLM{completion: llm.Completion{Content: `{"summary": "ok"}`}}
	gen := &Generator{LLM: client}

	if _, err := gen.Generate(context.Background(), "court", "petit.pdf"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(client.lastUser, "tronqué") {
		t.Fatal("unexpected truncation marker")
	}
}

func TestGenerateFallbackOnProviderOutage(t *testing.T) {
	client := &fakeLLM{err: llm.ErrUnavailable}
	gen := &Generator{LLM: client, Fallback: true}

	draft, err := gen.Generate(context.Background(), "texte", "contrat.pdf")
	if err != nil {
		t.Fatalf("fallback must never fail, got %v", err)
	}
	if draft.Confidence != 75 {
		t.Fatalf("fallback confidence = %d", draft.Confidence)
	}
	if !strings.Contains(draft.Summary, "contrat.pdf") {
		t.Fatalf("fallback summary should name the document, got %q", draft.Summary)
	}
	if len(draft.KeyPoints) == 0 || len(draft.ActionItems) == 0 {
		t.Fatal("fallback draft must be fully populated")
	}
	if draft.ActionItems[0].Priority != PriorityMedium {
		t.Fatalf("fallback priority = %q", draft.ActionItems[0].Priority)
	}
}

func TestGenerateOutageWithoutFallbackFails(t *testing.T) {
	client := &fakeLLM{err: llm.ErrUnavailable}
	gen := &Generator{LLM: client, Fallback: false}

	if _, err := gen.Generate(context.Background(), "texte", "doc.pdf"); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateParseFailureIsNotAbsorbed(t *testing.T) {
	client := &fakeLLM{completion: llm.Completion{Content: "désolé, je ne peux pas produire de JSON"}}
	gen := &Generator{LLM: client, Fallback: true}

	if _, err := gen.Generate(context.Background(), "texte", "doc.pdf"); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
}

func TestExtractJSONBlock(t *testing.T) {
	block, ok := extractJSONBlock(`intro {"a": {"b": 1}} trailing {"c": 2}`)
	if !ok || block != `{"a": {"b": 1}}` {
		t.Fatalf("got %q ok=%v", block, ok)
	}

	block, ok = extractJSONBlock(`{"text": "brace } inside string", "n": 1}`)
	if !ok || block != `{"text": "brace } inside string", "n": 1}` {
		t.Fatalf("string braces mishandled: %q ok=%v", block, ok)
	}

	if _, ok := extractJSONBlock("no json here"); ok {
		t.Fatal("expected no block")
	}

	if _, ok := extractJSONBlock(`{"never": "closed"`); ok {
		t.Fatal("unbalanced block must not match")
	}
}
