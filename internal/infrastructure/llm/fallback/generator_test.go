package fallback

import (
	"context"
	"errors"
	"testing"
)

type fakeGenerator struct {
	answer  string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeGenerator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return f.GenerateFromPrompt(ctx, prompt)
}

func TestGeneratePrimarySuccessSkipsSecondary(t *testing.T) {
	primary := &fakeGenerator{answer: "resposta primária"}
	secondary := &fakeGenerator{answer: "resposta secundária"}
	chain := NewGenerator(primary, secondary)

	answer, err := chain.GenerateFromPrompt(context.Background(), "pergunta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "resposta primária" {
		t.Errorf("expected primary answer, got %q", answer)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary must not be called on primary success, got %d calls", secondary.calls)
	}
}

func TestGeneratePrimaryFailureFallsBack(t *testing.T) {
	primary := &fakeGenerator{err: errors.New("ollama down")}
	secondary := &fakeGenerator{answer: "resposta secundária"}
	chain := NewGenerator(primary, secondary)

	answer, err := chain.GenerateFromPrompt(context.Background(), "pergunta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "resposta secundária" {
		t.Errorf("expected fallback answer, got %q", answer)
	}
	if len(secondary.prompts) != 1 || secondary.prompts[0] != "pergunta" {
		t.Errorf("expected prompt forwarded to secondary, got %v", secondary.prompts)
	}
}

func TestGenerateBothFailReturnsPrimaryError(t *testing.T) {
	primaryErr := errors.New("ollama down")
	primary := &fakeGenerator{err: primaryErr}
	secondary := &fakeGenerator{err: errors.New("openai down")}
	chain := NewGenerator(primary, secondary)

	_, err := chain.GenerateFromPrompt(context.Background(), "pergunta")
	if !errors.Is(err, primaryErr) {
		t.Errorf("expected primary error to surface, got %v", err)
	}
}

func TestGenerateNoSecondaryReturnsError(t *testing.T) {
	primaryErr := errors.New("ollama down")
	chain := NewGenerator(&fakeGenerator{err: primaryErr}, nil)

	_, err := chain.GenerateFromPrompt(context.Background(), "pergunta")
	if !errors.Is(err, primaryErr) {
		t.Errorf("expected primary error, got %v", err)
	}
}

func TestGenerateDeadContextSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &fakeGenerator{err: context.Canceled}
	secondary := &fakeGenerator{answer: "resposta secundária"}
	chain := NewGenerator(primary, secondary)

	_, err := chain.GenerateFromPrompt(ctx, "pergunta")
	if err == nil {
		t.Fatal("expected error with dead context")
	}
	if secondary.calls != 0 {
		t.Errorf("secondary must not run after cancellation, got %d calls", secondary.calls)
	}
}

func TestGenerateJSONFallsBackToo(t *testing.T) {
	primary := &fakeGenerator{err: errors.New("ollama down")}
	secondary := &fakeGenerator{answer: `{"doc_type": "Lei"}`}
	chain := NewGenerator(primary, secondary)

	answer, err := chain.GenerateJSONFromPrompt(context.Background(), "classifique")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != `{"doc_type": "Lei"}` {
		t.Errorf("expected secondary JSON, got %q", answer)
	}
}
