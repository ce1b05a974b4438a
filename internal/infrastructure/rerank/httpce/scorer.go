// Package httpce calls an external cross-encoder service for relevance
// scoring. The wire contract is a single POST /rerank with the question and
// candidate texts; the service answers one score per text, higher is more
// relevant.
package httpce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/regulait/parecer/internal/core/domain"
)

type Scorer struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Scorer {
	return NewWithTimeout(baseURL, 10*time.Second)
}

func NewWithTimeout(baseURL string, timeout time.Duration) *Scorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Scorer) ScoreCandidates(ctx context.Context, question string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{
		"query": question,
		"texts": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrProviderTimeout, "rerank", err)
		}
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("rerank status: %s", resp.Status)
	}

	var response struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(response.Scores) != len(texts) {
		return nil, fmt.Errorf("rerank: got %d scores for %d texts", len(response.Scores), len(texts))
	}
	return response.Scores, nil
}
