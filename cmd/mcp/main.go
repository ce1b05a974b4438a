// The mcp binary exposes question answering and evidence search as MCP
// tools over stdio, so assistant hosts can consult the norm base directly.
// Stdout carries protocol frames; all logging goes to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/regulait/parecer/internal/bootstrap"
	"github.com/regulait/parecer/internal/config"
	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
	"github.com/regulait/parecer/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := server.NewMCPServer("parecer", "1.0.0", server.WithToolCapabilities(false))
	srv.AddTool(answerTool(), answerHandler(app.AnswerUC))
	srv.AddTool(searchTool(), searchHandler(app.AnswerUC))

	slog.Info("mcp_serving_stdio")
	if err := server.ServeStdio(srv); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

func answerTool() mcp.Tool {
	return mcp.NewTool("answer_question",
		mcp.WithDescription("Answer a question about the ingested regulatory norms. Returns the answer text, the supporting evidence excerpts and a validation verdict with a confidence label."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question, in natural language."),
		),
		mcp.WithNumber("k",
			mcp.Description("How many evidence excerpts to retrieve. Zero uses the server default."),
		),
		mcp.WithString("strategy",
			mcp.Description("Retrieval strategy."),
			mcp.Enum("vector_only", "lexical_only", "hybrid", "hybrid_rerank"),
		),
		mcp.WithBoolean("use_rerank",
			mcp.Description("Apply cross-encoder reranking on top of hybrid retrieval."),
		),
	)
}

func answerHandler(answerer ports.QuestionAnswerer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		strategy, err := parseStrategyArg(request.GetString("strategy", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := answerer.AnswerQuestion(ctx, domain.AnswerRequest{
			Question:  question,
			K:         request.GetInt("k", 0),
			Strategy:  strategy,
			UseRerank: request.GetBool("use_rerank", false),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonToolResult(result)
	}
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_evidence",
		mcp.WithDescription("Retrieve evidence excerpts for a question without generating an answer. Returns ranked excerpts with document metadata and any degradation warnings."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question or search phrase."),
		),
		mcp.WithNumber("k",
			mcp.Description("How many evidence excerpts to retrieve. Zero uses the server default."),
		),
		mcp.WithString("strategy",
			mcp.Description("Retrieval strategy."),
			mcp.Enum("vector_only", "lexical_only", "hybrid", "hybrid_rerank"),
		),
	)
}

func searchHandler(searcher ports.EvidenceSearcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		strategy, err := parseStrategyArg(request.GetString("strategy", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		evidence, warnings, err := searcher.SearchEvidence(ctx, question, strategy, request.GetInt("k", 0))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if evidence == nil {
			evidence = []domain.Evidence{}
		}
		return jsonToolResult(map[string]any{
			"evidence": evidence,
			"warnings": warnings,
		})
	}
}

func parseStrategyArg(raw string) (domain.RetrievalStrategy, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseStrategy(raw)
}

func jsonToolResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
