// cmd/deepsearch/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"deepsearch/internal/agent"
	"deepsearch/internal/analyzer"
	"deepsearch/internal/archive"
	"deepsearch/internal/cache"
	"deepsearch/internal/clients/llm"
	"deepsearch/internal/clients/tavily"
	"deepsearch/internal/common/config"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/common/observability"
	"deepsearch/internal/engine"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

func main() {
	zapLog := logger.New("info", "console")
	defer func() { _ = zapLog.Sync() }()

	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild with the configured level once the config is readable.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log = logger.NewZapAdapter(zapLog)

	obs := observability.New("deepsearch")
	defer obs.Shutdown()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				zapLog.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		zapLog.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.ListenAddr))
	}

	llmClient := llm.NewClient(&llm.Config{
		APIKey:     cfg.APIs.LLM.APIKey,
		BaseURL:    cfg.APIs.LLM.BaseURL,
		Model:      cfg.APIs.LLM.Model,
		Timeout:    config.GetDuration(cfg.APIs.LLM.Timeout),
		MaxHistory: cfg.Engine.MaxConversationHistory,
	}, log)

	tavilyClient := tavily.NewClient(&tavily.Config{
		APIKey:     cfg.APIs.Tavily.APIKey,
		BaseURL:    cfg.APIs.Tavily.BaseURL,
		MaxResults: cfg.APIs.Tavily.MaxResults,
		Timeout:    config.GetDuration(cfg.APIs.Tavily.Timeout),
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cache.Redis.Enabled {
		searchCache := cache.NewSearchCache(cache.Config{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      config.GetDuration(cfg.Cache.Redis.TTLSeconds * 1000),
		}, log)
		if err := searchCache.Ping(ctx); err != nil {
			zapLog.Warn("redis unreachable, search cache disabled", zap.Error(err))
		} else {
			tavilyClient = tavilyClient.WithCache(searchCache)
			defer searchCache.Close()
			zapLog.Info("search cache enabled", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	opts := engine.Options{Conversation: llmClient, Obs: obs}
	if cfg.Archive.Elasticsearch.Enabled {
		reportArchive, err := archive.NewReportArchive(archive.Config{
			Addresses: cfg.Archive.Elasticsearch.Addresses,
			Username:  cfg.Archive.Elasticsearch.Username,
			Password:  cfg.Archive.Elasticsearch.Password,
			Index:     cfg.Archive.Elasticsearch.Index,
		}, log)
		if err != nil {
			zapLog.Warn("elasticsearch client init failed, report archive disabled", zap.Error(err))
		} else if err := reportArchive.Ping(); err != nil {
			zapLog.Warn("elasticsearch unreachable, report archive disabled", zap.Error(err))
		} else {
			opts.Archiver = reportArchive
			zapLog.Info("report archive enabled", zap.String("index", cfg.Archive.Elasticsearch.Index))
		}
	}

	queryAnalyzer := analyzer.New(llmClient, log)
	searchPlanner := planner.New(log)
	reactAgent := agent.New(llmClient, tavilyClient, searchPlanner, agent.Config{
		MaxRounds: cfg.Engine.MaxRounds,
	}, log)
	integrator := engine.NewIntegrator(llmClient, log)

	searchEngine := engine.New(queryAnalyzer, searchPlanner, reactAgent, integrator, opts, log)

	runShell(ctx, searchEngine, cfg)
}

const helpText = `Commands:
  /help      show this help
  /clear     clear the session history and conversation
  /history   show the questions answered this session
  /stats     show session statistics
  /config    show the active configuration
  /insights  show the insights from the last search
  /quit      exit (also /exit)

Anything else is treated as a question and sent through deep search.`

func runShell(ctx context.Context, searchEngine *engine.Engine, cfg *config.Config) {
	fmt.Println("Deep Search - ReAct agentic search")
	fmt.Println("Type a question, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "/quit", "/exit":
			return

		case "/help":
			fmt.Println(helpText)

		case "/clear":
			searchEngine.ClearSession()
			fmt.Println("Session cleared.")

		case "/history":
			printHistory(searchEngine.History())

		case "/stats":
			printStats(searchEngine)

		case "/config":
			printConfig(cfg)

		case "/insights":
			printInsights(searchEngine.History())

		default:
			report := searchEngine.DeepSearch(ctx, line)
			printReport(report)
		}
	}
}

func printReport(report *models.Report) {
	if !report.Success {
		fmt.Printf("\nSearch failed: %s\n", report.Error)
		return
	}

	fmt.Printf("\n%s\n", report.Answer)
	fmt.Printf("\n--- %d results kept of %d found | %d rounds | %.1fs ---\n",
		report.HighQualityResults,
		report.TotalResultsFound,
		report.SearchProcess.TotalSearchRounds,
		report.DurationSeconds)

	for i, r := range report.SearchResults {
		if i >= 5 {
			fmt.Printf("  ... and %d more\n", len(report.SearchResults)-5)
			break
		}
		fmt.Printf("  [%.2f] %s\n         %s\n", r.Score, r.Title, r.URL)
	}
}

func printHistory(history []*models.Report) {
	if len(history) == 0 {
		fmt.Println("No questions answered yet.")
		return
	}
	for i, report := range history {
		status := "ok"
		if !report.Success {
			status = "failed"
		}
		fmt.Printf("%d. [%s] %s (%d results, %.1fs)\n",
			i+1, status, report.Query, report.HighQualityResults, report.DurationSeconds)
	}
}

func printStats(searchEngine *engine.Engine) {
	stats := searchEngine.Stats()
	fmt.Printf("Session started:  %s\n", stats.SessionStart.Format("2006-01-02 15:04:05"))
	fmt.Printf("Questions:        %d\n", stats.TotalQueries)
	fmt.Printf("Search rounds:    %d\n", stats.TotalSearchRounds)
	fmt.Printf("Results found:    %d\n", stats.TotalSearchResults)
	fmt.Printf("AI calls:         %d\n", stats.TotalAICalls)
	fmt.Printf("Tokens used:      %d\n", searchEngine.TokensUsed())
}

func printConfig(cfg *config.Config) {
	fmt.Printf("Model:            %s\n", cfg.APIs.LLM.Model)
	fmt.Printf("LLM base URL:     %s\n", cfg.APIs.LLM.BaseURL)
	fmt.Printf("Search base URL:  %s\n", cfg.APIs.Tavily.BaseURL)
	fmt.Printf("Max results:      %d\n", cfg.APIs.Tavily.MaxResults)
	fmt.Printf("Max rounds:       %d\n", cfg.Engine.MaxRounds)
	fmt.Printf("History cap:      %d\n", cfg.Engine.MaxConversationHistory)
	fmt.Printf("Cache enabled:    %t\n", cfg.Cache.Redis.Enabled)
	fmt.Printf("Archive enabled:  %t\n", cfg.Archive.Elasticsearch.Enabled)
}

func printInsights(history []*models.Report) {
	var last *models.Report
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Success {
			last = history[i]
			break
		}
	}
	if last == nil {
		fmt.Println("No successful search yet.")
		return
	}

	in := last.Insights
	fmt.Printf("Question:           %s\n", last.Query)
	fmt.Printf("Complexity:         %s (estimated %d rounds, ran %d)\n",
		in.ComplexityAssessment.IdentifiedComplexity,
		in.ComplexityAssessment.EstimatedRounds,
		in.ComplexityAssessment.ActualRounds)
	fmt.Printf("Strategy:           %s (%d planned rounds, %d actions)\n",
		in.StrategyEffectiveness.PlannedStrategy,
		in.StrategyEffectiveness.TotalPlannedRounds,
		in.StrategyEffectiveness.ActualReactActions)
	fmt.Printf("Final progress:     %.0f%%\n", in.StrategyEffectiveness.FinalProgressAchieved*100)
	fmt.Printf("Sources:            %d from %d domains, mean relevance %.2f\n",
		in.InformationDiscovery.TotalSourcesFound,
		in.InformationDiscovery.UniqueDomains,
		in.InformationDiscovery.AverageRelevanceScore)
	fmt.Printf("Reasoning cycles:   %d\n", in.AgentPerformance.ReasoningCycles)
	fmt.Printf("Knowledge size:     %d characters\n", in.AgentPerformance.KnowledgeAccumulationSize)
}
