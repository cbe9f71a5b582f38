package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/aiclone/clone"
	"github.com/BaSui01/aiclone/llm"
	"github.com/BaSui01/aiclone/memory"
)

type command func(args []string, stdin io.Reader, stdout, stderr io.Writer) error

var commands = map[string]command{
	"chat":      runChat,
	"benchmark": runBenchmark,
	"report":    runReport,
	"stats":     runStats,
	"search":    runSearch,
	"clear":     runClear,
	"health":    runHealth,
}

// commonFlags 为每个子命令注册 --config 与 --persona
type commonFlags struct {
	fs         *flag.FlagSet
	configPath *string
	persona    *string
}

func newFlags(name string, stderr io.Writer) commonFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return commonFlags{
		fs:         fs,
		configPath: fs.String("config", "", "Path to config file"),
		persona:    fs.String("persona", "", "Persona answers file or demo name"),
	}
}

// withApp 解析公共参数、构建依赖并在结束后释放
func withApp(f commonFlags, args []string, fn func(ctx context.Context, a *app) error) error {
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return err
	}
	p, err := resolvePersona(*f.persona)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, p, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

// =============================================================================
// 💬 chat 命令
// =============================================================================

func runChat(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("chat", stderr)
	message := f.fs.String("message", "", "Send one message and exit")

	return withApp(f, args, func(ctx context.Context, a *app) error {
		c := a.newClone()
		if *message != "" {
			fmt.Fprintln(stdout, c.Respond(ctx, *message))
			return nil
		}
		return chatLoop(ctx, a, c, stdin, stdout)
	})
}

func (a *app) newClone() *clone.Clone {
	llmCfg := a.cfg.LLM
	return clone.New(a.persona, a.memory, a.ollama,
		clone.WithLogger(a.logger),
		clone.WithTracer(a.telemetry.Tracer(tracerName)),
		clone.WithTimeout(llmCfg.Timeout),
		clone.WithContextBudget(a.cfg.Memory.ContextBudget),
		clone.WithGenerateOptions(llm.GenerateOptions{
			Temperature:   llmCfg.Temperature,
			TopP:          llmCfg.TopP,
			MaxTokens:     llmCfg.MaxTokens,
			RepeatPenalty: llmCfg.RepeatPenalty,
			TopK:          llmCfg.TopK,
		}),
	)
}

// chatLoop 逐行读取用户输入；以 / 开头的行为本地指令
func chatLoop(ctx context.Context, a *app, c *clone.Clone, stdin io.Reader, stdout io.Writer) error {
	fmt.Fprintf(stdout, "Chatting with %s (%s). Memory: %s. Type /help for commands.\n",
		c.Name(), a.persona.Summary(), a.memory.Kind())

	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := chatCommand(ctx, a, line, stdout); done {
				return nil
			}
			continue
		}

		fmt.Fprintf(stdout, "%s: %s\n", c.Name(), c.Respond(ctx, line))
		if ctx.Err() != nil {
			return nil
		}
	}
}

func chatCommand(ctx context.Context, a *app, line string, stdout io.Writer) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/stats":
		_ = writeJSON(stdout, a.memory.Stats(ctx))
	case "/summary":
		fmt.Fprintln(stdout, a.memory.ConversationSummary())
	case "/profile":
		speaker := clone.UserSpeaker
		if len(fields) > 1 {
			speaker = strings.Join(fields[1:], " ")
		}
		_ = writeJSON(stdout, a.memory.SpeakerProfile(speaker))
	case "/switch":
		if len(fields) < 2 {
			fmt.Fprintln(stdout, "usage: /switch <rolling|keyword|vector>")
			break
		}
		if a.memory.Switch(ctx, fields[1]) {
			fmt.Fprintf(stdout, "Memory switched to %s\n", a.memory.Kind())
		} else {
			fmt.Fprintf(stdout, "Could not switch to %s; still using %s\n", fields[1], a.memory.Kind())
		}
	default:
		fmt.Fprintln(stdout, "Commands: /stats /summary /profile [speaker] /switch <kind> /quit")
	}
	return false
}

// =============================================================================
// 📊 记忆管理命令
// =============================================================================

func runBenchmark(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("benchmark", stderr)
	return withApp(f, args, func(ctx context.Context, a *app) error {
		results := a.memory.Benchmark(ctx, nil)
		printBenchmark(stdout, results)
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, a.memory.Report())
		return nil
	})
}

func printBenchmark(w io.Writer, results map[memory.Kind]float64) {
	kinds := make([]memory.Kind, 0, len(results))
	for k := range results {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Fprintln(w, "Benchmark results:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %.4fs\n", k, results[k])
	}
}

func runReport(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("report", stderr)
	return withApp(f, args, func(_ context.Context, a *app) error {
		fmt.Fprint(stdout, a.memory.Report())
		return nil
	})
}

func runStats(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("stats", stderr)
	return withApp(f, args, func(ctx context.Context, a *app) error {
		return writeJSON(stdout, a.memory.Stats(ctx))
	})
}

func runSearch(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("search", stderr)
	query := f.fs.String("query", "", "Text to search for")
	limit := f.fs.Int("limit", 5, "Maximum results")
	similar := f.fs.Bool("similar", false, "Use similarity search")

	return withApp(f, args, func(ctx context.Context, a *app) error {
		if strings.TrimSpace(*query) == "" {
			return errors.New("--query is required")
		}
		var results []memory.SearchResult
		if *similar {
			results = a.memory.SimilarTo(ctx, *query, *limit)
		} else {
			results = a.memory.Search(ctx, *query, *limit)
		}
		printResults(stdout, results)
		return nil
	})
}

func printResults(w io.Writer, results []memory.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "[%.3f %s] %s %s: %s\n",
			r.Score, r.Source, r.Timestamp.Format(time.DateTime), r.Speaker, r.Content)
	}
}

func runClear(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	f := newFlags("clear", stderr)
	yes := f.fs.Bool("yes", false, "Confirm deletion")

	return withApp(f, args, func(ctx context.Context, a *app) error {
		if !*yes {
			return errors.New("refusing to clear memory without --yes")
		}
		if err := a.memory.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Cleared %s memory for %s\n", a.memory.Kind(), a.persona.Name())
		return nil
	})
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealth(args []string, _ io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	client := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: 5 * time.Second,
	}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	fmt.Fprintf(stdout, "OK: %s serving %s\n", cfg.LLM.BaseURL, client.Model())
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
