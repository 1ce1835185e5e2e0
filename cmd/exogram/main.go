// Package main provides the exogram command line tool. It turns one
// recorded browser demonstration into reusable operating knowledge and
// replays that knowledge through an autonomous browsing agent.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"exogram/pkg/agent"
	"exogram/pkg/auth"
	"exogram/pkg/browser"
	"exogram/pkg/cognition"
	"exogram/pkg/config"
	"exogram/pkg/distill"
	"exogram/pkg/llm"
	"exogram/pkg/llm/openai"
	"exogram/pkg/memory"
	"exogram/pkg/recording"
	"exogram/pkg/session"
)

const version = "0.1.0"

const usage = `exogram v%s — procedural memory for browser agents

Usage: exogram <command> [flags]

Commands:
  record     normalize a raw demonstration export into canonical steps
  distill    turn normalized steps into a cognition record
  memorize   append a cognition record to the long-term memory store
  recall     search the memory store
  run        start an interactive task session
  auth       capture or list saved login state

Run 'exogram <command> -h' for the flags of each command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "record":
		err = runRecord(cfg, args)
	case "distill":
		err = runDistill(cfg, args)
	case "memorize":
		err = runMemorize(cfg, args)
	case "recall":
		err = runRecall(cfg, args)
	case "run":
		err = runSession(cfg, args)
	case "auth":
		err = runAuth(cfg, args)
	case "version":
		fmt.Printf("exogram v%s\n", version)
	default:
		fmt.Fprintf(os.Stderr, usage, version)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "exogram: %v\n", err)
	os.Exit(1)
}

func runRecord(cfg *config.Settings, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	input := fs.String("input", "", "path to the raw demonstration export (JSON)")
	topic := fs.String("topic", "", "topic name for the demonstration")
	format := fs.String("format", "workflow", "input format: workflow or live")
	fs.Parse(args)

	if *input == "" || *topic == "" {
		return errors.New("record: -input and -topic are required")
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("record: read input: %w", err)
	}

	src := recording.Source{Topic: *topic}
	switch *format {
	case "workflow":
		export, err := recording.ParseWorkflowExport(data)
		if err != nil {
			return err
		}
		src.Workflow = export
	case "live":
		var capture recording.LiveCapture
		if err := json.Unmarshal(data, &capture); err != nil {
			return fmt.Errorf("record: parse live capture: %w", err)
		}
		capture.Topic = *topic
		src.Live = &capture
	default:
		return fmt.Errorf("record: unknown format %q", *format)
	}

	doc, warnings, err := recording.Normalize(src)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: step %d: %s\n", w.Index, w.Reason)
	}
	if err := os.MkdirAll(cfg.StepsDir(), 0o750); err != nil {
		return err
	}
	path := recording.StepsPath(cfg.StepsDir(), *topic)
	if err := recording.WriteDocument(path, doc); err != nil {
		return err
	}
	fmt.Printf("recorded %d steps for %q -> %s\n", len(doc.Steps), *topic, path)
	return nil
}

func runDistill(cfg *config.Settings, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := flag.NewFlagSet("distill", flag.ExitOnError)
	topic := fs.String("topic", "", "topic of a previously recorded demonstration")
	model := fs.String("model", cfg.DistillModel, "model to distill with")
	fs.Parse(args)

	if *topic == "" {
		return errors.New("distill: -topic is required")
	}
	doc, err := recording.LoadDocument(recording.StepsPath(cfg.StepsDir(), *topic))
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg, *model)
	if err != nil {
		return err
	}
	d := distill.New(provider, distill.WithRetryBound(cfg.MaxRetries))
	if err := os.MkdirAll(cfg.CognitionDir(), 0o750); err != nil {
		return err
	}
	path := cognition.Path(cfg.CognitionDir(), *topic)
	record, err := d.DistillToFile(ctx, doc, path)
	if err != nil {
		return err
	}
	fmt.Printf("distilled %q (%d phases) -> %s\n", record.Task.Summary, len(record.OperationFlow), path)
	return nil
}

func runMemorize(cfg *config.Settings, args []string) error {
	fs := flag.NewFlagSet("memorize", flag.ExitOnError)
	topic := fs.String("topic", "", "topic of a previously distilled cognition record")
	fs.Parse(args)

	if *topic == "" {
		return errors.New("memorize: -topic is required")
	}
	rich, err := cognition.Load(cognition.Path(cfg.CognitionDir(), *topic))
	if err != nil {
		return err
	}
	store, err := memory.NewStore(cfg.MemoryPath())
	if err != nil {
		return err
	}
	record := memory.FromRich(rich)
	if err := store.Append(record); err != nil {
		return err
	}
	fmt.Printf("memorized %q as %s\n", record.Topic, record.ID)
	return nil
}

func runRecall(cfg *config.Settings, args []string) error {
	fs := flag.NewFlagSet("recall", flag.ExitOnError)
	topic := fs.String("topic", "", "restrict to one topic")
	query := fs.String("query", "", "free-text relevance query")
	limit := fs.Int("limit", 5, "maximum results")
	fs.Parse(args)

	store, err := memory.NewStore(cfg.MemoryPath())
	if err != nil {
		return err
	}
	hits, err := store.Retrieve(*topic, *query, *limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no matching memories")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%.2f  %-24s  %s  %s\n",
			h.Score, h.Record.Topic, h.Record.CreatedAt.Format("2006-01-02"), h.Record.Summary)
	}
	return nil
}

func runSession(cfg *config.Settings, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	topic := fs.String("topic", "", "default topic for submitted tasks")
	model := fs.String("model", cfg.AgentModel, "model driving the agent")
	safeMode := fs.Bool("safe-mode", cfg.SafeMode, "withhold destructive actions")
	headless := fs.Bool("headless", cfg.Headless, "hide the browser window")
	fs.Parse(args)

	provider, err := newProvider(cfg, *model)
	if err != nil {
		return err
	}
	store, err := memory.NewStore(cfg.MemoryPath())
	if err != nil {
		return err
	}
	authMgr, err := auth.NewManager(cfg.AuthDir())
	if err != nil {
		return err
	}

	sess := session.New(provider, store, agent.Factory(),
		session.WithSafeMode(*safeMode),
		session.WithHeadless(*headless),
		session.WithAuth(authMgr),
	)
	defer sess.Close()

	// Ctrl-C aborts only the in-flight task. Each SIGINT maps to one
	// Interrupt call, so the prompt stays usable afterwards.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			sess.Interrupt()
		}
	}()

	fmt.Printf("exogram session (topic=%q, safe-mode=%v). Enter a task, or 'quit'.\n", *topic, *safeMode)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		task := strings.TrimSpace(scanner.Text())
		switch {
		case task == "":
			continue
		case task == "quit" || task == "exit":
			return nil
		}

		result, err := sess.Submit(context.Background(), *topic, task)
		if err != nil {
			var fatalErr *session.SessionFatalError
			if errors.As(err, &fatalErr) {
				return fatalErr
			}
			fmt.Fprintf(os.Stderr, "task failed: %v\n", err)
			continue
		}
		printResult(result)
	}
	return scanner.Err()
}

func printResult(r *session.TaskResult) {
	fmt.Printf("[%s] %s (%d steps)\n", r.Status, r.Summary, r.Steps)
	if r.Status == session.StatusBlocked {
		fmt.Printf("withheld: %s on %q — rerun without safe mode to proceed\n",
			r.BlockedAction, r.BlockedTarget)
	}
	if r.Extracted != "" {
		fmt.Printf("--- extracted ---\n%s\n", r.Extracted)
	}
}

// runAuth opens a visible browser on the login page, lets the operator
// sign in by hand, then captures the storage state for the domain.
func runAuth(cfg *config.Settings, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	startURL := fs.String("start-url", "", "login page to open for manual sign-in")
	list := fs.Bool("list", false, "list saved domains")
	fs.Parse(args)

	mgr, err := auth.NewManager(cfg.AuthDir())
	if err != nil {
		return err
	}
	if *list {
		for _, d := range mgr.Domains() {
			fmt.Println(d)
		}
		return nil
	}
	if *startURL == "" {
		return errors.New("auth: -start-url or -list is required")
	}

	browsers := browser.NewManager()
	if err := browsers.Initialize(); err != nil {
		return err
	}
	defer browsers.Shutdown()

	handle, err := browsers.Open(browser.LaunchOptions{Headless: false})
	if err != nil {
		return err
	}
	if err := handle.Navigate(*startURL); err != nil {
		return err
	}

	fmt.Println("Sign in in the browser window, then press Enter here to save the session.")
	bufio.NewReader(os.Stdin).ReadString('\n')

	blob, err := handle.SaveStorageState()
	if err != nil {
		return err
	}
	if err := mgr.SaveForURL(*startURL, blob); err != nil {
		return err
	}
	fmt.Printf("saved login state for %s\n", *startURL)
	return nil
}

func newProvider(cfg *config.Settings, model string) (llm.Provider, error) {
	opts := []openai.ProviderOption{
		openai.WithModel(model),
		openai.WithTemperature(cfg.Temperature),
		openai.WithMaxTokens(int64(cfg.MaxTokens)),
		openai.WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	provider, err := openai.NewProvider(cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return provider, nil
}
