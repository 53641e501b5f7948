package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/database"
	importsources "ndta-news/pipeline/internal/import"
	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/logging"
	"ndta-news/pipeline/internal/pipeline"
	"ndta-news/pipeline/internal/review"
	"ndta-news/pipeline/internal/server"
	"ndta-news/pipeline/internal/store"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	ctx        context.Context
	cfg        *config.Config
	configPath string
	st         *store.Store
	p          *pipeline.Pipeline
	svc        *pipeline.Services
	reg        *prometheus.Registry
}

func loadConfig(cf *commonFlags) (*config.Config, error) {
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApp loads configuration, sets up logging, opens the store and builds
// the pipeline, then runs fn until it returns or a shutdown signal arrives.
func withApp(cf *commonFlags, fn func(a *app) error) error {
	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}

	consoleLevel := zerolog.WarnLevel
	if cf.debug {
		consoleLevel = zerolog.DebugLevel
	}
	level := cfg.LogLevel
	if cf.debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	closeLogs, err := logging.Setup(logging.Options{Dir: cfg.LogDir, Level: level, ConsoleLevel: consoleLevel})
	if err != nil {
		return err
	}
	defer closeLogs()

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// A second interrupt kills the process.
		stop()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st := store.New(db)
	p, svc, err := pipeline.Build(ctx, cfg, st, reg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	return fn(&app{ctx: ctx, cfg: cfg, configPath: cf.configPath, st: st, p: p, svc: svc, reg: reg})
}

func (a *app) runScrape(days int) error {
	fmt.Println("🔍 Scraping news sources...")
	run, err := a.p.Scrape(a.ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Scraped %d articles (%d already seen)\n", run.Total, run.Duplicates)
	fmt.Printf("   Relevant: %d\n   High relevance: %d\n   State-specific: %d\n", run.Relevant, run.HighRelevance, run.StateSpecific)
	fmt.Printf("   Auto-approved: %d\n   Rejected by verification: %d\n", run.AutoApproved, run.Rejected)
	fmt.Println("\n➡️  Next step: pipeline review")
	return nil
}

// interrupted treats a shutdown signal during an interactive session as a
// normal exit; every decision made before it is already saved.
func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Interactive session interrupted")
		return nil
	}
	return err
}

func (a *app) runReview() error {
	_, err := review.NewSession(a.p, a.svc.Generator, os.Stdin, os.Stdout, pipeline.ActorAdmin).Articles(a.ctx)
	return interrupted(err)
}

func (a *app) runApprove() error {
	_, err := review.NewSession(a.p, a.svc.Generator, os.Stdin, os.Stdout, pipeline.ActorAdmin).Reports(a.ctx)
	return interrupted(err)
}

func printBatch(verb string, s pipeline.BatchStats) {
	symbol := "✅"
	if s.Failed > 0 {
		symbol = "⚠️ "
	}
	fmt.Printf("%s %s %d of %d", symbol, verb, s.Succeeded, s.Attempted)
	if s.Failed > 0 {
		fmt.Printf(", %d failed", s.Failed)
	}
	if s.Skipped > 0 {
		fmt.Printf(", %d skipped", s.Skipped)
	}
	fmt.Println()
}

func (a *app) runGenerate() error {
	fmt.Println("📝 Generating reports...")
	stats, err := a.p.Generate(a.ctx)
	if err != nil {
		return err
	}
	if stats.Attempted == 0 {
		fmt.Println("ℹ️  No approved articles waiting for a report")
		return nil
	}
	printBatch("Generated", stats)
	fmt.Println("\n➡️  Next step: pipeline graphics")
	return nil
}

func (a *app) runGraphics() error {
	fmt.Println("🎨 Rendering graphics...")
	stats, err := a.p.Graphics(a.ctx)
	if err != nil {
		return err
	}
	if stats.Attempted == 0 {
		fmt.Println("ℹ️  No reports waiting for graphics")
		return nil
	}
	printBatch("Rendered", stats)
	fmt.Printf("   Graphics saved in %s\n", a.cfg.GraphicsDir())
	fmt.Println("\n➡️  Next step: pipeline approve")
	return nil
}

func (a *app) runPost() error {
	fmt.Println("📤 Posting approved content...")
	platforms := a.svc.Publisher.Enabled()
	if len(platforms) == 0 {
		fmt.Println("⚠️  No social platform is configured, nothing can be posted")
	} else {
		fmt.Printf("   Platforms: %s\n", strings.Join(platforms, ", "))
	}
	stats, err := a.p.Post(a.ctx)
	if err != nil {
		return err
	}
	if stats.Attempted == 0 {
		fmt.Println("ℹ️  No approved content waiting to be posted")
		return nil
	}
	printBatch("Posted", stats)
	return nil
}

func (a *app) runStateAlerts(post bool) error {
	alerts, err := a.p.StateAlerts(a.ctx)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("ℹ️  No state-specific alerts")
	} else {
		fmt.Printf("📍 %d state-specific alerts\n", len(alerts))
		for i, alert := range alerts {
			fmt.Printf("\n%d. %s\n", i+1, alert.Article.Title)
			fmt.Printf("   States: %s\n", alert.States)
			fmt.Printf("   URL: %s\n", alert.Article.URL)
			if len(alert.Groups) > 0 {
				fmt.Printf("   Suggested groups: %s\n", strings.Join(alert.Groups, ", "))
			}
		}
	}

	if !post {
		return nil
	}
	fmt.Println("\n📤 Sharing with state groups...")
	stats, err := a.p.PostStateGroups(a.ctx)
	if err != nil {
		return err
	}
	if stats.Attempted == 0 {
		fmt.Println("ℹ️  Nothing to share, or no groups are configured")
		return nil
	}
	printBatch("Shared", stats)
	return nil
}

// runAuto runs the unattended workflow once, or every interval until a
// shutdown signal arrives.
func (a *app) runAuto(interval time.Duration) error {
	if interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(interval.Minutes())).Msg("Running in periodic mode")
	}

	a.autoCycle()
	if interval <= 0 || a.ctx.Err() != nil {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Time("next_run", time.Now().Add(interval)).Msg("Waiting for next run")
	for {
		select {
		case <-ticker.C:
			a.autoCycle()
			log.Info().Time("next_run", time.Now().Add(interval)).Msg("Waiting for next run")
		case <-a.ctx.Done():
			log.Info().Msg("Shutting down periodic runs")
			return nil
		}
	}
}

func (a *app) autoCycle() {
	start := time.Now()
	res := a.p.Auto(a.ctx)
	if res.Scrape != nil {
		fmt.Printf("🔍 Scraped %d articles, %d relevant\n", res.Scrape.Total, res.Scrape.Relevant)
	}
	printBatch("Generated", res.Generate)
	printBatch("Rendered", res.Graphics)
	printBatch("Posted", res.Post)
	for _, e := range res.Errors {
		fmt.Printf("❌ %s\n", e)
	}
	log.Info().Dur("duration", time.Since(start)).Int("errors", len(res.Errors)).Msg("Unattended run finished")
}

func (a *app) runStatus() error {
	st, err := a.p.Status(a.ctx)
	if err != nil {
		return err
	}
	c := st.Counts
	fmt.Println("📊 Pipeline status")
	fmt.Printf("   Articles pending review:   %d\n", c.ArticlesPending)
	fmt.Printf("   Articles approved:         %d (%d awaiting report)\n", c.ArticlesApproved, c.AwaitingReport)
	fmt.Printf("   Articles rejected:         %d\n", c.ArticlesRejected)
	fmt.Printf("   Reports pending graphics:  %d\n", c.PendingGraphics)
	fmt.Printf("   Reports pending approval:  %d\n", c.PendingApproval)
	fmt.Printf("   Reports approved:          %d\n", c.ReportsApproved)
	fmt.Printf("   Content ready to post:     %d\n", c.ReadyToPost)
	fmt.Printf("   Content posted:            %d\n", c.Posted)
	fmt.Printf("   State alerts:              %d\n", c.StateAlerts)
	if st.LatestRun != nil {
		fmt.Printf("\n🕒 Last scrape %s: %d articles, %d relevant\n",
			st.LatestRun.StartedAt.Local().Format("2006-01-02 15:04"), st.LatestRun.Total, st.LatestRun.Relevant)
	}
	fmt.Printf("\n➡️  Next step: pipeline %s\n", st.NextAction)
	return nil
}

// runLogs prints the tail of the error log. It does not open the store.
func runLogs(cf *commonFlags, n int64) error {
	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	tail, err := logging.TailErrors(cfg.LogDir, n)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("ℹ️  No error log found")
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(tail) == "" {
		fmt.Println("✅ Error log is empty")
		return nil
	}
	fmt.Printf("📋 Last %d bytes of %s:\n\n%s\n", n, logging.ErrorLogName, tail)
	return nil
}

func (a *app) runTest(live bool) error {
	fmt.Println("🧪 Checking configuration")
	fmt.Printf("   Config file: %s\n", a.configPath)
	fmt.Printf("   Database:    %s\n", a.cfg.DBPath)
	fmt.Printf("   Logs:        %s\n", a.cfg.LogDir)

	failed := false
	if err := a.st.Ping(a.ctx); err != nil {
		fmt.Printf("❌ Database: %v\n", err)
		failed = true
	} else {
		fmt.Println("✅ Database reachable")
	}

	features := a.cfg.Features()
	for _, name := range []string{
		config.FeatureLLM, config.FeatureNewsAPI, config.FeatureReddit,
		config.FeatureTwitter, config.FeatureFacebook, config.FeatureSMTP,
	} {
		if features[name] {
			fmt.Printf("✅ %s configured\n", name)
		} else {
			fmt.Printf("⚠️  %s not configured, feature disabled\n", name)
		}
	}

	if live {
		reply, err := a.svc.LLM.Complete(a.ctx, llm.Request{
			Prompt:    "Reply with the single word OK.",
			Model:     a.cfg.AI.FastModel,
			MaxTokens: 5,
		})
		if err != nil {
			fmt.Printf("❌ Language model: %v\n", err)
			failed = true
		} else {
			fmt.Printf("✅ Language model replied %q\n", reply)
		}
	}

	if failed {
		return errors.New("self-check failed")
	}
	return nil
}

func (a *app) runServer() error {
	log.Debug().Msg("Starting server with debug logging enabled")
	h := server.NewHandler(a.p, a.st, server.Options{
		APIKey:      a.cfg.APIKey,
		GraphicsDir: a.cfg.GraphicsDir(),
		Gatherer:    a.reg,
	}, log.Logger)
	fmt.Printf("🌐 Dashboard listening on %s\n", a.cfg.ListenAddr())
	return server.RunServer(a.ctx, h, a.cfg.ListenAddr(), log.Logger)
}

func (a *app) runImport(location string) error {
	if location == "" {
		return errors.New("no CSV given, use -csv")
	}
	res, err := importsources.NewImporter(a.st).ImportFile(a.ctx, location)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Imported %d of %d sources\n", res.Imported, res.Lines)
	for _, e := range res.Errors {
		fmt.Printf("⚠️  %s\n", e)
	}
	return nil
}
