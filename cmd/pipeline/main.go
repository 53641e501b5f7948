package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/config"
)

const usage = `Usage: pipeline [command] [options]
Commands:
  scrape        Scrape all sources and queue relevant articles for review
  review        Review pending articles interactively
  generate      Write reports for approved articles
  graphics      Render graphics for generated reports
  approve       Approve, edit or reject finished reports interactively
  post          Post approved content to social media
  state-alerts  List state-specific alerts (-post shares them with state groups)
  auto          Scrape, generate, render and post in one unattended run
  status        Show queue sizes and the suggested next command
  logs          Show the tail of the error log
  test          Check configuration and connectivity
  server        Run the dashboard API
  import        Import extra RSS sources from a CSV file

For command-specific options, use: pipeline [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	debug      bool
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", config.GetEnvString("NDTA_CONFIG", config.DefaultConfigPath),
		"Path to the YAML configuration file (env: NDTA_CONFIG)")
	fs.BoolVar(&cf.debug, "debug", false, "Show debug output on the console")
	return fs, cf
}

func main() {
	scrapeCmd, scrapeOpts := newFlagSet("scrape")
	var lookbackDays int
	scrapeCmd.IntVar(&lookbackDays, "days", 0,
		"Days to look back, 0 for the configured default (env: NDTA_LOOKBACK_DAYS)")

	reviewCmd, reviewOpts := newFlagSet("review")
	generateCmd, generateOpts := newFlagSet("generate")
	graphicsCmd, graphicsOpts := newFlagSet("graphics")
	approveCmd, approveOpts := newFlagSet("approve")
	postCmd, postOpts := newFlagSet("post")

	alertsCmd, alertsOpts := newFlagSet("state-alerts")
	var postGroups bool
	alertsCmd.BoolVar(&postGroups, "post", false, "Share approved state content with the configured Facebook groups")

	autoCmd, autoOpts := newFlagSet("auto")
	var intervalMinutes int
	autoCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("NDTA_INTERVAL", 0),
		"Interval in minutes between runs, 0 for one-shot mode (env: NDTA_INTERVAL)")

	statusCmd, statusOpts := newFlagSet("status")

	logsCmd, logsOpts := newFlagSet("logs")
	var tailBytes int64
	logsCmd.Int64Var(&tailBytes, "bytes", 2000, "Number of trailing bytes to print")

	testCmd, testOpts := newFlagSet("test")
	var live bool
	testCmd.BoolVar(&live, "live", false, "Also send a short request to the language model")

	serverCmd, serverOpts := newFlagSet("server")
	var host string
	var port int
	serverCmd.StringVar(&host, "host", "", "Host to bind the server to, overrides NDTA_HOST")
	serverCmd.IntVar(&port, "port", 0, "Port to listen on, overrides NDTA_PORT")

	importCmd, importOpts := newFlagSet("import")
	var csvPath string
	importCmd.StringVar(&csvPath, "csv", config.GetEnvString("NDTA_SOURCES_CSV", ""),
		"Path or http(s) URL of the sources CSV file (env: NDTA_SOURCES_CSV)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scrape":
		scrapeCmd.Parse(os.Args[2:])
		err = withApp(scrapeOpts, func(a *app) error { return a.runScrape(lookbackDays) })

	case "review":
		reviewCmd.Parse(os.Args[2:])
		err = withApp(reviewOpts, (*app).runReview)

	case "generate":
		generateCmd.Parse(os.Args[2:])
		err = withApp(generateOpts, (*app).runGenerate)

	case "graphics":
		graphicsCmd.Parse(os.Args[2:])
		err = withApp(graphicsOpts, (*app).runGraphics)

	case "approve":
		approveCmd.Parse(os.Args[2:])
		err = withApp(approveOpts, (*app).runApprove)

	case "post":
		postCmd.Parse(os.Args[2:])
		err = withApp(postOpts, (*app).runPost)

	case "state-alerts":
		alertsCmd.Parse(os.Args[2:])
		err = withApp(alertsOpts, func(a *app) error { return a.runStateAlerts(postGroups) })

	case "auto":
		autoCmd.Parse(os.Args[2:])
		interval := time.Duration(intervalMinutes) * time.Minute
		err = withApp(autoOpts, func(a *app) error { return a.runAuto(interval) })

	case "status":
		statusCmd.Parse(os.Args[2:])
		err = withApp(statusOpts, (*app).runStatus)

	case "logs":
		logsCmd.Parse(os.Args[2:])
		err = runLogs(logsOpts, tailBytes)

	case "test":
		testCmd.Parse(os.Args[2:])
		err = withApp(testOpts, func(a *app) error { return a.runTest(live) })

	case "server":
		serverCmd.Parse(os.Args[2:])
		err = withApp(serverOpts, func(a *app) error {
			if host != "" {
				a.cfg.ServerHost = host
			}
			if port > 0 {
				a.cfg.ServerPort = port
			}
			return a.runServer()
		})

	case "import":
		importCmd.Parse(os.Args[2:])
		err = withApp(importOpts, func(a *app) error { return a.runImport(csvPath) })

	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}
