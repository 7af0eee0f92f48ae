package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"docsmap/pkg/config"
	"docsmap/pkg/crawl"
	"docsmap/pkg/events"
	"docsmap/pkg/fetch"
	"docsmap/pkg/sitemap"
	"docsmap/pkg/storage"
	"docsmap/pkg/utils"
)

const appVersion = "0.3.0"

const usageText = `docsmap - documentation site sitemap generator

Usage: docsmap <command> [flags]

Commands:
  generate    Crawl a configured site and write its sitemap XML
  extract     Extract URLs from an existing sitemap into a text file
  run         Generate the sitemap, then extract its URLs
  validate    Load and validate a config file
  list-sites  List the site keys defined in a config file
  version     Print the docsmap version

Run 'docsmap <command> -h' for command-specific flags.
`

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "generate":
		os.Exit(runCrawlCommand(cmd, args, log, false))
	case "run":
		os.Exit(runCrawlCommand(cmd, args, log, true))
	case "extract":
		os.Exit(runExtractCommand(args, log))
	case "validate":
		os.Exit(runValidateCommand(args, log))
	case "list-sites":
		os.Exit(runListSitesCommand(args, log, os.Stdout))
	case "version":
		fmt.Printf("docsmap %s\n", appVersion)
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
}

// loadConfig reads and parses the YAML config file.
func loadConfig(path string) (*config.AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}
	var appCfg config.AppConfig
	if err := yaml.Unmarshal(yamlFile, &appCfg); err != nil {
		return nil, fmt.Errorf("parsing config file '%s': %w", path, err)
	}
	return &appCfg, nil
}

// setLogLevel applies the -loglevel flag, keeping the current level on a bad
// value.
func setLogLevel(log *logrus.Logger, levelStr string) {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', keeping '%s'. Error: %v", levelStr, log.GetLevel(), err)
		return
	}
	log.SetLevel(level)
}

// selectSite validates the app config and resolves the requested site key.
func selectSite(appCfg *config.AppConfig, siteKey string, log *logrus.Logger) (*config.SiteConfig, error) {
	appWarnings, appErr := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if appErr != nil {
		return nil, fmt.Errorf("app configuration invalid: %w", appErr)
	}

	if siteKey == "" {
		return nil, errors.New("-site flag is required")
	}
	siteCfg, ok := appCfg.Sites[siteKey]
	if !ok {
		return nil, fmt.Errorf("site key '%s' not found in config", siteKey)
	}
	siteWarnings, siteErr := siteCfg.Validate()
	if siteErr != nil {
		return nil, fmt.Errorf("site '%s' configuration invalid: %w", siteKey, siteErr)
	}
	for _, w := range siteWarnings {
		log.Warnf("[%s] %s", siteKey, w)
	}
	return &siteCfg, nil
}

// sitemapPathFor computes the sitemap file location for a site the same way
// the crawler does, so extract can find it without building a crawler.
func sitemapPathFor(appCfg *config.AppConfig, siteCfg *config.SiteConfig) string {
	dir := filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(siteCfg.AllowedDomain))
	return filepath.Join(dir, config.GetEffectiveSitemapFilename(*siteCfg, *appCfg))
}

func urlListPathFor(appCfg *config.AppConfig, siteCfg *config.SiteConfig) string {
	dir := filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(siteCfg.AllowedDomain))
	return filepath.Join(dir, config.GetEffectiveURLListFilename(*siteCfg, *appCfg))
}

// crawlExitCode maps a crawl result to a process exit code. Graceful
// cancellation is not a failure.
func crawlExitCode(err error, log *logrus.Logger) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout).")
		return 1
	default:
		log.Errorf("Crawl finished with error: %v", err)
		return 1
	}
}

// runCrawlCommand implements both 'generate' and 'run'; the latter follows a
// successful crawl with URL extraction.
func runCrawlCommand(name string, args []string, log *logrus.Logger, alsoExtract bool) int {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to YAML config file")
	siteKey := fs.String("site", "", "Site key from config file (required)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	resume := fs.Bool("resume", false, "Resume crawl using existing state DB")
	writeVisitedLog := fs.Bool("write-visited-log", false, "Write a final log file of all visited URLs from DB")
	pprofAddr := fs.String("pprof", "", "Address for pprof HTTP server (e.g. 'localhost:6060', empty to disable)")
	fs.Parse(args)

	setLogLevel(log, *logLevel)

	appCfg, err := loadConfig(*configFile)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	siteCfg, err := selectSite(appCfg, *siteKey, log)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	log.Infof("Site '%s': Domain: %s, Prefix: '%s', MaxDepth: %d",
		*siteKey, siteCfg.AllowedDomain, siteCfg.AllowedPathPrefix, siteCfg.MaxDepth)

	if *pprofAddr != "" {
		go func() {
			log.Infof("Starting pprof HTTP server on: http://%s/debug/pprof/", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Errorf("Pprof server failed on %s: %v", *pprofAddr, err)
			}
		}()
	}

	// --- Context and signal handling ---
	var crawlCtx context.Context
	var cancelCrawl context.CancelFunc
	if appCfg.GlobalCrawlTimeout > 0 {
		log.Infof("Global crawl timeout: %v", appCfg.GlobalCrawlTimeout)
		crawlCtx, cancelCrawl = context.WithTimeout(context.Background(), appCfg.GlobalCrawlTimeout)
	} else {
		crawlCtx, cancelCrawl = context.WithCancel(context.Background())
	}
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelCrawl()
		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// --- Components ---
	logEntry := logrus.NewEntry(log)

	store, err := storage.NewBadgerStore(crawlCtx, appCfg.StateDir, siteCfg.AllowedDomain, *resume, logEntry)
	if err != nil {
		log.Errorf("Failed to initialize visited DB: %v", err)
		return 1
	}
	defer store.Close()

	gcInterval := appCfg.DBGCInterval
	if gcInterval <= 0 {
		gcInterval = 10 * time.Minute
	}
	go store.RunGC(crawlCtx, gcInterval)

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, logEntry)
	fetcher := fetch.NewFetcher(httpClient, appCfg, logEntry)
	rateLimiter := fetch.NewRateLimiter(appCfg.DefaultDelayPerHost, logEntry)
	sink := events.NewLogSink(logEntry)

	crawler, err := crawl.NewCrawler(appCfg, siteCfg, *siteKey, logEntry, store, fetcher, rateLimiter, sink, crawlCtx, cancelCrawl)
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}

	runErr := crawler.Run(*resume)

	// --- Post-crawl: visited URL log ---
	if crawlCtx.Err() != nil {
		log.Warnf("Skipping final visited log due to crawl context error: %v", crawlCtx.Err())
	} else if *writeVisitedLog {
		visitedFilename := fmt.Sprintf("%s-visited.txt", utils.SanitizeFilename(siteCfg.AllowedDomain))
		visitedFilePath := filepath.Join(appCfg.OutputBaseDir, visitedFilename)
		if writeErr := store.WriteVisitedLog(visitedFilePath); writeErr != nil {
			log.Errorf("Error writing final visited log: %v", writeErr)
		}
	}

	if code := crawlExitCode(runErr, log); code != 0 || runErr != nil {
		return code
	}

	if alsoExtract {
		extractor := sitemap.NewExtractor(logEntry)
		count, extErr := extractor.ExtractToFile(crawler.SitemapPath(), crawler.URLListPath())
		if extErr != nil {
			log.Errorf("URL extraction failed: %v", extErr)
			return 1
		}
		log.Infof("Extracted %d URLs from the sitemap", count)
	}

	return 0
}

func runExtractCommand(args []string, log *logrus.Logger) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to YAML config file")
	siteKey := fs.String("site", "", "Site key from config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	inputPath := fs.String("input", "", "Sitemap XML file to read (overrides config-derived path)")
	outputPath := fs.String("output", "", "URL list file to write (overrides config-derived path)")
	fs.Parse(args)

	setLogLevel(log, *logLevel)

	input, output := *inputPath, *outputPath
	if input == "" || output == "" {
		appCfg, err := loadConfig(*configFile)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		siteCfg, err := selectSite(appCfg, *siteKey, log)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		if input == "" {
			input = sitemapPathFor(appCfg, siteCfg)
		}
		if output == "" {
			output = urlListPathFor(appCfg, siteCfg)
		}
	}

	extractor := sitemap.NewExtractor(logrus.NewEntry(log))
	count, err := extractor.ExtractToFile(input, output)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNotFound):
			log.Errorf("Sitemap file not found: %s", input)
		case errors.Is(err, utils.ErrParse):
			log.Errorf("Sitemap is not valid XML: %v", err)
		default:
			log.Errorf("URL extraction failed: %v", err)
		}
		return 1
	}

	log.Infof("Extracted %d URLs from the sitemap", count)
	log.Infof("URL list written to %s", output)
	return 0
}

func runValidateCommand(args []string, log *logrus.Logger) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to YAML config file")
	fs.Parse(args)

	appCfg, err := loadConfig(*configFile)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	appWarnings, appErr := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if appErr != nil {
		log.Errorf("App configuration invalid: %v", appErr)
		return 1
	}

	failed := false
	for key := range appCfg.Sites {
		siteCfg := appCfg.Sites[key]
		siteWarnings, siteErr := siteCfg.Validate()
		for _, w := range siteWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		if siteErr != nil {
			log.Errorf("Site '%s' configuration invalid: %v", key, siteErr)
			failed = true
		}
	}
	if failed {
		return 1
	}

	log.Infof("Config OK: %d site(s) defined.", len(appCfg.Sites))
	return 0
}

func runListSitesCommand(args []string, log *logrus.Logger, w io.Writer) int {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to YAML config file")
	fs.Parse(args)

	appCfg, err := loadConfig(*configFile)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	listSites(appCfg, w)
	return 0
}

// listSites prints the configured site keys with their domains, sorted by key.
func listSites(appCfg *config.AppConfig, w io.Writer) {
	keys := make([]string, 0, len(appCfg.Sites))
	for key := range appCfg.Sites {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		site := appCfg.Sites[key]
		fmt.Fprintf(w, "%-20s %s%s\n", key, site.AllowedDomain, site.AllowedPathPrefix)
	}
}
