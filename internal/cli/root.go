// Package cmd wires the harvester's command-line surface: flag parsing,
// config loading, and the two run modes (full bibliographic harvest,
// single-site archival crawl) into a single cobra root command.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ubtue/ztsharvest/internal/archive"
	"github.com/ubtue/ztsharvest/internal/build"
	"github.com/ubtue/ztsharvest/internal/config"
	"github.com/ubtue/ztsharvest/internal/delivery"
	"github.com/ubtue/ztsharvest/internal/maps"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/internal/progress"
	"github.com/ubtue/ztsharvest/internal/record"
	"github.com/ubtue/ztsharvest/internal/scheduler"
	"github.com/ubtue/ztsharvest/pkg/hashutil"
)

var (
	cfgFile               string
	simpleCrawlConfigFile string
	minLogLevel           string
	ignoreRobots          bool
	progressFilePath      string
	outputFormat          string
	showVersion           bool
)

var rootCmd = &cobra.Command{
	Use:   "ztsharvest",
	Short: "A polite, resumable bibliographic metadata harvester for scholarly journals.",
	Long: `ztsharvest fetches journal article pages from web-delivery, RSS, and
API-query sources, turns them into citations through a Zotero translation
server, and writes deduplicated MARC21 or JSON bibliographic records.

A single-site crawl mode is available via --simple-crawler-config-file for
archiving a documentation-style site to Markdown without the bibliographic
record pipeline.`,
	RunE: runHarvest,
}

// Execute runs the root command. Called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "harvester config file path (journal descriptors + global settings)")
	rootCmd.PersistentFlags().StringVar(&simpleCrawlConfigFile, "simple-crawler-config-file", "", "run a single-site archival crawl instead of a full harvest")
	rootCmd.PersistentFlags().StringVar(&minLogLevel, "min-log-level", "info", "minimum log level to emit: debug, info, warn")
	rootCmd.PersistentFlags().BoolVar(&ignoreRobots, "ignore-robots-dot-txt", false, "ignore robots.txt disallow rules (use with care)")
	rootCmd.PersistentFlags().StringVar(&progressFilePath, "progress-file", "", "override the configured progress file path")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output-format", "marc21", "bibliographic record output format: marc21, json")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	zoterocgiCmd.AddCommand(zoterocgiStatusCmd)
	rootCmd.AddCommand(zoterocgiCmd)
}

// zoterocgiCmd groups operator-facing status queries against the delivery
// tracker, useful from a shell or a CGI wrapper without running a full
// harvest.
var zoterocgiCmd = &cobra.Command{
	Use:   "zoterocgi",
	Short: "Query delivery-tracker state",
}

// zoterocgiStatusCmd reports the same BitsetTracker a harvest run would
// build from --config-file, so the answer only reflects deliveries
// recorded by this process: it is not a query against another process's
// in-memory state.
var zoterocgiStatusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Report delivery-tracker state for one URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runZoterocgiStatus,
}

func runZoterocgiStatus(cmd *cobra.Command, args []string) error {
	delivered, err := zoterocgiStatus(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("url=%s delivered=%t\n", args[0], delivered)
	return nil
}

// zoterocgiStatus resolves the active config and reports url's
// delivery-tracker state. Split out from runZoterocgiStatus so tests can
// exercise the lookup without capturing stdout.
func zoterocgiStatus(url string) (bool, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return false, err
	}
	tracker := delivery.NewBitsetTracker(cfg.ExpectedDeliveredItems(), cfg.DeliveryFalsePositiveRate())
	return tracker.AlreadyDelivered(url), nil
}

// ZoterocgiStatusForTest exposes zoterocgiStatus for tests exercising the
// zoterocgi status subcommand's config-resolution path.
func ZoterocgiStatusForTest(url string) (bool, error) {
	return zoterocgiStatus(url)
}

// ResetFlags restores every package-level flag variable to its default value;
// exported for tests that invoke the command repeatedly.
func ResetFlags() {
	cfgFile = ""
	simpleCrawlConfigFile = ""
	minLogLevel = "info"
	ignoreRobots = false
	progressFilePath = ""
	outputFormat = "marc21"
	showVersion = false
}

func runHarvest(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(build.FullVersion())
		return nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	logLevel := metadata.ParseLogLevel(minLogLevel)
	baseSink := metadata.NewRecorder(os.Stdout)
	metadataSink := metadata.NewLeveledSink(baseSink, logLevel)

	counters := progress.NewCounters()

	tracker, trackerErr := progress.NewTracker(cfg.ProgressFilePath())
	if trackerErr != nil {
		return fmt.Errorf("opening progress file: %w", trackerErr)
	}

	sched := scheduler.NewScheduler(cfg, metadataSink, baseSink, counters)
	sched.SetProgressTracker(tracker)

	if simpleCrawlConfigFile != "" {
		writer := archive.NewWriter(metadataSink, cfg.ArchiveDir(), hashutil.HashAlgoSHA256)
		sched.SetArchiveSink(archive.NewSink(writer))
	} else {
		sink, sinkErr := buildRecordSink(cfg, metadataSink, counters)
		if sinkErr != nil {
			return sinkErr
		}
		sched.SetRecordSink(sink)
		if cfg.ArchiveEnabled() {
			writer := archive.NewWriter(metadataSink, cfg.ArchiveDir(), hashutil.HashAlgoSHA256)
			sched.SetArchiveSink(archive.NewSink(writer))
		}
	}

	summary, err := sched.ExecuteHarvest(context.Background())
	if err != nil {
		return fmt.Errorf("executing harvest: %w", err)
	}

	fmt.Println(counters.Summary(cfgSource()))
	fmt.Printf("harvested=%d skipped=%d errors=%d duration_ms=%d\n",
		summary.TotalHarvested, summary.TotalSkipped, summary.TotalErrors, summary.DurationMs)
	return nil
}

func cfgSource() string {
	if simpleCrawlConfigFile != "" {
		return simpleCrawlConfigFile
	}
	return cfgFile
}

// LoadConfig resolves the active config from whichever of --config-file /
// --simple-crawler-config-file was given, then layers --ignore-robots-dot-txt
// and --progress-file on top.
func LoadConfig() (config.Config, error) {
	var cfg config.Config
	var err error

	switch {
	case simpleCrawlConfigFile != "":
		cfg, err = config.WithSimpleCrawlConfigFile(simpleCrawlConfigFile)
	case cfgFile != "":
		cfg, err = config.WithConfigFile(cfgFile)
	default:
		return config.Config{}, fmt.Errorf("%w: one of --config-file or --simple-crawler-config-file is required", config.ErrInvalidConfig)
	}
	if err != nil {
		return config.Config{}, err
	}

	builder := (&cfg)
	if ignoreRobots {
		builder = builder.WithIgnoreRobots(true)
	}
	if progressFilePath != "" {
		builder = builder.WithProgressFilePath(progressFilePath)
	}
	return builder.Build(), nil
}

// buildRecordSink resolves --output-format into a concrete record pipeline:
// an authority-maps-aware Synthesizer backed by a fingerprint sidecar and a
// single appended output file.
func buildRecordSink(cfg config.Config, metadataSink metadata.MetadataSink, counters *progress.Counters) (scheduler.RecordSink, error) {
	format, err := parseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	authorityMaps, mapsErr := maps.Load(cfg.MapDirectory())
	if mapsErr != nil {
		return nil, fmt.Errorf("loading authority maps: %w", mapsErr)
	}

	fingerprints, fpErr := record.LoadFingerprintSet(cfg.HashSidecarPath())
	if fpErr != nil {
		return nil, fmt.Errorf("loading fingerprint sidecar: %w", fpErr)
	}

	fileSink, fileSinkErr := record.NewFileSink(cfg.RecordOutputDir(), format)
	if fileSinkErr != nil {
		return nil, fmt.Errorf("opening record output: %w", fileSinkErr)
	}

	return record.NewSynthesizer(format, authorityMaps, fingerprints, fileSink, metadataSink, counters), nil
}

// Test helper functions to set flag values from tests.
func SetConfigFileForTest(path string)            { cfgFile = path }
func SetSimpleCrawlConfigFileForTest(path string) { simpleCrawlConfigFile = path }
func SetMinLogLevelForTest(level string)          { minLogLevel = level }
func SetIgnoreRobotsForTest(ignore bool)          { ignoreRobots = ignore }
func SetProgressFilePathForTest(path string)      { progressFilePath = path }
func SetOutputFormatForTest(format string)        { outputFormat = format }
func SetShowVersionForTest(show bool)             { showVersion = show }

// BuildRecordSinkForTest exposes buildRecordSink for tests that need to
// exercise --output-format resolution without running a full harvest.
// outputDir overrides cfg.RecordOutputDir() and cfg.HashSidecarPath() so
// tests never write into the process's working directory.
func BuildRecordSinkForTest(cfg config.Config, outputDir string) (scheduler.RecordSink, error) {
	scoped := (&cfg).WithRecordOutputDir(outputDir).
		WithHashSidecarPath(filepath.Join(outputDir, "previously_downloaded.hashes")).
		Build()
	return buildRecordSink(scoped, metadata.NewRecorder(os.Stdout), progress.NewCounters())
}

func parseOutputFormat(s string) (record.OutputFormat, error) {
	switch s {
	case "marc21":
		return record.FormatMARC21, nil
	case "json":
		return record.FormatJSON, nil
	case "marcxml":
		return 0, fmt.Errorf("%w: marcxml is not yet implemented, use marc21 or json", config.ErrInvalidConfig)
	default:
		return 0, fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, s)
	}
}
