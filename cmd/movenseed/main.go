package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yuya-takeyama/movenseed/internal/checksum"
	"github.com/yuya-takeyama/movenseed/internal/config"
	"github.com/yuya-takeyama/movenseed/internal/logging"
	"github.com/yuya-takeyama/movenseed/pkg/logger"
	"github.com/yuya-takeyama/movenseed/pkg/postwork"
	"github.com/yuya-takeyama/movenseed/pkg/prework"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	configFile    string
	skipFilesize  bool
	skipFilehash  bool
	hashAlgorithm string
	chunkSize     string
	excludes      []string
	verbose       bool
	quiet         bool

	heres              []string
	theres             []string
	torrents           []string
	noMakeSubdirectory bool
	hard               bool
	dryRun             bool
	resultJSONFile     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "movenseed",
		Short: "Link moved or renamed files back into the tree they are seeded from",
		Long: `movenseed records the sizes and hashes of the files in a directory (HERE),
then finds those files again in other directories (THERE) after they were
moved or renamed, and links them back into HERE under their original names.

Prework requires either
    1. at least 1 HERE,
    2. at least 1 torrent file and only 1 HERE
Postwork requires at least one HERE and at least one THERE.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to an INI config file (default $"+config.EnvConfigPath+")")
	flags.BoolVar(&skipFilesize, "skip-filesize", false, "Skip making sizes.mns or skip checking sizes")
	flags.BoolVar(&skipFilehash, "skip-filehash", false, "Skip making hashes.mns or skip checking hashes")
	flags.StringVar(&hashAlgorithm, "hash-algorithm", checksum.DefaultAlgorithm, "Digest used for hashes.mns (sha1, sha256, sha512, blake3)")
	flags.StringVar(&chunkSize, "chunk-size", "1MiB", "Read buffer size used while hashing")
	flags.StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Report every file examined")
	flags.BoolVar(&quiet, "quiet", false, "Suppress non-error output")

	rootCmd.AddCommand(newPreworkCmd(), newPostworkCmd())
	return rootCmd
}

func newPreworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prework",
		Short: "Record sizes.mns and hashes.mns for each HERE",
		Args:  cobra.NoArgs,
		RunE:  runPrework,
	}
	cmd.Flags().StringSliceVarP(&heres, "here", "H", nil, "Directory you want to seed from (multiple allowed)")
	cmd.Flags().StringSliceVarP(&torrents, "torrent", "t", nil, "Torrent file to take sizes from (multiple allowed)")
	cmd.Flags().BoolVar(&noMakeSubdirectory, "no-make-subdirectory", false, "Do not make subdirectories for multi-file torrents")
	return cmd
}

func newPostworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postwork",
		Short: "Link files found in each THERE into each HERE",
		Args:  cobra.NoArgs,
		RunE:  runPostwork,
	}
	cmd.Flags().StringSliceVarP(&heres, "here", "H", nil, "Directory you want to seed from (multiple allowed)")
	cmd.Flags().StringSliceVarP(&theres, "there", "T", nil, "Directory containing moved or renamed files (multiple allowed)")
	cmd.Flags().BoolVar(&hard, "hard", false, "Make hard links instead of symbolic links")
	cmd.Flags().BoolVar(&dryRun, "dryrun", false, "Shows operations without executing")
	cmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
	return cmd
}

// resolveOptions layers defaults, the config file and explicitly set flags.
// The returned path is empty when no config file was loaded.
func resolveOptions(cmd *cobra.Command) (config.Options, string, error) {
	opts := config.DefaultOptions()
	loaded := ""

	if path := config.ResolvePath(configFile); path != "" {
		file, err := config.Load(path)
		if err != nil {
			return opts, "", err
		}
		if opts, err = file.Apply(opts); err != nil {
			return opts, "", err
		}
		loaded = file.Path()
	}

	flags := cmd.Flags()
	if flags.Changed("skip-filesize") {
		opts.Sizes = !skipFilesize
	}
	if flags.Changed("skip-filehash") {
		opts.Hashes = !skipFilehash
	}
	if flags.Changed("hash-algorithm") {
		opts.Algorithm = hashAlgorithm
	}
	if flags.Changed("chunk-size") {
		size, err := humanize.ParseBytes(chunkSize)
		if err != nil {
			return opts, loaded, fmt.Errorf("invalid --chunk-size %q: %w", chunkSize, err)
		}
		opts.ChunkSize = int(size)
	}
	if flags.Changed("exclude") {
		opts.Excludes = append(opts.Excludes, excludes...)
	}
	if flags.Changed("verbose") {
		opts.Verbose = verbose
	}
	if flags.Changed("quiet") {
		opts.Quiet = quiet
	}
	if flags.Changed("no-make-subdirectory") {
		opts.MakeSubdirectory = !noMakeSubdirectory
	}
	if flags.Changed("hard") {
		opts.Hard = hard
	}
	if flags.Changed("dryrun") {
		opts.DryRun = dryRun
	}

	return opts, loaded, opts.Validate()
}

func newEventLogger(opts config.Options) *logger.ConsoleLogger {
	return &logger.ConsoleLogger{
		IsDryRun:  opts.DryRun,
		IsQuiet:   opts.Quiet,
		IsVerbose: opts.Verbose,
	}
}

func runPrework(cmd *cobra.Command, args []string) error {
	opts, configPath, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	log := logging.NewLogger(opts.Quiet, opts.Verbose)
	if configPath != "" {
		log.Debug("loaded config %s", configPath)
	}

	report, err := prework.NewBuilder(newEventLogger(opts)).Run(heres, torrents, opts)
	if report == nil {
		return err
	}
	log.Info("Wrote %d tables (%s mode)", len(report.Tables), report.Mode)

	// per-root failures were already reported through the event logger
	if report.Failed > 0 {
		return fmt.Errorf("%d roots or manifests failed", report.Failed)
	}
	if report.FileErrors > 0 {
		return fmt.Errorf("%d files could not be fingerprinted", report.FileErrors)
	}
	return err
}

func runPostwork(cmd *cobra.Command, args []string) error {
	opts, configPath, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	log := logging.NewLogger(opts.Quiet, opts.Verbose)
	if configPath != "" {
		log.Debug("loaded config %s", configPath)
	}

	start := time.Now()
	result, runErr := postwork.NewReconciler(newEventLogger(opts)).Run(heres, theres, opts)
	if result == nil {
		return runErr
	}

	log.PrintSummary(logging.Summary{
		Linked:      int64(result.Summary.Linked),
		Replaced:    int64(result.Summary.Replaced),
		Present:     int64(result.Summary.Present),
		Skipped:     int64(result.Summary.Skipped),
		Errors:      int64(result.Summary.Failed),
		BytesLinked: result.Summary.BytesLinked,
		Duration:    time.Since(start),
	})

	if resultJSONFile != "" {
		if err := writeSyncResult(resultJSONFile, buildSyncResult(result)); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	// per-root failures were already reported through the event logger
	if failed := failedRoots(result); failed > 0 {
		return fmt.Errorf("%d reference roots could not be loaded", failed)
	}
	if result.Summary.Failed > 0 {
		return fmt.Errorf("%d operations failed", result.Summary.Failed)
	}
	return runErr
}

func failedRoots(result *postwork.Result) int {
	n := 0
	for _, root := range result.Roots {
		if root.Err != nil {
			n++
		}
	}
	return n
}
