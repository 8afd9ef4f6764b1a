package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"ebird-barchart/internal/barchart"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/internal/config"
	"ebird-barchart/internal/manifest"
	"ebird-barchart/lib/restyutil"

	"github.com/spf13/cobra"
)

const (
	report_cli_dispatch = "cli.dispatch"

	envFile = ".env"
)

var (
	errNoInput          = errors.New("please specify region code(s), use --from-file, or use --create-manifest")
	errConflictingInput = errors.New("region codes and --from-file cannot be used together")
)

type rootFlags struct {
	fromFile       string
	outDir         string
	createManifest bool
	force          bool
	delay          float64
	resetManifest  bool
	verbose        bool
	configPath     string
	dumpHttp       string
}

const examples = `  # Download single region
  barchart CH

  # Download multiple regions
  barchart CH FR DE IT

  # Download from file
  barchart --from-file regions.txt

  # Download with custom delay and force overwrite
  barchart CH FR --delay 2 --force

  # Create manifest after downloads
  barchart --create-manifest`

// NewRootCmd creates the barchart command, all side effects go through `env`.
func NewRootCmd(env Environment) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "barchart [REGION...] [--from-file FILE] [--create-manifest]",
		Short:         "Download eBird bar chart data and create a manifest of the downloaded regions.",
		Example:       examples,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if env.InitLogging != nil {
				env.InitLogging(telemetry.LevelFromString(cfg.LogLevel))
			}

			err = run(cmd.Context(), env, cmd.OutOrStdout(), cfg, flags, args)
			if errors.Is(err, errNoInput) || errors.Is(err, errConflictingInput) {
				fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.fromFile, "from-file", "", "Load region codes from a text file (one per line)")
	f.StringVar(&flags.outDir, "outdir", config.DefaultOutDir, "Output folder")
	f.BoolVar(&flags.createManifest, "create-manifest", false, "Create manifest.json for all existing barchart files")
	f.BoolVar(&flags.force, "force", false, "Force download even if file already exists")
	f.Float64Var(&flags.delay, "delay", config.DefaultDelay.Seconds(), "Delay in seconds between downloads")
	f.BoolVar(&flags.resetManifest, "reset-manifest", false, "Start from an empty manifest if the existing one cannot be read or parsed")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&flags.configPath, "config", "barchart.json5", "Config file, a <name>.local.<ext> next to it takes precedence")
	f.StringVar(&flags.dumpHttp, "dump-http", "", "Write every http exchange into this directory (secrets are redacted)")

	return cmd
}

// loadConfig layers the flags that were explicitly set on top of the config
// files and the environment.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath, envFile)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("outdir") {
		cfg.OutDir = flags.outDir
	}
	if cmd.Flags().Changed("delay") {
		cfg.DelaySeconds = flags.delay
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func resolveRegions(args []string, fromFile string) ([]string, error) {
	if len(args) > 0 && fromFile != "" {
		return nil, errConflictingInput
	}
	if fromFile == "" {
		return args, nil
	}
	regions, err := LoadRegions(fromFile)
	if err != nil {
		return nil, err
	}
	return regions, nil
}

func newDumper(dir string) (restyutil.Dumper, error) {
	if dir == "" {
		return restyutil.Dumper{}, nil
	}
	output, err := restyutil.NewFilesystemOutput(dir)
	if err != nil {
		return restyutil.Dumper{}, err
	}
	return restyutil.NewDumper(output), nil
}

func run(ctx context.Context, env Environment, out io.Writer, cfg config.Config, flags *rootFlags, args []string) error {
	if len(args) > 0 && flags.fromFile != "" {
		return errConflictingInput
	}

	dump, err := newDumper(flags.dumpHttp)
	if err != nil {
		return fmt.Errorf("http dump: %w", err)
	}

	if flags.createManifest {
		if len(args) > 0 || flags.fromFile != "" {
			env.Tel.ReportWarning(report_cli_dispatch, "region codes are ignored with --create-manifest")
		}
		return createManifest(ctx, env, out, cfg, flags.resetManifest, dump)
	}

	regions, err := resolveRegions(args, flags.fromFile)
	if err != nil {
		return err
	}
	if flags.fromFile != "" {
		fmt.Fprintf(out, "Loaded %d regions from %s\n", len(regions), flags.fromFile)
	} else if len(regions) == 0 {
		return errNoInput
	}

	auth, err := env.NewAuthenticator(cfg, dump, env.Tel)
	if err != nil {
		return fmt.Errorf("create bar chart client: %w", err)
	}
	downloader := barchart.NewDownloader(barchart.Options{
		Store:   barchart.Store{Dir: cfg.OutDir},
		Fetcher: barchart.NewFetcher(auth, cfg, env.Tel),
		Clock:   env.Clock,
		Delay:   cfg.Delay(),
		Output:  out,
	}, env.Tel)

	if len(regions) == 1 {
		_, err := downloader.Download(ctx, regions[0], flags.force)
		if err != nil {
			return fmt.Errorf("download %s: %w", regions[0], err)
		}
		return nil
	}

	summary := downloader.DownloadAll(ctx, regions, flags.force)
	summary.Render(out)
	return nil
}

func createManifest(ctx context.Context, env Environment, out io.Writer, cfg config.Config, resetMalformed bool, dump restyutil.Dumper) error {
	reconciler := manifest.NewReconciler(manifest.ReconcilerOptions{
		Dir:            cfg.OutDir,
		ApiKey:         cfg.ApiKey,
		Source:         env.NewInfoSource(cfg, dump, env.Tel),
		ResetMalformed: resetMalformed,
		Output:         out,
	}, env.Tel)

	result, err := reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if result.Written {
		manifest.RenderRegions(out, result.Manifest)
	}
	return nil
}

// ExecuteContext runs the barchart command with the arguments of the
// process, the returned error has already been printed.
func ExecuteContext(ctx context.Context, env Environment) error {
	err := NewRootCmd(env).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
