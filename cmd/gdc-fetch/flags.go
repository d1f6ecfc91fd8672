package main

import (
	"flag"
	"fmt"
	"io"
)

// cliOptions holds parsed command line input
type cliOptions struct {
	configFile string

	// overrides holds config keys for flags set on the command line
	overrides map[string]any
}

// parseFlags parses args. Only flags given explicitly become overrides, so
// values from the config file and environment are not clobbered by flag
// defaults.
func parseFlags(args []string, output io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("gdc-fetch", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		manifest   string
		saveDir    string
		sleepTime  int
		configFile string
		journal    string
		metrics    string
		onFatal    string
		logLevel   string
		noProgress bool
	)

	fs.StringVar(&manifest, "m", "gdc_manifest.txt", "gdc_manifest.txt file path")
	fs.StringVar(&manifest, "manifest", "gdc_manifest.txt", "gdc_manifest.txt file path")
	fs.StringVar(&saveDir, "s", ".", "folder the downloaded files are saved to")
	fs.StringVar(&saveDir, "save", ".", "folder the downloaded files are saved to")
	fs.IntVar(&sleepTime, "st", 5, "seconds to wait before retrying after an error")
	fs.IntVar(&sleepTime, "sleep_time", 5, "seconds to wait before retrying after an error")
	fs.StringVar(&configFile, "config", "", "optional YAML configuration file")
	fs.StringVar(&journal, "journal", "", "SQLite transfer journal path (disabled when empty)")
	fs.StringVar(&metrics, "metrics-file", "", "Prometheus textfile to write metrics to")
	fs.StringVar(&onFatal, "on-fatal", "abort", "what to do when a file fails: abort or continue")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := &cliOptions{
		configFile: configFile,
		overrides:  make(map[string]any),
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "m", "manifest":
			opts.overrides["manifest"] = manifest
		case "s", "save":
			opts.overrides["save_dir"] = saveDir
		case "st", "sleep_time":
			opts.overrides["retry.sleep_time"] = fmt.Sprintf("%ds", sleepTime)
		case "journal":
			opts.overrides["journal.path"] = journal
		case "metrics-file":
			opts.overrides["metrics.textfile"] = metrics
		case "on-fatal":
			opts.overrides["download.on_fatal"] = onFatal
		case "log-level":
			opts.overrides["logging.level"] = logLevel
		case "no-progress":
			opts.overrides["progress.enabled"] = !noProgress
		}
	})

	return opts, nil
}
