package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tripstitch/tripstitch/internal/config"
	"github.com/tripstitch/tripstitch/internal/connect"
	"github.com/tripstitch/tripstitch/internal/ledger"
	"github.com/tripstitch/tripstitch/internal/pipeline"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runFull(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "gaps":
		if err := runGaps(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "check":
		if err := runCheck(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("tripstitch %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type flagSet struct {
	opts config.ResolveOptions
}

// parseFlags handles the shared flags; positional args are returned in
// order for the caller to interpret.
func parseFlags(args []string) (flagSet, []string, error) {
	var fs flagSet
	var positional []string

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i], nil
	}

	for ; i < len(args); i++ {
		arg := args[i]
		var err error
		switch {
		case arg == "--config":
			fs.opts.ConfigPath, err = next(arg)
		case arg == "--csv":
			fs.opts.CLICSVPath, err = next(arg)
		case arg == "--emails":
			fs.opts.CLIEmailDir, err = next(arg)
		case arg == "--vocab":
			fs.opts.CLIVocab, err = next(arg)
		case arg == "--db":
			fs.opts.CLIDBPath, err = next(arg)
		case arg == "--model":
			fs.opts.CLIModel, err = next(arg)
		case arg == "--endpoint":
			fs.opts.CLIEndpoint, err = next(arg)
		case strings.HasPrefix(arg, "-"):
			return fs, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
		if err != nil {
			return fs, nil, err
		}
	}
	return fs, positional, nil
}

func runFull(args []string) error {
	fs, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) > 0 && fs.opts.CLICSVPath == "" {
		fs.opts.CLICSVPath = positional[0]
	}

	cfg, err := config.ResolveConfig(fs.opts)
	if err != nil {
		return err
	}
	if cfg.CSVPath.Value == "" {
		return fmt.Errorf("usage: tripstitch run <itinerary.csv> --emails <dir>")
	}
	if cfg.EmailDir.Value == "" {
		return fmt.Errorf("no email directory configured (use --emails or the config file)")
	}

	opts, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Reconstructing %s against %s...\n", cfg.CSVPath.Value, cfg.EmailDir.Value)

	rep, err := pipeline.Run(context.Background(), opts)
	if rep != nil {
		fmt.Print(rep.Render())
	}
	if err != nil {
		return err
	}

	l, lerr := ledger.Open(cfg.DBPath.Value)
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: run not recorded: %v\n", lerr)
		return nil
	}
	defer l.Close()
	if _, lerr := l.SaveRun(context.Background(), rep); lerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: run not recorded: %v\n", lerr)
	}
	return nil
}

func runGaps(args []string) error {
	fs, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) > 0 && fs.opts.CLICSVPath == "" {
		fs.opts.CLICSVPath = positional[0]
	}

	cfg, err := config.ResolveConfig(fs.opts)
	if err != nil {
		return err
	}
	if cfg.CSVPath.Value == "" {
		return fmt.Errorf("usage: tripstitch gaps <itinerary.csv>")
	}

	rep, err := pipeline.GapsOnly(cfg.CSVPath.Value, time.Now)
	if err != nil {
		return err
	}
	fmt.Print(rep.Render())
	return nil
}

// runCheck verifies a previously saved itinerary: re-analyzes gaps and
// writes a connection-annotated copy.
func runCheck(args []string) error {
	fs, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) > 0 && fs.opts.CLICSVPath == "" {
		fs.opts.CLICSVPath = positional[0]
	}

	cfg, err := config.ResolveConfig(fs.opts)
	if err != nil {
		return err
	}
	if cfg.CSVPath.Value == "" {
		return fmt.Errorf("usage: tripstitch check <itinerary.csv>")
	}

	rep, err := pipeline.GapsOnly(cfg.CSVPath.Value, time.Now)
	if err != nil {
		return err
	}
	fmt.Print(rep.Render())

	outPath, sum, err := connect.AnnotateFile(cfg.CSVPath.Value)
	if err != nil {
		return err
	}
	fmt.Printf("Connections: %d/%d country, %d/%d city\n",
		sum.CountryMatches, sum.Comparisons, sum.CityMatches, sum.Comparisons)
	fmt.Printf("Annotated: %s\n", outPath)
	return nil
}

func runHistory(args []string) error {
	fs, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(fs.opts)
	if err != nil {
		return err
	}

	l, err := ledger.Open(cfg.DBPath.Value)
	if err != nil {
		return err
	}
	defer l.Close()

	runs, err := l.ListRuns(context.Background(), 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  legs=%d gaps=%d filled=%d emails=%d batches=%d/%d ok",
			r.StartedAt.Format("2006-01-02 15:04"), r.ID[:8],
			r.LegsLoaded, r.GapsFound, r.GapsFilled, r.EmailsScanned,
			r.BatchesTotal-r.BatchesFailed, r.BatchesTotal)
		if r.OutputFile != "" {
			fmt.Printf("  -> %s", r.OutputFile)
		}
		fmt.Println()
	}
	return nil
}

func runConfig(args []string) error {
	fs, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(fs.opts)
	if err != nil {
		return err
	}
	fmt.Printf("Config file: %s\n", cfg.ConfigPath)
	fmt.Print(cfg.Describe())
	return nil
}

func printUsage() {
	fmt.Println(`tripstitch - travel history gap reconstruction

Usage:
  tripstitch run <itinerary.csv> --emails <dir>   full reconstruction run
  tripstitch gaps <itinerary.csv>                 analyze gaps only, no API calls
  tripstitch check <itinerary.csv>                verify a saved itinerary
  tripstitch history                              show past runs
  tripstitch config                               show resolved configuration
  tripstitch version

Flags:
  --config <path>     config file (default ~/.tripstitch/config.yaml)
  --csv <path>        itinerary CSV
  --emails <dir>      directory of .eml files
  --vocab <path>      keyword vocabulary file
  --db <path>         run-history database
  --model <name>      extraction model
  --endpoint <url>    chat completions endpoint

The extraction API key is read from OPENAI_API_KEY (a .env file in the
working directory is honored) or the config file. It is never printed.`)
}
