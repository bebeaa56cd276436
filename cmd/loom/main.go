// Package main provides the loom binary: a declarative workflow engine for
// multi-step generative text pipelines.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/textloom/loom/pkg/config"
	"github.com/textloom/loom/pkg/providers"
	"github.com/textloom/loom/pkg/render"
	"github.com/textloom/loom/pkg/runtime"
	"github.com/textloom/loom/pkg/schema"
	loommcp "github.com/textloom/loom/pkg/serve/mcp"
)

// Version is set at build time via ldflags.
var version = "dev"

var (
	flagConfig  string
	flagBackend string
	flagVars    []string
	flagTrace   string
	flagPretty  bool
)

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets any
// variables not already present in the environment. Lines are KEY=VALUE;
// comments and blanks are skipped.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Declarative workflow engine for generative text pipelines",
	Long:  "loom interprets declarative workflow documents: trees of generation steps with scoped variables, template resolution, validated and retried generation calls, and structured return projections.",
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Execute a workflow and print its projected result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	wf, errs := schema.ValidateFile(args[0])
	if schema.HasErrors(errs) {
		fmt.Fprint(os.Stderr, render.Diagnostics(errs, flagPretty))
		return fmt.Errorf("workflow validation failed")
	}

	vars := make(map[string]string)
	for _, v := range flagVars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		vars[parts[0]] = parts[1]
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	var trace *runtime.TraceWriter
	tracePath := flagTrace
	if tracePath == "" && cfg.TraceDir != "" {
		tracePath = filepath.Join(cfg.TraceDir, wf.Meta.Name+".jsonl")
	}
	if tracePath != "" {
		trace, err = runtime.NewTraceWriter(tracePath)
		if err != nil {
			return err
		}
		defer trace.Close()
	}

	eng := runtime.New(runtime.Config{
		Generator: registry,
		Retriever: providers.NewHTTPRetriever(log),
		Logger:    log,
		Trace:     trace,
		Backend:   flagBackend,
		Vars:      vars,
	})
	result, err := eng.Run(context.Background(), wf)
	if err != nil {
		return err
	}

	if flagPretty {
		fmt.Print(render.PrettyValue(result.Value))
	} else {
		fmt.Print(render.Value(result.Value))
	}
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])
	fmt.Fprint(os.Stderr, render.Diagnostics(errs, flagPretty))
	if schema.HasErrors(errs) {
		return fmt.Errorf("validation failed")
	}
	fmt.Printf("✓ %s is valid\n", wf.Meta.Name)
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the JSON Schema of the workflow document format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateDocumentJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve loom tools over the Model Context Protocol on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	s := loommcp.NewServer(version, &loommcp.Server{
		Generator: registry,
		Retriever: providers.NewHTTPRetriever(log),
		Log:       log,
	})
	return mcpserver.ServeStdio(s)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the loom version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// newLogger builds the process logger. Human format writes console output
// to stderr so result values on stdout stay clean; json format suits log
// collectors.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Debug {
		level = zap.DebugLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.LogFormat == "human" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to the loom config file")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "Styled terminal output")

	runCmd.Flags().StringVar(&flagBackend, "backend", "", "Backend selector overriding the document default")
	runCmd.Flags().StringArrayVar(&flagVars, "var", nil, "Set a variable (key=value), repeatable")
	runCmd.Flags().StringVar(&flagTrace, "trace", "", "Write a JSONL run trace to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
