package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Zachacious/go-cwrap/internal/analyzer"
	"github.com/Zachacious/go-cwrap/internal/assembler"
	"github.com/Zachacious/go-cwrap/internal/config"
	"github.com/Zachacious/go-cwrap/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	stepColor = color.New(color.FgCyan)
	doneColor = color.New(color.FgGreen)
)

type generateOptions struct {
	output     string
	pkg        string
	configFile string
	noRuntime  bool
	noLint     bool
	rawStatus  bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <dump>...",
		Short: "Generate Go wrappers from declaration dumps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".", opts.configFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if cmd.Flags().Changed("package") {
				cfg.Emit.Package = opts.pkg
			}
			if opts.noRuntime {
				cfg.Emit.RuntimeSupport = false
			}
			if opts.noLint {
				cfg.Emit.LintDirectives = false
			}
			if opts.rawStatus {
				cfg.Emit.ConvertStatusCodes = false
			}

			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			out := cmd.OutOrStdout()

			decls, err := analyze(out, cfg, logger, args)
			if err != nil {
				return err
			}

			stepColor.Fprintln(out, "Generating wrappers...")
			emit := assembler.OptionsFromConfig(cfg)
			emit.Logger = logger
			src, err := assembler.BuildFile(decls, emit)
			if err != nil {
				return fmt.Errorf("generating wrappers: %w", err)
			}
			if err := writeOutput(opts.output, src); err != nil {
				return err
			}
			doneColor.Fprintf(out, "Successfully generated %d wrappers in package %s at: %s\n",
				len(decls.Wrappers), cfg.Emit.Package, opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "bindings.go", "Output file for the generated wrappers")
	cmd.Flags().StringVar(&opts.pkg, "package", "", "Package name of the generated file (default from configuration)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Configuration file (default ./"+config.FileName+")")
	cmd.Flags().BoolVar(&opts.noRuntime, "no-runtime", false, "Omit the runtime support block")
	cmd.Flags().BoolVar(&opts.noLint, "no-lint", false, "Omit lint directives")
	cmd.Flags().BoolVar(&opts.rawStatus, "raw-status", false, "Return status codes as plain integers")
	return cmd
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	var output, configFile string

	cmd := &cobra.Command{
		Use:   "inspect <dump>...",
		Short: "Print the extracted declaration model as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".", configFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// Progress goes to stderr so stdout stays valid YAML.
			decls, err := analyze(cmd.ErrOrStderr(), cfg, logger, args)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(decls)
			if err != nil {
				return fmt.Errorf("marshaling model to YAML: %w", err)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return writeOutput(output, data)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&configFile, "config", "", "Configuration file (default ./"+config.FileName+")")
	return cmd
}

func analyze(out io.Writer, cfg *config.Config, logger *zap.Logger, paths []string) (*model.Declarations, error) {
	stepColor.Fprintf(out, "Analyzing %d declaration dump(s)...\n", len(paths))
	decls, err := analyzer.New(cfg, logger).AnalyzeFiles(paths...)
	if err != nil {
		return nil, fmt.Errorf("analyzing declarations: %w", err)
	}
	stepColor.Fprintf(out, "Found %d wrappers, %d callbacks and %d free functions.\n",
		len(decls.Wrappers), len(decls.Handlers), len(decls.Methods))
	return decls, nil
}

// writeOutput writes data to path. A failing close is reported together
// with a failing write.
func writeOutput(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
