package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/cli/ui"
	"github.com/conduit-lang/neuron/internal/compiler/pkgmeta"
	"github.com/conduit-lang/neuron/internal/metrics"
	"github.com/conduit-lang/neuron/internal/tooling/build"
)

var (
	buildJSON     bool
	buildVerbose  bool
	buildOutput   string
	buildManifest string
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle the project's dependency tree",
		Long: `Bundle every module reachable from the walked dependency tree into one file.

The build process:
  1. Package metadata - read package.json
  2. Walk - load the resolved tree from a manifest or walker command
  3. Sources - read module bodies the walker did not inline
  4. Assembly - resolve dependencies and generate define() calls
  5. Output - write the bundle atomically

A resolution failure aborts the build and leaves any previous bundle in place.`,
		Example: `  # Build with settings from neuron.yml
  neuron build

  # Build from a walker manifest
  neuron build --manifest tree.yml

  # Build and output errors in JSON format (useful for tooling)
  neuron build --json

  # Build to a custom output location with debug logs
  neuron build -v -o public/app.js`,
		RunE: runBuild,
	}

	cmd.Flags().BoolVar(&buildJSON, "json", false, "Output the result and errors in JSON format")
	cmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Show debug logs")
	cmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Bundle path (default: build.output from neuron.yml)")
	cmd.Flags().StringVar(&buildManifest, "manifest", "", "Walker manifest, relative to the project root")

	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(errOut, ui.ConfigError(err.Error(), nil, colorsOff()))
		return err
	}
	if buildOutput != "" {
		cfg.Build.Output = buildOutput
	}
	if buildManifest != "" {
		cfg.Walker.Manifest = buildManifest
		cfg.Walker.Command = ""
	}

	logger, err := newLogger(cfg, buildVerbose, errOut)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sys, closeStore, err := openSystem(ctx, cfg, logger, metrics.New(), errOut)
	if err != nil {
		fmt.Fprint(errOut, ui.BuildError(err.Error(), nil, colorsOff()))
		return err
	}
	defer closeStore()

	var bar *ui.ProgressBar
	if !buildJSON {
		bar = ui.NewProgressBar(errOut, ui.ProgressBarOptions{Width: 30, NoColor: colorsOff()})
		sys.Options().ProgressFunc = bar.Step
	}

	result, err := sys.Build(ctx)
	if bar != nil {
		if err == nil && result.Success {
			bar.Finish()
		} else {
			fmt.Fprintln(errOut)
		}
	}
	if err != nil {
		if buildJSON {
			outputErrorsJSON(out, []errors.CompilerError{
				errors.NewCompilerError("build", "", err.Error(), errors.SourceLocation{}, errors.Fatal),
			})
		} else {
			fmt.Fprint(errOut, ui.BuildError(err.Error(), nil, colorsOff()))
		}
		return err
	}

	if !result.Success {
		if buildJSON {
			outputErrorsJSON(out, result.Errors)
		} else {
			outputErrorsTerminal(errOut, declaredNames(sys), result.Errors)
		}
		return fmt.Errorf("build failed with %d error(s)", len(result.Errors))
	}

	if buildJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printSummary(out, result)
	return nil
}

// declaredNames lists the project's dependencies for typo suggestions
func declaredNames(sys *build.System) []string {
	pkg, err := pkgmeta.Load(sys.PackagePath())
	if err != nil {
		return nil
	}
	return pkg.DeclaredNames()
}

func printSummary(w io.Writer, result *build.BuildResult) {
	ui.WriteSuccess(w, fmt.Sprintf("Bundled %d modules in %s",
		result.Modules, result.Duration.Round(time.Millisecond)), colorsOff())

	cacheState := "miss"
	if result.CacheHit {
		cacheState = "hit"
	}

	table := ui.NewKeyValueTable(w, colorsOff())
	table.AddRow("Build", result.BuildID)
	if result.OutputPath != "" {
		table.AddRow("Output", result.OutputPath)
	}
	table.AddRow("Literals", strconv.Itoa(result.Locals))
	table.AddRow("Cache", cacheState)
	table.Render()
}

func outputErrorsJSON(w io.Writer, errs []errors.CompilerError) {
	output, err := errors.FormatErrorsAsJSON(errs)
	if err != nil {
		fmt.Fprintf(w, `{"status":"error","errors":[{"message":%q}]}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(w, output)
}

func outputErrorsTerminal(w io.Writer, declared []string, errs []errors.CompilerError) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "\nBuild failed with %d error(s):\n\n", len(errs))

	for i, e := range errs {
		if e.Code == errors.ErrNotInstalledCode {
			fmt.Fprint(w, ui.NotInstalledError(e.Location.File, e.Specifiers, declared, colorsOff()))
		} else {
			msg := e.FormatForTerminal()
			if colorsOff() {
				msg = errors.StripColors(msg)
			}
			fmt.Fprint(w, msg)
		}

		if i < len(errs)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 60))
		}
	}
	fmt.Fprintln(w)
}
