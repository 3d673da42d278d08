package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/dmitriyb/ciyaml/internal/config"
	"github.com/dmitriyb/ciyaml/internal/pipeline"
	"github.com/dmitriyb/ciyaml/internal/render"
	"github.com/dmitriyb/ciyaml/internal/runner"
)

const subcommands = "subcommands: validate, list, compile, render, run"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	pipelinePath string
	contextPath  string
	sets         []string
	platform     string
	logLevel     string
	format       string
	prefix       string
}

// run parses flags and dispatches to the appropriate subcommand.
// It returns the exit code. Extracted from main() for testability.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("ciyaml", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.pipelinePath, "config", "c", ".local.jenkins.yml", "pipeline description file")
	fs.StringVar(&opts.contextPath, "context", "", "variable context file (YAML, JSON or JSONC); default engines when empty")
	fs.StringArrayVar(&opts.sets, "set", nil, "override a variable, KEY=VALUE (KEY= or KEY=~ for null); repeatable")
	fs.StringVar(&opts.platform, "platform", "", "target platform: linux or win32 (default: this machine)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.format, "format", render.FormatJSON, "compile output format: json, yaml or cbor")
	fs.StringVar(&opts.prefix, "prefix", "", "job name prefix")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	subcmds := fs.Args()
	if len(subcmds) == 0 {
		fmt.Fprintln(stderr, "usage: ciyaml [flags] <subcommand>")
		fmt.Fprintln(stderr, subcommands)
		return 1
	}

	switch subcmds[0] {
	case "validate", "list", "compile", "render", "run":
	default:
		fmt.Fprintf(stderr, "unknown subcommand: %q\n", subcmds[0])
		fmt.Fprintln(stderr, subcommands)
		return 1
	}

	logger := config.InitLogging(opts.logLevel, stderr)

	platform, err := config.NormalizePlatform(opts.platform)
	if err != nil {
		logger.Error("invalid platform", "error", err)
		return 1
	}
	ctx, err := buildContext(opts, platform)
	if err != nil {
		logger.Error("failed to build variable context", "error", err)
		return 1
	}

	spec, err := pipeline.LoadFile(opts.pipelinePath, ctx)
	if err != nil {
		logger.Error("failed to load pipeline", "error", err)
		return 1
	}
	if err := pipeline.Validate(spec); err != nil {
		logger.Error("pipeline validation failed", "error", err)
		return 1
	}
	logger.Debug("pipeline loaded", "path", opts.pipelinePath, "platform", platform, "stages", spec.Keys())

	if subcmds[0] == "validate" {
		fmt.Fprintln(stdout, "pipeline is valid")
		return 0
	}

	c := &compiler{
		logger:  logger.With("component", subcmds[0]),
		flavor:  render.FlavorFor(platform),
		prefix:  opts.prefix,
		project: projectName(ctx),
		stdout:  stdout,
		stderr:  stderr,
	}
	var cmdErr error
	switch subcmds[0] {
	case "list":
		cmdErr = c.list(spec, ctx)
	case "compile":
		cmdErr = c.compile(spec, ctx, opts.format)
	case "render":
		cmdErr = c.render(spec, ctx)
	case "run":
		cmdErr = c.run(context.Background(), spec, ctx)
	}
	if cmdErr != nil {
		logger.Error(subcmds[0]+" failed", "error", cmdErr)
		return 1
	}
	return 0
}

// buildContext seeds the variables from the context file, or from the
// platform's default engines when none is given, then applies PLATFORM and
// the --set overrides.
func buildContext(opts options, platform string) (config.Context, error) {
	var base config.Context
	var err error
	if opts.contextPath != "" {
		base, err = config.LoadContext(opts.contextPath)
	} else {
		base, err = config.DefaultEngines(platform)
	}
	if err != nil {
		return nil, err
	}
	overrides := config.Context{}
	if !base.Has("PLATFORM") {
		overrides["PLATFORM"] = config.String(platform)
	}
	for _, s := range opts.sets {
		key, value, err := config.ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		overrides[key] = value
	}
	ctx := base.Merge(overrides)
	if err := config.Validate(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

func projectName(ctx config.Context) string {
	name, _ := ctx.Lookup("project_name")
	return name
}

// compiler runs the enumerate and render stages for the output subcommands.
type compiler struct {
	logger  *slog.Logger
	flavor  render.Flavor
	prefix  string
	project string
	stdout  io.Writer
	stderr  io.Writer
}

// each enumerates spec and calls fn with every batch, its rendered script
// and its job name. It stops at the first error from either side.
func (c *compiler) each(spec *pipeline.Spec, ctx config.Context, fn func(b *pipeline.Batch, script, name string) error) error {
	for b, err := range pipeline.Enumerate(spec, ctx) {
		if err != nil {
			return err
		}
		script := render.Render(b, c.flavor)
		name := render.JobName(c.prefix, c.project, b, script)
		c.logger.Debug("variant compiled", "job", name, "interpreter", b.Variant.Interpreter, "instructions", len(b.Instructions))
		if err := fn(b, script, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) list(spec *pipeline.Spec, ctx config.Context) error {
	return c.each(spec, ctx, func(b *pipeline.Batch, _, name string) error {
		_, err := fmt.Fprintf(c.stdout, "%s\t%s\t%s\t%s\n", name, b.Variant.Interpreter, b.Variant.Name, b.Variant.Scheduler)
		return err
	})
}

func (c *compiler) compile(spec *pipeline.Spec, ctx config.Context, format string) error {
	batches, err := pipeline.Collect(pipeline.Enumerate(spec, ctx))
	if err != nil {
		return err
	}
	return render.Encode(c.stdout, batches, format)
}

func (c *compiler) render(spec *pipeline.Spec, ctx config.Context) error {
	comment := "#"
	if c.flavor == render.Batch {
		comment = "REM"
	}
	return c.each(spec, ctx, func(_ *pipeline.Batch, script, name string) error {
		_, err := fmt.Fprintf(c.stdout, "%s ---- %s\n%s", comment, name, script)
		return err
	})
}

// run executes the variants one at a time and stops at the first failure.
func (c *compiler) run(ctx context.Context, spec *pipeline.Spec, vars config.Context) error {
	return c.each(spec, vars, func(_ *pipeline.Batch, script, name string) error {
		c.logger.Info("running job", "job", name)
		res, err := runner.Run(ctx, script, runner.Options{Flavor: c.flavor})
		io.WriteString(c.stdout, res.Stdout)
		io.WriteString(c.stderr, res.Stderr)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%s: exit code %d", name, res.ExitCode)
		}
		c.logger.Info("job succeeded", "job", name)
		return nil
	})
}
