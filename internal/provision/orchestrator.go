// Package provision drives the per-tool install pipeline: fetch, verify,
// extract, post-process, then fixups, the Python environment and the
// activation scripts.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"hostkit/internal/archive"
	"hostkit/internal/envscript"
	"hostkit/internal/manifest"
	"hostkit/internal/paths"
	"hostkit/internal/proc"
	"hostkit/internal/receipts"
	"hostkit/internal/tools"
)

// Mode selects what Run does.
type Mode string

const (
	ModeInstall Mode = "install"
	ModeCheck   Mode = "check"
	ModeVenv    Mode = "venv"
)

// Interpreter selects which Python creates the isolated environment.
type Interpreter string

const (
	InterpreterAuto     Interpreter = "auto"
	InterpreterPortable Interpreter = "portable"
	InterpreterSystem   Interpreter = "system"
)

// Options controls a single Run.
type Options struct {
	Mode        Mode
	Interpreter Interpreter
	// Tools restricts the run to these ids. Empty means every registered tool.
	Tools []string
	// Force reinstalls tools whose executable is already present.
	Force bool
	// SkipPyEnv leaves the isolated environment untouched in install mode.
	SkipPyEnv bool
}

// Fetcher downloads an artifact from the first working mirror.
type Fetcher interface {
	FetchWithMirrors(ctx context.Context, urls []string, dest string) (string, error)
}

// Fixup copies runtime files from one tool directory into another once
// every tool is installed. Paths are relative to the tools root.
type Fixup struct {
	From  string
	To    string
	Files []string
}

// PyEnv lists what is installed into the isolated environment.
type PyEnv struct {
	Packages     []string
	Requirements []string
}

// ToolResult is the outcome for one tool.
type ToolResult struct {
	ID      string
	Phase   Phase
	URL     string
	Skipped bool
	Err     error
}

// Report summarizes a Run.
type Report struct {
	Mode         Mode
	Tools        []ToolResult
	EnvScripts   []string
	Records      []tools.VersionRecord
	Interpreter  string
	StampDrifted bool
}

// Orchestrator provisions tools into a Layout. It is not safe for
// concurrent use; Run serializes processes through a lock file.
type Orchestrator struct {
	Layout    paths.Layout
	Manifest  manifest.Manifest
	Fetcher   Fetcher
	Extractor *archive.Extractor
	Runner    proc.Runner
	Logger    *zap.Logger
	Reporter  Reporter

	Specs       []tools.ToolSpec
	Fixups      []Fixup
	PyEnv       PyEnv
	LockTimeout time.Duration
	BuiltinZstd bool
	GOOS        string
	LookPath    func(string) (string, error)

	receipts *receipts.Ledger
}

// New returns an Orchestrator with the default tool order and extractor.
func New(layout paths.Layout, m manifest.Manifest, fetcher Fetcher, runner proc.Runner, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Layout:    layout,
		Manifest:  m,
		Fetcher:   fetcher,
		Extractor: &archive.Extractor{Runner: runner, Logger: logger.Named("archive")},
		Runner:    runner,
		Logger:    logger,
		Reporter:  NopReporter{},
		Specs:     tools.Order(),
		GOOS:      runtime.GOOS,
		LookPath:  exec.LookPath,
	}
}

// Run executes opts.Mode. Install and venv modes hold the installation lock
// for their whole duration; check mode neither locks nor writes.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{Mode: opts.Mode}
	specs, err := o.selectSpecs(opts.Tools)
	if err != nil {
		return report, err
	}

	if opts.Mode == ModeCheck {
		report.Records = tools.ProbePlatform(ctx, o.Runner, o.Layout.ToolsDir, specs, o.GOOS)
		return report, nil
	}

	unlock, err := o.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	defer unlock()

	switch opts.Mode {
	case ModeVenv:
		python, err := o.resolveInterpreter(opts.Interpreter)
		if err != nil {
			return report, err
		}
		report.Interpreter = python
		return report, o.buildPyEnv(ctx, python)
	case ModeInstall, "":
		report.Mode = ModeInstall
		return o.install(ctx, specs, opts, report)
	default:
		return report, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

func (o *Orchestrator) install(ctx context.Context, specs []tools.ToolSpec, opts Options, report Report) (Report, error) {
	if err := o.prepare(); err != nil {
		return report, err
	}

	for _, spec := range specs {
		res, err := o.installSpec(ctx, spec, opts.Force)
		report.Tools = append(report.Tools, res)
		if err != nil {
			return report, err
		}
	}

	if err := o.applyFixups(); err != nil {
		o.logFailure("fixups", "post-processing", err)
		return report, err
	}

	if !opts.SkipPyEnv {
		python, err := o.resolveInterpreter(opts.Interpreter)
		if err != nil {
			o.logFailure("pyenv", "venv", err)
			return report, err
		}
		report.Interpreter = python
		if err := o.buildPyEnv(ctx, python); err != nil {
			return report, err
		}
	}

	scripts, drifted, err := o.writeEnvScripts()
	if err != nil {
		o.logFailure("envscript", "generate", err)
		return report, err
	}
	report.EnvScripts = scripts
	report.StampDrifted = drifted

	if err := os.RemoveAll(o.Layout.ScratchDir); err != nil {
		o.Logger.Warn("purge scratch directory", zap.String("dir", o.Layout.ScratchDir), zap.Error(err))
	}
	return report, nil
}

func (o *Orchestrator) selectSpecs(ids []string) ([]tools.ToolSpec, error) {
	selected, unknown := tools.Select(o.Specs, ids)
	if len(unknown) > 0 {
		return nil, &UnknownToolError{ID: unknown[0]}
	}
	return selected, nil
}

// prepare creates the layout, loads the receipts ledger and registers
// extractors installed by earlier runs.
func (o *Orchestrator) prepare() error {
	if err := o.Layout.EnsureDirs(); err != nil {
		return err
	}
	if o.receipts == nil {
		ledger, err := receipts.Load(o.Layout.Receipts)
		if err != nil {
			o.Logger.Warn("ignoring unreadable receipts", zap.String("path", o.Layout.Receipts), zap.Error(err))
			ledger = receipts.New()
		}
		o.receipts = ledger
		o.pruneReceipts()
	}
	o.registerInstalled()
	return nil
}

// pruneReceipts forgets tools whose directory no longer exists, so a tool
// removed by hand is reinstalled and re-recorded instead of trusted.
func (o *Orchestrator) pruneReceipts() {
	var dropped []string
	for _, id := range o.receipts.Tools() {
		entry, _ := o.receipts.Get(id)
		if ok, _ := paths.DirExists(o.Layout.ToolDir(entry.Dir)); !ok {
			o.receipts.Delete(id)
			dropped = append(dropped, id)
		}
	}
	if len(dropped) == 0 {
		return
	}
	o.Logger.Info("dropped receipts of removed tools", zap.Strings("tools", dropped))
	if err := receipts.Save(o.Layout.Receipts, o.receipts); err != nil {
		o.Logger.Warn("write receipts", zap.Error(err))
	}
}

// registerInstalled points the extractor at 7-Zip and zstd binaries left by
// an earlier run so a partial reinstall can still handle every format.
func (o *Orchestrator) registerInstalled() {
	if o.Extractor.SevenZip == "" {
		if exe, err := archive.FindFile(o.Layout.BinDir, sevenZipNames...); err == nil && exe != "" {
			o.Extractor.SevenZip = exe
		}
	}
	if o.Extractor.Zstd == nil && o.BuiltinZstd {
		o.Extractor.Zstd = archive.BuiltinZstd{}
	}
	if o.Extractor.Zstd == nil {
		if spec, ok := o.spec("zstd"); ok {
			exe := spec.ExecutablePath(o.Layout.ToolsDir, o.GOOS)
			if ok, _ := paths.FileExists(exe); ok {
				o.Extractor.Zstd = archive.ExternalZstd{Runner: o.Runner, Path: exe}
			}
		}
	}
}

func (o *Orchestrator) spec(id string) (tools.ToolSpec, bool) {
	for _, spec := range o.Specs {
		if spec.ID == id {
			return spec, true
		}
	}
	return tools.Lookup(id)
}

func (o *Orchestrator) applyFixups() error {
	for _, fx := range o.Fixups {
		src := filepath.Join(o.Layout.ToolsDir, filepath.FromSlash(fx.From))
		dst := filepath.Join(o.Layout.ToolsDir, filepath.FromSlash(fx.To))

		// Only the top-level tool directory decides whether the fixup applies.
		toolDir := filepath.Join(o.Layout.ToolsDir, firstSegment(fx.To))
		if ok, _ := paths.DirExists(toolDir); !ok {
			o.Logger.Debug("fixup skipped; destination tool not installed", zap.String("to", fx.To))
			continue
		}
		for _, name := range fx.Files {
			from := filepath.Join(src, name)
			if ok, _ := paths.FileExists(from); !ok {
				return fmt.Errorf("fixup: required file %s is missing", from)
			}
			if err := archive.CopyFile(from, filepath.Join(dst, name)); err != nil {
				return fmt.Errorf("fixup: copy %s: %w", name, err)
			}
		}
		o.Logger.Info("fixup applied", zap.String("from", fx.From), zap.String("to", fx.To), zap.Int("files", len(fx.Files)))
	}
	return nil
}

func firstSegment(rel string) string {
	first, _, _ := strings.Cut(filepath.ToSlash(filepath.Clean(rel)), "/")
	return first
}

func (o *Orchestrator) writeEnvScripts() ([]string, bool, error) {
	dirs, err := envscript.ActivationDirs(o.Layout, o.Specs)
	if err != nil {
		return nil, false, err
	}
	stamp := envscript.NewStamp(o.Manifest.Sum())
	drifted := false
	if previous, err := envscript.ReadStamp(o.Layout.StampFile); err == nil {
		drifted = previous.Drifted(stamp)
		if drifted {
			o.Logger.Info("activation scripts were produced by different inputs; regenerating",
				zap.String("previous_manifest", previous.Manifest), zap.String("manifest", stamp.Manifest))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		o.Logger.Warn("unreadable env stamp", zap.Error(err))
	}

	scripts, err := envscript.Generate(o.Layout.Root, dirs, stamp)
	if err != nil {
		return scripts, drifted, err
	}
	o.Logger.Info("activation scripts written", zap.Strings("scripts", scripts), zap.Int("path_entries", len(dirs)))
	return scripts, drifted, nil
}

func (o *Orchestrator) logFailure(tool, phase string, err error) {
	o.Logger.Error("provisioning failed", zap.String("tool", tool), zap.String("phase", phase), zap.Error(err))
}
