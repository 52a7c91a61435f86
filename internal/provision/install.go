package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"hostkit/internal/archive"
	"hostkit/internal/fetch"
	"hostkit/internal/integrity"
	"hostkit/internal/paths"
	"hostkit/internal/receipts"
	"hostkit/internal/tools"
)

var sevenZipNames = []string{"7z.exe", "7za.exe", "7zr.exe", "7zz", "7z"}

// InstallTool runs the full pipeline for a single tool id under the
// installation lock, reinstalling it even when already present.
func (o *Orchestrator) InstallTool(ctx context.Context, id string) (ToolResult, error) {
	spec, ok := o.spec(id)
	if !ok {
		return ToolResult{ID: id, Phase: PhaseFailed}, &UnknownToolError{ID: id}
	}
	unlock, err := o.acquireLock(ctx)
	if err != nil {
		return ToolResult{ID: id, Phase: PhasePending}, err
	}
	defer unlock()

	if err := o.prepare(); err != nil {
		return ToolResult{ID: id, Phase: PhaseFailed}, err
	}
	return o.installSpec(ctx, spec, true)
}

func (o *Orchestrator) installSpec(ctx context.Context, spec tools.ToolSpec, force bool) (ToolResult, error) {
	res := ToolResult{ID: spec.ID, Phase: PhasePending}
	log := o.Logger.With(zap.String("tool", spec.ID))
	o.Reporter.ToolStarted(spec.ID)
	o.Reporter.PhaseChanged(spec.ID, PhasePending)

	setPhase := func(p Phase) {
		res.Phase = p
		o.Reporter.PhaseChanged(spec.ID, p)
		log.Debug("phase", zap.String("phase", string(p)))
	}
	fail := func(err error) (ToolResult, error) {
		err = &PhaseError{Tool: spec.ID, Phase: res.Phase, Err: err}
		log.Error("tool failed", zap.String("phase", string(res.Phase)), zap.Error(err))
		res.Err = err
		res.Phase = PhaseFailed
		o.Reporter.PhaseChanged(spec.ID, PhaseFailed)
		o.Reporter.ToolFinished(spec.ID, err)
		return res, err
	}

	finalDir := o.Layout.ToolDir(spec.Dir)
	entry, listed := o.Manifest.Lookup(spec.ID)
	if !force {
		if ok, _ := paths.FileExists(spec.ExecutablePath(o.Layout.ToolsDir, o.GOOS)); ok {
			if !listed || !o.stale(spec.ID, entry.Digest) {
				log.Info("already installed", zap.String("dir", finalDir))
				res.Skipped = true
				setPhase(PhaseDone)
				o.Reporter.ToolFinished(spec.ID, nil)
				return res, nil
			}
			log.Info("manifest digest changed; reinstalling", zap.String("dir", finalDir))
		}
	}

	if !listed {
		return fail(&UnknownToolError{ID: spec.ID, Platform: o.Manifest.Platform().String(), Registered: true})
	}
	name, err := fetch.FileName(entry.URLs[0])
	if err != nil {
		return fail(err)
	}
	if err := o.preflight(name); err != nil {
		return fail(err)
	}

	scratch := filepath.Join(o.Layout.ScratchDir, name)
	setPhase(PhaseDownloading)
	used, err := o.Fetcher.FetchWithMirrors(ctx, entry.URLs, scratch)
	if err != nil {
		return fail(err)
	}
	res.URL = used

	setPhase(PhaseVerifying)
	if entry.Digest == "" {
		log.Warn("manifest declares no sha256; skipping verification")
	} else if err := integrity.Verify(spec.ID, scratch, entry.Digest); err != nil {
		// Drop the bad download so the next run fetches it again.
		_ = os.Remove(scratch)
		return fail(err)
	}

	setPhase(PhaseExtracting)
	staging, err := os.MkdirTemp(o.Layout.ToolsDir, ".staging-"+spec.ID+"-")
	if err != nil {
		return fail(fmt.Errorf("create staging dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(staging) }()

	kind, err := o.Extractor.Extract(ctx, scratch, staging)
	if err != nil {
		return fail(err)
	}
	if err := collapse(staging, spec); err != nil {
		return fail(err)
	}

	setPhase(PhasePostProcessing)
	afterCommit, err := o.runHook(spec, staging)
	if err != nil {
		return fail(err)
	}
	if err := commit(staging, finalDir); err != nil {
		return fail(err)
	}
	if afterCommit != nil {
		afterCommit(finalDir)
	}
	o.recordReceipt(spec, used, entry.Digest, kind)

	setPhase(PhaseDone)
	log.Info("installed", zap.String("url", used), zap.String("kind", kind.String()), zap.String("dir", finalDir))
	o.Reporter.ToolFinished(spec.ID, nil)
	return res, nil
}

// preflight fails fast when the artifact needs an extractor that has not
// been provisioned yet. Nothing is downloaded or extracted in that case.
func (o *Orchestrator) preflight(name string) error {
	kind := archive.Classify(name, nil)
	err := o.Extractor.Ready(kind)
	switch {
	case errors.Is(err, archive.ErrDecompressorNotReady):
		return fmt.Errorf("%s not ready yet: %w", o.exeName("zstd", "zstd"), err)
	case errors.Is(err, archive.ErrSevenZipNotReady):
		return fmt.Errorf("%s not ready yet: %w", o.exeName("7zip", "7z"), err)
	}
	return err
}

func (o *Orchestrator) exeName(id, fallback string) string {
	if spec, ok := o.spec(id); ok {
		if exe := spec.ExecutableFor(o.GOOS); exe != "" {
			return filepath.Base(exe)
		}
	}
	return fallback
}

func collapse(staging string, spec tools.ToolSpec) error {
	moved, err := archive.CollapseDoubleFolder(staging, spec.Dir)
	if err != nil || moved || spec.ID == spec.Dir {
		return err
	}
	_, err = archive.CollapseDoubleFolder(staging, spec.ID)
	return err
}

// runHook applies the tool-specific post-processing to the staged tree. The
// returned callback, if any, runs once the tree is at its final location.
func (o *Orchestrator) runHook(spec tools.ToolSpec, staging string) (func(finalDir string), error) {
	switch spec.Hook {
	case tools.HookSevenZip:
		return nil, o.hookSevenZip(staging)
	case tools.HookFlatten:
		_, err := archive.FlattenSingleDir(staging)
		return nil, err
	case tools.HookZstd:
		rel, err := o.hookZstd(spec, staging)
		if err != nil {
			return nil, err
		}
		return func(finalDir string) {
			exe := filepath.Join(finalDir, rel)
			o.Extractor.Zstd = archive.ExternalZstd{Runner: o.Runner, Path: exe}
			o.Logger.Info("zstd decompressor registered", zap.String("path", exe))
		}, nil
	case tools.HookInterpreter:
		return nil, o.hookInterpreter(spec, staging)
	default:
		return nil, nil
	}
}

// hookSevenZip copies the extractor binary into the shared bin directory so
// later tools can be unpacked with it.
func (o *Orchestrator) hookSevenZip(staging string) error {
	found, err := archive.FindFile(staging, sevenZipNames...)
	if err != nil {
		return err
	}
	if found == "" {
		return fmt.Errorf("no 7-Zip executable found in archive")
	}
	dest := filepath.Join(o.Layout.BinDir, filepath.Base(found))
	if err := archive.CopyFile(found, dest); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(found), err)
	}
	if err := os.Chmod(dest, 0o755); err != nil {
		return err
	}
	o.Extractor.SevenZip = dest
	o.Logger.Info("7-Zip extractor registered", zap.String("path", dest))
	return nil
}

// hookZstd makes sure the zstd executable sits at its registered path and
// returns that path relative to the tool directory.
func (o *Orchestrator) hookZstd(spec tools.ToolSpec, staging string) (string, error) {
	if _, err := archive.FlattenSingleDir(staging); err != nil {
		return "", err
	}
	rel := filepath.FromSlash(spec.ExecutableFor(o.GOOS))
	want := filepath.Join(staging, rel)
	if ok, _ := paths.FileExists(want); ok {
		return rel, nil
	}
	found, err := archive.FindFile(staging, filepath.Base(rel))
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no %s found in archive", filepath.Base(rel))
	}
	if err := archive.CopyFile(found, want); err != nil {
		return "", err
	}
	return rel, os.Chmod(want, 0o755)
}

// interpreterHomes are the layouts portable Python archives ship with,
// relative to the extraction root.
var interpreterHomes = []string{".", "python", "python-*", "WPy*/python-*", "WPy*/python"}

// hookInterpreter finds the interpreter's home directory inside the staged
// tree and makes it the tool root, dropping everything around it.
func (o *Orchestrator) hookInterpreter(spec tools.ToolSpec, staging string) error {
	exe := filepath.FromSlash(spec.ExecutableFor(o.GOOS))
	home := ""
	for _, pattern := range interpreterHomes {
		matches, err := filepath.Glob(filepath.Join(staging, pattern))
		if err != nil {
			return err
		}
		for _, candidate := range matches {
			if ok, _ := paths.FileExists(filepath.Join(candidate, exe)); ok {
				home = candidate
				break
			}
		}
		if home != "" {
			break
		}
	}
	if home == "" {
		return fmt.Errorf("no %s found in archive", filepath.Base(exe))
	}
	if filepath.Clean(home) == filepath.Clean(staging) {
		return nil
	}

	promoted := staging + ".home"
	if err := os.Rename(home, promoted); err != nil {
		return fmt.Errorf("promote interpreter: %w", err)
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("discard archive cruft: %w", err)
	}
	if err := os.Rename(promoted, staging); err != nil {
		return fmt.Errorf("promote interpreter: %w", err)
	}
	o.Logger.Debug("interpreter promoted", zap.String("from", strings.TrimPrefix(home, staging)))
	return nil
}

// commit replaces finalDir with the staged tree. An existing installation
// is renamed aside first and restored if the swap fails.
func commit(staging, finalDir string) error {
	previous := ""
	if ok, _ := paths.DirExists(finalDir); ok {
		previous = filepath.Join(filepath.Dir(finalDir), ".replaced-"+filepath.Base(finalDir))
		_ = os.RemoveAll(previous)
		if err := os.Rename(finalDir, previous); err != nil {
			return fmt.Errorf("move aside %s: %w", filepath.Base(finalDir), err)
		}
	}
	if err := os.Rename(staging, finalDir); err != nil {
		if previous != "" {
			_ = os.Rename(previous, finalDir)
		}
		return fmt.Errorf("install %s: %w", filepath.Base(finalDir), err)
	}
	if previous != "" {
		_ = os.RemoveAll(previous)
	}
	return nil
}

// stale reports whether the installed copy of id came from a different
// artifact than the manifest now lists.
func (o *Orchestrator) stale(id, digest string) bool {
	if digest == "" {
		return false
	}
	normalized, err := integrity.Normalize(digest)
	if err != nil {
		return false
	}
	return o.receipts.Stale(id, normalized)
}

func (o *Orchestrator) recordReceipt(spec tools.ToolSpec, url, digest string, kind archive.Kind) {
	if o.receipts == nil {
		o.receipts = receipts.New()
	}
	normalized, _ := integrity.Normalize(digest)
	o.receipts.Set(receipts.Entry{
		Tool:        spec.ID,
		Dir:         spec.Dir,
		URL:         url,
		SHA256:      normalized,
		Kind:        kind.String(),
		InstalledAt: time.Now().UTC(),
	})
	if err := receipts.Save(o.Layout.Receipts, o.receipts); err != nil {
		o.Logger.Warn("write receipts", zap.String("tool", spec.ID), zap.Error(err))
	}
}
