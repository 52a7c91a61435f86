package tools

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"hostkit/internal/proc"
)

// probeConcurrency bounds how many version commands run at once.
const probeConcurrency = 4

// Probe reports the installed state of every spec under toolsDir by running
// each executable's version command. It never writes to disk.
func Probe(ctx context.Context, runner proc.Runner, toolsDir string, specs []ToolSpec) []VersionRecord {
	return ProbePlatform(ctx, runner, toolsDir, specs, runtime.GOOS)
}

// ProbePlatform is Probe for an explicit GOOS.
func ProbePlatform(ctx context.Context, runner proc.Runner, toolsDir string, specs []ToolSpec, goos string) []VersionRecord {
	records := make([]VersionRecord, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, spec := range specs {
		g.Go(func() error {
			records[i] = probeOne(gctx, runner, toolsDir, spec, goos)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func probeOne(ctx context.Context, runner proc.Runner, toolsDir string, spec ToolSpec, goos string) VersionRecord {
	minimum, notes := resolveMinimum(ctx, spec)
	rec := VersionRecord{ToolID: spec.ID, Minimum: minimum, Notes: notes}

	path := spec.ExecutablePath(toolsDir, goos)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return rec
	}
	rec.Installed = true
	rec.Path = path

	res, runErr := runner.Run(ctx, path, spec.VersionArgs, proc.Options{})
	rec.Version = parseVersion(spec.VersionPattern, res.Combined())
	switch {
	case rec.Version == "" && runErr != nil:
		rec.Error = runErr.Error()
	case rec.Version == "":
		rec.Error = "version not recognized"
	case runErr != nil:
		// Some tools exit non-zero after printing their banner.
		rec.Notes = append(rec.Notes, runErr.Error())
	}

	rec.Satisfied = rec.Version != "" && meetsMinimum(rec.Version, minimum)
	if rec.Version != "" && !rec.Satisfied {
		rec.Error = fmt.Sprintf("version %s below minimum %s", rec.Version, minimum)
	}
	return rec
}
