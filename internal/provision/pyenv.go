package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"hostkit/internal/fetch"
	"hostkit/internal/paths"
	"hostkit/internal/proc"
)

// resolveInterpreter returns the Python used to create the environment.
func (o *Orchestrator) resolveInterpreter(choice Interpreter) (string, error) {
	portable := ""
	if spec, ok := o.spec("python-portable"); ok {
		portable = spec.ExecutablePath(o.Layout.ToolsDir, o.GOOS)
	}

	switch choice {
	case InterpreterPortable:
		if ok, _ := paths.FileExists(portable); ok {
			return portable, nil
		}
		return "", fmt.Errorf("%w: portable interpreter not installed at %s", ErrInterpreterMissing, portable)
	case InterpreterSystem:
		return o.systemPython()
	case InterpreterAuto, "":
		if ok, _ := paths.FileExists(portable); ok {
			return portable, nil
		}
		return o.systemPython()
	default:
		return "", fmt.Errorf("unknown interpreter choice %q", choice)
	}
}

func (o *Orchestrator) systemPython() (string, error) {
	for _, name := range []string{"python3", "python"} {
		if path, err := o.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no python3 or python on PATH", ErrInterpreterMissing)
}

func (o *Orchestrator) venvPython() string {
	if o.GOOS == "windows" {
		return filepath.Join(o.Layout.VenvDir, "Scripts", "python.exe")
	}
	return filepath.Join(o.Layout.VenvDir, "bin", "python")
}

// buildPyEnv recreates the isolated environment from scratch and installs
// the configured packages and requirement files into it.
func (o *Orchestrator) buildPyEnv(ctx context.Context, python string) error {
	log := o.Logger.With(zap.String("tool", "pyenv"))
	fail := func(step string, err error) error {
		log.Error("provisioning failed", zap.String("phase", "venv"), zap.String("step", step), zap.Error(err))
		return fmt.Errorf("python environment: %s: %w", step, err)
	}

	o.step("removing previous environment")
	if err := os.RemoveAll(o.Layout.VenvDir); err != nil {
		return fail("remove previous environment", err)
	}
	o.step("creating environment")
	log.Info("creating python environment", zap.String("interpreter", python), zap.String("dir", o.Layout.VenvDir))
	if _, err := o.Runner.Run(ctx, python, []string{"-m", "venv", o.Layout.VenvDir}, proc.Options{}); err != nil {
		return fail("create", err)
	}

	pip := func(args ...string) error {
		_, err := o.Runner.Run(ctx, o.venvPython(), append([]string{"-m", "pip", "install"}, args...), proc.Options{})
		return err
	}
	o.step("upgrading pip")
	if err := pip("--upgrade", "pip"); err != nil {
		return fail("upgrade pip", err)
	}
	if len(o.PyEnv.Packages) > 0 {
		o.step("installing packages")
		if err := pip(o.PyEnv.Packages...); err != nil {
			return fail("install packages", err)
		}
	}

	for i, reqURL := range o.PyEnv.Requirements {
		name, err := fetch.FileName(reqURL)
		if err != nil {
			return fail("requirements", err)
		}
		o.step("installing " + name)
		dest := filepath.Join(o.Layout.ScratchDir, fmt.Sprintf("requirements-%d-%s", i, name))
		if _, err := o.Fetcher.FetchWithMirrors(ctx, []string{reqURL}, dest); err != nil {
			return fail("fetch requirements", err)
		}
		err = pip("-r", dest)
		_ = os.Remove(dest)
		if err != nil {
			return fail("install requirements", err)
		}
	}
	log.Info("python environment ready", zap.String("dir", o.Layout.VenvDir))
	return nil
}
