package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hostkit/internal/manifest"
	"hostkit/internal/provision"
	"hostkit/internal/tools"
	"hostkit/internal/tui"
)

var (
	installCheck        bool
	installReinstallEnv bool
	installSystemPython bool
	installForce        bool
	installSkipEnv      bool
	installManifest     string
	installTools        []string
	noProgress          bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install every host tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := provision.ModeInstall
			switch {
			case installCheck:
				mode = provision.ModeCheck
			case installReinstallEnv:
				mode = provision.ModeVenv
			}
			return runProvision(cmd, mode)
		},
	}

	cmd.Flags().BoolVar(&installCheck, "check", false, "Only report installed tool versions")
	cmd.Flags().BoolVar(&installReinstallEnv, "reinstall-venv", false, "Only recreate the Python environment")
	cmd.Flags().BoolVar(&installSystemPython, "system-python", false, "Create the Python environment with python3 from PATH")
	cmd.Flags().BoolVar(&installForce, "force", false, "Reinstall tools that are already present")
	cmd.Flags().BoolVar(&installSkipEnv, "skip-venv", false, "Leave the Python environment untouched")
	cmd.Flags().StringVar(&installManifest, "manifest", "", "Path to the tool manifest (default: <dir>/tools.yml)")
	cmd.Flags().StringSliceVar(&installTools, "tools", nil, "Restrict the run to these tool ids")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")
	cmd.MarkFlagsMutuallyExclusive("check", "reinstall-venv")

	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report installed tool versions (same as install --check)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvision(cmd, provision.ModeCheck)
		},
	}
	cmd.Flags().StringSliceVar(&installTools, "tools", nil, "Restrict the check to these tool ids")
	return cmd
}

func runProvision(cmd *cobra.Command, mode provision.Mode) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	outMode := tui.DetectMode(out, noProgress, outputJSON)
	if outMode == tui.ModeTUI && mode != provision.ModeInstall {
		outMode = tui.ModePlain
	}

	// The interactive table owns the terminal; logs only go to the file.
	var console io.Writer = errOut
	if outMode == tui.ModeTUI {
		console = nil
	}
	sess, err := openSession(console)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	var m manifest.Manifest
	if mode == provision.ModeInstall {
		if m, err = sess.loadManifest(installManifest); err != nil {
			return err
		}
	}
	if mode == provision.ModeCheck {
		ctx = tools.WithMinimums(ctx, sess.cfg.Minimums)
	}

	o, fetcher := sess.orchestrator(m)
	opts := provision.Options{
		Mode:        mode,
		Interpreter: provision.Interpreter(sess.cfg.Interpreter),
		Tools:       installTools,
		Force:       installForce,
		SkipPyEnv:   installSkipEnv,
	}
	if installSystemPython {
		opts.Interpreter = provision.InterpreterSystem
	}

	var report provision.Report
	switch outMode {
	case tui.ModeTUI:
		ids := installTools
		if len(ids) == 0 {
			ids = tools.IDs()
		}
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		model := tui.NewToolModel("Provisioning", ids)
		err = tui.RunWithWork(out, model, cancel, func(send func(tea.Msg)) error {
			o.Reporter = tui.NewReporter(send)
			var runErr error
			report, runErr = o.Run(runCtx, opts)
			return runErr
		})
	case tui.ModePlain:
		interactive := !noProgress && tui.IsTerminal(errOut)
		if mode == provision.ModeInstall {
			o.Reporter = tui.NewLineReporter(errOut)
			if interactive {
				fetcher.Progress = downloadBars(errOut)
			}
		}
		if mode == provision.ModeVenv && interactive {
			spinner := tui.NewStepSpinner(errOut, "python environment")
			o.Reporter = spinner
			report, err = o.Run(ctx, opts)
			spinner.Stop()
		} else {
			report, err = o.Run(ctx, opts)
		}
	default:
		report, err = o.Run(ctx, opts)
	}

	if outMode == tui.ModeJSON {
		if encErr := writeJSON(out, newReportPayload(sess.layout.Root, report, err)); encErr != nil {
			return encErr
		}
		return err
	}
	if printErr := printReport(out, report, tui.IsTerminal(out)); printErr != nil && err == nil {
		err = printErr
	}
	return err
}

type toolPayload struct {
	ID      string `json:"id"`
	Phase   string `json:"phase"`
	URL     string `json:"url,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

type reportPayload struct {
	InstallDir   string                `json:"install_dir"`
	Mode         string                `json:"mode"`
	Tools        []toolPayload         `json:"tools,omitempty"`
	Records      []tools.VersionRecord `json:"records,omitempty"`
	EnvScripts   []string              `json:"env_scripts,omitempty"`
	Interpreter  string                `json:"interpreter,omitempty"`
	StampDrifted bool                  `json:"stamp_drifted,omitempty"`
	Satisfied    *bool                 `json:"satisfied,omitempty"`
	Error        string                `json:"error,omitempty"`
}

func newReportPayload(root string, report provision.Report, runErr error) reportPayload {
	payload := reportPayload{
		InstallDir:   root,
		Mode:         string(report.Mode),
		Records:      report.Records,
		EnvScripts:   report.EnvScripts,
		Interpreter:  report.Interpreter,
		StampDrifted: report.StampDrifted,
	}
	if report.Mode == provision.ModeCheck {
		satisfied := tools.AllSatisfied(report.Records)
		payload.Satisfied = &satisfied
	}
	for _, tr := range report.Tools {
		tp := toolPayload{ID: tr.ID, Phase: string(tr.Phase), URL: tr.URL, Skipped: tr.Skipped}
		if tr.Err != nil {
			tp.Error = tr.Err.Error()
		}
		payload.Tools = append(payload.Tools, tp)
	}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	return payload
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printReport(w io.Writer, report provision.Report, color bool) error {
	switch report.Mode {
	case provision.ModeCheck:
		if err := tools.RenderTable(w, report.Records, color); err != nil {
			return err
		}
		if tools.AllSatisfied(report.Records) {
			fmt.Fprintf(w, "\nall %d tools satisfied\n", len(report.Records))
			return nil
		}
		missing := len(tools.Missing(report.Records))
		outdated := 0
		for _, rec := range report.Records {
			if rec.Installed && !rec.Satisfied {
				outdated++
			}
		}
		fmt.Fprintf(w, "\n%d of %d tools missing, %d below minimum\n", missing, len(report.Records), outdated)
		return nil
	case provision.ModeVenv:
		if report.Interpreter != "" {
			fmt.Fprintf(w, "Python environment created with %s\n", report.Interpreter)
		}
		return nil
	}

	installed, skipped := 0, 0
	for _, tr := range report.Tools {
		switch {
		case tr.Skipped:
			skipped++
		case tr.Phase == provision.PhaseDone:
			installed++
		}
	}
	if len(report.Tools) > 0 {
		fmt.Fprintf(w, "%d installed, %d already present\n", installed, skipped)
	}
	for _, script := range report.EnvScripts {
		fmt.Fprintf(w, "wrote %s\n", script)
	}
	if report.StampDrifted {
		fmt.Fprintln(w, "activation scripts were regenerated from changed inputs; re-source them in open shells")
	}
	return nil
}
