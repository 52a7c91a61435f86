package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"hostkit/internal/envscript"
	"hostkit/internal/runners"
	"hostkit/internal/tools"
	"hostkit/internal/tui"
)

var runnerTarget runners.Target

func newRunnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runners",
		Short: "Detect flash and debug probe utilities",
		Args:  cobra.NoArgs,
		RunE:  runRunners,
	}

	cmd.AddCommand(newRunnerArgsCmd())
	return cmd
}

func runRunners(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	dirs, err := envscript.ActivationDirs(sess.layout, tools.Order())
	if err != nil {
		return err
	}
	searchDirs := []string{sess.layout.BinDir}
	for _, rel := range dirs {
		searchDirs = append(searchDirs, filepath.Join(sess.layout.Root, filepath.FromSlash(rel)))
	}

	detector := runners.Detector{Runner: sess.runner()}
	statuses := detector.DetectAll(cmd.Context(), runners.Builtin(), searchDirs)

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}

	headers := []string{"Runner", "Found", "Version", "Capabilities", "Path"}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)
	for i, st := range statuses {
		found := "no"
		if st.Found {
			found = "yes"
		}
		var caps []string
		for _, c := range runners.Builtin()[i].Capabilities() {
			caps = append(caps, string(c))
		}
		path := st.Path
		if st.Error != "" {
			path = st.Error
		}
		row := []string{st.Label, found, tui.NonEmptyOrDash(st.Version), strings.Join(caps, ","), tui.NonEmptyOrDash(path)}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func newRunnerArgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "args <runner> <flash|debug>",
		Short: "Print the argument list a runner would be invoked with",
		Args:  cobra.ExactArgs(2),
		RunE:  runRunnerArgs,
	}

	cmd.Flags().StringVar(&runnerTarget.Device, "device", "", "Target device or config name")
	cmd.Flags().StringVar(&runnerTarget.Interface, "interface", "", "Debug interface")
	cmd.Flags().StringVar(&runnerTarget.Speed, "speed", "", "Interface speed")
	cmd.Flags().StringVar(&runnerTarget.File, "file", "", "Image or script to flash")
	cmd.Flags().StringVar(&runnerTarget.Serial, "serial", "", "Probe serial number")
	cmd.Flags().IntVar(&runnerTarget.GDBPort, "gdb-port", 0, "GDB server port")

	return cmd
}

func runRunnerArgs(cmd *cobra.Command, args []string) error {
	spec, ok := runners.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown runner %q", args[0])
	}
	argv, err := runners.Args(spec, runners.Capability(strings.ToLower(args[1])), runnerTarget)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), argv)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(argv, "\n"))
	return err
}
