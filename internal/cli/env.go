package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hostkit/internal/envscript"
	"hostkit/internal/paths"
	"hostkit/internal/proc"
)

var (
	envShell string
	envRun   string
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show how to activate the tool environment, or run a command inside it",
		Args:  cobra.NoArgs,
		RunE:  runEnv,
	}

	cmd.Flags().StringVar(&envShell, "shell", "", "Shell dialect: posix, cmd or powershell (default: detected)")
	cmd.Flags().StringVar(&envRun, "run", "", "Command line to run with the environment activated")

	return cmd
}

func runEnv(cmd *cobra.Command, _ []string) error {
	profile := envscript.DetectProfile(runtime.GOOS, os.Getenv)
	if envShell != "" {
		var err error
		if profile, err = envscript.ProfileFor(envShell); err != nil {
			return err
		}
	}

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	script := sess.layout.Script(profile.ScriptName)
	if ok, _ := paths.FileExists(script); !ok {
		return fmt.Errorf("%s not found; run hostkit install first", script)
	}
	if envRun == "" {
		source := fmt.Sprintf(`%s "%s"`, profile.SourceCommand, script)
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), struct {
				Shell  string `json:"shell"`
				Script string `json:"script"`
				Source string `json:"source"`
			}{profile.Name, script, source})
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), source)
		return err
	}

	exe, args := profile.Command(profile.Wrap(script, envRun))
	sess.logger.Info("running in tool environment", zap.String("shell", profile.Name), zap.String("command", envRun))
	runner := proc.CmdRunner{Logger: sess.logger.Named("exec")}
	_, err = runner.Run(cmd.Context(), exe, args, proc.Options{
		Env:    []string{"HOSTKIT_ROOT=" + sess.layout.Root},
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	return err
}
