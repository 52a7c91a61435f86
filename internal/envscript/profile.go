package envscript

import (
	"fmt"
	"strings"
)

// ShellProfile captures the syntax differences between the supported shells.
// Pick one per session and pass it to whatever builds command lines.
type ShellProfile struct {
	Name          string
	ScriptName    string
	JoinOperator  string
	NullRedirect  string
	SourceCommand string

	envVarFormat string
	exe          string
	execArgs     []string
}

var (
	POSIX = ShellProfile{
		Name:          "posix",
		ScriptName:    "env.sh",
		JoinOperator:  "&&",
		NullRedirect:  "> /dev/null 2>&1",
		SourceCommand: ".",
		envVarFormat:  "$%s",
		exe:           "sh",
		execArgs:      []string{"-c"},
	}
	Cmd = ShellProfile{
		Name:          "cmd",
		ScriptName:    "env.bat",
		JoinOperator:  "&&",
		NullRedirect:  "> NUL 2>&1",
		SourceCommand: "call",
		envVarFormat:  "%%%s%%",
		exe:           "cmd.exe",
		execArgs:      []string{"/d", "/s", "/c"},
	}
	PowerShell = ShellProfile{
		Name:          "powershell",
		ScriptName:    "env.ps1",
		JoinOperator:  ";",
		NullRedirect:  "| Out-Null",
		SourceCommand: ".",
		envVarFormat:  "$env:%s",
		exe:           "powershell.exe",
		execArgs:      []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-Command"},
	}
)

// Profiles lists every dialect in generation order.
func Profiles() []ShellProfile {
	return []ShellProfile{POSIX, Cmd, PowerShell}
}

// ProfileFor resolves a shell name such as "bash", "cmd" or "pwsh".
func ProfileFor(name string) (ShellProfile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "posix", "sh", "bash", "zsh", "dash", "ksh":
		return POSIX, nil
	case "cmd", "cmd.exe", "bat", "batch":
		return Cmd, nil
	case "powershell", "powershell.exe", "pwsh", "pwsh.exe", "ps1":
		return PowerShell, nil
	default:
		return ShellProfile{}, fmt.Errorf("unknown shell %q (want posix, cmd or powershell)", name)
	}
}

// DetectProfile guesses the calling shell. Outside Windows it is always
// POSIX. On Windows a SHELL variable means an msys-style shell, and PROMPT
// is only exported by cmd.exe.
func DetectProfile(goos string, getenv func(string) string) ShellProfile {
	if goos != "windows" {
		return POSIX
	}
	switch {
	case getenv("SHELL") != "":
		return POSIX
	case getenv("PROMPT") != "":
		return Cmd
	default:
		return PowerShell
	}
}

// EnvVar returns the expansion syntax for name.
func (p ShellProfile) EnvVar(name string) string {
	return fmt.Sprintf(p.envVarFormat, name)
}

// Wrap prefixes command with activation of the script at scriptPath.
func (p ShellProfile) Wrap(scriptPath, command string) string {
	return fmt.Sprintf(`%s "%s" %s %s`, p.SourceCommand, scriptPath, p.JoinOperator, command)
}

// Silence appends the null redirect to command.
func (p ShellProfile) Silence(command string) string {
	return command + " " + p.NullRedirect
}

// Command returns the interpreter invocation that runs line in this shell.
func (p ShellProfile) Command(line string) (string, []string) {
	args := append(append([]string(nil), p.execArgs...), line)
	return p.exe, args
}
