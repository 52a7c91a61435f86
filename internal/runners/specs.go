package runners

import "regexp"

var builtin = []Spec{
	{
		ID:             "openocd",
		Label:          "OpenOCD",
		Executables:    map[string]string{"windows": "openocd.exe", "*": "openocd"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`Open On-Chip Debugger (\S+)`),
		Args: map[Capability]string{
			Flash: `-f
interface/{{.Interface}}.cfg
-f
target/{{.Device}}.cfg
-c
program {{.File}} verify reset exit`,
			Debug: `-f
interface/{{.Interface}}.cfg
-f
target/{{.Device}}.cfg
{{- if .GDBPort}}
-c
gdb_port {{.GDBPort}}
{{- end}}`,
		},
	},
	{
		ID:             "jlink",
		Label:          "SEGGER J-Link",
		Executables:    map[string]string{"windows": "JLink.exe", "*": "JLinkExe"},
		VersionArgs:    []string{"-NoGui", "1", "-ExitOnError", "1"},
		VersionPattern: regexp.MustCompile(`J-Link Commander (V\S+)`),
		Args: map[Capability]string{
			Flash: `-device
{{.Device}}
-if
{{if .Interface}}{{.Interface}}{{else}}SWD{{end}}
-speed
{{if .Speed}}{{.Speed}}{{else}}4000{{end}}
-autoconnect
1
{{- if .Serial}}
-USB
{{.Serial}}
{{- end}}
-CommanderScript
{{.File}}`,
		},
	},
	{
		ID:             "pyocd",
		Label:          "pyOCD",
		Executables:    map[string]string{"windows": "pyocd.exe", "*": "pyocd"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`(\d+\.\d+\.\d+)`),
		Args: map[Capability]string{
			Flash: `flash
-t
{{.Device}}
{{- if .Serial}}
-u
{{.Serial}}
{{- end}}
{{.File}}`,
			Debug: `gdbserver
-t
{{.Device}}
{{- if .GDBPort}}
-p
{{.GDBPort}}
{{- end}}`,
		},
	},
	{
		ID:             "stm32cubeprogrammer",
		Label:          "STM32CubeProgrammer",
		Executables:    map[string]string{"windows": "STM32_Programmer_CLI.exe", "*": "STM32_Programmer_CLI"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`version: (\S+)`),
		Args: map[Capability]string{
			Flash: `-c
port={{if .Interface}}{{.Interface}}{{else}}SWD{{end}}
{{- if .Serial}}
sn={{.Serial}}
{{- end}}
-w
{{.File}}
-v
-rst`,
		},
	},
	{
		ID:             "linkserver",
		Label:          "NXP LinkServer",
		Executables:    map[string]string{"windows": "LinkServer.exe", "*": "LinkServer"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`v?(\d+\.\d+\.\d+)`),
		Args: map[Capability]string{
			Flash: `flash
{{- if .Serial}}
--probe
{{.Serial}}
{{- end}}
{{.Device}}
load
{{.File}}`,
			Debug: `gdbserver
{{- if .GDBPort}}
--gdb-port
{{.GDBPort}}
{{- end}}
{{.Device}}`,
		},
	},
	{
		ID:             "nrfutil",
		Label:          "nRF Util",
		Executables:    map[string]string{"windows": "nrfutil.exe", "*": "nrfutil"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`nrfutil (\S+)`),
		Args: map[Capability]string{
			Flash: `device
program
--firmware
{{.File}}
{{- if .Serial}}
--serial-number
{{.Serial}}
{{- end}}
--options
chip_erase_mode=ERASE_RANGES_TOUCHED_BY_FIRMWARE`,
		},
	},
}

// Builtin returns the known debug-probe utilities.
func Builtin() []Spec {
	return append([]Spec(nil), builtin...)
}

// Lookup returns the builtin spec with id.
func Lookup(id string) (Spec, bool) {
	for _, spec := range builtin {
		if spec.ID == id {
			return spec, true
		}
	}
	return Spec{}, false
}
