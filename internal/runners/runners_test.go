package runners

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"hostkit/internal/proc"
	"hostkit/internal/proc/proctest"
)

func TestArgs(t *testing.T) {
	cases := []struct {
		id     string
		cap    Capability
		target Target
		want   []string
	}{
		{
			id:     "openocd",
			cap:    Flash,
			target: Target{Device: "stm32f4x", Interface: "stlink", File: "build/zephyr.elf"},
			want:   []string{"-f", "interface/stlink.cfg", "-f", "target/stm32f4x.cfg", "-c", "program build/zephyr.elf verify reset exit"},
		},
		{
			id:     "openocd",
			cap:    Debug,
			target: Target{Device: "stm32f4x", Interface: "stlink", GDBPort: 3333},
			want:   []string{"-f", "interface/stlink.cfg", "-f", "target/stm32f4x.cfg", "-c", "gdb_port 3333"},
		},
		{
			id:     "openocd",
			cap:    Debug,
			target: Target{Device: "stm32f4x", Interface: "stlink"},
			want:   []string{"-f", "interface/stlink.cfg", "-f", "target/stm32f4x.cfg"},
		},
		{
			id:     "jlink",
			cap:    Flash,
			target: Target{Device: "nRF52840_xxAA", File: "flash.jlink", Serial: "683"},
			want:   []string{"-device", "nRF52840_xxAA", "-if", "SWD", "-speed", "4000", "-autoconnect", "1", "-USB", "683", "-CommanderScript", "flash.jlink"},
		},
		{
			id:     "pyocd",
			cap:    Flash,
			target: Target{Device: "nrf52840", File: "zephyr.hex"},
			want:   []string{"flash", "-t", "nrf52840", "zephyr.hex"},
		},
		{
			id:     "nrfutil",
			cap:    Flash,
			target: Target{File: "zephyr.hex", Serial: "1050"},
			want:   []string{"device", "program", "--firmware", "zephyr.hex", "--serial-number", "1050", "--options", "chip_erase_mode=ERASE_RANGES_TOUCHED_BY_FIRMWARE"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.id+"-"+string(tc.cap), func(t *testing.T) {
			spec, ok := Lookup(tc.id)
			require.True(t, ok)
			got, err := Args(spec, tc.cap, tc.target)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestArgsUnsupportedCapability(t *testing.T) {
	spec, _ := Lookup("jlink")
	require.False(t, spec.Supports(Debug))
	_, err := Args(spec, Debug, Target{})
	require.Error(t, err)
}

func TestBuiltinSpecsRender(t *testing.T) {
	target := Target{Device: "d", Interface: "i", Speed: "1000", File: "f", Serial: "s", GDBPort: 2331}
	for _, spec := range Builtin() {
		require.NotEmpty(t, spec.Capabilities(), spec.ID)
		for _, c := range spec.Capabilities() {
			args, err := Args(spec, c, target)
			require.NoError(t, err, "%s %s", spec.ID, c)
			require.NotEmpty(t, args)
		}
	}
}

func TestDetectPrefersSearchDirs(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "openocd")
	require.NoError(t, os.WriteFile(exe, []byte(""), 0o755))

	runner := &proctest.Runner{Handler: func(proctest.Call) (proc.Result, error) {
		return proc.Result{Stderr: []byte("Open On-Chip Debugger 0.12.0+dev-01\nLicensed under GNU GPL v2\n")}, nil
	}}
	d := Detector{
		Runner:   runner,
		GOOS:     "linux",
		LookPath: func(string) (string, error) { t.Fatal("PATH should not be consulted"); return "", nil },
	}

	spec, _ := Lookup("openocd")
	st := d.Detect(context.Background(), spec, []string{filepath.Join(dir, "missing"), dir})
	require.Equal(t, Status{ID: "openocd", Label: "OpenOCD", Found: true, Path: exe, Version: "0.12.0+dev-01"}, st)
}

func TestDetectFallsBackToPath(t *testing.T) {
	runner := &proctest.Runner{}
	d := Detector{
		Runner: runner,
		GOOS:   "windows",
		LookPath: func(name string) (string, error) {
			if name == "nrfutil.exe" {
				return `C:\tools\nrfutil.exe`, nil
			}
			return "", errors.New("not found")
		},
	}

	statuses := d.DetectAll(context.Background(), Builtin(), nil)
	found := map[string]bool{}
	for _, st := range statuses {
		found[st.ID] = st.Found
	}
	require.Equal(t, map[string]bool{
		"openocd": false, "jlink": false, "pyocd": false,
		"stm32cubeprogrammer": false, "linkserver": false, "nrfutil": true,
	}, found)
	require.Len(t, runner.Calls(), 1)
}
