package envscript

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// StampVersion is the format version written on the first stamp line.
const StampVersion = 1

// Stamp records what produced the activation scripts. It is advisory: a
// drifted stamp is reported, never acted upon.
type Stamp struct {
	Version  int
	Scripts  string
	Manifest string
}

// NewStamp builds the stamp for the embedded templates and manifestSum.
func NewStamp(manifestSum string) Stamp {
	return Stamp{Version: StampVersion, Scripts: TemplatesSum(), Manifest: manifestSum}
}

func (s Stamp) String() string {
	return fmt.Sprintf("%d\n%s\n%s\n", s.Version, s.Scripts, s.Manifest)
}

// Drifted reports whether other was produced by different inputs.
func (s Stamp) Drifted(other Stamp) bool {
	return s != other
}

// ParseStamp reads the three-line stamp format.
func ParseStamp(data []byte) (Stamp, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return Stamp{}, err
	}
	if len(lines) != 3 {
		return Stamp{}, fmt.Errorf("stamp: expected 3 lines, got %d", len(lines))
	}
	version, err := strconv.Atoi(lines[0])
	if err != nil {
		return Stamp{}, fmt.Errorf("stamp: version: %w", err)
	}
	return Stamp{Version: version, Scripts: lines[1], Manifest: lines[2]}, nil
}

// ReadStamp loads the stamp at path.
func ReadStamp(path string) (Stamp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stamp{}, err
	}
	return ParseStamp(data)
}
