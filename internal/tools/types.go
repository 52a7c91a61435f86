package tools

// VersionRecord is the probed state of one tool. It is recomputed on demand
// and never persisted.
type VersionRecord struct {
	ToolID    string   `json:"tool"`
	Version   string   `json:"version,omitempty"`
	Minimum   string   `json:"minimum,omitempty"`
	Path      string   `json:"path,omitempty"`
	Installed bool     `json:"installed"`
	Satisfied bool     `json:"satisfied"`
	Error     string   `json:"error,omitempty"`
	Notes     []string `json:"notes,omitempty"`
}

// Missing returns the ids of tools that are not installed.
func Missing(records []VersionRecord) []string {
	var out []string
	for _, rec := range records {
		if !rec.Installed {
			out = append(out, rec.ToolID)
		}
	}
	return out
}

// AllSatisfied reports whether every tool is installed at a usable version.
func AllSatisfied(records []VersionRecord) bool {
	for _, rec := range records {
		if !rec.Installed || !rec.Satisfied {
			return false
		}
	}
	return true
}
