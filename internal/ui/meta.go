package ui

// Meta is static information shown in the header.
type Meta struct {
	Version string
	Tagline string
	// Demo marks runs against the simulated host.
	Demo bool
	// LogDir is shown on the summary screen so operators can find the run log.
	LogDir string
}

func (m Meta) tagline() string {
	if m.Tagline != "" {
		return m.Tagline
	}
	if m.Demo {
		return "Demo mode: nothing is installed"
	}
	return "Ensight vision stack installer"
}
