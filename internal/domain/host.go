package domain

import "time"

type StatusLevel string

const (
	StatusOK    StatusLevel = "ok"
	StatusWarn  StatusLevel = "warn"
	StatusError StatusLevel = "error"
)

type StatusItem struct {
	Key     string
	Label   string
	Level   StatusLevel
	Details string
}

// HostStatus is the readiness summary probed before a run (elevation, GPU
// tooling, existing service).
type HostStatus struct {
	Items        []StatusItem
	Overall      StatusLevel
	OverallLabel string
	UpdatedAt    time.Time
}

func NormalizeHostStatus(s HostStatus) HostStatus {
	s.Overall = StatusOK
	for _, it := range s.Items {
		if it.Level == StatusError {
			s.Overall = StatusError
			break
		}
		if it.Level == StatusWarn {
			s.Overall = StatusWarn
		}
	}
	if s.OverallLabel == "" {
		switch s.Overall {
		case StatusError:
			s.OverallLabel = "Blocked"
		case StatusWarn:
			s.OverallLabel = "Warnings"
		default:
			s.OverallLabel = "Ready"
		}
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	return s
}
