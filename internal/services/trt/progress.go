package trt

import "regexp"

// Mapper turns trtexec log lines into a monotonic 0..100 build progress.
type Mapper struct {
	last int

	seenBuilding bool
}

func NewMapper() *Mapper { return &Mapper{} }

var (
	errorHintRe = regexp.MustCompile(`(?i)(\[E\]|\bFAILED\b|\berror\b)`)

	rRunning        = regexp.MustCompile(`^&&&& RUNNING\b`)
	rStartParsing   = regexp.MustCompile(`(?i)\bstart parsing network model\b`)
	rFinishParsing  = regexp.MustCompile(`(?i)\bfinished parsing network model\b`)
	rBuilderStart   = regexp.MustCompile(`(?i)\b(timing cache|compiler backend|detected \d+ inputs)\b`)
	rTactic         = regexp.MustCompile(`(?i)\b(tactic|autotun|building engine|\[TRT\] \[GraphReduction\])`)
	rEngineBuilt    = regexp.MustCompile(`(?i)\bengine built in\b`)
	rEngineSaved    = regexp.MustCompile(`(?i)\b(created engine with size|engine saved|saving engine)\b`)
	rStartInference = regexp.MustCompile(`(?i)\bstarting inference\b`)
	rPerfSummary    = regexp.MustCompile(`(?i)=== performance summary ===`)
	rPassed         = regexp.MustCompile(`^&&&& PASSED\b`)
)

// Observe consumes one trimmed output line. ok=false means "no progress update".
func (m *Mapper) Observe(line string) (int, bool) {
	if line == "" {
		return 0, false
	}
	if rPassed.MatchString(line) {
		return m.advanceTo(100)
	}
	if errorHintRe.MatchString(line) {
		return 0, false
	}

	// Order matters.
	switch {
	case rRunning.MatchString(line):
		return m.advanceTo(5)
	case rStartParsing.MatchString(line):
		return m.advanceTo(10)
	case rFinishParsing.MatchString(line):
		return m.advanceTo(20)
	case rEngineBuilt.MatchString(line):
		return m.advanceTo(85)
	case rEngineSaved.MatchString(line):
		return m.advanceTo(88)
	case rStartInference.MatchString(line):
		return m.advanceTo(92)
	case rPerfSummary.MatchString(line):
		return m.advanceTo(96)
	case rBuilderStart.MatchString(line):
		return m.advanceTo(30)
	case rTactic.MatchString(line):
		return m.observeBuilding()
	default:
		return 0, false
	}
}

// observeBuilding creeps toward 80 while the builder is profiling tactics.
func (m *Mapper) observeBuilding() (int, bool) {
	if !m.seenBuilding {
		m.seenBuilding = true
		return m.advanceTo(max(m.last, 30))
	}
	if m.last >= 80 {
		return 0, false
	}
	return m.advanceTo(min(80, m.last+1))
}

func (m *Mapper) advanceTo(target int) (int, bool) {
	target = max(0, min(100, target))
	if target <= m.last {
		return 0, false
	}
	m.last = target
	return m.last, true
}
