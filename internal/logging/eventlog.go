// Package logging writes the per-run markdown log and configures the
// diagnostic slog output.
package logging

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

const (
	logPrefix     = "install-"
	logSuffix     = ".md"
	logTimeLayout = "20060102-150405"
)

type Config struct {
	// Always writes the log even when the run succeeded.
	Always  bool
	Dir     string
	Version string
	Mode    string
	// Options lists the redo options active when the run started.
	Options []string
	// Secrets are literal values (API keys, site keys) masked wherever they
	// appear.
	Secrets []string
}

type Result struct {
	Path    string
	Written bool
}

type runResult struct {
	seen     bool
	ok       bool
	runID    string
	errText  string
	failedAt string
	duration time.Duration
}

type EventLogger struct {
	cfg         Config
	started     time.Time
	ended       time.Time
	stepLabels  map[string]string
	buffer      logBuffer
	hadError    bool
	failedSteps map[string]bool
	host        *domain.HostStatus
	result      runResult
}

func NewEventLogger(cfg Config) *EventLogger {
	return &EventLogger{
		cfg:         cfg,
		started:     time.Now(),
		stepLabels:  map[string]string{},
		failedSteps: map[string]bool{},
	}
}

// AddSecret masks s in everything written afterwards.
func (l *EventLogger) AddSecret(s string) {
	if strings.TrimSpace(s) != "" {
		l.cfg.Secrets = append(l.cfg.Secrets, s)
	}
}

func (l *EventLogger) Record(ev domain.Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	l.ended = ev.TS

	switch ev.Type {
	case domain.EventSteps:
		if p, ok := ev.Payload.(domain.StepsPayload); ok {
			for _, s := range p.Steps {
				if s.ID != "" && s.Title != "" {
					l.stepLabels[s.ID] = s.Title
				}
			}
		}
	case domain.EventHostStatus:
		if p, ok := ev.Payload.(domain.HostStatusPayload); ok {
			st := p.Status
			l.host = &st
		}
	case domain.EventStepStart:
		label := ev.StepID
		if p, ok := ev.Payload.(domain.StepStartPayload); ok && strings.TrimSpace(p.Label) != "" {
			label = strings.TrimSpace(p.Label)
			if p.Total > 0 {
				label = fmt.Sprintf("%s (%d/%d)", label, p.Index+1, p.Total)
			}
		}
		if ev.StepID != "" && label != "" {
			if _, known := l.stepLabels[ev.StepID]; !known {
				l.stepLabels[ev.StepID] = label
			}
		}
		l.buffer.append(domain.LogEntry{
			TS:      ev.TS,
			Level:   domain.LogInfo,
			Source:  ev.Source,
			StepID:  ev.StepID,
			Message: "Step started: " + label,
		})
	case domain.EventStepDone:
		p, _ := ev.Payload.(domain.StepDonePayload)
		if !p.OK && ev.StepID != "" {
			l.failedSteps[ev.StepID] = true
		}
		label := l.label(ev.StepID)
		level := domain.LogInfo
		msg := "Step completed: " + label
		if !p.OK {
			level = domain.LogError
			msg = "Step failed: " + label
		}
		entry := domain.LogEntry{
			TS:      ev.TS,
			Level:   level,
			Source:  ev.Source,
			StepID:  ev.StepID,
			Message: msg,
		}
		if detail := strings.TrimSpace(p.Message); detail != "" {
			entry.Fields = map[string]string{"result": detail}
			if !p.OK {
				entry.Fields = map[string]string{"error": detail}
			}
		}
		l.buffer.append(entry)
	case domain.EventProgress:
		if p, ok := ev.Payload.(domain.ProgressPayload); ok {
			unit := strings.TrimSpace(p.Unit)
			if unit == "" {
				unit = "units"
			}
			l.buffer.add(domain.Event{
				Type:   ev.Type,
				StepID: ev.StepID,
				TS:     ev.TS,
				Source: ev.Source,
				Payload: domain.LogPayload{
					Message: fmt.Sprintf("Progress: %s/%s %s", formatQuantity(p.Current, unit), formatQuantity(p.Total, unit), unit),
					Fields:  map[string]string{"op": "replace_last_if_same", "kind": "progress", "progress_key": ev.StepID},
				},
			}, domain.LogInfo)
		}
	case domain.EventQuestion:
		if p, ok := ev.Payload.(domain.QuestionPayload); ok && p.Question.Active {
			q := p.Question
			title := strings.TrimSpace(q.Title)
			if title == "" {
				title = strings.TrimSpace(q.Prompt)
			}
			l.buffer.append(domain.LogEntry{
				TS:      ev.TS,
				Level:   domain.LogInfo,
				Source:  ev.Source,
				StepID:  ev.StepID,
				Message: "Asked: " + title,
				Fields:  map[string]string{"kind": string(q.Kind)},
			})
		}
	case domain.EventLog:
		l.buffer.add(ev, domain.LogInfo)
	case domain.EventWarning:
		l.buffer.add(ev, domain.LogWarning)
	case domain.EventError:
		l.hadError = true
		if ev.StepID != "" {
			l.failedSteps[ev.StepID] = true
		}
		l.buffer.add(ev, domain.LogError)
	case domain.EventRunDone:
		if p, ok := ev.Payload.(domain.RunDonePayload); ok {
			l.result = runResult{
				seen:     true,
				ok:       p.OK,
				runID:    p.RunID,
				errText:  p.Error,
				failedAt: p.FailedAt,
				duration: p.Duration,
			}
			if !p.OK {
				l.hadError = true
				if p.FailedAt != "" {
					l.failedSteps[p.FailedAt] = true
				}
			}
		}
	}
}

func (l *EventLogger) label(stepID string) string {
	if label := strings.TrimSpace(l.stepLabels[stepID]); label != "" {
		return label
	}
	return stepID
}

// MarkFailure forces the log to be written and reported as failed, e.g.
// after an interrupt.
func (l *EventLogger) MarkFailure() {
	l.hadError = true
}

func (l *EventLogger) Finalize() (Result, error) {
	if !l.cfg.Always && !l.hadError {
		return Result{}, nil
	}

	logDir := resolveLogDir(l.cfg.Dir)
	path := filepath.Join(logDir, logPrefix+l.started.Format(logTimeLayout)+logSuffix)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if l.ended.IsZero() {
		l.ended = time.Now()
	}
	r := newRedactor(l.cfg.Secrets)
	l.writeMarkdown(w, r)
	if err := w.Flush(); err != nil {
		return Result{}, err
	}
	return Result{Path: path, Written: true}, nil
}

// NewestLog returns the most recent run log in dir.
func NewestLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(resolveLogDir(dir), logPrefix+"*"+logSuffix))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoLogs
	}
	// The timestamp layout sorts lexically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

var ErrNoLogs = errors.New("no run logs found")

type stepGroup struct {
	stepID  string
	label   string
	entries []domain.LogEntry
}

type logItem struct {
	ts      time.Time
	level   domain.LogLevel
	source  string
	message string
	fields  string
	count   int
}

func (l *EventLogger) writeMarkdown(w *bufio.Writer, r *redactor) {
	entries := l.buffer.entries
	stepGroups, general := groupEntries(l.stepLabels, entries)
	result := "Completed"
	if l.hadError {
		result = "Failed"
	}
	if !l.result.seen && !l.hadError {
		result = "Incomplete"
	}
	failedList := formatFailedSteps(stepGroups, l.failedSteps, l.stepLabels)

	fmt.Fprintln(w, "# FLIv2 installer log")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "- Started: %s\n", l.started.Format(time.RFC3339))
	fmt.Fprintf(w, "- Ended: %s\n", l.ended.Format(time.RFC3339))
	fmt.Fprintf(w, "- Result: %s\n", result)
	if l.result.runID != "" {
		fmt.Fprintf(w, "- Run: `%s`\n", l.result.runID)
	}
	if l.result.duration > 0 {
		fmt.Fprintf(w, "- Duration: %s\n", l.result.duration.Round(time.Second))
	}
	if l.hadError {
		reason := strings.TrimSpace(l.result.errText)
		if reason == "" {
			reason = failureReason(entries, r)
		}
		if reason = r.message(reason); reason != "" {
			fmt.Fprintf(w, "- Failure reason: %s\n", reason)
		}
	}
	if len(failedList) > 0 {
		fmt.Fprintf(w, "- Failed steps: %s\n", strings.Join(failedList, "; "))
	}
	if v := strings.TrimSpace(l.cfg.Version); v != "" {
		fmt.Fprintf(w, "- Version: %s\n", v)
	}
	if m := strings.TrimSpace(l.cfg.Mode); m != "" {
		fmt.Fprintf(w, "- Mode: %s\n", m)
	}
	if len(l.cfg.Options) > 0 {
		fmt.Fprintf(w, "- Redo options: %s\n", strings.Join(l.cfg.Options, ", "))
	}
	if l.host != nil && len(l.host.Items) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Host")
		for _, it := range l.host.Items {
			line := fmt.Sprintf("- %s: %s", it.Label, strings.ToUpper(string(it.Level)))
			if d := r.message(it.Details); d != "" {
				line += " (" + d + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Steps")
	if len(stepGroups) == 0 {
		fmt.Fprintln(w, "_No step logs recorded._")
	} else {
		for _, g := range stepGroups {
			writeStepSection(w, g, r)
		}
	}
	if len(general) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## General")
		writeEntries(w, general, r)
	}
}

func groupEntries(stepLabels map[string]string, entries []domain.LogEntry) ([]stepGroup, []domain.LogEntry) {
	seen := map[string]*stepGroup{}
	order := []string{}
	var general []domain.LogEntry

	for _, entry := range entries {
		stepID := strings.TrimSpace(entry.StepID)
		if stepID == "" {
			general = append(general, entry)
			continue
		}
		group, ok := seen[stepID]
		if !ok {
			group = &stepGroup{stepID: stepID, label: strings.TrimSpace(stepLabels[stepID])}
			seen[stepID] = group
			order = append(order, stepID)
		}
		group.entries = append(group.entries, entry)
	}

	out := make([]stepGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *seen[id])
	}
	return out, general
}

func writeStepSection(w *bufio.Writer, g stepGroup, r *redactor) {
	fmt.Fprintln(w, formatStepHeading(g.label, g.stepID))
	writeEntries(w, g.entries, r)
	fmt.Fprintln(w)
}

func writeEntries(w *bufio.Writer, entries []domain.LogEntry, r *redactor) {
	items := compressEntries(entries, r)
	if len(items) == 0 {
		fmt.Fprintln(w, "_No logs recorded._")
		return
	}

	var highlights, issues []logItem
	verbose := 0
	for _, item := range items {
		if isIssueItem(item) {
			issues = append(issues, item)
		}
		if isVerbose(item) {
			verbose++
			if isIssueItem(item) {
				highlights = append(highlights, item)
			}
			continue
		}
		highlights = append(highlights, item)
	}

	if len(issues) > 0 {
		fmt.Fprintln(w, "#### Issues")
		fmt.Fprintln(w, "```text")
		for _, item := range issues {
			fmt.Fprintln(w, formatItemLine(item, true))
		}
		fmt.Fprintln(w, "```")
		fmt.Fprintln(w)
	}

	if len(highlights) > 0 {
		fmt.Fprintln(w, "#### Highlights")
		for _, item := range highlights {
			fmt.Fprintf(w, "- %s\n", formatItemLine(item, false))
		}
		fmt.Fprintln(w)
	}

	if verbose > 0 {
		fmt.Fprintln(w, "<details>")
		fmt.Fprintf(w, "<summary>Full output (%d lines)</summary>\n\n", len(items))
		fmt.Fprintln(w, "```text")
		for _, item := range items {
			fmt.Fprintln(w, formatItemLine(item, true))
		}
		fmt.Fprintln(w, "```")
		fmt.Fprintln(w, "</details>")
	}
}

func compressEntries(entries []domain.LogEntry, r *redactor) []logItem {
	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		item := logItem{
			ts:      entry.TS,
			level:   entry.Level,
			source:  strings.TrimSpace(entry.Source),
			message: r.message(entry.Message),
			fields:  r.fields(entry.Fields),
			count:   1,
		}
		if len(items) > 0 {
			last := &items[len(items)-1]
			if last.level == item.level && last.source == item.source && last.message == item.message && last.fields == item.fields {
				last.count++
				continue
			}
		}
		items = append(items, item)
	}
	return items
}

func formatItemLine(item logItem, includeFields bool) string {
	ts := item.ts
	if ts.IsZero() {
		ts = time.Now()
	}
	level := strings.ToUpper(string(item.level))
	if level == "" {
		level = "INFO"
	}
	line := fmt.Sprintf("%s [%s]", ts.Format("2006-01-02 15:04:05"), level)
	if item.source != "" {
		line += " (" + item.source + ")"
	}
	if item.message != "" {
		line += " " + item.message
	}
	if item.count > 1 {
		line += fmt.Sprintf(" (x%d)", item.count)
	}
	if includeFields && item.fields != "" {
		line += " [" + item.fields + "]"
	}
	return line
}

// Subprocess output (trtexec, msiexec) only appears in the collapsed block.
func isVerbose(item logItem) bool {
	return item.source == "process"
}

func isIssueItem(item logItem) bool {
	if item.level == domain.LogError || item.level == domain.LogWarning {
		return true
	}
	return isFailureMessage(item.message)
}

func isFailureMessage(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return false
	}
	if strings.HasPrefix(msg, "✗") || strings.HasPrefix(msg, "⚠") {
		return true
	}
	return strings.Contains(msg, "failed") || strings.Contains(msg, "error")
}

func formatStepHeading(label, stepID string) string {
	label = strings.TrimSpace(label)
	stepID = strings.TrimSpace(stepID)
	if label == "" {
		label = stepID
	}
	if label == "" {
		label = "Unknown step"
	}
	if stepID == "" {
		return "### " + label
	}
	return fmt.Sprintf("### %s (`%s`)", label, stepID)
}

func formatFailedSteps(groups []stepGroup, failedSteps map[string]bool, labels map[string]string) []string {
	if len(failedSteps) == 0 {
		return nil
	}
	out := []string{}
	seen := map[string]bool{}
	for _, g := range groups {
		if !failedSteps[g.stepID] {
			continue
		}
		seen[g.stepID] = true
		out = append(out, formatStepRef(g.label, g.stepID))
	}
	var rest []string
	for stepID := range failedSteps {
		if !seen[stepID] {
			rest = append(rest, stepID)
		}
	}
	sort.Strings(rest)
	for _, stepID := range rest {
		out = append(out, formatStepRef(labels[stepID], stepID))
	}
	return out
}

func formatStepRef(label, stepID string) string {
	label = strings.TrimSpace(label)
	stepID = strings.TrimSpace(stepID)
	if label == "" {
		return "`" + stepID + "`"
	}
	return fmt.Sprintf("%s (`%s`)", label, stepID)
}

func failureReason(entries []domain.LogEntry, r *redactor) string {
	for _, level := range []domain.LogLevel{domain.LogError, domain.LogWarning} {
		for _, entry := range entries {
			if entry.Level != level {
				continue
			}
			if errText := strings.TrimSpace(entry.Fields["error"]); errText != "" {
				return r.message(errText)
			}
			if msg := r.message(entry.Message); msg != "" && (level == domain.LogError || isFailureMessage(msg)) {
				return msg
			}
		}
	}
	return ""
}

func formatQuantity(n int64, unit string) string {
	if unit != "bytes" {
		return strconv.FormatInt(n, 10)
	}
	const mib = 1 << 20
	if n < mib {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%.1fMiB", float64(n)/mib)
}

func formatValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "\"\""
	}
	if strings.ContainsAny(v, " \t") {
		return strconv.Quote(v)
	}
	return v
}

func resolveLogDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultDir()
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return dir
	}
	return os.TempDir()
}

// DefaultDir is where run logs go when the config does not name a directory.
func DefaultDir() string {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return filepath.Join(pd, "Ensight", "fv2", "logs")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fv2", "logs")
	}
	return filepath.Join(os.TempDir(), "fv2-logs")
}

func isInternalField(k string) bool {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "op", "kind", "progress_key":
		return true
	default:
		return false
	}
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(strings.TrimSpace(k))
	for _, s := range []string{"token", "secret", "password", "credential", "api_key", "apikey", "site_key"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

type logBuffer struct {
	entries []domain.LogEntry
}

func (b *logBuffer) append(entry domain.LogEntry) {
	b.entries = append(b.entries, entry)
}

func (b *logBuffer) add(ev domain.Event, level domain.LogLevel) {
	payload, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	entry := domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		StepID:  ev.StepID,
		Message: payload.Message,
		Fields:  payload.Fields,
	}

	if payload.Fields["op"] == "replace_last_if_same" && len(b.entries) > 0 {
		last := b.entries[len(b.entries)-1]
		if last.Fields != nil && last.Fields["kind"] == payload.Fields["kind"] && last.Fields["progress_key"] == payload.Fields["progress_key"] {
			b.entries[len(b.entries)-1] = entry
			return
		}
	}
	b.entries = append(b.entries, entry)
}

var (
	bearerRe      = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	googleTokenRe = regexp.MustCompile(`\bya29\.[A-Za-z0-9._-]+`)
	queryTokenRe  = regexp.MustCompile(`(?i)\b(access_token|refresh_token|id_token|key)=[^&\s]+`)
	kvRedactRe    = regexp.MustCompile(`(?i)\b(token|secret|password|api[_ -]?key|site[_ -]?key)\s*[:=]\s*\S+`)
)

type redactor struct {
	secrets []string
}

func newRedactor(secrets []string) *redactor {
	r := &redactor{}
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(r.secrets, func(i, j int) bool { return len(r.secrets[i]) > len(r.secrets[j]) })
	return r
}

func (r *redactor) message(message string) string {
	if strings.TrimSpace(message) == "" {
		return ""
	}
	message = stripControlChars(message)
	for _, s := range r.secrets {
		message = strings.ReplaceAll(message, s, "<redacted>")
	}
	message = bearerRe.ReplaceAllString(message, "Bearer <redacted>")
	message = googleTokenRe.ReplaceAllString(message, "<redacted>")
	message = queryTokenRe.ReplaceAllString(message, "$1=<redacted>")
	message = kvRedactRe.ReplaceAllString(message, "$1: <redacted>")
	return strings.TrimSpace(message)
}

func (r *redactor) fields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !isInternalField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if isSensitiveKey(k) {
			v = "<redacted>"
		} else {
			v = r.message(v)
		}
		out = append(out, k+"="+formatValue(v))
	}
	return strings.Join(out, " ")
}

func stripControlChars(message string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, message)
}
