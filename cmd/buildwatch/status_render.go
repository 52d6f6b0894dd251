package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"buildwatch/internal/daemonctl"
	"buildwatch/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

type renderer struct {
	out      io.Writer
	colorize bool
	now      func() time.Time
}

func newRenderer(out io.Writer, allowColor bool) *renderer {
	return &renderer{out: out, colorize: allowColor && shouldColorize(out), now: time.Now}
}

func (r *renderer) paint(kind statusKind, s string) string {
	if !r.colorize {
		return s
	}
	c := color.New(statusKindColor(kind))
	c.EnableColor()
	return c.Sprint(s)
}

func (r *renderer) daemonSummary(snap daemonctl.Snapshot) {
	st := snap.Status
	for _, line := range r.sectionHeader("Daemon") {
		fmt.Fprintln(r.out, line)
	}
	switch {
	case st.Running:
		detail := fmt.Sprintf("pid %d", st.PID)
		if started, ok := parseTimestamp(st.StartedAt); ok {
			detail += ", started " + humanize.RelTime(started, r.now(), "ago", "from now")
		}
		fmt.Fprintln(r.out, r.statusLine("Polling", statusOK, detail))
	case snap.Offline:
		fmt.Fprintln(r.out, r.statusLine("Polling", statusWarn, "daemon not running; showing last saved status"))
	default:
		fmt.Fprintln(r.out, r.statusLine("Polling", statusWarn, "stopped"))
	}
	if !snap.Offline {
		alerts := statusOK
		detail := "enabled"
		switch {
		case !st.AlertsAuthorized:
			alerts, detail = statusInfo, "not configured"
		case !st.AlertsEnabled:
			alerts, detail = statusWarn, "muted"
		}
		fmt.Fprintln(r.out, r.statusLine("Alerts", alerts, detail))
		if st.APIAddress != "" {
			fmt.Fprintln(r.out, r.statusLine("API", statusInfo, st.APIAddress))
		}
		fmt.Fprintln(r.out, r.statusLine("Redis", statusInfo, yesNo(st.Publishing)))
	}
	fmt.Fprintln(r.out, r.statusLine("Database", statusInfo, st.DatabasePath))

	summary := fmt.Sprintf("%d watched, %d building, %d failing, %d unreachable",
		len(st.Pipelines), st.Building, st.Failing, st.Unreachable)
	kind := statusOK
	switch {
	case st.Failing > 0:
		kind = statusError
	case st.Unreachable > 0:
		kind = statusWarn
	}
	fmt.Fprintln(r.out, r.statusLine("Pipelines", kind, summary))
}

func (r *renderer) pipelineTable(pipelines []ipc.Pipeline) {
	if len(pipelines) == 0 {
		fmt.Fprintln(r.out, "No pipelines watched. Add one with `buildwatch pipeline add`.")
		return
	}
	rows := make([][]string, 0, len(pipelines))
	for _, p := range pipelines {
		rows = append(rows, r.pipelineRow(p))
	}
	fmt.Fprint(r.out, renderTable(
		[]string{"Name", "Activity", "Build", "Result", "Duration", "Checked", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func (r *renderer) pipelineRow(p ipc.Pipeline) []string {
	label, result, duration := "-", "-", "-"
	if b := p.LastBuild; b != nil {
		label = b.Label
		result = r.paint(resultKind(b.Result), b.Result)
		if b.Duration != "" {
			duration = b.Duration
		}
	}
	activity := p.Activity
	if activity == "building" {
		activity = r.paint(statusWarn, activity)
	}
	checked := "never"
	if fetched, ok := parseTimestamp(p.LastFetched); ok {
		checked = humanize.RelTime(fetched, r.now(), "ago", "from now")
	}
	if p.LastError != "" {
		checked = r.paint(statusError, "unreachable")
	}
	return []string{p.Name, activity, label, result, duration, checked, p.ID}
}

func (r *renderer) statusLine(label string, kind statusKind, message string) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	return r.paint(kind, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText))
}

func (r *renderer) sectionHeader(title string) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{r.paint(statusInfo, line), r.paint(statusInfo, rule)}
}

func resultKind(result string) statusKind {
	switch result {
	case "success":
		return statusOK
	case "failure":
		return statusError
	default:
		return statusInfo
	}
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) color.Attribute {
	switch kind {
	case statusOK:
		return color.FgGreen
	case statusWarn:
		return color.FgYellow
	case statusError:
		return color.FgRed
	default:
		return color.FgBlue
	}
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
