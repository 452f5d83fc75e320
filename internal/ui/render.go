package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/discovery"
	"github.com/muurk/multy/internal/state"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatValue renders a snapshot or command value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return `""`
		}
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// RenderSnapshot renders every entity of a snapshot with its fields sorted.
func RenderSnapshot(snap *state.Snapshot, available bool) string {
	var b strings.Builder

	title := HeaderTitleStyle.Render(strings.ToUpper(snap.Resource))
	status := AddedStyle.Render("available")
	if !available {
		status = RemovedStyle.Render("unavailable")
	}
	fmt.Fprintf(&b, "%s  %s  %s\n", title, status,
		TimestampStyle.Render(snap.TakenAt.Local().Format(timeLayout)))

	ids := snap.IDs()
	if len(ids) == 0 {
		b.WriteString(HeaderCommandStyle.Render("(no entities)") + "\n")
		return b.String()
	}
	for _, id := range ids {
		b.WriteString(EntityTitleStyle.Render(id) + "\n")
		fields := snap.Entities[id]
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("    " + ResultKeyStyle.Render(k) + " " + ResultValueStyle.Render(FormatValue(fields[k])) + "\n")
		}
	}
	return b.String()
}

// RenderEvent renders a change or availability event: a summary line followed
// by one line per added entity, removed entity and field change.
func RenderEvent(ev state.Event) string {
	var b strings.Builder

	at := TimestampStyle.Render(ev.At.Local().Format(timeLayout))
	switch ev.Kind {
	case state.EventUnavailable:
		fmt.Fprintf(&b, "%s %s\n", at, ErrorTitleStyle.Render(FailureMarker+" "+ev.Summary()))
		return b.String()
	case state.EventRecovered:
		fmt.Fprintf(&b, "%s %s\n", at, SuccessTitleStyle.Render(SuccessMarker+" "+ev.Summary()))
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s\n", at, HeaderParamValueStyle.Bold(true).Render(ev.Summary()))
	for _, e := range ev.Added {
		b.WriteString("  " + AddedStyle.Render(AddedMarker+" "+e.ID) + "\n")
	}
	for _, e := range ev.Removed {
		b.WriteString("  " + RemovedStyle.Render(RemovedMarker+" "+e.ID) + "\n")
	}
	for _, c := range ev.Updated {
		b.WriteString("  " + UpdatedStyle.Render(fmt.Sprintf("%s %s %s: %s → %s",
			UpdatedMarker, c.Entity, c.Field, FormatValue(c.Old), FormatValue(c.New))) + "\n")
	}
	return b.String()
}

// RenderCommandResult renders the outcome of a router command.
func RenderCommandResult(res *commands.Result) string {
	details := make(map[string]string)
	flattenOutput("", res.Output, details)
	if len(res.Refreshed) > 0 {
		details["refreshed"] = strings.Join(res.Refreshed, ", ")
	}
	if res.RefreshErr != nil {
		r := NewWarningResult(res.Command+" sent, refresh failed", details)
		r.AddDetail("refresh error", res.RefreshErr.Error())
		return r.Render()
	}
	return NewSuccessResult(res.Command, details).Render()
}

func flattenOutput(prefix string, v any, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flattenOutput(joinKey(prefix, k), child, out)
		}
	case []any:
		for i, child := range val {
			flattenOutput(joinKey(prefix, fmt.Sprint(i)), child, out)
		}
	default:
		if prefix != "" {
			out[prefix] = FormatValue(val)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// RenderRouters renders the result of a discovery scan.
func RenderRouters(routers []*discovery.Router, elapsed time.Duration) string {
	if len(routers) == 0 {
		return NewWarningResult("No Multy routers found", map[string]string{
			"scan time": elapsed.Round(time.Millisecond).String(),
		}).Render()
	}

	var rows []string
	for i, r := range routers {
		model := r.Model
		if model == "" {
			model = "-"
		}
		rows = append(rows, fmt.Sprintf("%s %s  %s  %s",
			EntityTitleStyle.Render(fmt.Sprintf("%d.", i+1)),
			ResultValueStyle.Render(r.IP),
			TimestampStyle.Render(r.Hostname),
			HeaderParamValueStyle.Render(model)))
	}
	title := SuccessTitleStyle.Render(fmt.Sprintf("%s  Found %d router(s) in %s",
		SuccessMarker, len(routers), elapsed.Round(time.Millisecond)))
	return lipgloss.JoinVertical(lipgloss.Left, title, "", strings.Join(rows, "\n"))
}

// RenderCommands lists the command table.
func RenderCommands(cmds []commands.Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(EntityTitleStyle.Render(c.Name) + "  " + HeaderCommandStyle.Render(c.Description) + "\n")
		for _, f := range c.Fields {
			req := ""
			if f.Required {
				req = " (required)"
			}
			b.WriteString("      " + ResultKeyStyle.Render(f.Name) +
				TimestampStyle.Render(f.Type.String()+req) + "\n")
		}
	}
	return b.String()
}
