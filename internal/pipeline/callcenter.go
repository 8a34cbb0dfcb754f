package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"leadetl/internal/loader"
	"leadetl/internal/metrics"
	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Call report columns, in output order.
var callColumns = []string{"Date", "Queue", "Trunk", colCallerID, "Call Time", "Exit Reason", colCRMStatus}

// Sheets of the call-center workbooks that carry no call details.
var (
	agentSkipSheets   = []string{"Cover Sheet", "Agent Performance"}
	inboundSkipSheets = []string{"Cover Sheet", "Call Distribution", "Call Times"}
)

// Agent sheet sections, in sheet order. Each section is a 10 column block
// headed by its title in column A.
const (
	sectionQueue    = "Details - Queue Calls"
	sectionInbound  = "Details - Inbound Calls"
	sectionOutbound = "Details - Outbound Calls"
	sectionInternal = "Details - Internal Calls"
)

var agentSections = []string{sectionQueue, sectionInbound, sectionOutbound, sectionInternal}

const sectionWidth = 10

// Column positions inside a section block.
var (
	queueLayout = []string{"#", "Date", "Queue", "Trunk", colCallerID, "Agent", "Wait", "Call Time", "Exit Reason", colCRMStatus}
	otherLayout = []string{"#", "Date", "Queue", "Trunk", "Source", "Destination", colCallerID, "Call Time", "Exit Reason", colCRMStatus}
)

// callerFrom names the column holding the counterpart's number in each
// section: inbound and internal calls record it as the source, outbound calls
// as the destination.
var callerFrom = map[string]string{
	sectionQueue:    colCallerID,
	sectionInbound:  "Source",
	sectionOutbound: "Destination",
	sectionInternal: "Source",
}

func formatCallCenter(ctx context.Context, env *Env) error {
	var parts []*table.Table

	agents, err := loader.GlobRequired(env.Cfg.CallCenterPath)
	if err != nil {
		return err
	}
	for _, p := range agents {
		sheets, err := loader.Sheets(p)
		if err != nil {
			return err
		}
		for _, sh := range sheets {
			if slices.Contains(agentSkipSheets, sh) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			grid, err := loader.SheetGrid(p, sh)
			if err != nil {
				return err
			}
			t, err := parseAgentSheet(fmt.Sprintf("%s[%s]", p, sh), grid)
			if err != nil {
				return err
			}
			parts = append(parts, t)
		}
	}

	inbound, err := loader.GlobRequired(env.Cfg.CallCenterInboundPath)
	if err != nil {
		return err
	}
	for _, p := range inbound {
		sheets, err := loader.Sheets(p)
		if err != nil {
			return err
		}
		for _, sh := range sheets {
			if slices.Contains(inboundSkipSheets, sh) {
				continue
			}
			t, err := loader.Load(ctx, p, loader.Options{Sheet: sh})
			if err != nil {
				return err
			}
			t.AddColumn(colCRMStatus, "")
			if err := t.Select(callColumns...); err != nil {
				return fmt.Errorf("call center: %s[%s]: %w", p, sh, err)
			}
			parts = append(parts, t)
		}
	}
	metrics.RecordRecords("loaded", rowCount(parts))

	t := table.Concat(SnapCallCenter, parts...)
	t.Reindex(callColumns...)
	cleanCalls(env, t)
	t.Distinct()

	if err := env.writeCSV(env.Cfg.FinalCallCenterPath, t); err != nil {
		return err
	}
	return env.save(ctx, SnapCallCenter, t, &callCenterSchema)
}

// parseAgentSheet flattens the four detail sections of an agent sheet into
// call rows. grid[0] is the sheet header row.
func parseAgentSheet(src string, grid [][]string) (*table.Table, error) {
	width := 0
	for _, r := range grid {
		width = max(width, len(r))
	}
	start := -1
	for i, r := range grid {
		if i > 0 && len(r) > 0 && strings.TrimSpace(r[0]) == sectionQueue {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, &loader.LayoutError{Path: src, Detail: fmt.Sprintf("no %q section", sectionQueue)}
	}

	var rows [][]string
	for _, r := range grid[start:] {
		r = padRow(r, width)
		if !allEmpty(r) {
			rows = append(rows, r)
		}
	}
	var keep []int
	for c := 0; c < width; c++ {
		for _, r := range rows {
			if r[c] != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	if len(keep) != sectionWidth {
		return nil, &loader.LayoutError{Path: src, Detail: fmt.Sprintf("%d non-empty columns, want %d", len(keep), sectionWidth)}
	}

	starts := make([]int, len(agentSections))
	for i, title := range agentSections {
		starts[i] = slices.IndexFunc(rows, func(r []string) bool { return r[keep[0]] == title })
		if starts[i] < 0 || (i > 0 && starts[i] < starts[i-1]) {
			return nil, &loader.LayoutError{Path: src, Detail: fmt.Sprintf("missing or misplaced %q section", title)}
		}
	}

	out := table.New(src, callColumns...)
	for i, title := range agentSections {
		end := len(rows)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		layout := otherLayout
		if title == sectionQueue {
			layout = queueLayout
		}
		pos := make(map[string]int, len(layout))
		for j, c := range layout {
			pos[c] = keep[j]
		}
		for _, r := range rows[starts[i]:end] {
			if id := r[pos["#"]]; id == "#" || slices.Contains(agentSections, id) {
				continue
			}
			out.Append(
				r[pos["Date"]],
				r[pos["Queue"]],
				r[pos["Trunk"]],
				r[pos[callerFrom[title]]],
				r[pos["Call Time"]],
				r[pos["Exit Reason"]],
				r[pos[colCRMStatus]],
			)
		}
	}
	return out, nil
}

// cleanCalls normalizes CRM statuses, dates and caller ids. Calls whose
// caller id fails the caller-id rules are dropped.
func cleanCalls(env *Env, t *table.Table) {
	ix, _ := t.Indexes("Date", colCallerID, colCRMStatus)
	date, caller, crm := ix[0], ix[1], ix[2]
	before := t.Len()
	t.Filter(func(r table.Row) bool {
		r.V[crm] = normalize.CRMStatus(r.V[crm])
		if d := normalize.DateString(r.V[date]); d != "" {
			r.V[date] = d
		}
		p, ok := normalize.Phone(r.V[caller])
		r.V[caller] = p
		return ok
	})
	env.dropped("invalid_caller_id", before-t.Len())
}

// padRow returns r trimmed and padded to n cells.
func padRow(r []string, n int) []string {
	out := make([]string, max(n, len(r)))
	for i, v := range r {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func allEmpty(r []string) bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}
