// Package export renders solved plans for downstream tools: indented JSON,
// a flat CSV call sheet and compact CBOR snapshots.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kilianp07/showplan/core/planner"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Write renders res in the requested format.
func Write(w io.Writer, f Format, in planner.Input, res planner.Result, runID string) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, in, res)
	case FormatCBOR:
		return WriteCBOR(w, NewSnapshot(runID, in.PlanID, res))
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteJSON writes the full result to w in JSON format.
func WriteJSON(w io.Writer, res planner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

var csvHeader = []string{
	"task_id", "template", "contestant_id", "zone_id", "space_id",
	"status", "start", "end", "assigned_space", "assigned_resources", "reason",
}

// WriteCSV writes one row per task of in, planned rows first in start order,
// then unplanned rows by task id.
func WriteCSV(w io.Writer, in planner.Input, res planner.Result) error {
	tasks := make(map[int]planner.Task, len(in.Tasks))
	for _, t := range in.Tasks {
		tasks[t.ID] = t
	}
	planned := append([]planner.PlannedTask(nil), res.PlannedTasks...)
	sort.SliceStable(planned, func(i, j int) bool {
		if planned[i].StartPlanned != planned[j].StartPlanned {
			return planned[i].StartPlanned < planned[j].StartPlanned
		}
		return planned[i].TaskID < planned[j].TaskID
	})
	unplanned := append([]planner.Unplanned(nil), res.Unplanned...)
	sort.SliceStable(unplanned, func(i, j int) bool { return unplanned[i].TaskID < unplanned[j].TaskID })

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range planned {
		space := ""
		if p.AssignedSpace != nil {
			space = strconv.Itoa(*p.AssignedSpace)
		}
		row := taskColumns(in, tasks[p.TaskID], p.TaskID)
		row = append(row, "planned", p.StartPlanned, p.EndPlanned, space, joinInts(p.AssignedResources), "")
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, u := range unplanned {
		row := taskColumns(in, tasks[u.TaskID], u.TaskID)
		row = append(row, "unplanned", "", "", "", "", u.Reason.Code)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func taskColumns(in planner.Input, t planner.Task, id int) []string {
	name := t.TemplateName
	if name == "" {
		name = in.TaskTemplateNameByID[t.TemplateID]
	}
	if name == "" && t.IsManualBlock {
		name = t.ManualTitle
	}
	return []string{
		strconv.Itoa(id),
		name,
		optInt(t.ContestantID),
		optInt(t.ZoneID),
		optInt(t.SpaceID),
	}
}

func optInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ";")
}
