package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, json or yaml)", s)
	}
}

type PlanView struct {
	Summary    SummaryView  `json:"summary" yaml:"summary"`
	Actions    []ActionView `json:"actions" yaml:"actions"`
	Duplicates []string     `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Warnings   []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type SummaryView struct {
	Create   int `json:"create" yaml:"create"`
	Update   int `json:"update" yaml:"update"`
	Skip     int `json:"skip" yaml:"skip"`
	Delete   int `json:"delete" yaml:"delete"`
	Preserve int `json:"preserve" yaml:"preserve"`
}

type ActionView struct {
	Kind          string `json:"kind" yaml:"kind"`
	Key           string `json:"key" yaml:"key"`
	DestinationID string `json:"destinationId,omitempty" yaml:"destinationId,omitempty"`
	Title         string `json:"title" yaml:"title"`
	Start         string `json:"start" yaml:"start"`
	Location      string `json:"location,omitempty" yaml:"location,omitempty"`
}

// View flattens a plan into the shape printed by the plan command and the HTTP API.
func View(plan Plan) PlanView {
	view := PlanView{
		Summary: SummaryView{
			Create:   len(plan.Creates),
			Update:   len(plan.Updates),
			Skip:     len(plan.Skips),
			Delete:   len(plan.Deletes),
			Preserve: len(plan.Preserves),
		},
		Actions: []ActionView{},
	}
	for _, group := range [][]Action{plan.Creates, plan.Updates, plan.Deletes, plan.Preserves, plan.Skips} {
		for _, action := range group {
			view.Actions = append(view.Actions, ActionView{
				Kind:          string(action.Kind),
				Key:           action.Key.Short(),
				DestinationID: action.DestinationID,
				Title:         action.Title,
				Start:         action.Start.String(),
				Location:      action.Payload.Location,
			})
		}
	}
	for _, key := range plan.Duplicates {
		view.Duplicates = append(view.Duplicates, key.Short())
	}
	for _, warning := range plan.Warnings {
		view.Warnings = append(view.Warnings, warning.Error())
	}
	return view
}

func Render(w io.Writer, plan Plan, format Format) error {
	view := View(plan)
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(view); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return renderText(w, view)
	}
}

func renderText(w io.Writer, view PlanView) error {
	s := view.Summary
	if _, err := fmt.Fprintf(w, "Plan: %d to create, %d to update, %d to delete, %d unchanged, %d preserved\n",
		s.Create, s.Update, s.Delete, s.Skip, s.Preserve); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, action := range view.Actions {
		if action.Kind == string(KindSkip) {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", action.Kind, action.Start, action.Title, action.Key, action.DestinationID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, key := range view.Duplicates {
		fmt.Fprintf(w, "duplicate source events share key %s, the last one is mirrored\n", key)
	}
	for _, warning := range view.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}
