package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentjungle/internal/domain"
	"agentjungle/internal/usecase/similarity"
)

// renderAgent writes one agent as a bordered card.
func renderAgent(w io.Writer, rec domain.AgentRecord) {
	taskType := rec.TaskType
	if taskType == "" {
		taskType = domain.DefaultTaskType
	}
	lines := []string{
		styleTitle.Render(rec.Name),
		field("Type", taskType),
		field("Description", orPlaceholder(rec.Description, "No description")),
		field("Created by", orPlaceholder(rec.CreatedBy, "Unknown")),
	}
	if rec.CreatedAt != nil {
		lines = append(lines, field("Created at", *rec.CreatedAt))
	}
	if rec.LastUsed != nil {
		lines = append(lines, field("Last used", *rec.LastUsed))
	}
	fmt.Fprintln(w, styleCard.MaxWidth(maxContentWidth).Render(strings.Join(lines, "\n")))
}

// renderAgentDetail is renderAgent plus the system prompt.
func renderAgentDetail(w io.Writer, rec domain.AgentRecord) {
	renderAgent(w, rec)
	fmt.Fprintln(w, styleBold.Render("System prompt:"))
	fmt.Fprintln(w, lipgloss.NewStyle().Width(maxContentWidth).Render(rec.SystemPrompt))
}

func renderAgentList(w io.Writer, records []domain.AgentRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, styleMuted.Render("No agents registered yet."))
		return
	}
	for _, rec := range records {
		renderAgent(w, rec)
	}
	fmt.Fprintf(w, "%d agent(s)\n", len(records))
}

// renderStats writes the registry summary. Types are listed by descending
// count, then by name.
func renderStats(w io.Writer, st domain.RegistryStats) {
	fmt.Fprintln(w, styleTitle.Render("System Statistics"))
	fmt.Fprintln(w, stat("Total agents", fmt.Sprint(st.Total)))

	if len(st.ByType) > 0 {
		types := make([]string, 0, len(st.ByType))
		for t := range st.ByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			ci, cj := st.ByType[types[i]], st.ByType[types[j]]
			if ci != cj {
				return ci > cj
			}
			return types[i] < types[j]
		})
		fmt.Fprintln(w, styleStatLabel.Render("Agents by type:"))
		for _, t := range types {
			fmt.Fprintf(w, "  - %s: %d\n", t, st.ByType[t])
		}
	}

	fmt.Fprintln(w, stat("Storage", st.Location))
	fmt.Fprintln(w, stat("Exists", fmt.Sprint(st.Exists)))
	if st.Err != nil {
		fmt.Fprintln(w, styleError.Render("Error: ")+st.Err.Error())
	}
}

// renderRank writes a match report, best score first.
func renderRank(w io.Writer, query string, threshold float64, ranked []similarity.Candidate) {
	fmt.Fprintf(w, "%s %q (threshold %.2f)\n", styleTitle.Render("Match report for"), query, threshold)
	if len(ranked) == 0 {
		fmt.Fprintln(w, styleMuted.Render("No agents registered yet."))
		return
	}
	for i, c := range ranked {
		mark := styleMuted.Render("  ")
		if c.MeetsThreshold {
			mark = styleSuccess.Render("✓ ")
		}
		fmt.Fprintf(w, "%s%2d. %-30s %.4f  %s\n", mark, i+1, c.Agent.Name, c.Score, styleMuted.Render(c.Agent.TaskType))
	}
	if !ranked[0].MeetsThreshold {
		fmt.Fprintln(w, styleWarning.Render("No agent meets the threshold; a new one would be created."))
	}
}

func field(label, value string) string {
	return styleStatLabel.Render(label+": ") + value
}

func stat(label, value string) string {
	return styleStatLabel.Render(label+": ") + styleStatValue.Render(value)
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
