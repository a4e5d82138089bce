// Package progress derives a project's completion percentage from board
// column positions and task status. It is recomputed on demand; a ticket
// move, status change, or hierarchy change invalidates any prior result.
package progress

import (
	"math"
	"sort"
)

const (
	TaskTypePlain      = "Task"
	TaskTypeHeading    = "Heading"
	TaskTypeSubHeading = "Sub-Heading"

	StatusDone       = "Done"
	StatusInProgress = "In Progress"
)

type Column struct {
	ID    string
	Order int
}

type Task struct {
	ID       string
	Type     string
	Status   string
	IsTicket bool
	ParentID string
}

type Ticket struct {
	TaskID   string
	ColumnID string
}

type Stats struct {
	Progress  int `json:"progress"`
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// ColumnWeights spreads columns evenly across 0..100 by board position:
// first column 0, last column 100. A single column carries weight 0.
func ColumnWeights(columns []Column) map[string]float64 {
	weights := make(map[string]float64, len(columns))
	if len(columns) == 0 {
		return weights
	}
	if len(columns) == 1 {
		weights[columns[0].ID] = 0
		return weights
	}

	sorted := make([]Column, len(columns))
	copy(sorted, columns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	step := 100.0 / float64(len(sorted)-1)
	for i, column := range sorted {
		weights[column.ID] = float64(i) * step
	}
	return weights
}

// countable reports whether a task contributes to progress: every ticket,
// every plain task, and any heading without sub-items.
func countable(task Task, hasChildren map[string]bool) bool {
	if task.IsTicket {
		return true
	}
	if task.Type == TaskTypePlain {
		return true
	}
	if (task.Type == TaskTypeHeading || task.Type == TaskTypeSubHeading) && !hasChildren[task.ID] {
		return true
	}
	return false
}

// Calculate scores each countable task: tickets contribute their column's
// weight, everything else falls back to status (Done 100, In Progress 50,
// else 0). Progress is the rounded mean, 0 with no countable tasks.
func Calculate(columns []Column, tasks []Task, tickets []Ticket) Stats {
	weights := ColumnWeights(columns)

	ticketByTask := make(map[string]Ticket, len(tickets))
	for _, ticket := range tickets {
		ticketByTask[ticket.TaskID] = ticket
	}

	hasChildren := make(map[string]bool)
	for _, task := range tasks {
		if task.ParentID != "" {
			hasChildren[task.ParentID] = true
		}
	}

	var stats Stats
	var sum float64
	for _, task := range tasks {
		if !countable(task, hasChildren) {
			continue
		}
		stats.Total++

		var score float64
		if ticket, ok := ticketByTask[task.ID]; ok && task.IsTicket {
			score = weights[ticket.ColumnID]
		} else {
			switch task.Status {
			case StatusDone:
				score = 100
			case StatusInProgress:
				score = 50
			}
		}
		sum += score
		if score >= 100 {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}

	if stats.Total > 0 {
		stats.Progress = int(math.Round(sum / float64(stats.Total)))
	}
	return stats
}
