package taskstore

import "github.com/nhle/taskboard/internal/model"

// StatusFilter narrows a projection to one status. FilterAll admits every
// status.
type StatusFilter string

const FilterAll StatusFilter = "ALL"

// AssigneeFilter narrows a projection by assignee: FilterAll-equivalent
// AssigneeAll, AssigneeUnassigned, or a specific user id.
type AssigneeFilter string

const (
	AssigneeAll        AssigneeFilter = "ALL"
	AssigneeUnassigned AssigneeFilter = "UNASSIGNED"
)

// Board is a grouped-by-status view of the task collection, ready for
// kanban rendering. Within a group, store order is preserved.
type Board map[model.Status][]model.Task

// Project derives the board grouping from a task slice. Pure: it never
// mutates its input, and identical input yields identical output. The
// slice is expected in store order; no re-sort is applied, so moves
// within a column stay visually stable.
func Project(tasks []model.Task, status StatusFilter, assignee AssigneeFilter) Board {
	board := make(Board, len(model.Statuses))
	for _, s := range model.Statuses {
		board[s] = nil
	}

	for _, t := range tasks {
		if status != FilterAll && t.Status != model.Status(status) {
			continue
		}
		switch assignee {
		case AssigneeAll:
		case AssigneeUnassigned:
			if t.AssigneeID != "" {
				continue
			}
		default:
			if t.AssigneeID != string(assignee) {
				continue
			}
		}
		board[t.Status] = append(board[t.Status], t)
	}
	return board
}

// ProjectStore is a convenience that projects the store's current
// snapshot.
func ProjectStore(s *Store, status StatusFilter, assignee AssigneeFilter) Board {
	return Project(s.Snapshot(), status, assignee)
}
