package taskstore

import (
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// Field names a patchable task attribute, used to track which fields an
// in-flight mutation owns.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldAssignee    Field = "assignee"
)

// Patch is a partial task update. Nil fields are untouched by a merge.
// UpdatedAt, when set, carries the server timestamp of the change and
// is used to judge delta staleness; it is not itself a patched field.
type Patch struct {
	Title        *string
	Description  *string
	Status       *model.Status
	Priority     *model.Priority
	AssigneeID   *string
	AssigneeName *string
	UpdatedAt    *time.Time
}

// StatusPatch builds a patch that moves a task to the given status.
func StatusPatch(s model.Status) Patch {
	return Patch{Status: &s}
}

// AssigneePatch builds a patch that reassigns a task. Empty id means
// unassign.
func AssigneePatch(id, name string) Patch {
	return Patch{AssigneeID: &id, AssigneeName: &name}
}

// PriorityPatch builds a patch that changes a task's priority.
func PriorityPatch(p model.Priority) Patch {
	return Patch{Priority: &p}
}

// TaskPatch converts a full task record into a patch touching every
// field, timestamped with the record's UpdatedAt.
func TaskPatch(t model.Task) Patch {
	updatedAt := t.UpdatedAt
	return Patch{
		Title:        &t.Title,
		Description:  &t.Description,
		Status:       &t.Status,
		Priority:     &t.Priority,
		AssigneeID:   &t.AssigneeID,
		AssigneeName: &t.AssigneeName,
		UpdatedAt:    &updatedAt,
	}
}

// Fields lists the fields this patch sets.
func (p Patch) Fields() []Field {
	var fields []Field
	if p.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if p.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if p.Priority != nil {
		fields = append(fields, FieldPriority)
	}
	if p.AssigneeID != nil || p.AssigneeName != nil {
		fields = append(fields, FieldAssignee)
	}
	return fields
}

// Empty reports whether the patch sets no fields.
func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

// apply merges the patch's set fields into t.
func (p Patch) apply(t *model.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	if p.AssigneeName != nil {
		t.AssigneeName = *p.AssigneeName
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// split partitions the patch into the part touching none of the given
// fields and the part that conflicts with them. Both halves keep the
// original timestamp.
func (p Patch) split(conflicting map[Field]bool) (free, held Patch) {
	free.UpdatedAt = p.UpdatedAt
	held.UpdatedAt = p.UpdatedAt

	assign := func(f Field, set func(dst *Patch)) {
		if conflicting[f] {
			set(&held)
		} else {
			set(&free)
		}
	}

	if p.Title != nil {
		assign(FieldTitle, func(dst *Patch) { dst.Title = p.Title })
	}
	if p.Description != nil {
		assign(FieldDescription, func(dst *Patch) { dst.Description = p.Description })
	}
	if p.Status != nil {
		assign(FieldStatus, func(dst *Patch) { dst.Status = p.Status })
	}
	if p.Priority != nil {
		assign(FieldPriority, func(dst *Patch) { dst.Priority = p.Priority })
	}
	if p.AssigneeID != nil || p.AssigneeName != nil {
		assign(FieldAssignee, func(dst *Patch) {
			dst.AssigneeID = p.AssigneeID
			dst.AssigneeName = p.AssigneeName
		})
	}
	return free, held
}
