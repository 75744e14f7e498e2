package session

import (
	"testing"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
		want model.CapabilitySet
	}{
		{
			name: "admin gets everything",
			role: model.RoleAdmin,
			want: model.CapabilitySet{
				CanCreateTasks: true,
				CanUpdateTasks: true,
				CanDeleteTasks: true,
				CanAssignTasks: true,
				CanComment:     true,
				CanMoveStatus:  true,
			},
		},
		{
			name: "user comments and moves only",
			role: model.RoleUser,
			want: model.CapabilitySet{
				CanComment:    true,
				CanMoveStatus: true,
			},
		},
		{
			name: "unknown role gets nothing",
			role: model.Role("AUDITOR"),
			want: model.CapabilitySet{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultTable.Resolve(tt.role); got != tt.want {
				t.Errorf("Resolve(%s) = %+v, want %+v", tt.role, got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	first := DefaultTable.Resolve(model.RoleUser)
	second := DefaultTable.Resolve(model.RoleUser)
	if first != second {
		t.Error("identical role resolved to different capability sets")
	}
}

func TestBegin_InstallsIdentityAndToken(t *testing.T) {
	creds := credential.NewMemory()
	s := New(creds, nil)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	user := model.User{ID: "u1", Username: "alice", Role: model.RoleUser}
	if err := s.Begin(user, "tok-123"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if !s.Authenticated() {
		t.Fatal("not authenticated after Begin")
	}
	if got := s.User(); got == nil || got.Username != "alice" {
		t.Errorf("User() = %+v", got)
	}
	if !s.Capabilities().CanComment {
		t.Error("capability set not resolved at Begin")
	}
	if s.Token() != "tok-123" {
		t.Errorf("Token() = %q, want tok-123", s.Token())
	}
	if len(events) != 1 || events[0].Kind != Began {
		t.Errorf("events = %+v, want one Began", events)
	}
}

func TestInvalidate_SingleExitPath(t *testing.T) {
	creds := credential.NewMemory()
	s := New(creds, nil)

	var ended int
	s.Subscribe(func(e Event) {
		if e.Kind == Ended {
			ended++
		}
	})

	if err := s.Begin(model.User{ID: "u1", Username: "alice", Role: model.RoleAdmin}, "tok"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	s.Invalidate("token expired")
	s.Invalidate("token expired") // concurrent 401s funnel here; only the first counts

	if ended != 1 {
		t.Errorf("Ended notifications = %d, want 1", ended)
	}
	if s.Authenticated() {
		t.Error("still authenticated after Invalidate")
	}
	if s.Token() != "" {
		t.Error("token survived Invalidate")
	}
	if s.Capabilities() != (model.CapabilitySet{}) {
		t.Error("capability set not zeroed by Invalidate")
	}
}

func TestCanEditComment(t *testing.T) {
	mine := model.Comment{ID: "c1", Username: "alice", Body: "first"}
	theirs := model.Comment{ID: "c2", Username: "bob", Body: "second"}

	t.Run("author may edit own comment", func(t *testing.T) {
		s := New(credential.NewMemory(), nil)
		if err := s.Begin(model.User{Username: "alice", Role: model.RoleUser}, "tok"); err != nil {
			t.Fatalf("begin: %v", err)
		}
		if !s.CanEditComment(mine) {
			t.Error("author denied editing own comment")
		}
		if s.CanEditComment(theirs) {
			t.Error("non-admin allowed to edit someone else's comment")
		}
	})

	t.Run("admin may edit any comment", func(t *testing.T) {
		s := New(credential.NewMemory(), nil)
		if err := s.Begin(model.User{Username: "carol", Role: model.RoleAdmin}, "tok"); err != nil {
			t.Fatalf("begin: %v", err)
		}
		if !s.CanEditComment(mine) || !s.CanEditComment(theirs) {
			t.Error("admin denied editing a comment")
		}
	})

	t.Run("unauthenticated may edit nothing", func(t *testing.T) {
		s := New(credential.NewMemory(), nil)
		if s.CanEditComment(mine) {
			t.Error("unauthenticated session allowed to edit")
		}
	})
}

func TestCustomTable(t *testing.T) {
	table := CapabilityTable{
		model.RoleUser: {CanComment: true},
	}
	s := New(credential.NewMemory(), table)
	if err := s.Begin(model.User{Username: "dave", Role: model.RoleUser}, "tok"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	caps := s.Capabilities()
	if !caps.CanComment || caps.CanMoveStatus {
		t.Errorf("custom table not honored: %+v", caps)
	}
}
