package model

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestRoleOf(t *testing.T) {
	e := &Event{
		CreatorID:  "c",
		Speakers:   pq.StringArray{"c", "d"},
		Listeners:  pq.StringArray{"l", "m"},
		Moderators: pq.StringArray{"m"},
	}

	assert.Equal(t, RoleCreator, RoleOf(e, "c"))
	assert.Equal(t, RoleSpeaker, RoleOf(e, "d"))
	assert.Equal(t, RoleListener, RoleOf(e, "l"))
	assert.Equal(t, RoleModerator, RoleOf(e, "m"))
	assert.Equal(t, RoleOutsider, RoleOf(e, "x"))
	assert.Equal(t, RoleOutsider, RoleOf(e, ""))
}

func TestAllowed(t *testing.T) {
	all := []Role{RoleOutsider, RoleListener, RoleSpeaker, RoleModerator, RoleCreator}
	want := map[Action]map[Role]bool{
		ActionJoin:            {RoleOutsider: true, RoleListener: true},
		ActionLeave:           {RoleListener: true, RoleModerator: true},
		ActionComment:         {RoleListener: true, RoleSpeaker: true, RoleModerator: true, RoleCreator: true},
		ActionDeleteComment:   {RoleModerator: true, RoleCreator: true},
		ActionPin:             {RoleModerator: true, RoleCreator: true},
		ActionToggleModerator: {RoleCreator: true},
		ActionToggleMute:      {RoleCreator: true},
		ActionEnd:             {RoleCreator: true},
	}

	for action, roles := range want {
		for _, role := range all {
			assert.Equal(t, roles[role], Allowed(action, role), "%s by %s", action, role)
		}
	}
}

func TestToggleAndRemove(t *testing.T) {
	list := pq.StringArray{"a"}
	list = Toggle(list, "b")
	assert.Equal(t, pq.StringArray{"a", "b"}, list)
	list = Toggle(list, "a")
	assert.Equal(t, pq.StringArray{"b"}, list)
	assert.Equal(t, pq.StringArray{}, Remove(pq.StringArray{"b"}, "b"))
}
