package model

// Role 用户在直播间中的角色
type Role int

const (
	RoleOutsider Role = iota
	RoleListener
	RoleSpeaker
	RoleModerator
	RoleCreator
)

func (r Role) String() string {
	switch r {
	case RoleListener:
		return "listener"
	case RoleSpeaker:
		return "speaker"
	case RoleModerator:
		return "moderator"
	case RoleCreator:
		return "creator"
	}
	return "outsider"
}

// Action 直播间内的操作
type Action string

const (
	ActionJoin            Action = "join"
	ActionLeave           Action = "leave"
	ActionComment         Action = "comment"
	ActionDeleteComment   Action = "delete-comment"
	ActionPin             Action = "pin"
	ActionToggleModerator Action = "toggle-moderator"
	ActionToggleMute      Action = "toggle-mute"
	ActionEnd             Action = "end"
)

// permissions 操作 -> 允许的角色；所有操作都要求直播间仍在进行
var permissions = map[Action][]Role{
	ActionJoin:            {RoleOutsider, RoleListener},
	ActionLeave:           {RoleListener, RoleModerator},
	ActionComment:         {RoleListener, RoleSpeaker, RoleModerator, RoleCreator},
	ActionDeleteComment:   {RoleModerator, RoleCreator},
	ActionPin:             {RoleModerator, RoleCreator},
	ActionToggleModerator: {RoleCreator},
	ActionToggleMute:      {RoleCreator},
	ActionEnd:             {RoleCreator},
}

// RoleOf 取最高角色
func RoleOf(e *Event, userID string) Role {
	switch {
	case userID == "":
		return RoleOutsider
	case e.CreatorID == userID:
		return RoleCreator
	case Has(e.Moderators, userID):
		return RoleModerator
	case Has(e.Speakers, userID):
		return RoleSpeaker
	case Has(e.Listeners, userID):
		return RoleListener
	}
	return RoleOutsider
}

// Allowed 角色是否可以执行操作
func Allowed(action Action, role Role) bool {
	for _, r := range permissions[action] {
		if r == role {
			return true
		}
	}
	return false
}
