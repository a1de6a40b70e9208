package roomsync

// Permissions are the actions an actor may take on a message.
type Permissions struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// CanModify reports what an actor with the given role and id may do to msg.
// Authors may edit and delete their own messages. Moderators and admins may
// delete any message but never edit someone else's.
//
// The client uses this only to decide which actions to offer; the server
// applies it again on every write.
func CanModify(role Role, actorID string, msg Message) Permissions {
	if actorID != "" && actorID == msg.AuthorID {
		return Permissions{CanEdit: true, CanDelete: true}
	}
	switch role {
	case RoleModerator, RoleAdmin:
		return Permissions{CanDelete: true}
	default:
		return Permissions{}
	}
}
