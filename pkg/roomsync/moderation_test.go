package roomsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanModify(t *testing.T) {
	m := msg("m1", "author", "hi", 0)

	cases := []struct {
		name    string
		role    Role
		actorID string
		want    Permissions
	}{
		{"author", RoleUser, "author", Permissions{CanEdit: true, CanDelete: true}},
		{"author moderator", RoleModerator, "author", Permissions{CanEdit: true, CanDelete: true}},
		{"other user", RoleUser, "someone", Permissions{}},
		{"trainer", RoleTrainer, "someone", Permissions{}},
		{"venue owner", RoleVenueOwner, "someone", Permissions{}},
		{"moderator", RoleModerator, "someone", Permissions{CanDelete: true}},
		{"admin", RoleAdmin, "someone", Permissions{CanDelete: true}},
		{"anonymous", RoleUser, "", Permissions{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CanModify(c.role, c.actorID, m))
		})
	}

	t.Run("empty author does not match anonymous actor", func(t *testing.T) {
		assert.Equal(t, Permissions{}, CanModify(RoleUser, "", Message{ID: "x"}))
	})
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"":            RoleUser,
		"user":        RoleUser,
		"weird":       RoleUser,
		"pt":          RoleTrainer,
		"Trainer":     RoleTrainer,
		"gym":         RoleVenueOwner,
		"venue_owner": RoleVenueOwner,
		"mod":         RoleModerator,
		" moderator ": RoleModerator,
		"admin":       RoleAdmin,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), "ParseRole(%q)", in)
	}

	var r Role
	assert.NoError(t, r.UnmarshalText([]byte("mod")))
	assert.Equal(t, RoleModerator, r)
	text, _ := RoleVenueOwner.MarshalText()
	assert.Equal(t, "venue_owner", string(text))
}
