package core

import (
	"context"
	"testing"
	"time"

	"github.com/putto11262002/gymchat/pkg/roomsync"
)

var (
	owner   = User{Username: "owner", Password: "password", DisplayName: "Owner", Role: roomsync.RoleVenueOwner}
	member1 = User{Username: "member1", Password: "password", DisplayName: "Member 1"}
	member2 = User{Username: "member2", Password: "password", DisplayName: "Member 2"}
	mod     = User{Username: "mod", Password: "password", DisplayName: "Mod", Role: roomsync.RoleModerator}
)

// seedUsers creates the users and returns their ids in the same order.
func seedUsers(ctx context.Context, t *testing.T, userStore UserStore, users ...User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		id, err := userStore.CreateUser(ctx, u)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return ids
}

func seedRooms(f *ChatFixture, ownerID string, names ...string) []string {
	if len(names) == 0 {
		names = append(names, "Iron Temple")
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		roomID, err := f.chatStore.CreateRoom(f.ctx, name, ownerID)
		if err != nil {
			f.t.Fatal(err)
		}
		ids = append(ids, roomID)
	}
	return ids
}

// seedMessages posts the bodies in order, one clock tick apart.
func seedMessages(f *ChatFixture, roomID, authorID string, bodies ...string) []roomsync.Message {
	messages := make([]roomsync.Message, 0, len(bodies))
	for _, body := range bodies {
		m, err := f.chatStore.CreateMessage(f.ctx, MessageCreateInput{
			RoomID:   roomID,
			AuthorID: authorID,
			Body:     body,
		})
		if err != nil {
			f.t.Fatal(err)
		}
		messages = append(messages, *m)
	}
	return messages
}

// tick makes the store clock advance one second on every call.
func tick(f *ChatFixture) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.chatStore.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}
