package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/putto11262002/gymchat/app"
	"github.com/putto11262002/gymchat/pkg/client"
	"github.com/putto11262002/gymchat/pkg/roomsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "password123"

type clientFixture struct {
	t      *testing.T
	ctx    context.Context
	server *httptest.Server
	logger *slog.Logger
}

func newClientFixture(t *testing.T) *clientFixture {
	config, err := (&app.DefaultConfigLoader{}).Load()
	require.NoError(t, err)
	config.Admins = []string{"owner"}
	config.RateLimit.MessagesPerSecond = 1000
	config.RateLimit.Burst = 1000

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, config, logger)
	require.NoError(t, err)

	server := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		server.Close()
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		a.Shutdown(shutdownCtx)
	})
	return &clientFixture{t: t, ctx: ctx, server: server, logger: logger}
}

// user signs up and signs in a new client.
func (f *clientFixture) user(username string) *client.Client {
	f.t.Helper()
	c, err := client.New(f.server.URL, client.WithLogger(f.logger))
	require.NoError(f.t, err)
	_, err = c.SignUp(f.ctx, username, password, username+" display")
	require.NoError(f.t, err)
	require.NoError(f.t, c.SignIn(f.ctx, username, password))
	return c
}

func (f *clientFixture) open(c *client.Client, roomID string) *roomsync.Session {
	s := roomsync.Open(f.ctx, roomID, roomsync.Options{
		Query:  c,
		Feed:   c,
		Writes: c,
		Auth:   c,
		Marker: c,
		Logger: f.logger,
	})
	f.t.Cleanup(func() { s.Close() })
	return s
}

func bodies(ms []roomsync.RenderedMessage) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Body)
	}
	return out
}

func TestSessionOverClient(t *testing.T) {
	f := newClientFixture(t)
	owner := f.user("owner")
	member := f.user("member")

	roomID, err := owner.CreateRoom(f.ctx, "Downtown Gym")
	require.NoError(t, err)
	require.NoError(t, member.JoinRoom(f.ctx, roomID))
	_, err = owner.InsertMessage(f.ctx, roomsync.NewMessage{RoomID: roomID, Body: "welcome"})
	require.NoError(t, err)

	ownerSession := f.open(owner, roomID)
	memberSession := f.open(member, roomID)

	require.Eventually(t, func() bool {
		return len(memberSession.Messages()) == 1 && len(ownerSession.Messages()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, memberSession.Status())
	assert.Equal(t, "Downtown Gym", memberSession.Room().DisplayName)

	welcome := memberSession.Messages()[0]
	assert.Equal(t, "owner display", welcome.Author.DisplayName)

	composer := memberSession.Composer()
	require.NoError(t, composer.StartReply(welcome.ID))
	require.NoError(t, composer.Submit(f.ctx, "thanks!"))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"welcome", "thanks!"}, bodies(ownerSession.Messages()))
	}, 5*time.Second, 20*time.Millisecond)

	reply := ownerSession.Messages()[1]
	assert.Equal(t, welcome.ID, reply.ReplyToID)
	require.NotNil(t, reply.ReplySnapshot)
	assert.Equal(t, "owner display", reply.ReplySnapshot.AuthorDisplayName)
	assert.Equal(t, "welcome", reply.ReplySnapshot.BodyPreview)

	require.NoError(t, composer.StartEdit(f.ctx, reply.ID))
	require.NoError(t, composer.Submit(f.ctx, "thanks a lot!"))
	require.Eventually(t, func() bool {
		m, ok := ownerSession.Store().Get(reply.ID)
		return ok && m.Body == "thanks a lot!" && !m.EditedAt.IsZero()
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, ownerSession.Composer().Delete(f.ctx, reply.ID))
	require.Eventually(t, func() bool {
		return memberSession.Store().Len() == 1 && ownerSession.Store().Len() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCurrentActor(t *testing.T) {
	f := newClientFixture(t)

	anonymous, err := client.New(f.server.URL)
	require.NoError(t, err)
	_, err = anonymous.CurrentActor(f.ctx)
	assert.ErrorIs(t, err, roomsync.ErrUnauthenticated)

	owner := f.user("owner")
	actor, err := owner.CurrentActor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, roomsync.RoleAdmin, actor.Role)

	restored, err := client.New(f.server.URL, client.WithToken(owner.Token()))
	require.NoError(t, err)
	got, err := restored.CurrentActor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, actor, got)

	require.NoError(t, owner.SignOut(f.ctx))
	_, err = owner.CurrentActor(f.ctx)
	assert.ErrorIs(t, err, roomsync.ErrUnauthenticated)

	_, err = restored.Rooms(f.ctx)
	assert.ErrorIs(t, err, roomsync.ErrUnauthenticated)
}

func TestErrorMapping(t *testing.T) {
	f := newClientFixture(t)
	owner := f.user("owner")
	outsider := f.user("outsider")

	roomID, err := owner.CreateRoom(f.ctx, "Gym")
	require.NoError(t, err)

	_, err = owner.FetchRoom(f.ctx, "missing")
	assert.ErrorIs(t, err, roomsync.ErrRoomNotFound)

	_, err = outsider.FetchMessages(f.ctx, roomID)
	assert.ErrorIs(t, err, roomsync.ErrRejected)

	_, err = outsider.Subscribe(f.ctx, "missing")
	assert.ErrorIs(t, err, roomsync.ErrRoomNotFound)

	_, err = outsider.InsertMessage(f.ctx, roomsync.NewMessage{RoomID: roomID, Body: "hi"})
	assert.ErrorIs(t, err, roomsync.ErrRejected)

	_, err = outsider.CreateRoom(f.ctx, "Mine")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.StatusCode)

	s := f.open(outsider, roomID)
	<-s.Done()
	assert.Error(t, s.Status())
}

func TestSubscribe(t *testing.T) {
	f := newClientFixture(t)
	owner := f.user("owner")
	roomID, err := owner.CreateRoom(f.ctx, "Gym")
	require.NoError(t, err)

	sub, err := owner.Subscribe(f.ctx, roomID)
	require.NoError(t, err)

	id, err := owner.InsertMessage(f.ctx, roomsync.NewMessage{RoomID: roomID, Body: "hello"})
	require.NoError(t, err)

	select {
	case n := <-sub.Events():
		assert.Equal(t, roomsync.EventInsert, n.Kind)
		require.NotNil(t, n.New)
		assert.Equal(t, id, n.New.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}

	require.NoError(t, sub.Close())
	for range sub.Events() {
	}
	assert.NoError(t, sub.Err())
}

func TestFetchProfilesBatches(t *testing.T) {
	f := newClientFixture(t)
	owner := f.user("owner")
	actor, err := owner.CurrentActor(f.ctx)
	require.NoError(t, err)

	ids := make([]string, 0, 150)
	ids = append(ids, actor.ID)
	for len(ids) < 150 {
		ids = append(ids, "unknown")
	}
	profiles, err := owner.FetchProfiles(f.ctx, ids)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "owner display", profiles[0].DisplayName)
}
