package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/putto11262002/gymchat/pkg/roomsync"
)

type SQLiteChatStore struct {
	db        *sql.DB
	userStore UserStore
	now       func() time.Time
}

func NewSQLiteChatStore(db *sql.DB, userStore UserStore) *SQLiteChatStore {
	return &SQLiteChatStore{
		db:        db,
		userStore: userStore,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLiteChatStore) CreateRoom(ctx context.Context, name, creatorID string) (string, error) {
	creator, err := s.userStore.GetUserByID(ctx, creatorID)
	if err != nil {
		return "", fmt.Errorf("GetUserByID: %w", err)
	}
	if creator == nil {
		return "", ErrInvalidUser
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	now := s.now()
	_, err = tx.ExecContext(ctx, "INSERT INTO rooms (id, name, created_at) VALUES (@id, @name, @created_at)",
		sql.Named("id", id), sql.Named("name", name), sql.Named("created_at", now))
	if err != nil {
		return "", fmt.Errorf("ExecContext(insert room): %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id, joined_at) VALUES (@room_id, @user_id, @joined_at)",
		sql.Named("room_id", id), sql.Named("user_id", creatorID), sql.Named("joined_at", now))
	if err != nil {
		return "", fmt.Errorf("ExecContext(insert room_members): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("Commit: %w", err)
	}

	return id, nil
}

func (s *SQLiteChatStore) GetRoomByID(ctx context.Context, roomID string) (*Room, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM rooms WHERE id = @id",
		sql.Named("id", roomID))

	var room Room
	if err := row.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}
	return &room, nil
}

func (s *SQLiteChatStore) JoinRoom(ctx context.Context, roomID, userID string) error {
	user, err := s.userStore.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("GetUserByID: %w", err)
	}
	if user == nil {
		return ErrInvalidUser
	}
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("GetRoomByID: %w", err)
	}
	if room == nil {
		return ErrInvalidRoom
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at)
		VALUES (@room_id, @user_id, @joined_at) ON CONFLICT DO NOTHING`,
		sql.Named("room_id", roomID), sql.Named("user_id", userID), sql.Named("joined_at", s.now()))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM room_members WHERE room_id = @room_id AND user_id = @user_id",
		sql.Named("room_id", roomID), sql.Named("user_id", userID))

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteChatStore) GetUserRooms(ctx context.Context, userID string) ([]RoomPreview, error) {
	query := `
	SELECT r.id, r.name, rm.last_read_at, m.body, m.created_at
	FROM room_members AS rm
	INNER JOIN rooms AS r ON r.id = rm.room_id
	LEFT JOIN messages AS m ON m.id = (
		SELECT id FROM messages
		WHERE room_id = r.id
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	)
	WHERE rm.user_id = @user_id`

	rows, err := s.db.QueryContext(ctx, query, sql.Named("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	rooms := []RoomPreview{}
	for rows.Next() {
		var (
			room       RoomPreview
			lastReadAt sql.NullTime
			lastBody   sql.NullString
			lastAt     sql.NullTime
		)
		if err := rows.Scan(&room.ID, &room.Name, &lastReadAt, &lastBody, &lastAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		if lastReadAt.Valid {
			room.LastReadAt = &lastReadAt.Time
		}
		if lastAt.Valid {
			room.LastMessageAt = &lastAt.Time
			room.LastMessageBody = lastBody.String
		}
		room.Unread = room.LastReadAt != nil && room.LastMessageAt != nil &&
			room.LastMessageAt.After(*room.LastReadAt)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	slices.SortFunc(rooms, func(a, b RoomPreview) int {
		if a.Unread != b.Unread {
			if a.Unread {
				return -1
			}
			return 1
		}
		if c := activity(b).Compare(activity(a)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return rooms, nil
}

func activity(r RoomPreview) time.Time {
	if r.LastMessageAt == nil {
		return time.Time{}
	}
	return *r.LastMessageAt
}

func (s *SQLiteChatStore) MarkRoomRead(ctx context.Context, roomID, userID string) (time.Time, error) {
	readAt := s.now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE room_members SET last_read_at = @read_at WHERE room_id = @room_id AND user_id = @user_id",
		sql.Named("read_at", readAt), sql.Named("room_id", roomID), sql.Named("user_id", userID))
	if err != nil {
		return time.Time{}, fmt.Errorf("ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return time.Time{}, ErrNotRoomMember
	}
	return readAt, nil
}

const messageColumns = "id, room_id, author_id, body, created_at, updated_at, reply_to_id, reply_preview, reply_author"

func scanMessage(row rowScanner) (*roomsync.Message, error) {
	var (
		m            roomsync.Message
		updatedAt    sql.NullTime
		replyToID    sql.NullString
		replyPreview sql.NullString
		replyAuthor  sql.NullString
	)
	if err := row.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.Body, &m.CreatedAt,
		&updatedAt, &replyToID, &replyPreview, &replyAuthor); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		m.EditedAt = updatedAt.Time
	}
	m.ReplyToID = replyToID.String
	if replyPreview.Valid || replyAuthor.Valid {
		m.ReplySnapshot = &roomsync.ReplySnapshot{
			AuthorDisplayName: replyAuthor.String,
			BodyPreview:       replyPreview.String,
		}
	}
	return &m, nil
}

func (s *SQLiteChatStore) GetRoomMessages(ctx context.Context, roomID string, offset, limit int) ([]roomsync.Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM messages
	WHERE room_id = @room_id
	ORDER BY created_at ASC, id ASC
	LIMIT @limit OFFSET @offset`

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("room_id", roomID), sql.Named("offset", offset), sql.Named("limit", limit))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	messages := []roomsync.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return messages, nil
}

func (s *SQLiteChatStore) GetMessageByID(ctx context.Context, id string) (*roomsync.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = @id",
		sql.Named("id", id))
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("row.Scan: %w", err)
	}
	return m, nil
}

func (s *SQLiteChatStore) CreateMessage(ctx context.Context, input MessageCreateInput) (*roomsync.Message, error) {
	input.Body = strings.TrimSpace(input.Body)
	if err := input.Validate(); err != nil {
		return nil, ErrInvalidMessage
	}
	ok, err := s.IsRoomMember(ctx, input.RoomID, input.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("IsRoomMember: %w", err)
	}
	if !ok {
		return nil, ErrNotRoomMember
	}

	m := &roomsync.Message{
		ID:        uuid.New().String(),
		RoomID:    input.RoomID,
		AuthorID:  input.AuthorID,
		Body:      input.Body,
		CreatedAt: s.now(),
		ReplyToID: input.ReplyToID,
	}
	var replyToID, replyPreview, replyAuthor sql.NullString
	if input.ReplyToID != "" {
		replyToID = sql.NullString{String: input.ReplyToID, Valid: true}
	}
	if input.Reply != nil {
		snap := *input.Reply
		m.ReplySnapshot = &snap
		replyPreview = sql.NullString{String: snap.BodyPreview, Valid: true}
		replyAuthor = sql.NullString{String: snap.AuthorDisplayName, Valid: true}
	}

	query := `
	INSERT INTO messages (id, room_id, author_id, body, created_at, reply_to_id, reply_preview, reply_author)
	VALUES (@id, @room_id, @author_id, @body, @created_at, @reply_to_id, @reply_preview, @reply_author)`
	_, err = s.db.ExecContext(ctx, query,
		sql.Named("id", m.ID), sql.Named("room_id", m.RoomID),
		sql.Named("author_id", m.AuthorID), sql.Named("body", m.Body),
		sql.Named("created_at", m.CreatedAt), sql.Named("reply_to_id", replyToID),
		sql.Named("reply_preview", replyPreview), sql.Named("reply_author", replyAuthor))
	if err != nil {
		return nil, fmt.Errorf("ExecContext: %w", err)
	}

	return m, nil
}

// authorize loads the message and checks that the actor may act on it.
func (s *SQLiteChatStore) authorize(ctx context.Context, actorID, messageID string, allowed func(roomsync.Permissions) bool) (*roomsync.Message, error) {
	m, err := s.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("GetMessageByID: %w", err)
	}
	if m == nil {
		return nil, ErrMessageNotFound
	}
	member, err := s.IsRoomMember(ctx, m.RoomID, actorID)
	if err != nil {
		return nil, fmt.Errorf("IsRoomMember: %w", err)
	}
	if !member {
		return nil, ErrNotRoomMember
	}
	actor, err := s.userStore.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	if actor == nil {
		return nil, ErrInvalidUser
	}
	if !allowed(roomsync.CanModify(actor.Role, actor.ID, *m)) {
		return nil, ErrDisAllowedOperation
	}
	return m, nil
}

func (s *SQLiteChatStore) UpdateMessage(ctx context.Context, actorID, messageID, body string) (*roomsync.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > 4000 {
		return nil, ErrInvalidMessage
	}
	m, err := s.authorize(ctx, actorID, messageID, func(p roomsync.Permissions) bool { return p.CanEdit })
	if err != nil {
		return nil, err
	}

	updatedAt := s.now()
	_, err = s.db.ExecContext(ctx,
		"UPDATE messages SET body = @body, updated_at = @updated_at WHERE id = @id",
		sql.Named("body", body), sql.Named("updated_at", updatedAt), sql.Named("id", messageID))
	if err != nil {
		return nil, fmt.Errorf("ExecContext: %w", err)
	}

	m.Body = body
	m.EditedAt = updatedAt
	return m, nil
}

func (s *SQLiteChatStore) DeleteMessage(ctx context.Context, actorID, messageID string) (*roomsync.Message, error) {
	m, err := s.authorize(ctx, actorID, messageID, func(p roomsync.Permissions) bool { return p.CanDelete })
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = @id", sql.Named("id", messageID))
	if err != nil {
		return nil, fmt.Errorf("ExecContext: %w", err)
	}
	return m, nil
}
