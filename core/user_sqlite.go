package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/putto11262002/gymchat/pkg/roomsync"
	"golang.org/x/crypto/bcrypt"
)

type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{
		db: db,
	}
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, user User) (string, error) {
	eu, err := s.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return "", fmt.Errorf("checking if user exists: %w", err)
	}

	if eu != nil {
		return "", ErrConflictedUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password, display_name, avatar, role)
		VALUES (@id, @username, @password, @display_name, @avatar, @role)`,
		sql.Named("id", id), sql.Named("username", user.Username),
		sql.Named("password", string(hashed)), sql.Named("display_name", user.DisplayName),
		sql.Named("avatar", user.AvatarRef), sql.Named("role", user.Role.String()))
	if err != nil {
		return "", fmt.Errorf("creating user: %w", err)
	}

	return id, nil
}

const userColumns = "id, username, display_name, avatar, role"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*UserWithoutSecrets, error) {
	user := new(UserWithoutSecrets)
	var role string
	if err := row.Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarRef, &role); err != nil {
		return nil, err
	}
	user.Role = roomsync.ParseRole(role)
	return user, nil
}

func (s *SQLiteUserStore) GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = @username LIMIT 1",
		sql.Named("username", username))

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

func (s *SQLiteUserStore) GetUserByID(ctx context.Context, id string) (*UserWithoutSecrets, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = @id LIMIT 1",
		sql.Named("id", id))

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

func (s *SQLiteUserStore) GetUsersByIDs(ctx context.Context, ids ...string) ([]UserWithoutSecrets, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+strings.Repeat("?,", len(ids)-1)+"?)", values...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var users []UserWithoutSecrets
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return users, nil
}

func (s *SQLiteUserStore) ComparePassword(ctx context.Context, username, password string) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT password FROM users WHERE username = @username LIMIT 1",
		sql.Named("username", username))

	var storedPassword string
	if err := row.Scan(&storedPassword); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scanning password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedPassword), []byte(password)); err != nil {
		return false, nil
	}

	return true, nil
}

func (s *SQLiteUserStore) SetRole(ctx context.Context, id string, role roomsync.Role) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET role = @role WHERE id = @id",
		sql.Named("role", role.String()), sql.Named("id", id))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidUser
	}
	return nil
}
