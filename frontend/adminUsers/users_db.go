package adminusers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"cuttracker/frontend/login"
	"cuttracker/infrastructure/argon"
	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/rbac"
	"cuttracker/infrastructure/sqlite"
	"cuttracker/models"
)

func LoadUsersPageData(ctx context.Context, db *sqlite.DB) (PageData, error) {
	users := make([]UserView, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw("SELECT id, username, role, strftime('%d/%m/%Y %H:%M', created_at) AS created_at FROM users ORDER BY id ASC").Scan(ctx, &users)
	})
	return PageData{Users: users, Roles: rbac.Roles}, err
}

// CreateUser validates and inserts a new user with an argon2id password hash.
// Usernames are unique regardless of case.
func CreateUser(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID int64, username, password, role string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	role = strings.ToLower(strings.TrimSpace(role))
	if username == "" {
		return ErrUsernameRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if !rbac.ValidRole(role) {
		return ErrInvalidRole
	}
	if err := login.ValidatePasswordPolicy(password); err != nil {
		return err
	}
	hash, err := argon.CreateHash(password, argon.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var existing int
		if err := tx.NewRaw(`SELECT COUNT(1) FROM users WHERE LOWER(username) = ?`, strings.ToLower(username)).Scan(ctx, &existing); err != nil {
			return err
		}
		if existing > 0 {
			return ErrUsernameExists
		}
		now := time.Now()
		user := &models.User{Username: username, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if auditSvc == nil {
			return nil
		}
		return auditSvc.WriteID(ctx, tx, actorID, "user.create", "user", user.ID, nil, map[string]any{
			"username": username,
			"role":     role,
		})
	})
}
