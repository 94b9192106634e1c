package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bookshelf/pkg/auth"
	"bookshelf/pkg/domain"
	"bookshelf/pkg/store"
)

// NewUser is the input for creating an account.
type NewUser struct {
	Email    string
	Password string
	Role     string
}

// UserUpdate carries the fields of an admin edit. Nil fields are left unchanged.
type UserUpdate struct {
	Email *string
	Role  *string
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword("bookshelf-login-miss")
	if err != nil {
		panic(fmt.Sprintf("hash dummy password: %v", err))
	}
	return hash
})

// Register creates a "user" account and signs the caller in.
func (a *App) Register(ctx context.Context, email, password string) (domain.User, string, error) {
	user, err := a.createUser(ctx, NewUser{Email: email, Password: password, Role: string(domain.RoleUser)})
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and issues a bearer token.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	sctx, cancel := a.bounded(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByEmail(sctx, email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		// Unknown emails still pay for a bcrypt comparison.
		auth.CheckPassword(password, dummyHash())
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes token.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// UserFromToken resolves the account behind a bearer token.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	userID, err := a.sessions.GetUserIDByToken(ctx, token)
	if errors.Is(err, store.ErrInvalidToken) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("verify token: %w", err)
	}
	sctx, cancel := a.bounded(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(sctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns every account in creation order.
func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateUser creates an account on behalf of an admin. Role defaults to "user".
func (a *App) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	return a.createUser(ctx, in)
}

func (a *App) createUser(ctx context.Context, in NewUser) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}

	ctx, cancel := a.bounded(ctx)
	defer cancel()
	exists, err := a.store.HasUserEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrUserExists
	}
	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return domain.User{}, ErrPasswordTooLong
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now()
	user := domain.User{
		ID:           a.newID(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// UpdateUser applies an admin edit. Email uniqueness is left to the store.
func (a *App) UpdateUser(ctx context.Context, id string, upd UserUpdate) (domain.User, error) {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email == "" {
			return domain.User{}, ErrEmailEmpty
		}
		user.Email = email
	}
	if upd.Role != nil {
		if strings.TrimSpace(*upd.Role) == "" {
			return domain.User{}, ErrInvalidRole
		}
		role, err := parseRole(*upd.Role)
		if err != nil {
			return domain.User{}, err
		}
		user.Role = role
	}
	user.UpdatedAt = a.now()

	switch err := a.store.UpdateUser(ctx, user); {
	case errors.Is(err, store.ErrDuplicate):
		return domain.User{}, ErrUserExists
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrUserNotFound
	case err != nil:
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account. Books and reviews it authored are kept.
func (a *App) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	deleted, err := a.store.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	return nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
// It reports whether an account was created. An email held by a non-admin
// account is ErrAdminEmailTaken.
func (a *App) EnsureAdmin(ctx context.Context, email, password string) (domain.User, bool, error) {
	sctx, cancel := a.bounded(ctx)
	existing, ok, err := a.store.GetUserByEmail(sctx, normalizeEmail(email))
	cancel()
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch admin: %w", err)
	}
	if ok {
		if existing.Role != domain.RoleAdmin {
			return domain.User{}, false, ErrAdminEmailTaken
		}
		return existing, false, nil
	}
	user, err := a.createUser(ctx, NewUser{Email: email, Password: password, Role: string(domain.RoleAdmin)})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func parseRole(raw string) (domain.Role, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.RoleUser, nil
	}
	role := domain.Role(raw)
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}
