package api

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

// LoginRequest carries the credentials for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the payload returned by a successful login.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates with username/password and returns the bearer
// token plus the authenticated user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var res LoginResult
	if err := c.post(ctx, "/auth/login", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates a new account. The server assigns the USER role.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	var u model.User
	if err := c.post(ctx, "/auth/register", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CurrentUser fetches the identity bound to the current token.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.get(ctx, "/users/current", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Users lists all accounts, used for assignment pickers and the admin
// dashboard.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}
