package backend

import (
	"context"
	"net/http"
)

const authResource = "auth"

// AuthUser is what the backend reveals about an authenticated account.
type AuthUser struct {
	ID          string
	Username    string
	IsSuperuser bool
}

type authUserWire struct {
	ID          flexID `json:"id"`
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
	User        *struct {
		ID          flexID `json:"id"`
		Username    string `json:"username"`
		IsSuperuser bool   `json:"is_superuser"`
	} `json:"user"`
}

func (w authUserWire) model() AuthUser {
	if w.User != nil && w.User.ID != "" {
		return AuthUser{ID: string(w.User.ID), Username: w.User.Username, IsSuperuser: w.User.IsSuperuser}
	}
	return AuthUser{ID: string(w.ID), Username: w.Username, IsSuperuser: w.IsSuperuser}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates the session. The backend rotates the CSRF token on
// login, so the cached one is dropped.
func (c *Client) Login(ctx context.Context, username, password string) (AuthUser, error) {
	var w authUserWire
	err := c.doJSON(ctx, http.MethodPost, authResource, "auth/login/", nil, credentials{Username: username, Password: password}, &w)
	if err != nil {
		return AuthUser{}, err
	}
	c.ResetCSRF()
	return w.model(), nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, authResource, "auth/logout/", nil, nil, nil)
	c.ResetCSRF()
	return err
}

func (c *Client) Register(ctx context.Context, username, password string) (AuthUser, error) {
	var w authUserWire
	err := c.doJSON(ctx, http.MethodPost, authResource, "auth/register/", nil, credentials{Username: username, Password: password}, &w)
	if err != nil {
		return AuthUser{}, err
	}
	return w.model(), nil
}
