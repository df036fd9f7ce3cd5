// Package service contains typed clients for the backend API built on the gateway.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/timetable-client/internal/gateway"
	"github.com/and161185/timetable-client/internal/model"
)

// API is the subset of gateway.Client used by services.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Put(ctx context.Context, path string, in, out any) error
	Patch(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Auth endpoint paths relative to the API root.
const (
	PathLogin   = gateway.LoginPath
	PathMe      = "/auth/me"
	PathRefresh = "/auth/refresh"
)

// AuthService implements session.Authenticator over HTTP.
type AuthService struct {
	api API
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(api API) *AuthService {
	return &AuthService{api: api}
}

// Login posts credentials. The gateway leaves this call unscoped.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.LoginResponse{}, errors.New("empty email/password")
	}
	var out model.LoginResponse
	if err := s.api.Post(ctx, PathLogin, model.Credentials{Email: email, Password: password}, &out); err != nil {
		return model.LoginResponse{}, err
	}
	return out, nil
}

// Me returns the user owning the current access token.
func (s *AuthService) Me(ctx context.Context) (model.User, error) {
	var u model.User
	if err := s.api.Get(ctx, PathMe, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	var out model.Tokens
	if err := s.api.Post(ctx, PathRefresh, refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return model.Tokens{}, err
	}
	return out, nil
}
