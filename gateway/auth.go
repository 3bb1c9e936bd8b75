package gateway

import (
	"context"
	"net/http"
	"time"
)

type signUpRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
}

type createdUser struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SignUp registers the user and immediately signs in with the same
// credentials, so the caller ends up with a usable session.
func (g *Gateway) SignUp(ctx context.Context, userName, email, password string) (*Profile, error) {
	var created createdUser
	err := g.doJSON(ctx, http.MethodPost, "/api/auth/signup", signUpRequest{
		UserName: userName,
		Email:    email,
		Password: password,
	}, &created)
	if err != nil {
		return nil, err
	}

	return g.SignIn(ctx, email, password)
}

// SignIn authenticates and persists the session. The refresh cookie lands in
// the gateway's cookie jar as a side effect of the response.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*Profile, error) {
	var resp signInResponse
	err := g.doJSON(ctx, http.MethodPost, "/api/auth/signin", signInRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}

	profile := &Profile{ID: resp.ID, Name: resp.Name, Email: resp.Email}
	if err := g.store.SaveAccessToken(resp.AccessToken); err != nil {
		return nil, err
	}
	if err := g.store.SaveProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SignOut tells the server to clear the refresh cookie and wipes the local
// session either way.
func (g *Gateway) SignOut(ctx context.Context) error {
	apiErr := g.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if clearErr := g.store.Clear(); clearErr != nil {
		return clearErr
	}
	return apiErr
}

// Refresh forces a token refresh outside the usual 401/403 interception.
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	return g.refreshAccessToken(ctx)
}

// CurrentProfile returns the cached profile, or nil when signed out.
func (g *Gateway) CurrentProfile() (*Profile, error) {
	return g.store.Profile()
}

// IsAuthenticated reports whether an access token is stored locally.
func (g *Gateway) IsAuthenticated() bool {
	token, err := g.store.AccessToken()
	return err == nil && token != ""
}

// ForgotPassword asks the server to mail a reset link. The response is the
// same whether or not the email is registered.
func (g *Gateway) ForgotPassword(ctx context.Context, email string) error {
	return g.doJSON(ctx, http.MethodPost, "/api/user/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword redeems a reset token received by email.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) error {
	return g.doJSON(ctx, http.MethodPost, "/api/user/reset-password", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	}, nil)
}
