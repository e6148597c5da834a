package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jsalmi/mytgo/internal/log"
)

// AuthenticationError indicates that login or refresh failed. It is
// fatal for the run: the user must correct credentials or configuration.
type AuthenticationError struct {
	Step string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %s", e.Step, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// maxLoginRounds bounds the challenge/response exchange; the server
// decides how many rounds a login takes, but not without limit.
const maxLoginRounds = 10

// Flow performs the network half of authentication: the interactive
// challenge/response login and the silent refresh grant.
type Flow struct {
	AuthHost    string // e.g. https://b2c-login.toyota-europe.com
	ClientID    string
	RedirectURI string
	Username    string
	Password    string

	HTTPClient *http.Client
}

func (f *Flow) client() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// challenge is one round of the interactive login exchange. The server
// issues it and expects it echoed back with the relevant input filled in.
type challenge struct {
	AuthID    string     `json:"authId,omitempty"`
	TokenID   string     `json:"tokenId,omitempty"`
	Callbacks []callback `json:"callbacks,omitempty"`
}

type callback struct {
	Type   string          `json:"type"`
	Output []callbackField `json:"output,omitempty"`
	Input  []callbackField `json:"input,omitempty"`
}

type callbackField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// answer fills the credential into the callback's first input field.
func (cb *callback) answer(value string) {
	for i := range cb.Input {
		cb.Input[i].Value = value
		return
	}
}

// Login runs the full interactive sequence: an ordered series of
// challenge rounds (the server's challenge object is echoed back with one
// field filled in per round), followed by the authorization-code exchange
// for tokens.
func (f *Flow) Login(ctx context.Context) (*Session, error) {
	authURL := f.AuthHost + "/json/realms/root/realms/tme/authenticate?authIndexType=service&authIndexValue=oneapp"

	var ch challenge
	body := []byte("{}")
	for round := 0; round < maxLoginRounds; round++ {
		respBody, status, err := f.postJSON(ctx, authURL, body)
		if err != nil {
			return nil, &AuthenticationError{Step: "login", Err: err}
		}
		if status != http.StatusOK {
			return nil, &AuthenticationError{Step: "login", Err: fmt.Errorf("status %d: %s", status, respBody)}
		}
		ch = challenge{}
		if err := json.Unmarshal(respBody, &ch); err != nil {
			return nil, &AuthenticationError{Step: "login", Err: fmt.Errorf("malformed challenge: %w", err)}
		}
		if ch.TokenID != "" {
			log.Debug("login exchange complete", zap.Int("rounds", round))
			return f.exchangeCode(ctx, ch.TokenID)
		}
		if len(ch.Callbacks) == 0 {
			return nil, &AuthenticationError{Step: "login", Err: fmt.Errorf("challenge carried neither token nor callbacks")}
		}
		answered := false
		for i := range ch.Callbacks {
			switch ch.Callbacks[i].Type {
			case "NameCallback":
				ch.Callbacks[i].answer(f.Username)
				answered = true
			case "PasswordCallback":
				ch.Callbacks[i].answer(f.Password)
				answered = true
			}
		}
		if !answered {
			return nil, &AuthenticationError{Step: "login", Err: fmt.Errorf("unexpected challenge shape: %s", callbackTypes(ch.Callbacks))}
		}
		body, err = json.Marshal(&ch)
		if err != nil {
			return nil, &AuthenticationError{Step: "login", Err: err}
		}
	}
	return nil, &AuthenticationError{Step: "login", Err: fmt.Errorf("exchange did not converge in %d rounds", maxLoginRounds)}
}

func callbackTypes(cbs []callback) string {
	names := make([]string, 0, len(cbs))
	for _, cb := range cbs {
		names = append(names, cb.Type)
	}
	return strings.Join(names, ",")
}

// exchangeCode trades the session token issued by the challenge exchange
// for OAuth tokens: authorize (following the redirect for the code), then
// the authorization_code grant.
func (f *Flow) exchangeCode(ctx context.Context, tokenID string) (*Session, error) {
	authorizeURL := f.AuthHost + "/oauth2/realms/root/realms/tme/authorize?" + url.Values{
		"client_id":     {f.ClientID},
		"redirect_uri":  {f.RedirectURI},
		"response_type": {"code"},
		"scope":         {"openid profile write"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authorizeURL, nil)
	if err != nil {
		return nil, &AuthenticationError{Step: "authorize", Err: err}
	}
	req.AddCookie(&http.Cookie{Name: "iPlanetDirectoryPro", Value: tokenID})

	// The code arrives in a redirect; do not follow it.
	client := *f.client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Step: "authorize", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		body, _ := io.ReadAll(resp.Body)
		return nil, &AuthenticationError{Step: "authorize", Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}
	location, err := resp.Location()
	if err != nil {
		return nil, &AuthenticationError{Step: "authorize", Err: err}
	}
	code := location.Query().Get("code")
	if code == "" {
		return nil, &AuthenticationError{Step: "authorize", Err: fmt.Errorf("redirect carried no authorization code")}
	}

	return f.tokenGrant(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {f.ClientID},
		"redirect_uri": {f.RedirectURI},
		"code":         {code},
	})
}

// Refresh silently renews a session using its refresh token.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	return f.tokenGrant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {f.ClientID},
		"redirect_uri":  {f.RedirectURI},
		"refresh_token": {refreshToken},
	})
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (f *Flow) tokenGrant(ctx context.Context, form url.Values) (*Session, error) {
	step := form.Get("grant_type")
	tokenURL := f.AuthHost + "/oauth2/realms/root/realms/tme/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthenticationError{Step: step, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, &AuthenticationError{Step: step, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthenticationError{Step: step, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthenticationError{Step: step, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &AuthenticationError{Step: step, Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &AuthenticationError{Step: step, Err: fmt.Errorf("token response carried no access token")}
	}

	s := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	s.Subject, s.Expiration = tokenClaims(tr.IDToken, tr.AccessToken)
	if s.Expiration.IsZero() && tr.ExpiresIn > 0 {
		s.Expiration = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if !s.Complete() {
		return nil, &AuthenticationError{Step: step, Err: fmt.Errorf("token response yielded incomplete session")}
	}
	return s, nil
}

// tokenClaims extracts the subject and expiration from the issued
// tokens. The ID token is preferred for the subject; signatures are not
// verified here, the server that issued the token is the one we present
// it back to.
func tokenClaims(idToken, accessToken string) (string, time.Time) {
	parser := jwt.NewParser()
	var subject string
	var expiration time.Time
	for _, raw := range []string{idToken, accessToken} {
		if raw == "" {
			continue
		}
		var claims jwt.RegisteredClaims
		if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
			continue
		}
		if subject == "" && claims.Subject != "" {
			subject = claims.Subject
		}
		if expiration.IsZero() && claims.ExpiresAt != nil {
			expiration = claims.ExpiresAt.Time
		}
	}
	return subject, expiration
}

func (f *Flow) postJSON(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-API-Version", "resource=2.0, protocol=1.0")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}
