package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const (
	testAuthHost    = "https://auth.example.com"
	authenticateURL = testAuthHost + "/json/realms/root/realms/tme/authenticate?authIndexType=service&authIndexValue=oneapp"
	accessTokenURL  = testAuthHost + "/oauth2/realms/root/realms/tme/access_token"
)

func testFlow() (*Flow, *http.Client) {
	client := &http.Client{}
	return &Flow{
		AuthHost:    testAuthHost,
		ClientID:    "oneapp",
		RedirectURI: "com.example.app:/oauth2Callback",
		Username:    "user@example.com",
		Password:    "hunter2",
		HTTPClient:  client,
	}, client
}

// makeJWT builds an unsigned JWT carrying sub and exp claims; the flow
// only extracts claims and never verifies signatures. A zero exp omits
// the claim.
func makeJWT(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := map[string]interface{}{"sub": sub}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func registerTokenEndpoint(t *testing.T, wantGrant string, exp time.Time) {
	t.Helper()
	httpmock.RegisterResponder(http.MethodPost, accessTokenURL, func(r *http.Request) (*http.Response, error) {
		if err := r.ParseForm(); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad form"), nil
		}
		if got := r.PostForm.Get("grant_type"); got != wantGrant {
			t.Errorf("grant_type = %q, want %q", got, wantGrant)
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
			"access_token":  makeJWT(t, "subject-uuid", exp),
			"refresh_token": "refresh-token",
			"id_token":      makeJWT(t, "subject-uuid", exp),
			"expires_in":    3600,
		})
	})
}

func TestLoginChallengeExchange(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	rounds := 0
	httpmock.RegisterResponder(http.MethodPost, authenticateURL, func(r *http.Request) (*http.Response, error) {
		rounds++
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad body"), nil
		}
		switch rounds {
		case 1:
			return httpmock.NewStringResponse(http.StatusOK, `{"authId":"a1","callbacks":[{"type":"NameCallback","output":[{"name":"prompt","value":"User Name"}],"input":[{"name":"IDToken1","value":""}]}]}`), nil
		case 2:
			// The previous round's challenge must come back with the
			// username filled in.
			raw, _ := json.Marshal(body)
			if !strings.Contains(string(raw), "user@example.com") {
				t.Error("second round did not echo the username")
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"authId":"a2","callbacks":[{"type":"PasswordCallback","output":[{"name":"prompt","value":"Password"}],"input":[{"name":"IDToken2","value":""}]}]}`), nil
		default:
			raw, _ := json.Marshal(body)
			if !strings.Contains(string(raw), "hunter2") {
				t.Error("final round did not echo the password")
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"tokenId":"sso-token"}`), nil
		}
	})
	httpmock.RegisterResponder(http.MethodGet, `=~^https://auth\.example\.com/oauth2/realms/root/realms/tme/authorize`, func(r *http.Request) (*http.Response, error) {
		if c, err := r.Cookie("iPlanetDirectoryPro"); err != nil || c.Value != "sso-token" {
			t.Error("authorize request missing session token cookie")
		}
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		resp.Header.Set("Location", "com.example.app:/oauth2Callback?code=auth-code")
		return resp, nil
	})
	registerTokenEndpoint(t, "authorization_code", exp)

	s, err := flow.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rounds != 3 {
		t.Errorf("login took %d rounds, want 3", rounds)
	}
	if s.Subject != "subject-uuid" {
		t.Errorf("subject %q", s.Subject)
	}
	if s.RefreshToken != "refresh-token" {
		t.Errorf("refresh token %q", s.RefreshToken)
	}
	if !s.Expiration.Equal(exp) {
		t.Errorf("expiration %v, want %v", s.Expiration, exp)
	}
}

func TestLoginRejectsUnexpectedChallengeShape(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, authenticateURL,
		httpmock.NewStringResponder(http.StatusOK, `{"authId":"a1","callbacks":[{"type":"ConfirmationCallback","input":[{"name":"IDToken1","value":""}]}]}`))

	_, err := flow.Login(context.Background())
	if err == nil {
		t.Fatal("login accepted a challenge it cannot answer")
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type %T", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, authenticateURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"message":"Authentication Failed"}`))

	_, err := flow.Login(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("login returned %v, want AuthenticationError", err)
	}
}

func TestRefreshGrant(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	registerTokenEndpoint(t, "refresh_token", exp)

	s, err := flow.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatal(err)
	}
	if s.AccessToken == "" || s.Subject != "subject-uuid" {
		t.Errorf("session %+v", s)
	}
}

func TestRefreshFailureSurfacesStatus(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, accessTokenURL,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"invalid_grant"}`))

	_, err := flow.Refresh(context.Background(), "revoked")
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("refresh error %v does not carry the response body", err)
	}
}

func TestTokenSessionFallsBackToExpiresIn(t *testing.T) {
	flow, client := testFlow()
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	// Opaque (non-JWT) access token: expiration must come from
	// expires_in and the subject from the ID token.
	httpmock.RegisterResponder(http.MethodPost, accessTokenURL, func(r *http.Request) (*http.Response, error) {
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
			"access_token": "opaque-token",
			"id_token":     makeJWT(t, "subject-uuid", time.Time{}),
			"expires_in":   3600,
		})
	})

	before := time.Now()
	s, err := flow.Refresh(context.Background(), "r")
	if err != nil {
		t.Fatal(err)
	}
	if s.Expiration.Before(before.Add(59 * time.Minute)) {
		t.Errorf("expiration %v not derived from expires_in", s.Expiration)
	}
}
