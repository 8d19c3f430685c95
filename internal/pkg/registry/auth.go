package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/containers/image/v5/pkg/docker/config"
	"github.com/containers/image/v5/types"
	"github.com/docker/distribution/registry/client/auth/challenge"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/image"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
)

// AuthClient exchanges registry credentials for a pull token scoped to
// one repository. It never retries.
type AuthClient struct {
	Log     clog.PluggableLoggerInterface
	client  *http.Client
	sys     *types.SystemContext
	timeout time.Duration
	now     func() time.Time
}

func NewAuthClient(log clog.PluggableLoggerInterface, client *http.Client, opts Options) *AuthClient {
	return &AuthClient{
		Log:     log,
		client:  client,
		sys:     &types.SystemContext{AuthFilePath: opts.AuthFile},
		timeout: opts.timeout(),
		now:     time.Now,
	}
}

// GetToken runs the bearer challenge/response exchange for ref's
// repository. A registry that does not challenge yields an anonymous token.
func (a *AuthClient) GetToken(ctx context.Context, ref v1alpha1.ImageReference) (v1alpha1.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	realm, service, err := a.challenge(ctx, ref)
	if err != nil {
		return v1alpha1.Token{}, err
	}
	if realm == "" {
		a.Log.Debug("registry %s did not challenge, pulling anonymously", ref.Registry)
		return v1alpha1.Token{Anonymous: true, ReceivedAt: a.now()}, nil
	}

	tokenURL, err := url.Parse(realm)
	if err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "invalid realm " + realm, err: err}
	}
	q := tokenURL.Query()
	if service != "" {
		q.Set("service", service)
	}
	q.Set("scope", fmt.Sprintf("repository:%s:pull", ref.Repository()))
	tokenURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL.String(), nil)
	if err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "build token request", err: err}
	}
	creds, err := config.GetCredentials(a.sys, ref.Registry)
	if err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "read credentials", err: err}
	}
	if creds.Username != "" || creds.Password != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	} else {
		a.Log.Debug("no credentials found for %s, requesting an anonymous token", ref.Registry)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "token request", err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, Status: resp.StatusCode, message: "token request rejected"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "read token response", err: err}
	}
	var token v1alpha1.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "malformed token response", err: err}
	}
	switch {
	case token.Token == "" && token.AccessToken == "":
		return v1alpha1.Token{}, &AuthError{Registry: ref.Registry, message: "token response carries neither token nor access_token"}
	case token.Token == "":
		token.Token = token.AccessToken
	case token.AccessToken == "":
		token.AccessToken = token.Token
	}
	token.ReceivedAt = a.now()
	a.Log.Trace("token for %s valid until %s", ref.Repository(), token.ExpiresAt().Format(time.RFC3339))
	return token, nil
}

// challenge pings the registry and returns the bearer realm and service.
// An empty realm means no authentication is required.
func (a *AuthClient) challenge(ctx context.Context, ref v1alpha1.ImageReference) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, image.PingURL(ref), nil)
	if err != nil {
		return "", "", &AuthError{Registry: ref.Registry, message: "build ping request", err: err}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", &AuthError{Registry: ref.Registry, message: "ping", err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return "", "", nil
	case http.StatusUnauthorized:
	default:
		return "", "", &AuthError{Registry: ref.Registry, Status: resp.StatusCode, message: "unexpected ping response"}
	}

	for _, c := range challenge.ResponseChallenges(resp) {
		if strings.EqualFold(c.Scheme, "bearer") {
			realm := c.Parameters["realm"]
			if realm == "" {
				return "", "", &AuthError{Registry: ref.Registry, message: "bearer challenge without realm"}
			}
			return realm, c.Parameters["service"], nil
		}
	}
	return "", "", &AuthError{Registry: ref.Registry, Status: resp.StatusCode, message: "no bearer challenge offered"}
}
