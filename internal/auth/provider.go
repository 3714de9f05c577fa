package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/nhle/mail-agent/internal/model"
)

// ErrNoToken is returned by a session token source before the user has
// signed in, or after a 401 cleared the session.
var ErrNoToken = errors.New("no access token for this session")

// Provider wraps the OAuth client configuration for the mail provider.
type Provider struct {
	cfg *oauth2.Config
}

// NewProvider builds a Provider from the oauth config section and the
// client secret read from the keyring.
func NewProvider(c model.OAuthConfig, clientSecret string) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: clientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       c.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		},
	}
}

// AuthCodeURL returns the consent page URL. Offline access and a forced
// consent prompt make the provider issue a refresh token every time.
func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them in st.
func (p *Provider) Exchange(ctx context.Context, code string, st *State) error {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	st.Set(tok)
	return nil
}

// TokenSource returns a token source bound to st. Refreshed tokens are
// written back into st.
func (p *Provider) TokenSource(ctx context.Context, st *State) oauth2.TokenSource {
	return &stateTokenSource{ctx: ctx, cfg: p.cfg, state: st}
}

type stateTokenSource struct {
	ctx   context.Context
	cfg   *oauth2.Config
	state *State
}

func (s *stateTokenSource) Token() (*oauth2.Token, error) {
	current, ok := s.state.Token()
	if !ok {
		return nil, ErrNoToken
	}
	if current.Valid() {
		return current, nil
	}

	fresh, err := s.cfg.TokenSource(s.ctx, current).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	s.state.Set(fresh)
	return fresh, nil
}
