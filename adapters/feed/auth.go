package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

// Refresher obtains a new access token for credentials
type Refresher interface {
	Refresh(ctx context.Context, creds sheetfeed.Credentials) (sheetfeed.Credentials, error)
}

// OAuthRefresher runs the OAuth2 refresh_token grant against TokenURL,
// sending the client id and secret as form parameters.
type OAuthRefresher struct {
	TokenURL   string
	HTTPClient *http.Client
}

// Refresh returns creds with a new access token and, if the server
// rotated it, a new refresh token. It never retries.
func (r *OAuthRefresher) Refresh(ctx context.Context, creds sheetfeed.Credentials) (sheetfeed.Credentials, error) {
	ctx, span := tracer.Start(ctx, "refresher:Refresh")
	defer span.End()

	if creds.RefreshToken == "" {
		span.SetStatus(codes.Error, "no refresh token")
		return creds, fmt.Errorf("%w: no refresh token stored", sheetfeed.ErrReauthRequired)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token refresh failed")
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return creds, fmt.Errorf("%w: %v", sheetfeed.ErrReauthRequired, err)
		}
		return creds, fmt.Errorf("%w: token refresh: %v", sheetfeed.ErrAuth, err)
	}
	if tok.TokenType != "Bearer" {
		span.SetStatus(codes.Error, "unexpected token type")
		return creds, fmt.Errorf("%w: token endpoint returned token_type %q, want Bearer", sheetfeed.ErrProtocol, tok.TokenType)
	}

	creds.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		creds.RefreshToken = tok.RefreshToken
	}
	return creds, nil
}
