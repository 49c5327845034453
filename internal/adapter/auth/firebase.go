// Package auth verifies bearer credentials against Firebase and resolves
// them to the identity the core consumes. The core itself never sees a raw
// token.
package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"poolorder/internal/config"
	"poolorder/internal/domain/identity"
)

// FirebaseVerifier implements identity.Verifier on the Firebase Admin SDK.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase app and its auth client.
func NewFirebaseVerifier(ctx context.Context, cfg config.AuthConfig) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// Verify resolves an ID token to {uid, displayName}. The display name comes
// from the token when present, falling back to the user record and finally
// the email prefix.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (identity.User, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return identity.User{}, fmt.Errorf("error verifying id token: %w", err)
	}

	name, _ := decoded.Claims["name"].(string)
	if name == "" {
		if rec, err := v.client.GetUser(ctx, decoded.UID); err == nil {
			name = rec.DisplayName
			if name == "" && rec.Email != "" {
				name = strings.SplitN(rec.Email, "@", 2)[0]
			}
		}
	}
	if name == "" {
		name = identity.Anonymous.DisplayName
	}

	return identity.User{UID: decoded.UID, DisplayName: name}, nil
}
