package google

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// ErrMissingApplicationCredentials is returned when the OAuth client
	// secret file is not present at the configured path.
	ErrMissingApplicationCredentials = errors.New("OAuth application credentials not found")

	// ErrAuthExpired is returned when a stored refresh token is rejected.
	// The account has to be authorized again interactively.
	ErrAuthExpired = errors.New("stored credentials expired or were revoked")
)

// ReadApplicationCredentials reads the OAuth client secret file downloaded
// from the Google Cloud Console.
func ReadApplicationCredentials(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no file at %s; download an OAuth client (Desktop app) JSON from the Google Cloud Console and save it there",
				ErrMissingApplicationCredentials, path)
		}
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	return data, nil
}

// LoadOAuthConfig builds an oauth2 config from the client secret file.
func LoadOAuthConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := ReadApplicationCredentials(path)
	if err != nil {
		return nil, err
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return conf, nil
}
