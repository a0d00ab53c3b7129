package google

import (
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// clientOptions authenticates a service with the caller's credential. The
// credential is used as is; refreshing is the AuthProvider's job.
func clientOptions(cred *entity.Credential, endpoint string) ([]option.ClientOption, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, errors.New("credential has no access token")
	}

	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(TokenFromCredential(cred))),
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(endpoint, "/")+"/"))
	}
	return opts, nil
}

// escapeQuery escapes a literal for use inside a single-quoted Drive query string
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
