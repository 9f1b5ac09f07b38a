package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// challenge is the parsed content of a WWW-Authenticate: Bearer header.
type challenge struct {
	realm   string
	service string
	scope   string
}

// parseChallenge parses a "Bearer realm=\"…\",service=\"…\",scope=\"…\""
// header value, tolerant of bare (unquoted) values and extra whitespace
// around the commas. Grounded in style on regclient/regclient's
// pkg/auth.ParseAuthHeader state machine, simplified to a single-pass
// key=value scanner since this gateway only ever needs the Bearer scheme.
func parseChallenge(header string) (challenge, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return challenge{}, ErrAuthChallengeInvalid
	}
	rest := strings.TrimPrefix(header, prefix)

	fields := make(map[string]string)
	for _, part := range splitChallengeFields(rest) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		fields[key] = val
	}

	c := challenge{realm: fields["realm"], service: fields["service"], scope: fields["scope"]}
	if c.realm == "" || c.service == "" || c.scope == "" {
		return challenge{}, ErrAuthChallengeInvalid
	}
	return c, nil
}

// splitChallengeFields splits on commas that are not inside a quoted value,
// since scope values can themselves contain no commas in practice but
// defensive splitting avoids breaking on a quoted realm URL with a query
// string.
func splitChallengeFields(s string) []string {
	var fields []string
	var inQuotes bool
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

// tokenResponse is the token endpoint's JSON body; only the token field
// matters, under either of its two conventional names.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// exchangeToken performs the Basic-authenticated GET against c.realm,
// passing service/scope as query parameters, per §4.6. username is always
// the literal string "token"; password is the configured GitHub token.
func exchangeToken(ctx context.Context, client *http.Client, c challenge, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.realm, nil)
	if err != nil {
		return "", fmt.Errorf("registry: building token request: %w", err)
	}
	q := req.URL.Query()
	q.Set("service", c.service)
	q.Set("scope", c.scope)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Basic "+basicAuth("token", password))

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrAuthFailed
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading token response: %v", ErrAuthFailed, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrAuthFailed, err)
	}

	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", ErrAuthFailed
	}
	return token, nil
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
