package zone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/bastiangx/dotsearch/pkg/transport"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// DefaultAuthURL issues CZDS access tokens.
	DefaultAuthURL = "https://account-api.icann.org/api/authenticate"
	// DefaultZoneURL is the .com zone file on CZDS.
	DefaultZoneURL = "https://czds-api.icann.org/czds/downloads/com.zone"
)

// ErrCredentialsRequired is returned by Download without a username or password.
var ErrCredentialsRequired = errors.New("zone download needs a username and password")

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string `json:"accessToken"`
}

// DefaultDownloadPath names the filtered output for a zone URL,
// e.g. com.zone.filtered.txt.gz.
func DefaultDownloadPath(zoneURL string) string {
	name := "zone"
	if u, err := url.Parse(zoneURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return DefaultOutputPath(name)
}

// Download logs in at authURL, streams the zone file at zoneURL through
// Filter and writes the names to a gzip file at out. The zone file is never
// stored unfiltered. An empty out uses DefaultDownloadPath.
func Download(ctx context.Context, authURL, zoneURL, user, pass, out string) (string, int, error) {
	if out == "" {
		out = DefaultDownloadPath(zoneURL)
	}
	if user == "" || pass == "" {
		return out, 0, ErrCredentialsRequired
	}

	token, err := fetchAccessToken(ctx, authURL, user, pass)
	if err != nil {
		return out, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zoneURL, nil)
	if err != nil {
		return out, 0, fmt.Errorf("building zone request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	id := uuid.NewString()
	req.Header.Set(transport.RequestIDHeader, id)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, 0, fmt.Errorf("downloading zone file: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return out, 0, err
	}

	log.Debugf("Streaming zone file %s (id %s, %d bytes) into %s", zoneURL, id, resp.ContentLength, out)
	n, err := filterToFile(resp.Body, out)
	if err != nil {
		return out, n, fmt.Errorf("filtering %s: %w", zoneURL, err)
	}
	return out, n, nil
}

func fetchAccessToken(ctx context.Context, authURL, user, pass string) (string, error) {
	body, err := json.Marshal(authRequest{Username: user, Password: pass})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticating: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("authenticating: %w", err)
	}

	var auth authResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&auth); err != nil {
		return "", fmt.Errorf("decoding auth response: %w", err)
	}
	if auth.AccessToken == "" {
		return "", errors.New("auth response has no access token")
	}
	return auth.AccessToken, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &transport.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
