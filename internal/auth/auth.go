package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const spreadsheetScope = "https://www.googleapis.com/auth/spreadsheets"

type Options struct {
	CredentialsFile string
	TokenFile       string
}

// Client returns an authenticated HTTP client for the Sheets API.
// The token is cached in Options.TokenFile and reused across runs; on
// first use the interactive consent flow runs against stdin/stdout.
func Client(ctx context.Context, opts Options) (*http.Client, error) {
	b, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", opts.CredentialsFile, err)
	}

	cfg, err := google.ConfigFromJSON(b, spreadsheetScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}

	tok, err := tokenFromFile(opts.TokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(opts.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := &persistingSource{
		path: opts.TokenFile,
		src:  cfg.TokenSource(ctx, tok),
		last: tok,
	}

	return oauth2.NewClient(ctx, src), nil
}

// persistingSource writes refreshed tokens back to the cache file so
// the next run does not repeat the refresh.
type persistingSource struct {
	path string
	src  oauth2.TokenSource
	last *oauth2.Token
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}

	if p.last == nil || tok.AccessToken != p.last.AccessToken {
		if err := saveToken(p.path, tok); err != nil {
			slog.Warn("failed to persist refreshed token", "error", err)
		}
		p.last = tok
	}

	return tok, nil
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}

	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}

	// Temp file first so a crash never leaves a truncated token.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return os.Rename(tmp, path)
}
