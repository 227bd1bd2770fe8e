package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "horaire/internal/log"
)

const (
	UserAgent      = "HoraireFetcher/1.0"
	DefaultTimeout = 30 * time.Second

	// maxBody bounds a single room response.
	maxBody = 32 << 20
)

// Kind names where a room's payload came from.
type Kind string

const (
	KindMockDir Kind = "mock-dir"
	KindMock    Kind = "mock"
	KindAPI     Kind = "api"
)

// Result is the raw payload for one room.
type Result struct {
	Room   string
	Kind   Kind
	Origin string // file path or redacted URL
	Body   []byte
}

// Options configures a Fetcher. Precedence when several are set:
// MockDir > Mock > API.
type Options struct {
	API     string
	Mock    string
	MockDir string
	Timeout time.Duration
	Client  *http.Client
}

// Fetcher retrieves one room's feed at a time.
type Fetcher struct {
	opts   Options
	client *http.Client
}

// New validates opts and returns a Fetcher.
func New(opts Options) (*Fetcher, error) {
	if opts.API == "" && opts.Mock == "" && opts.MockDir == "" {
		return nil, errors.New("no data source configured")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{opts: opts, client: client}, nil
}

// Fetch returns the payload for room from the highest-precedence source.
// A non-JSON API response is wrapped as {"horaire":{"ICAL":<text>}} so the
// normalizer sees it as a nested feed.
func (f *Fetcher) Fetch(ctx context.Context, room string) (Result, error) {
	switch {
	case f.opts.MockDir != "":
		return f.fromDir(room)
	case f.opts.Mock != "":
		body, err := os.ReadFile(f.opts.Mock)
		if err != nil {
			return Result{}, err
		}
		return Result{Room: room, Kind: KindMock, Origin: f.opts.Mock, Body: body}, nil
	default:
		return f.fromAPI(ctx, room)
	}
}

func (f *Fetcher) fromDir(room string) (Result, error) {
	// Room names are used as file names; refuse anything that walks out.
	if room == "" || strings.ContainsAny(room, `/\`) || room == "." || room == ".." {
		return Result{}, fmt.Errorf("room %q cannot be used as a file name", room)
	}
	for _, ext := range []string{".json", ".txt"} {
		path := filepath.Join(f.opts.MockDir, room+ext)
		body, err := os.ReadFile(path)
		if err == nil {
			return Result{Room: room, Kind: KindMockDir, Origin: path, Body: body}, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Result{}, err
		}
	}
	return Result{}, fmt.Errorf("no %s.json or %s.txt in %s", room, room, f.opts.MockDir)
}

func (f *Fetcher) fromAPI(ctx context.Context, room string) (Result, error) {
	form := url.Values{}
	form.Set("action", "getHoraireSalle")
	form.Set("codeSalle", room)

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.API, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)

	origin := redactURL(f.opts.API)
	appLog.Debug("room fetch start", "room", room, "url", origin)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, errors.New(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{}, err
	}
	if !json.Valid(body) {
		body, err = wrapRaw(body)
		if err != nil {
			return Result{}, err
		}
	}

	appLog.Debug("room fetch success", "room", room, "url", origin, "status", resp.StatusCode, "bytes", len(body))
	return Result{Room: room, Kind: KindAPI, Origin: origin, Body: body}, nil
}

func wrapRaw(text []byte) ([]byte, error) {
	return json.Marshal(map[string]map[string]string{
		"horaire": {"ICAL": string(text)},
	})
}

// redactURL keeps scheme and host only, hiding paths and query strings.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "api://...(redacted)"
	}
	if parsed.Path == "" && parsed.RawQuery == "" {
		return parsed.Scheme + "://" + parsed.Host
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
