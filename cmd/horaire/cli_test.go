package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horaire/internal/errors"
	appLog "horaire/internal/log"
)

type workspace struct {
	dir   string
	rooms string
	mocks string
	out   string
}

// newWorkspace lays out a room list and a mock directory with one event
// today (UTC) in room A101.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	appLog.SetOutput(io.Discard)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	dir := t.TempDir()
	ws := &workspace{
		dir:   dir,
		rooms: filepath.Join(dir, "salles.ini"),
		mocks: filepath.Join(dir, "mocks"),
		out:   filepath.Join(dir, "out", "horaire.xml"),
	}
	require.NoError(t, os.MkdirAll(ws.mocks, 0o755))
	require.NoError(t, os.WriteFile(ws.rooms, []byte("# salles\nsalle1=A101\n"), 0o644))

	day := time.Now().UTC().Format("20060102")
	feed := fmt.Sprintf(`{"feed":[{"location":"A101","dtstart":"%sT0900","dtend":"%sT1030","summary":"Algorithmique"}]}`, day, day)
	require.NoError(t, os.WriteFile(filepath.Join(ws.mocks, "A101.json"), []byte(feed), 0o644))
	return ws
}

func (ws *workspace) baseArgs(cmd ...string) []string {
	args := append([]string{"horaire"}, cmd...)
	return append(args,
		"--rooms", ws.rooms,
		"--mock-dir", ws.mocks,
		"--out", ws.out,
		"--shift-hours", "0",
		"--timezone", "",
	)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(args)
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	ws := newWorkspace(t)

	stdout, err := runApp(t, ws.baseArgs("generate")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+ws.out+" (1 events, 1 days)")

	data, err := os.ReadFile(ws.out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<TimeSTART>0900</TimeSTART><TimeEND>1030</TimeEND><SUMMARY>Algorithmique</SUMMARY>")
}

func TestDefaultActionIsGenerate(t *testing.T) {
	ws := newWorkspace(t)

	args := []string{"horaire", "--salles", ws.rooms, "--mock-dir", ws.mocks, "--out", ws.out, "--shift-hours", "0", "--timezone", "", "--include-empty-days", "--eol", "crlf"}
	_, err := runApp(t, args...)
	require.NoError(t, err)

	data, err := os.ReadFile(ws.out)
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(string(data), "<MAIN.DayOfWeek "))
	assert.Contains(t, string(data), "</dataentry>\r\n")
}

func TestGenerateEmptyRoomList(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.rooms, []byte("# none\n"), 0o644))

	_, err := runApp(t, ws.baseArgs("generate")...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyRoomList))
}

func TestGenerateRejectsBadEOL(t *testing.T) {
	ws := newWorkspace(t)

	_, err := runApp(t, append(ws.baseArgs("generate"), "--eol", "cr")...)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestGenerateMissingSource(t *testing.T) {
	ws := newWorkspace(t)

	_, err := runApp(t, "horaire", "generate", "--rooms", ws.rooms, "--out", ws.out, "--api", "")
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestGenerateFromConfigFile(t *testing.T) {
	ws := newWorkspace(t)
	cfgPath := filepath.Join(ws.dir, "horaire.yaml")
	yaml := fmt.Sprintf("rooms: %s\noutput: %s\nmock_dir: %s\nshift_hours: 0\ntimezone: \"\"\n", ws.rooms, ws.out, ws.mocks)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	otherOut := filepath.Join(ws.dir, "flag.xml")
	stdout, err := runApp(t, "horaire", "generate", "--config", cfgPath, "--out", otherOut)
	require.NoError(t, err)
	assert.Contains(t, stdout, otherOut)

	_, err = os.Stat(otherOut)
	assert.NoError(t, err)
	_, err = os.Stat(ws.out)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateUploadFailureKeepsSuccess(t *testing.T) {
	ws := newWorkspace(t)
	creds := filepath.Join(ws.dir, "config.ini")
	require.NoError(t, os.WriteFile(creds, []byte("[upload]\nurl = sftp://nowhere\n"), 0o600))

	_, err := runApp(t, append(ws.baseArgs("generate"), "--upload", creds)...)
	require.NoError(t, err)
	_, err = os.Stat(ws.out)
	assert.NoError(t, err)
}

func TestGenerateUploadsOverWebDAV(t *testing.T) {
	ws := newWorkspace(t)

	var mu sync.Mutex
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	creds := filepath.Join(ws.dir, "config.ini")
	require.NoError(t, os.WriteFile(creds, []byte("[upload]\nurl = "+srv.URL+"/dav/\n"), 0o600))

	_, err := runApp(t, append(ws.baseArgs("generate"), "--upload", creds)...)
	require.NoError(t, err)

	data, err := os.ReadFile(ws.out)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/dav/horaire.xml", gotPath)
	assert.Equal(t, data, gotBody)
}

func TestUploadCommand(t *testing.T) {
	ws := newWorkspace(t)
	file := filepath.Join(ws.dir, "horaire.xml")
	require.NoError(t, os.WriteFile(file, []byte("<dataentry>\n</dataentry>\n"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	creds := filepath.Join(ws.dir, "config.ini")
	require.NoError(t, os.WriteFile(creds, []byte("[upload]\nurl = "+srv.URL+"/\n"), 0o600))

	stdout, err := runApp(t, "horaire", "upload", "--credentials", creds, file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "uploaded "+file)

	_, err = runApp(t, "horaire", "upload", "--credentials", creds)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestRoomsCommand(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.rooms, []byte("salle2=B202\n\n# skip\nsalle1 = A101\n"), 0o644))

	stdout, err := runApp(t, "horaire", "rooms", "--salles", ws.rooms)
	require.NoError(t, err)
	assert.Equal(t, "B202\nA101\n", stdout)

	require.NoError(t, os.WriteFile(ws.rooms, []byte(""), 0o644))
	_, err = runApp(t, "horaire", "rooms", "--rooms", ws.rooms)
	assert.True(t, errors.Is(err, errors.ErrEmptyRoomList))
}

func TestWatchRejectsBadSchedule(t *testing.T) {
	ws := newWorkspace(t)

	_, err := runApp(t, append(ws.baseArgs("watch"), "--schedule", "every tuesday")...)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestLogLevelFromConfig(t *testing.T) {
	ws := newWorkspace(t)
	t.Cleanup(func() { appLog.SetLevel(appLog.LevelInfo) })
	cfgPath := filepath.Join(ws.dir, "horaire.yaml")
	yaml := fmt.Sprintf("rooms: %s\noutput: %s\nmock_dir: %s\nlog_level: error\n", ws.rooms, ws.out, ws.mocks)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	_, err := runApp(t, "horaire", "generate", "--config", cfgPath, "--timezone", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.Warn("probe")
	assert.Empty(t, buf.String())
}
