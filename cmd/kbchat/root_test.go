package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewfx/gaipl-booleans/internal/config"
)

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--version"})

	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "dev (commit: unknown")
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedding:
  endpoint: https://example.openai.azure.com/
  api_key: k
  deployment: ada
vector_index:
  pinecone:
    api_key: pc
`), 0o600))
	t.Setenv("PORT", "")
	t.Setenv("KB_ARTICLES_PATH", "")

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--port", "8081", "--articles", "other.json"}))

	cfg, err := loadConfig(cmd, &options{configPath: path, port: 8081, articlesPath: "other.json"})
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.API.Port)
	assert.Equal(t, "other.json", cfg.KnowledgeBase.ArticlesPath)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

type fakeServer struct {
	started chan struct{}
	stopped bool
	release chan struct{}
	err     error
}

func (f *fakeServer) Start() error {
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-f.release
	return http.ErrServerClosed
}

func (f *fakeServer) Stop(context.Context) error {
	f.stopped = true
	close(f.release)
	return nil
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := &fakeServer{started: make(chan struct{}), release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, srv, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	<-srv.started
	cancel()

	require.NoError(t, <-done)
	assert.True(t, srv.stopped)
}

func TestRunReturnsStartError(t *testing.T) {
	boom := errors.New("address already in use")
	srv := &fakeServer{started: make(chan struct{}), release: make(chan struct{}), err: boom}

	err := run(context.Background(), srv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, boom)
	assert.False(t, srv.stopped)
}
