package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/packrat-ai/packrat/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledEngineSkipsStatusServer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Enabled = false
	cfg.StatusBind = "127.0.0.1:0"

	e := New(cfg, nil, quietLogger())
	defer e.Close()

	if e.status != nil {
		t.Error("disabled engine started a status server")
	}
}

func TestNoBindAddressSkipsStatusServer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.StatusBind = ""

	e := New(cfg, nil, quietLogger())
	defer e.Close()

	if e.status != nil {
		t.Error("status server started without a bind address")
	}
}
