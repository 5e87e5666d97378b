package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ravenshaw3/recollect/internal/adventure"
	"github.com/Ravenshaw3/recollect/internal/config"
	"github.com/Ravenshaw3/recollect/internal/store"
)

var errListen = errors.New("listen failed")

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ListenAddr:           "127.0.0.1:0",
		DatabasePath:         filepath.Join(t.TempDir(), "recollect.db"),
		RemoteProfile:        "local",
		SampleMinIntervalSec: 10,
		SampleMinDistanceM:   20,
	}
}

func openTestStore(t *testing.T, cfg config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func TestRunHandlesSignal(t *testing.T) {
	cfg := testConfig(t)
	st := openTestStore(t, cfg)
	signals := make(chan os.Signal, 1)

	listenCalled := false
	listen := func(_ *fiber.App, _ string) error {
		listenCalled = true
		return nil
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		signals <- syscall.SIGINT
	}()

	if err := Run(context.Background(), cfg, st, signals, listen); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !listenCalled {
		t.Fatalf("expected listen to be called")
	}
}

func TestRunContextCancel(t *testing.T) {
	cfg := testConfig(t)
	st := openTestStore(t, cfg)
	signals := make(chan os.Signal, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, cfg, st, signals, func(_ *fiber.App, _ string) error { return nil }); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunListenError(t *testing.T) {
	cfg := testConfig(t)
	st := openTestStore(t, cfg)
	signals := make(chan os.Signal, 1)

	err := Run(context.Background(), cfg, st, signals, func(_ *fiber.App, _ string) error {
		return errListen
	})
	if !errors.Is(err, errListen) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunRestoresSessionBeforeListen(t *testing.T) {
	cfg := testConfig(t)

	st := openTestStore(t, cfg)
	adv := adventure.Adventure{Name: "Carried Over"}
	if err := st.SaveAdventure(context.Background(), &adv); err != nil {
		t.Fatalf("save adventure: %v", err)
	}
	if err := st.SetCurrentAdventureID(context.Background(), adv.ID); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	st = openTestStore(t, cfg)
	signals := make(chan os.Signal, 1)
	restored := make(chan struct{})

	listen := func(app *fiber.App, _ string) error {
		// By listen time the session must already be current.
		req := httptest.NewRequest("GET", "/session/current", nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Errorf("probe current session: %v", err)
		} else if resp.StatusCode != 200 {
			t.Errorf("expected restored session, got %d", resp.StatusCode)
		}
		close(restored)
		return nil
	}

	go func() {
		<-restored
		signals <- syscall.SIGTERM
	}()

	if err := Run(context.Background(), cfg, st, signals, listen); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRealMainStoreOpenFailure(t *testing.T) {
	ran := false
	deps := mainDeps{
		loadConfig: func() config.Config { return config.Config{} },
		openStore: func(config.Config) (*store.Store, error) {
			return nil, errors.New("disk gone")
		},
		notify: func(chan<- os.Signal, ...os.Signal) {},
		run: func(context.Context, config.Config, *store.Store, <-chan os.Signal, ListenFunc) error {
			ran = true
			return nil
		},
	}
	realMain(deps)
	if ran {
		t.Fatal("expected run to be skipped when the store cannot be opened")
	}
}

func TestRealMainWiresDeps(t *testing.T) {
	cfg := testConfig(t)
	var gotStore *store.Store
	deps := mainDeps{
		loadConfig: func() config.Config { return cfg },
		openStore: func(c config.Config) (*store.Store, error) {
			st, err := store.Open(c.DatabasePath)
			gotStore = st
			return st, err
		},
		notify: func(chan<- os.Signal, ...os.Signal) {},
		run: func(_ context.Context, c config.Config, st *store.Store, _ <-chan os.Signal, _ ListenFunc) error {
			if c.DatabasePath != cfg.DatabasePath {
				t.Errorf("unexpected config: %+v", c)
			}
			if st != gotStore {
				t.Error("expected the opened store to be passed through")
			}
			return st.Close()
		},
	}
	realMain(deps)
}
