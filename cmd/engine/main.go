package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ravenshaw3/recollect/internal/config"
	"github.com/Ravenshaw3/recollect/internal/server"
	"github.com/Ravenshaw3/recollect/internal/store"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig func() config.Config
	openStore  func(config.Config) (*store.Store, error)
	notify     func(chan<- os.Signal, ...os.Signal)
	run        func(context.Context, config.Config, *store.Store, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig: config.Load,
		openStore:  openStore,
		notify:     signal.Notify,
		run:        Run,
	}
}

func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(cfg.DatabasePath)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	st, err := deps.openStore(cfg)
	if err != nil {
		log.Printf("opening local store failed: %v", err)
		return
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, st, signals, nil); err != nil {
		log.Printf("engine exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

// Run starts the control API and waits for termination signals. The session
// is restored from the persisted marker before the server accepts requests.
func Run(ctx context.Context, cfg config.Config, st *store.Store, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, st)

	if err := srv.Session.Restore(ctx); err != nil {
		log.Printf("restoring session failed: %v", err)
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ListenAddr)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Close()
			_ = st.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.App.ShutdownWithContext(shutdownCtx)
	srv.Close()
	if cerr := st.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
