package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/levelup-tools/levelup/pkg/api"
	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/config"
	"github.com/levelup-tools/levelup/pkg/constants"
	"github.com/levelup-tools/levelup/pkg/engine"
	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/mod"
	"github.com/levelup-tools/levelup/pkg/queue"
	"github.com/levelup-tools/levelup/pkg/reposvc"
	"github.com/levelup-tools/levelup/pkg/result"
	"github.com/levelup-tools/levelup/pkg/symbols"
	"github.com/levelup-tools/levelup/pkg/validator"
)

var log = logger.New("cmd")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the refactoring worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	compilers := compiler.NewRegistry()
	if cfg.MSVCPath != "" {
		compilers.Register(&compiler.MSVC{BinPath: cfg.MSVCPath})
	}
	if cfg.ClangPath != "" {
		compilers.Register(&compiler.Clang{BinPath: cfg.ClangPath})
	}

	validators := validator.NewRegistry()
	validators.Register(validator.NewO0())
	validators.Register(validator.NewO3())

	mods := mod.NewRegistry()
	mods.Register(mod.AddOverride{})
	mods.Register(mod.RemoveInline{})

	defaultCompiler := "clang"
	if cfg.ClangPath == "" {
		defaultCompiler = "msvc"
	}

	extractor := &symbols.DoxygenExtractor{BinPath: cfg.DoxygenBin}
	eng := engine.New(cfg.Workspace, extractor, defaultCompiler, compilers, validators, mods)
	eng.EnableBatching = true

	store := result.NewStore()
	q := queue.New(eng, store)
	q.Start()
	defer q.Stop()

	reposPath := filepath.Join(cfg.Workspace, constants.ReposFile)
	repos, err := reposvc.Open(reposPath)
	if err != nil {
		return err
	}
	if err := repos.Watch(); err != nil {
		log.Printf("repos.json watch disabled: %v", err)
	} else {
		defer repos.Close()
	}

	server := &api.Server{
		Queue:      q,
		Results:    store,
		Repos:      repos,
		Mods:       mods,
		Validators: validators,
		Compilers:  compilers,
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Printf("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
