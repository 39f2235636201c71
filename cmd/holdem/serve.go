package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/server"
	"github.com/lox/headsup/internal/store"
)

// ServeCmd runs the websocket table server until interrupted
type ServeCmd struct {
	Addr        string `help:"Listen address, overrides the config (host:port)"`
	HistoryFile string `help:"Append every hand to this TOML file, overrides the config" type:"path"`
	Database    string `help:"Store every hand in this SQLite file or postgres:// DSN, overrides the config"`
}

func (cmd *ServeCmd) Run(a *app) error {
	addr := cmd.Addr
	if addr == "" {
		addr = a.cfg.ServerAddress()
	}
	timeout, err := a.cfg.DecisionTimeout()
	if err != nil {
		return err
	}

	cfg := server.Config{
		SmallBlind:      a.cfg.Table.SmallBlind,
		BigBlind:        a.cfg.Table.BigBlind,
		Stack:           a.cfg.Table.Stack,
		Hands:           a.cfg.Table.Hands,
		BotTrials:       a.cfg.Table.BotTrials,
		DecisionTimeout: timeout,
		Seed:            &a.seed,
		Evaluator:       a.evaluator(),
		Logger:          a.logger,
	}

	historyFile := cmd.HistoryFile
	if historyFile == "" {
		historyFile = a.cfg.Server.HistoryFile
	}
	if historyFile != "" {
		f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening hand history: %w", err)
		}
		defer func() { _ = f.Close() }()
		cfg.History = history.NewEncoder(f)
		a.logger.Info("Recording hand history", "file", historyFile)
	}

	dsn := cmd.Database
	if dsn == "" {
		dsn = a.cfg.Server.Database
	}
	if dsn != "" {
		db, err := store.Open(context.Background(), dsn, a.logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		cfg.Store = db
		a.logger.Info("Storing hands", "driver", db.Driver())
	}

	srv := server.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	readyCtx, cancelReady := context.WithTimeout(ctx, 5*time.Second)
	err = server.WaitHealthy(readyCtx, quartz.NewReal(), "http://"+l.Addr().String(), 50*time.Millisecond)
	cancelReady()
	if err != nil {
		a.logger.Warn("Server did not report healthy", "error", err)
	} else {
		fmt.Fprintf(a.stdout, "%s ws://%s/ws\n", headerStyle.Render("Listening on"), l.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
