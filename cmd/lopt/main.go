// Package main runs learned and baseline optimizers on small inner tasks.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	loptcmd "github.com/born-ml/lopt/internal/cmd/lopt"
)

func main() {
	cfg, err := loptcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[LOPT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loptcmd.Run(ctx, cfg, os.Stdout, log.Default()); err != nil {
		log.Fatalf("%s: %v", cfg.Command, err)
	}
}
