// Package main runs the Lambda handlers behind a local gin server for widget development.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/magicman/marv/internal/app"
	"github.com/magicman/marv/internal/config"
	"github.com/magicman/marv/internal/logger"
)

func main() {
	addr := flag.String("addr", "", "listen address (defaults to DEV_ADDR)")
	flag.Parse()

	_ = godotenv.Load()

	env := config.Load()
	lg, err := logger.New(env.LogMode)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	a, err := app.New(context.Background(), env, lg.With("function", "devserver"))
	if err != nil {
		lg.Fatal("init failed", "error", err.Error())
	}

	listen := env.DevAddr
	if *addr != "" {
		listen = *addr
	}
	lg.Info("dev server listening", "addr", listen)
	if err := newRouter(a).Run(listen); err != nil {
		lg.Fatal("server stopped", "error", err.Error())
	}
}
