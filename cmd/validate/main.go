// Package main serves POST /validate: material and damage extraction for the user to confirm.
package main

import (
	"context"
	"log"

	"github.com/magicman/marv/internal/app"
	"github.com/magicman/marv/internal/config"
	"github.com/magicman/marv/internal/httpx"
	"github.com/magicman/marv/internal/logger"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	env := config.Load()
	lg, err := logger.New(env.LogMode)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	a, err := app.New(context.Background(), env, lg.With("function", "validate"))
	if err != nil {
		lg.Fatal("init failed", "error", err.Error())
	}
	lambda.Start(httpx.Recover(a.Validate))
}
