package main

import (
	"context"
	"log"
	"os"

	"github.com/mpetrovs/scribebot/internal/bot"
	"github.com/mpetrovs/scribebot/internal/bot/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app, err := bot.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
