package main

import (
	"log"

	"github.com/aussiebroadwan/storefront/internal/storefront/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize storefront: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("storefront error: %v", err)
	}
}
