package main

import (
	"log"

	"github.com/aussiebroadwan/storefront/internal/identity/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize identity service: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("identity service error: %v", err)
	}
}
