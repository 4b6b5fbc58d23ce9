package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/marcusgoll/cfipros-web-sub000/internal/app"
	"github.com/marcusgoll/cfipros-web-sub000/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := app.Run(cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
}
