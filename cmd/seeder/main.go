// cmd/seeder/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/wellpath/wellpath-backend/internal/config"
	"github.com/wellpath/wellpath-backend/internal/db"
)

func main() {
	_ = godotenv.Load()

	conn, err := db.Connect(config.Load())
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedFiles := []string{
		"migrations/schema.sql",
		"seed/device_tokens.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
