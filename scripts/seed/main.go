// Command seed provisions the first admin account so a fresh database can be
// administered through the API.
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/events-api/pkg/config"
	"github.com/campushub/events-api/pkg/database"
)

func main() {
	var (
		email    string
		fullName string
		password string
	)

	flag.StringVar(&email, "email", "admin@example.com", "admin email")
	flag.StringVar(&fullName, "name", "Administrator", "admin full name")
	flag.StringVar(&password, "password", "", "admin password (required)")
	flag.Parse()

	if password == "" {
		log.Fatal("a -password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	now := time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'ADMIN', TRUE, $5, $5)
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(email)), string(hash), fullName, now)
	if err != nil {
		log.Fatalf("failed to insert admin: %v", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		log.Printf("admin %s already exists, nothing to do", email)
		return
	}
	log.Printf("admin %s created", email)
}
