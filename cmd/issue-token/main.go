package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/service"
)

// issue-token signs a token with the shared JWT secret, for operators and
// load tests that cannot go through the identity service.
func main() {
	var userFlag, roleFlag string
	var ttl time.Duration
	flag.StringVar(&userFlag, "user", "", "User ID (random when empty)")
	flag.StringVar(&roleFlag, "role", string(service.RoleStudent), "Role: student, proctor or admin")
	flag.DurationVar(&ttl, "ttl", 4*time.Hour, "Token lifetime")
	flag.Parse()

	cfg := config.Load()

	userID := uuid.New()
	if userFlag != "" {
		id, err := uuid.Parse(userFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: -user must be a valid user ID")
			os.Exit(2)
		}
		userID = id
	}

	role := service.Role(roleFlag)
	switch role {
	case service.RoleStudent, service.RoleProctor, service.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", roleFlag)
		os.Exit(2)
	}

	token, err := service.NewAuthService(cfg).IssueToken(userID, role, ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s role=%s expires_in=%s\n", userID, role, ttl)
	fmt.Println(token)
}
