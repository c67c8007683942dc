package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/database"
	"github.com/stemsi/exam-engine/internal/logger"
	"github.com/stemsi/exam-engine/internal/repository"
	"github.com/stemsi/exam-engine/internal/service"
	"golang.org/x/term"
)

func main() {
	var examFlag string
	var clearPassword bool
	flag.StringVar(&examFlag, "exam", "", "Exam ID")
	flag.BoolVar(&clearPassword, "clear", false, "Remove the password; new registrations wait for approval")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	examID, err := uuid.Parse(examFlag)
	if err != nil {
		fmt.Println("Error: -exam must be a valid exam ID")
		os.Exit(2)
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	password := ""
	if !clearPassword {
		fmt.Println("=== Set Exam Password ===")
		password, err = promptPassword()
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	registrations := service.NewRegistrationService(repository.NewPgStore(pool), log)
	if err := registrations.SetExamPassword(ctx, examID, password); err != nil {
		log.Error().Err(err).Str("exam_id", examID.String()).Msg("Failed to set exam password")
		pool.Close()
		os.Exit(1)
	}

	if clearPassword {
		fmt.Printf("\nSuccess! Password removed from exam %s\n", examID)
		return
	}
	fmt.Printf("\nSuccess! Password set for exam %s\n", examID)
}

// promptPassword reads the password twice without echo.
func promptPassword() (string, error) {
	fmt.Print("Enter Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(first) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters")
	}

	fmt.Print("Confirm Password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
