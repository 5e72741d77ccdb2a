package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/database"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questions := repository.NewQuestionRepository(pool)
	sample := datasource.SampleQuestions()

	fmt.Printf("=== Seeding %d Sample Questions ===\n", len(sample))

	// Sample ids are stable, so rerunning only fills in what is missing.
	created, skipped := 0, 0
	for i := range sample {
		q := &sample[i]
		ok, err := questions.CreateIfAbsent(ctx, q)
		if err != nil {
			log.Fatal().Err(err).Str("question_id", q.ID.String()).Msg("Failed to seed question")
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}

	counts, err := questions.CountByCategory(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count questions")
	}

	fmt.Printf("Created %d, skipped %d existing.\n", created, skipped)
	for category, n := range counts {
		fmt.Printf("  %-10s %d\n", category, n)
	}
}
