package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"promptpix/internal/adapter/repo"
	"promptpix/internal/domain"
	"promptpix/internal/sqlinline"
)

const maxLimit = 100

func main() {
	var (
		limitFlag int
		dsnFlag   string
	)
	flag.IntVar(&limitFlag, "limit", 20, "number of most recent generations to print (max 100)")
	flag.StringVar(&dsnFlag, "dsn", "", "postgres connection string (defaults to DATABASE_URL)")
	flag.Parse()

	_ = godotenv.Load()

	dsn := strings.TrimSpace(dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		exitWithError(errors.New("DATABASE_URL is required via -dsn or environment"))
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := listRecent(ctx, db, clampLimit(limitFlag))
	if err != nil {
		exitWithError(err)
	}
	if err := writeJSONLines(os.Stdout, records); err != nil {
		exitWithError(err)
	}
}

func clampLimit(n int) int {
	if n <= 0 || n > maxLimit {
		return maxLimit
	}
	return n
}

func listRecent(ctx context.Context, db *sql.DB, limit int) ([]domain.GenerationRecord, error) {
	rows, err := db.QueryContext(ctx, sqlinline.QSelectRecentGenerations, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []domain.GenerationRecord
	for rows.Next() {
		rec, err := repo.ScanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

func writeJSONLines(w io.Writer, records []domain.GenerationRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "generations: %v\n", err)
	os.Exit(1)
}
