package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// sampleTimeFormat is fixed width so that timestamps sort as text
const sampleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SampleStore writes raw samples and the final summary to a SQLite file.
// It is an audit trail: nothing is read back when the profiler restarts.
type SampleStore struct {
	db      *sql.DB
	dbPath  string
	verbose bool
}

// OpenSampleStore opens or creates the database and ensures the tables exist
func OpenSampleStore(dbPath string, verbose bool) (*SampleStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sample store: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &SampleStore{db: db, dbPath: dbPath, verbose: verbose}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sample store %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SampleStore) initDB() error {
	// Set SQLite performance optimizations
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set pragma during init: %v\n", err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			ts TEXT NOT NULL,
			query TEXT NOT NULL,
			normalized TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_ts ON samples(ts);`,
		`CREATE TABLE IF NOT EXISTS summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			rank INTEGER NOT NULL,
			n INTEGER NOT NULL,
			normalized TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordTick inserts the samples of one tick in a single transaction
func (s *SampleStore) RecordTick(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if s.verbose {
		defer func(start time.Time) {
			log.Printf("    RecordTick of %d samples took %v", len(samples), time.Since(start))
		}(time.Now())
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (tick, ts, query, normalized) VALUES (?, ?, ?, ?);`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	errorCount := 0
	for _, sample := range samples {
		ts := sample.Timestamp.UTC().Format(sampleTimeFormat)
		if _, err := stmt.Exec(sample.Tick, ts, sample.Query, sample.Normalized); err != nil {
			log.Printf("Error inserting sample: %v\n", err)
			errorCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}
	if errorCount > 0 {
		log.Printf("Warning: %d errors occurred while recording tick %d\n", errorCount, samples[0].Tick)
	}
	return nil
}

// Close stores the ranked summary and closes the database
func (s *SampleStore) Close(total []QueryCount) error {
	defer s.db.Close()

	log.Printf("=== Writing summary of %d queries to database: %s ===\n", len(total), s.dbPath)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	ts := time.Now().UTC().Format(sampleTimeFormat)
	for rank, qc := range total {
		if _, err := tx.Exec(`INSERT INTO summaries (ts, rank, n, normalized) VALUES (?, ?, ?, ?);`, ts, rank+1, qc.Count, qc.Query); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert summary: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summary: %w", err)
	}
	return nil
}

// QuerySamples returns the most recent samples, newest first
func (s *SampleStore) QuerySamples(limit int) ([]Sample, error) {
	rows, err := s.db.Query("SELECT tick, ts, query, normalized FROM samples ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		var ts string
		if err := rows.Scan(&sample.Tick, &ts, &sample.Query, &sample.Normalized); err != nil {
			log.Printf("Error scanning row: %v\n", err)
			continue
		}
		sample.Timestamp, _ = time.Parse(sampleTimeFormat, ts)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
