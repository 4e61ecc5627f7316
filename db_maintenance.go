package main

import (
	"log"
	"time"
)

// CleanupOldSamples deletes samples older than the retention period
func (s *SampleStore) CleanupOldSamples(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sampleTimeFormat)

	result, err := s.db.Exec("DELETE FROM samples WHERE ts < ?", cutoff)
	if err != nil {
		log.Printf("Error cleaning up old samples: %v\n", err)
		return 0, err
	}

	rowsAffected, _ := result.RowsAffected()
	log.Printf("Cleanup: deleted %d samples older than %d days\n", rowsAffected, retentionDays)
	return rowsAffected, nil
}

// VacuumDatabase reclaims unused space, run it after a cleanup
func (s *SampleStore) VacuumDatabase() error {
	log.Printf("Running VACUUM to reclaim disk space...\n")
	start := time.Now()

	if _, err := s.db.Exec("VACUUM"); err != nil {
		log.Printf("Error running VACUUM: %v\n", err)
		return err
	}

	log.Printf("VACUUM completed in %v\n", time.Since(start))
	return nil
}

// GetDatabaseStats returns row counts, sample time range and file size
func (s *SampleStore) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var rowCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&rowCount); err != nil {
		return nil, err
	}
	stats["total_samples"] = rowCount

	var oldest, newest *string
	if err := s.db.QueryRow("SELECT MIN(ts), MAX(ts) FROM samples").Scan(&oldest, &newest); err == nil && oldest != nil {
		stats["oldest_sample"] = *oldest
		stats["newest_sample"] = *newest
	}

	var pageCount, pageSize int
	s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	stats["db_size_mb"] = float64(pageCount*pageSize) / (1024 * 1024)

	var shapes int
	s.db.QueryRow("SELECT COUNT(DISTINCT normalized) FROM samples").Scan(&shapes)
	stats["unique_shapes"] = shapes

	return stats, nil
}
