package db

import (
	"encoding/json"
	"time"
)

// SearchMode tells which search endpoint a history entry used
type SearchMode string

const (
	ModeSearch   SearchMode = "search"
	ModeFullText SearchMode = "fulltext"
)

// SearchHistory represents a saved search query
type SearchHistory struct {
	ID          int64
	Query       string
	Mode        SearchMode
	ResultCount int
	Filters     SearchFilters
	CreatedAt   time.Time
}

// SearchFilters stores the filters used in a search
type SearchFilters struct {
	Exact      bool     `json:"exact,omitempty"`
	YearFrom   int      `json:"year_from,omitempty"`
	YearTo     int      `json:"year_to,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Match      string   `json:"match,omitempty"`
}

// AddSearchHistory adds a search to history
func AddSearchHistory(query string, mode SearchMode, resultCount int, filters SearchFilters) error {
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		filtersJSON = []byte("{}")
	}
	if mode == "" {
		mode = ModeSearch
	}

	_, err = database.Exec(`
		INSERT INTO search_history (query, mode, result_count, filters)
		VALUES (?, ?, ?, ?)`,
		query, mode, resultCount, string(filtersJSON),
	)
	return err
}

// GetSearchHistory retrieves recent search history
func GetSearchHistory(limit int) ([]*SearchHistory, error) {
	return querySearchHistory(`
		SELECT id, query, mode, result_count, filters, created_at
		FROM search_history
		ORDER BY id DESC
		LIMIT ?`, limit)
}

// GetUniqueSearchHistory retrieves unique recent searches (no duplicates)
func GetUniqueSearchHistory(limit int) ([]*SearchHistory, error) {
	return querySearchHistory(`
		SELECT id, query, mode, result_count, filters, created_at
		FROM search_history
		WHERE id IN (
			SELECT MAX(id) FROM search_history GROUP BY query, mode
		)
		ORDER BY id DESC
		LIMIT ?`, limit)
}

func querySearchHistory(query string, limit int) ([]*SearchHistory, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := database.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*SearchHistory
	for rows.Next() {
		h := &SearchHistory{}
		var filtersJSON string
		err := rows.Scan(&h.ID, &h.Query, &h.Mode, &h.ResultCount, &filtersJSON, &h.CreatedAt)
		if err != nil {
			return nil, err
		}

		// Parse filters JSON
		if filtersJSON != "" {
			json.Unmarshal([]byte(filtersJSON), &h.Filters)
		}

		history = append(history, h)
	}
	return history, rows.Err()
}

// ClearSearchHistory removes all search history
func ClearSearchHistory() error {
	_, err := database.Exec(`DELETE FROM search_history`)
	return err
}

// DeleteSearchHistoryOlderThan removes history older than the given duration
func DeleteSearchHistoryOlderThan(d time.Duration) error {
	cutoff := time.Now().UTC().Add(-d).Format("2006-01-02 15:04:05")
	_, err := database.Exec(`DELETE FROM search_history WHERE created_at < ?`, cutoff)
	return err
}
