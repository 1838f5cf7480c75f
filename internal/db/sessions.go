package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const defaultSession = "default"

// Session is a persisted login
type Session struct {
	Email     string
	Cookies   map[string]string
	CreatedAt time.Time
}

// SaveSession stores the login cookies, replacing any earlier session
func SaveSession(email string, cookies map[string]string) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	_, err = database.Exec(`
		INSERT INTO sessions (name, email, cookies, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			email = excluded.email,
			cookies = excluded.cookies,
			created_at = excluded.created_at`,
		defaultSession, email, string(data),
	)
	return err
}

// GetSession returns the stored session, or nil when logged out
func GetSession() (*Session, error) {
	s := &Session{}
	var email sql.NullString
	var data string
	err := database.QueryRow(`
		SELECT email, cookies, created_at FROM sessions WHERE name = ?`, defaultSession,
	).Scan(&email, &data, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Email = email.String
	if err := json.Unmarshal([]byte(data), &s.Cookies); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession removes the stored session
func DeleteSession() error {
	_, err := database.Exec(`DELETE FROM sessions WHERE name = ?`, defaultSession)
	return err
}
