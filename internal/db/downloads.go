package db

import (
	"database/sql"
	"time"
)

// DownloadStatus represents the state of a download
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
)

// Download represents a download record
type Download struct {
	ID             int64
	BookID         string
	Title          string
	Authors        string
	Publisher      string
	Language       string
	Extension      string
	FileSize       int64
	DownloadedSize int64
	SourceURL      string
	DownloadURL    string
	FilePath       string
	Status         DownloadStatus
	ErrorMessage   string
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

const downloadColumns = `
	id, book_id, title, authors, publisher, language, extension,
	file_size, downloaded_size, source_url, download_url, file_path,
	status, error_message, retry_count, created_at, updated_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*Download, error) {
	d := &Download{}
	var errMsg, downloadURL, filePath sql.NullString
	err := row.Scan(
		&d.ID, &d.BookID, &d.Title, &d.Authors, &d.Publisher, &d.Language, &d.Extension,
		&d.FileSize, &d.DownloadedSize, &d.SourceURL, &downloadURL, &filePath,
		&d.Status, &errMsg, &d.RetryCount, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ErrorMessage = errMsg.String
	d.DownloadURL = downloadURL.String
	d.FilePath = filePath.String
	return d, nil
}

// CreateDownload creates a new download record
func CreateDownload(d *Download) error {
	if d.Status == "" {
		d.Status = StatusPending
	}
	result, err := database.Exec(`
		INSERT INTO downloads (
			book_id, title, authors, publisher, language, extension,
			file_size, source_url, download_url, file_path, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.BookID, d.Title, d.Authors, d.Publisher, d.Language, d.Extension,
		d.FileSize, d.SourceURL, d.DownloadURL, d.FilePath, d.Status,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// GetDownload retrieves a download by ID
func GetDownload(id int64) (*Download, error) {
	return scanDownload(database.QueryRow(`SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id))
}

// GetLatestDownloadByBook retrieves the most recent download of a book
func GetLatestDownloadByBook(bookID string) (*Download, error) {
	return scanDownload(database.QueryRow(`
		SELECT `+downloadColumns+` FROM downloads
		WHERE book_id = ?
		ORDER BY id DESC LIMIT 1`, bookID))
}

// ListDownloads retrieves downloads filtered by status
func ListDownloads(status DownloadStatus, showAll bool) ([]*Download, error) {
	var rows *sql.Rows
	var err error

	switch {
	case status != "":
		rows, err = database.Query(`SELECT `+downloadColumns+` FROM downloads WHERE status = ? ORDER BY id DESC`, status)
	case showAll:
		rows, err = database.Query(`SELECT ` + downloadColumns + ` FROM downloads ORDER BY id DESC`)
	default:
		// By default, don't show completed downloads
		rows, err = database.Query(`SELECT ` + downloadColumns + ` FROM downloads WHERE status != 'completed' ORDER BY id DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// UpdateStatus updates the download status
func UpdateStatus(id int64, status DownloadStatus, errMsg string) error {
	_, err := database.Exec(`
		UPDATE downloads SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, errMsg, id)
	return err
}

// UpdateProgress updates the download progress
func UpdateProgress(id int64, downloadedSize, fileSize int64) error {
	_, err := database.Exec(`
		UPDATE downloads SET downloaded_size = ?, file_size = MAX(file_size, ?), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, downloadedSize, fileSize, id)
	return err
}

// MarkCompleted marks a download as completed
func MarkCompleted(id int64, filePath string) error {
	_, err := database.Exec(`
		UPDATE downloads SET
			status = 'completed',
			file_path = ?,
			error_message = NULL,
			completed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, filePath, id)
	return err
}

// IncrementRetry increments the retry count
func IncrementRetry(id int64) error {
	_, err := database.Exec(`
		UPDATE downloads SET retry_count = retry_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	return err
}

// DeleteDownload deletes a download record
func DeleteDownload(id int64) error {
	_, err := database.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	return err
}
