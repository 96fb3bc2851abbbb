// Package reliability covers database backups: nightly local snapshots
// plus tar.gz archives uploaded to an S3-compatible bucket.
package reliability

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/database"
)

// How many nightly snapshot directories to keep locally.
const nightlyBackupsToKeep = 7

// BackupService creates local database snapshots with VACUUM INTO and
// verifies them before rotation.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(databases map[string]*database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// GetDatabaseNames returns the names of the managed databases, sorted.
func (s *BackupService) GetDatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NightlyBackup snapshots every database into backups/nightly/YYYY-MM-DD/
// and rotates old snapshot directories.
func (s *BackupService) NightlyBackup() error {
	s.log.Info().Msg("Starting nightly backup")
	startTime := time.Now()

	nightlyDir := filepath.Join(s.backupDir, "nightly", time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(nightlyDir, 0755); err != nil {
		return fmt.Errorf("failed to create nightly backup directory: %w", err)
	}

	for _, dbName := range s.GetDatabaseNames() {
		backupPath := filepath.Join(nightlyDir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			return fmt.Errorf("failed to backup %s: %w", dbName, err)
		}

		if err := s.verifyBackup(backupPath); err != nil {
			// Delete corrupted backup
			os.Remove(backupPath)
			return fmt.Errorf("backup verification failed for %s: %w", dbName, err)
		}
	}

	if err := s.rotateNightlyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate nightly backups")
		// Don't fail - backup succeeded
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", nightlyDir).
		Msg("Nightly backup completed successfully")
	return nil
}

// BackupDatabase snapshots one database to the given path.
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().
		Str("database", dbName).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	// Use VACUUM INTO for atomic backup
	// This creates a fresh copy without WAL files and optimizes the database
	_, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath))
	if err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", dbName).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// verifyBackup opens a backup file and runs PRAGMA integrity_check.
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	err = backupDB.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// rotateNightlyBackups deletes snapshot directories beyond the keep count.
// Directory names sort chronologically (YYYY-MM-DD).
func (s *BackupService) rotateNightlyBackups() error {
	nightlyRoot := filepath.Join(s.backupDir, "nightly")
	entries, err := os.ReadDir(nightlyRoot)
	if err != nil {
		return fmt.Errorf("failed to read nightly backup directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) <= nightlyBackupsToKeep {
		return nil
	}

	sort.Strings(dirs)
	for _, name := range dirs[:len(dirs)-nightlyBackupsToKeep] {
		path := filepath.Join(nightlyRoot, name)
		if err := os.RemoveAll(path); err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to remove old backup")
			continue
		}
		s.log.Info().Str("path", path).Msg("Removed old nightly backup")
	}

	return nil
}

// CopyFile copies a file, used when restoring backups for verification.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
