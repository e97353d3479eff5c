package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupExt          = ".db"
	encryptedBackupExt = ".enc"
)

// BackupManager handles database backup and restore operations.
type BackupManager struct {
	dbPath string
}

// NewBackupManager creates a new backup manager for the given database path.
func NewBackupManager(dbPath string) *BackupManager {
	return &BackupManager{dbPath: dbPath}
}

// BackupConfig holds configuration for backup operations.
type BackupConfig struct {
	// BackupDir defaults to a "backups" directory next to the database.
	BackupDir string

	// BackupName is the file name without extension. Defaults to a timestamp.
	BackupName string

	VerifyBackup bool

	// Encrypt writes an argon2id/AES-GCM encrypted backup with a .enc extension.
	Encrypt            bool
	EncryptionPassword string
}

// DefaultBackupConfig returns a BackupConfig with sensible defaults.
func DefaultBackupConfig() *BackupConfig {
	return &BackupConfig{VerifyBackup: true}
}

// BackupInfo contains information about a backup file.
type BackupInfo struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	Checksum  string
	Encrypted bool
}

// Backup writes a copy of the database with VACUUM INTO, which is atomic
// and does not need an exclusive lock.
func (bm *BackupManager) Backup(config *BackupConfig) (string, error) {
	if config == nil {
		config = DefaultBackupConfig()
	}
	if config.Encrypt && config.EncryptionPassword == "" {
		return "", ErrPasswordRequired
	}

	backupDir := config.BackupDir
	if backupDir == "" {
		backupDir = bm.GetBackupDir()
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupName := config.BackupName
	if backupName == "" {
		backupName = "decks_" + time.Now().Format("20060102_150405")
	}
	plainPath := filepath.Join(backupDir, backupName+backupExt)
	if config.Encrypt {
		plainPath = filepath.Join(backupDir, backupName+backupExt+".tmp")
	}

	if err := bm.vacuumInto(plainPath); err != nil {
		return "", err
	}

	if config.VerifyBackup {
		if err := bm.VerifyBackup(plainPath); err != nil {
			_ = os.Remove(plainPath)
			return "", fmt.Errorf("backup verification failed: %w", err)
		}
	}

	if !config.Encrypt {
		return plainPath, nil
	}

	encPath := filepath.Join(backupDir, backupName+encryptedBackupExt)
	err := EncryptFile(plainPath, encPath, DefaultEncryptionConfig(config.EncryptionPassword))
	_ = os.Remove(plainPath)
	if err != nil {
		_ = os.Remove(encPath)
		return "", fmt.Errorf("failed to encrypt backup: %w", err)
	}
	return encPath, nil
}

func (bm *BackupManager) vacuumInto(backupPath string) error {
	// VACUUM INTO refuses to overwrite.
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear backup path: %w", err)
	}

	sourceDB, err := sql.Open("sqlite", bm.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() {
		_ = sourceDB.Close()
	}()

	if _, err := sourceDB.Exec("VACUUM INTO ?", backupPath); err != nil {
		return bm.backupByCopy(backupPath)
	}
	return nil
}

// backupByCopy copies the database file when VACUUM INTO is unavailable.
func (bm *BackupManager) backupByCopy(backupPath string) error {
	if err := copyFile(bm.dbPath, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return fmt.Errorf("failed to copy database file: %w", err)
	}
	return nil
}

// Restore replaces the database with a backup. Encrypted backups need the
// password they were written with. The caller must close open connections
// first. The replaced database is kept next to it with an ".old" suffix.
func (bm *BackupManager) Restore(backupPath, password string) error {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	tempPath := bm.dbPath + ".restore.tmp"

	encrypted, err := IsEncrypted(backupPath)
	if err != nil {
		return fmt.Errorf("failed to inspect backup: %w", err)
	}
	if encrypted {
		if password == "" {
			return ErrPasswordRequired
		}
		if err := DecryptFile(backupPath, tempPath, DefaultEncryptionConfig(password)); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to decrypt backup: %w", err)
		}
	} else if err := copyFile(backupPath, tempPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to copy backup file: %w", err)
	}

	if err := bm.VerifyBackup(tempPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("restored database verification failed: %w", err)
	}

	if _, err := os.Stat(bm.dbPath); err == nil {
		oldPath := bm.dbPath + ".old." + time.Now().Format("20060102_150405")
		if err := os.Rename(bm.dbPath, oldPath); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to move current database aside: %w", err)
		}
		// A leftover write-ahead log would be replayed over the restored file.
		for _, suffix := range []string{"-wal", "-shm"} {
			_ = os.Rename(bm.dbPath+suffix, oldPath+suffix)
		}
	}

	if err := os.Rename(tempPath, bm.dbPath); err != nil {
		return fmt.Errorf("failed to replace database with restored backup: %w", err)
	}
	return nil
}

// VerifyBackup verifies that a backup file is a readable SQLite database
// holding the deck schema.
func (bm *BackupManager) VerifyBackup(backupPath string) error {
	db, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup as database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping backup database: %w", err)
	}

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to query backup database: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// ListBackups returns the backups in backupDir, newest first. An empty
// backupDir means the default directory.
func (bm *BackupManager) ListBackups(backupDir string) ([]BackupInfo, error) {
	if backupDir == "" {
		backupDir = bm.GetBackupDir()
	}

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != backupExt && ext != encryptedBackupExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		backupPath := filepath.Join(backupDir, entry.Name())
		checksum, err := calculateChecksum(backupPath)
		if err != nil {
			checksum = "unknown"
		}

		backups = append(backups, BackupInfo{
			Path:      backupPath,
			Name:      strings.TrimSuffix(entry.Name(), ext),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Checksum:  checksum,
			Encrypted: ext == encryptedBackupExt,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// GetBackupDir returns the default backup directory path.
func (bm *BackupManager) GetBackupDir() string {
	return filepath.Join(filepath.Dir(bm.dbPath), "backups")
}

func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
