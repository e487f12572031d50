package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/database"
)

const backupPrefix = "bondmonitor-backup-"

// minBackupsToKeep backups survive rotation regardless of age.
const minBackupsToKeep = 3

// BackupService archives the monitor's data directory (SQLite databases
// plus the user-state document) and ships it to remote storage.
type BackupService struct {
	r2            *R2Client
	databases     []*database.DB
	userStatePath string
	dataDir       string
	log           zerolog.Logger
}

// BackupMetadata describes one archive's contents.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes a single file inside a backup archive.
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes one archive stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a new backup service.
func NewBackupService(r2 *R2Client, databases []*database.DB, userStatePath, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		r2:            r2,
		databases:     databases,
		userStatePath: userStatePath,
		dataDir:       dataDir,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots every database with VACUUM INTO, stages
// them with the user-state document and a metadata file, and uploads one
// tar.gz archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	var staged []string
	for _, db := range s.databases {
		filename := db.Name() + ".db"
		destPath := filepath.Join(stagingDir, filename)

		// VACUUM INTO produces a consistent copy without blocking writers.
		if _, err := db.Conn().ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}
		staged = append(staged, filename)
	}

	// The user-state document may not exist yet on a fresh install.
	if data, err := os.ReadFile(s.userStatePath); err == nil {
		filename := filepath.Base(s.userStatePath)
		if err := os.WriteFile(filepath.Join(stagingDir, filename), data, 0644); err != nil {
			return fmt.Errorf("failed to stage user state: %w", err)
		}
		staged = append(staged, filename)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read user state: %w", err)
	}

	metadata := BackupMetadata{Timestamp: time.Now().UTC()}
	for _, filename := range staged {
		path := filepath.Join(stagingDir, filename)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", filename, err)
		}
		checksum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", filename, err)
		}
		metadata.Files = append(metadata.Files, FileMetadata{
			Name:      filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataName := "backup-metadata.json"
	if err := writeMetadata(filepath.Join(stagingDir, metadataName), metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	staged = append(staged, metadataName)

	archiveName := backupPrefix + time.Now().Format("2006-01-02-150405") + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, staged); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.r2.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")
	return nil
}

// ListBackups lists the archives stored remotely, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.r2.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key
		if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimSuffix(strings.TrimPrefix(filename, backupPrefix), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups prunes remote archives down to the newest retainCount.
// A floor of minBackupsToKeep applies regardless of configuration.
func (s *BackupService) RotateOldBackups(ctx context.Context, retainCount int) error {
	if retainCount < minBackupsToKeep {
		retainCount = minBackupsToKeep
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= retainCount {
		return nil
	}

	deleted := 0
	for _, backup := range backups[retainCount:] {
		if err := s.r2.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("Backup rotation completed")
	return nil
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}
	return nil
}
