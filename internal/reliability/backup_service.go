// Package reliability backs the keyed stores up to an S3-compatible bucket.
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

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	archivePrefix   = "ledgerbridge-backup-"
	archiveSuffix   = ".tar.gz"
	timestampLayout = "2006-01-02-150405"
	metadataFile    = "backup-metadata.json"

	// minBackupsToKeep survive rotation regardless of age
	minBackupsToKeep = 3
)

// Snapshotter writes consistent copies of the store files into a directory
type Snapshotter interface {
	Snapshot(ctx context.Context, destDir string) ([]string, error)
}

// ObjectStore is the bucket surface the backup service needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupService archives the stores and keeps a rotating set of backups
type BackupService struct {
	stores  Snapshotter
	bucket  ObjectStore
	dataDir string
	now     func() time.Time
	log     zerolog.Logger
}

// BackupMetadata describes the contents of one archive
type BackupMetadata struct {
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Stores    []StoreMetadata `json:"stores"`
}

// StoreMetadata describes one store file in an archive
type StoreMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents a backup stored in the bucket
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a backup service staging archives under dataDir
func NewBackupService(stores Snapshotter, bucket ObjectStore, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		stores:  stores,
		bucket:  bucket,
		dataDir: dataDir,
		now:     time.Now,
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots every store, archives the snapshots with a
// metadata file and uploads the archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	snapshotDir := filepath.Join(stagingDir, "stores")
	paths, err := s.stores.Snapshot(ctx, snapshotDir)
	if err != nil {
		return fmt.Errorf("failed to snapshot stores: %w", err)
	}

	timestamp := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: timestamp,
		Version:   "1.0.0",
		Stores:    make([]StoreMetadata, 0, len(paths)),
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		checksum, err := calculateChecksum(path)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum for %s: %w", path, err)
		}
		filename := filepath.Base(path)
		metadata.Stores = append(metadata.Stores, StoreMetadata{
			Name:      strings.TrimSuffix(filename, ".db"),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(snapshotDir, metadataFile)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := archivePrefix + timestamp.Format(timestampLayout) + archiveSuffix
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, append(paths, metadataPath)); err != nil {
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

	if err := s.bucket.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int("stores", len(paths)).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed successfully")

	return nil
}

// ListBackups lists the backups in the bucket, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.bucket.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := s.now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := *obj.Key
		if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, archiveSuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), archiveSuffix)
		timestamp, err := time.Parse(timestampLayout, stamp)
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

// RotateOldBackups deletes backups older than retentionDays, always keeping
// the newest few. retentionDays <= 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep {
		s.log.Debug().Int("count", len(backups)).Msg("Too few backups to rotate")
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.bucket.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", backup.Filename).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}

func calculateChecksum(path string) (string, error) {
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

// createArchive writes the given files, flattened to their base names, into a tar.gz
func createArchive(archivePath string, files []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range files {
		if err := addFileToArchive(tarWriter, path, filepath.Base(path)); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
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

	_, err = io.Copy(tarWriter, file)
	return err
}
