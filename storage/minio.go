package storage

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/logger"
)

var minioClient *minio.Client

// InitMinio initializes the MinIO client and makes sure the archive bucket
// exists.
func InitMinio(cfg *config.Config) error {
	logger.Info("Connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.String("region", cfg.MinioRegion))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("Created archive bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	logger.Info("MinIO client initialized")
	return nil
}

// GetMinioClient returns the MinIO client instance.
func GetMinioClient() *minio.Client {
	return minioClient
}

// Archive mirrors published audio and covers into the archive bucket.
// Implements the pipeline's optional Archiver.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive builds an Archive on the initialized MinIO client.
func NewArchive(cfg *config.Config) *Archive {
	return &Archive{client: minioClient, bucket: cfg.MinioBucket}
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// ArchiveAudio uploads a staged audio file under audio/<fingerprint>.<ext>.
func (a *Archive) ArchiveAudio(ctx context.Context, localPath, fingerprint string) error {
	if a.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	ext := filepath.Ext(localPath)
	objectName := fmt.Sprintf("audio/%s%s", fingerprint, ext)

	_, err := a.client.FPutObject(ctx, a.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(ext),
	})
	if err != nil {
		return fmt.Errorf("failed to archive audio %s: %w", objectName, err)
	}
	return nil
}

// ArchiveCover downloads cover art and stores it under covers/<trackID>.jpg.
func (a *Archive) ArchiveCover(ctx context.Context, coverURL string, trackID int64) error {
	if a.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	if coverURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build cover request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	objectName := fmt.Sprintf("covers/%d.jpg", trackID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("failed to archive cover %s: %w", objectName, err)
	}
	return nil
}

// TestMinio uploads, reads back and removes a probe object.
func TestMinio(cfg *config.Config) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	probe := "test/connection.txt"
	content := "MinIO connection check at " + time.Now().Format(time.RFC3339)

	_, err := minioClient.PutObject(ctx, cfg.MinioBucket, probe, strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("failed to upload probe object: %w", err)
	}

	obj, err := minioClient.GetObject(ctx, cfg.MinioBucket, probe, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to read probe object: %w", err)
	}
	obj.Close()

	if err := minioClient.RemoveObject(ctx, cfg.MinioBucket, probe, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove probe object: %w", err)
	}

	return nil
}
