package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	PublicBaseURL   string
}

type HealthStatus struct {
	Connected    bool          `json:"connected"`
	Endpoint     string        `json:"endpoint"`
	BucketExists bool          `json:"bucket_exists"`
	BucketName   string        `json:"bucket_name"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
}

// MinIOService is the media store: accept a binary upload and return a
// reference URL, and delete by reference.
type MinIOService interface {
	HealthCheck(ctx context.Context) HealthStatus
	Close() error

	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	DeleteByURL(ctx context.Context, referenceURL string) error
}

type MinIOClient struct {
	client     *minio.Client
	config     MinIOConfig
	bucketName string
}

func NewMinIOService(config MinIOConfig) (*MinIOClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint is required")
	}
	if config.BucketName == "" {
		return nil, fmt.Errorf("MinIO bucket name is required")
	}
	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		return nil, fmt.Errorf("MinIO credentials are required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	}

	client, err := minio.New(config.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	minioClient := &MinIOClient{
		client:     client,
		config:     config,
		bucketName: config.BucketName,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, config.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", config.BucketName, err)
		}
	}

	return minioClient, nil
}

func (m *MinIOClient) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	status := HealthStatus{
		Endpoint:   m.config.Endpoint,
		BucketName: m.bucketName,
	}

	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		status.Error = fmt.Sprintf("failed to check bucket existence: %v", err)
		status.Latency = time.Since(start)
		return status
	}

	status.Connected = true
	status.BucketExists = exists
	status.Latency = time.Since(start)

	if !exists {
		status.Error = fmt.Sprintf("bucket %s does not exist", m.bucketName)
	}

	return status
}

func (m *MinIOClient) Close() error {
	return nil
}

func (m *MinIOClient) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}

	return m.objectURL(objectName), nil
}

// DeleteByURL removes the object a previously returned reference URL points
// at. URLs from another bucket or host are rejected rather than guessed at.
func (m *MinIOClient) DeleteByURL(ctx context.Context, referenceURL string) error {
	objectName, ok := m.objectNameFromURL(referenceURL)
	if !ok {
		return fmt.Errorf("reference URL %s does not belong to bucket %s", referenceURL, m.bucketName)
	}

	if err := m.client.RemoveObject(ctx, m.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}

	return nil
}

func (m *MinIOClient) baseURL() string {
	if m.config.PublicBaseURL != "" {
		return strings.TrimRight(m.config.PublicBaseURL, "/")
	}

	scheme := "http"
	if m.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, m.config.Endpoint)
}

func (m *MinIOClient) objectURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", m.baseURL(), m.bucketName, objectName)
}

func (m *MinIOClient) objectNameFromURL(referenceURL string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", m.baseURL(), m.bucketName)
	if !strings.HasPrefix(referenceURL, prefix) {
		return "", false
	}

	objectName := strings.TrimPrefix(referenceURL, prefix)
	if objectName == "" {
		return "", false
	}

	return objectName, true
}
