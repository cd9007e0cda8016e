package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
)

const (
	// contentDispositionParam overrides Content-Disposition on a presigned GET.
	contentDispositionParam = "response-content-disposition"

	// User metadata keys, sent as X-Amz-Meta-* headers.
	metaArtifactID = "Artifact-Id"
	metaOutputName = "Output-Name"
)

// minioClient is the subset of *minio.Client the artifact store uses.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

var _ minioClient = (*minio.Client)(nil)

// ClientConfig holds configuration for the MinIO client.
type ClientConfig struct {
	Endpoint       string
	PublicEndpoint string // Optional: host that download links are signed for
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// Client stores artifacts in a MinIO bucket and implements repository.ArtifactStorage.
type Client struct {
	client minioClient
	// signer presigns download links; it differs from client when
	// artifacts are served through a public endpoint.
	signer minioClient
	bucket string
}

var _ repository.ArtifactStorage = (*Client)(nil)

// NewClient connects to MinIO and fails if the artifact bucket is missing.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	client, err := newMinio(cfg.Endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	var signer minioClient = client
	if cfg.PublicEndpoint != "" {
		public, err := newMinio(cfg.PublicEndpoint, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create public minio client: %w", err)
		}
		signer = public
	}

	return newClientWithMinioClient(ctx, client, signer, cfg.Bucket)
}

func newMinio(endpoint string, cfg ClientConfig) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

func newClientWithMinioClient(ctx context.Context, client, signer minioClient, bucket string) (*Client, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
	}

	return &Client{
		client: client,
		signer: signer,
		bucket: bucket,
	}, nil
}

// Put uploads an artifact. The object carries the artifact's expiry so a
// bucket lifecycle rule and downstream caches agree on when it goes away.
func (c *Client) Put(ctx context.Context, artifact *model.Artifact, body io.Reader) error {
	_, err := c.client.PutObject(ctx, c.bucket, artifact.StorageKey, body, artifact.Size, minio.PutObjectOptions{
		ContentType:        artifact.MimeType,
		ContentDisposition: attachment(artifact.OutputName),
		Expires:            artifact.ExpiresAt,
		UserMetadata: map[string]string{
			metaArtifactID: artifact.ID.String(),
			metaOutputName: artifact.OutputName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", artifact.ID, err)
	}
	return nil
}

// DownloadURL presigns a GET that downloads the artifact under its output name.
func (c *Client) DownloadURL(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set(contentDispositionParam, attachment(artifact.OutputName))

	u, err := c.signer.PresignedGetObject(ctx, c.bucket, artifact.StorageKey, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign artifact %s: %w", artifact.ID, err)
	}
	return u.String(), nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether key is stored. A missing key is not an error.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// Ping checks that the artifact bucket is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
