package storage

import (
	"context"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/logger"
	"github.com/studyhub/backend-go/internal/services"
)

// MinioArchiver 把已摄取的源文件归档到对象存储
type MinioArchiver struct {
	client   *minio.Client
	bucket   string
	basePath string
}

var _ services.SourceArchiver = (*MinioArchiver)(nil)

// NewMinioArchiver 创建归档客户端并确保bucket存在
func NewMinioArchiver(cfg config.ObjectStorageConfig) (*MinioArchiver, error) {
	if cfg.Endpoint == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "对象存储endpoint未配置")
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "study-archive"
	}

	// minio.New不接受带协议的endpoint
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建MinIO客户端失败").WithCause(err)
	}

	archiver := &MinioArchiver{
		client:   client,
		bucket:   bucket,
		basePath: strings.Trim(cfg.BasePath, "/"),
	}
	if err := archiver.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return archiver, nil
}

func (a *MinioArchiver) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "检查归档bucket失败").WithCause(err)
	}
	if exists {
		return nil
	}

	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		// 并发启动时bucket可能已被别的实例建出来
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyExists" || code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建归档bucket失败").WithCause(err)
	}
	logger.Logger.Info("archive bucket created", zap.String("bucket", a.bucket))
	return nil
}

// Archive 上传源文件并返回对象键，键对同一文件稳定，重跑覆盖旧对象
func (a *MinioArchiver) Archive(ctx context.Context, localPath, namespace string) (string, error) {
	if a == nil || a.client == nil {
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid, "对象存储未配置")
	}

	key := a.objectKey(localPath, namespace)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.FPutObject(ctx, a.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.NewBackendError(errors.ErrCodeOperationFailed, "归档源文件失败").WithCause(err)
	}

	logger.Logger.Debug("source file archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key))
	return key, nil
}

func (a *MinioArchiver) objectKey(localPath, namespace string) string {
	return path.Join(a.basePath, namespace, filepath.Base(localPath))
}

// Ping 探活，供就绪检查使用
func (a *MinioArchiver) Ping(ctx context.Context) error {
	if a == nil || a.client == nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "对象存储未配置")
	}
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// Bucket 返回归档bucket名
func (a *MinioArchiver) Bucket() string {
	return a.bucket
}

// Ready 客户端可用即视为就绪
func (a *MinioArchiver) Ready() bool {
	return a != nil && a.client != nil
}
