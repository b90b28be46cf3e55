package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"ai-hiring-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectRef 对象在存储中的位置
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// PutResult 上传结果；URL 为对象的直连地址，私有桶需要预签名才能访问
type PutResult struct {
	ObjectRef
	URL    string
	SHA256 string
	Size   int64
}

// ObjectStorage 对象存储接口，所有后端错误在此边界内统一为 error
type ObjectStorage interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (*PutResult, error)
	Get(ctx context.Context, ref ObjectRef) ([]byte, error)
	Delete(ctx context.Context, ref ObjectRef) error
	PresignedURL(ctx context.Context, ref ObjectRef, expiry time.Duration) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("对象不存在")

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	logger *log.Logger
}

// NewMinIO 创建MinIO客户端，确保简历、面试媒体、转写稿三个桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{client: client, cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, bucket := range []string{cfg.ResumesBucket, cfg.MediaBucket, cfg.TranscriptsBucket} {
		if bucket == "" {
			continue
		}
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, cfg.MediaBucket, "expire-interview-media", cfg.OriginalFileExpireDays); err != nil {
			logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	return nil
}

// setupBucketLifecycle 面试录像体积大，按天数过期；简历不设过期
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// Put 上传字节并计算 sha256
func (m *MinIO) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (*PutResult, error) {
	if contentType == "" {
		contentType = getContentType(path.Ext(objectPath))
	}
	sum := sha256.Sum256(data)

	info, err := m.client.PutObject(ctx, bucket, objectPath, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, objectPath, err)
	}
	m.logger.Printf("[MinIO] Uploaded %s/%s, ETag: %s, Size: %d", bucket, objectPath, info.ETag, info.Size)

	return &PutResult{
		ObjectRef: ObjectRef{Bucket: bucket, Path: objectPath},
		URL:       m.ObjectURL(ObjectRef{Bucket: bucket, Path: objectPath}),
		SHA256:    hex.EncodeToString(sum[:]),
		Size:      int64(len(data)),
	}, nil
}

// Get 下载对象全部内容
func (m *MinIO) Get(ctx context.Context, ref ObjectRef) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, ref.Bucket, ref.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", ref.Bucket, ref.Path, err)
	}
	defer obj.Close()

	// Stat 能提前暴露对象不存在或无权限
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, ref.Bucket, ref.Path)
		}
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", ref.Bucket, ref.Path, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", ref.Bucket, ref.Path, err)
	}
	return data, nil
}

// Delete 删除对象，对象不存在不算错误
func (m *MinIO) Delete(ctx context.Context, ref ObjectRef) error {
	if err := m.client.RemoveObject(ctx, ref.Bucket, ref.Path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s/%s 失败: %w", ref.Bucket, ref.Path, err)
	}
	return nil
}

// PresignedURL 生成限时下载地址
func (m *MinIO) PresignedURL(ctx context.Context, ref ObjectRef, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = config.GetDuration(m.cfg.PresignExpiry, 15*time.Minute)
	}
	u, err := m.client.PresignedGetObject(ctx, ref.Bucket, ref.Path, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名URL %s/%s 失败: %w", ref.Bucket, ref.Path, err)
	}
	return u.String(), nil
}

// ObjectURL 对象的直连地址
func (m *MinIO) ObjectURL(ref ObjectRef) string {
	scheme := "http"
	if m.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.cfg.Endpoint, ref.Bucket, strings.TrimPrefix(ref.Path, "/"))
}

// getContentType 根据扩展名推断 Content-Type
func getContentType(fileExt string) string {
	switch strings.ToLower(fileExt) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
