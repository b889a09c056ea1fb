package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog/log"

	"resume-builder-go/internal/config"
	"resume-builder-go/internal/constants"
)

// TextArchive 导入原文的归档存储
type TextArchive interface {
	PutImportText(ctx context.Context, resumeID, text string) (string, error)
	GetImportText(ctx context.Context, objectName string) (string, error)
	DeleteImportText(ctx context.Context, objectName string) error
}

var _ TextArchive = (*MinIO)(nil)

// MinIO 保存每份简历导入时的原始文本
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{client: client, cfg: cfg, bucket: cfg.ImportsBucket}

	ctx := context.Background()
	if err := m.ensureBucketExists(ctx, m.bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保导入原文存储桶 %s 存在失败: %w", m.bucket, err)
	}
	if cfg.ImportExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.bucket, "expire-import-text", cfg.ImportExpireDays); err != nil {
			log.Warn().Err(err).Str("bucket", m.bucket).Msg("设置生命周期规则失败")
		}
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", m.bucket).Msg("MinIO客户端初始化完成")
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
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:         ruleID,
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: constants.ImportTextObjectPrefix},
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// ImportTextObjectName 简历导入原文的对象键
func ImportTextObjectName(resumeID string) string {
	return constants.ImportTextObjectPrefix + resumeID + "/source.txt"
}

// PutImportText 上传导入原文，返回对象键
func (m *MinIO) PutImportText(ctx context.Context, resumeID, text string) (string, error) {
	objectName := ImportTextObjectName(resumeID)
	_, err := m.client.PutObject(ctx, m.bucket, objectName, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传导入原文 %s 到存储桶 %s 失败: %w", objectName, m.bucket, err)
	}
	log.Ctx(ctx).Debug().Str("object", objectName).Int("bytes", len(text)).Msg("导入原文已归档")
	return objectName, nil
}

// GetImportText 读取导入原文
func (m *MinIO) GetImportText(ctx context.Context, objectName string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取对象 %s/%s 失败: %w", m.bucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.bucket, objectName, err)
	}
	return string(data), nil
}

// DeleteImportText 删除导入原文
func (m *MinIO) DeleteImportText(ctx context.Context, objectName string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}
