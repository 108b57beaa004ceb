// Package storage 附件存储：S3 兼容对象存储或本地目录
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"cscenter/backend/config"
)

// Storage 附件存取接口
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New 按配置创建存储实现
func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return newS3(cfg)
	case "local", "":
		return &localStorage{root: cfg.LocalDir}, nil
	default:
		return nil, fmt.Errorf("未知的存储驱动 %q", cfg.Driver)
	}
}

// ── S3 ──

type s3Storage struct {
	svc    *s3.S3
	bucket string
}

func newS3(cfg *config.StorageConfig) (*s3Storage, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 AWS 会话失败: %w", err)
	}
	return &s3Storage{svc: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	// PutObject 需要 ReadSeeker
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return fmt.Errorf("读取上传内容失败: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.svc.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("上传到 S3 失败: %w", err)
	}
	return nil
}

func (s *s3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("从 S3 读取失败: %w", err)
	}
	return out.Body, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("从 S3 删除失败: %w", err)
	}
	return nil
}

// ── 本地目录 ──

type localStorage struct {
	root string
}

// path 将 key 限定在 root 之下
func (s *localStorage) path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}

func (s *localStorage) Put(_ context.Context, key string, r io.Reader, _ string) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (s *localStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}

func (s *localStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
