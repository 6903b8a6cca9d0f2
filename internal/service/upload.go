package service

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"support-lab/internal/config"

	"github.com/google/uuid"
)

var ErrFileTooLarge = errors.New("文件过大")

type UploadedFile struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

// UploadStore 本地目录存储上传文件，通过 /uploads 静态路由对外
type UploadStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewUploadStore(cfg config.UploadConfig) *UploadStore {
	return &UploadStore{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxBytes,
	}
}

func (u *UploadStore) Dir() string {
	return u.dir
}

func (u *UploadStore) Save(fh *multipart.FileHeader) (*UploadedFile, error) {
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, fh.Size, u.maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()
	return u.save(src, fh.Filename)
}

func (u *UploadStore) save(src io.Reader, originalName string) (*UploadedFile, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return nil, fmt.Errorf("创建文件失败: %w", err)
	}
	defer dst.Close()

	var reader io.Reader = src
	if u.maxBytes > 0 {
		// 多读 1 字节用来判断是否超限
		reader = io.LimitReader(src, u.maxBytes+1)
	}
	n, err := io.Copy(dst, reader)
	if err != nil {
		os.Remove(dst.Name())
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if u.maxBytes > 0 && n > u.maxBytes {
		os.Remove(dst.Name())
		return nil, fmt.Errorf("%w: > %d", ErrFileTooLarge, u.maxBytes)
	}

	return &UploadedFile{
		FileURL:  u.baseURL + "/" + name,
		FileName: originalName,
		Size:     n,
	}, nil
}
