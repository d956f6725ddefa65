// Package filesystem 把拉取到的邮件原文按天归档成 .eml 文件。
// 客户端"打开邮件"走的就是这里落盘的文件。
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store .eml 归档存储
type Store struct {
	basePath string
}

// NewStore 创建归档存储实例
func NewStore(basePath string) (*Store, error) {
	if err := validateBasePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	normalized := normalizeBasePath(basePath)
	if err := os.MkdirAll(normalized, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: normalized}, nil
}

// BasePath 返回归档根目录
func (s *Store) BasePath() string {
	return s.basePath
}

// SaveEmail 保存邮件原文，返回落盘的绝对路径。
// 目录结构: {base}/mails/{YYYY-MM-DD}/{messageID}.eml
// 同一 message_id 重复保存会覆盖当天文件（内容幂等）。
func (s *Store) SaveEmail(messageID string, received time.Time, raw []byte) (string, error) {
	if received.IsZero() {
		received = time.Now()
	}
	dir := filepath.Join(s.basePath, "mails", received.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	file := filepath.Join(dir, s.emlFilename(messageID))
	if err := os.WriteFile(file, raw, 0644); err != nil {
		return "", fmt.Errorf("failed to write eml file: %w", err)
	}
	return file, nil
}

// GetEmail 读取归档的邮件原文。
func (s *Store) GetEmail(messageID string) ([]byte, error) {
	path, err := s.EmailPath(messageID)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eml file: %w", err)
	}
	return content, nil
}

// EmailPath 定位某封邮件的归档文件。按日期目录从新到旧查找。
func (s *Store) EmailPath(messageID string) (string, error) {
	filename := s.emlFilename(messageID)
	mailsPath := filepath.Join(s.basePath, "mails")

	dateDirs, err := os.ReadDir(mailsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("email not archived: %s", messageID)
		}
		return "", err
	}

	// ReadDir 按名字升序，日期目录名正好是字典序，从末尾扫
	for i := len(dateDirs) - 1; i >= 0; i-- {
		if !dateDirs[i].IsDir() {
			continue
		}
		candidate := filepath.Join(mailsPath, dateDirs[i].Name(), filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("email not archived: %s", messageID)
}

// HasEmail 判断某封邮件是否已归档。
func (s *Store) HasEmail(messageID string) bool {
	_, err := s.EmailPath(messageID)
	return err == nil
}

// CleanupExpired 清理超过保留期的日期目录，返回删除的文件数。
func (s *Store) CleanupExpired(retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	mailsPath := filepath.Join(s.basePath, "mails")

	dateDirs, err := os.ReadDir(mailsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() || dateDir.Name() >= cutoff {
			continue
		}
		datePath := filepath.Join(mailsPath, dateDir.Name())
		entries, err := os.ReadDir(datePath)
		if err != nil {
			continue
		}
		if err := os.RemoveAll(datePath); err == nil {
			count += len(entries)
		}
	}
	return count, nil
}

// GetStorageStats 获取归档统计信息
func (s *Store) GetStorageStats() (map[string]interface{}, error) {
	mailsPath := filepath.Join(s.basePath, "mails")

	var totalSize int64
	var messageCount int

	err := filepath.Walk(mailsPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 跳过错误，继续遍历
		}
		if !info.IsDir() && filepath.Ext(path) == ".eml" {
			totalSize += info.Size()
			messageCount++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return map[string]interface{}{
		"total_size_bytes": totalSize,
		"total_size_mb":    float64(totalSize) / 1024 / 1024,
		"message_count":    messageCount,
		"base_path":        s.basePath,
	}, nil
}

// emlFilename message_id 可能含 <>/: 等字符，清洗后加扩展名。
func (s *Store) emlFilename(messageID string) string {
	return SanitizeFilename(messageID) + ".eml"
}
