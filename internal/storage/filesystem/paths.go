package filesystem

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"
)

// 归档文件名的长度上限，给日期目录和 .eml 扩展名留足余量。
const maxFilenameLength = 200

// SanitizeFilename 把 message_id 变成跨平台安全的文件名。
// Message-ID 里常见 <>、/ 和冒号，Windows 一律不收。
func SanitizeFilename(name string) string {
	name = filepath.Base(name)

	for _, ch := range invalidFilenameChars() {
		name = strings.ReplaceAll(name, ch, "_")
	}

	// 控制字符直接丢弃，制表和换行也没有出现在文件名里的理由
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	name = truncateKeepExt(name, maxFilenameLength)
	if name == "" {
		name = "unnamed"
	}
	return strings.Trim(name, " .")
}

func invalidFilenameChars() []string {
	if runtime.GOOS == "windows" {
		return []string{"<", ">", ":", "\"", "|", "?", "*", "\\", "/", "\x00"}
	}
	// Unix 文件名里除 / 和 NUL 外都合法，但归档名统一用保守集合，
	// 同一批 .eml 拷到别的系统也能打开
	return []string{"<", ">", ":", "\"", "|", "?", "*", "\\", "/", "\x00"}
}

// truncateKeepExt 超长时截断主干，保住扩展名。
func truncateKeepExt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	ext := filepath.Ext(s)
	avail := maxLen - len(ext)
	if avail <= 0 {
		return ext
	}
	return strings.TrimSuffix(s, ext)[:avail] + ext
}

// validateBasePath 拒绝带路径遍历或离谱长度的归档根目录。
func validateBasePath(path string) error {
	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal detected: %s", path)
	}
	return nil
}

// normalizeBasePath 转绝对路径并清理多余分隔符。
func normalizeBasePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
