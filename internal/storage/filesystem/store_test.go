package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	tempDir, err := os.MkdirTemp("", "archive_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	return store
}

func TestNewStore(t *testing.T) {
	t.Run("自动创建嵌套目录", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "archive_test_*")
		require.NoError(t, err)
		defer os.RemoveAll(tempDir)

		newPath := filepath.Join(tempDir, "new", "nested", "path")
		store, err := NewStore(newPath)
		require.NoError(t, err)
		assert.NotNil(t, store)

		_, err = os.Stat(newPath)
		assert.NoError(t, err)
	})

	t.Run("拒绝路径穿越", func(t *testing.T) {
		_, err := NewStore("../../etc")
		assert.Error(t, err)
	})
}

func TestSaveAndGetEmail(t *testing.T) {
	store := setupTestStore(t)
	raw := []byte("From: boss@example.com\r\nSubject: Budget\r\n\r\nbody")
	received := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	t.Run("保存后可按ID读回", func(t *testing.T) {
		path, err := store.SaveEmail("<msg-1@example.com>", received, raw)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, ".eml"))
		assert.Contains(t, path, "2026-08-30")

		got, err := store.GetEmail("<msg-1@example.com>")
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})

	t.Run("重复保存幂等覆盖", func(t *testing.T) {
		p1, err := store.SaveEmail("<msg-2@example.com>", received, raw)
		require.NoError(t, err)
		p2, err := store.SaveEmail("<msg-2@example.com>", received, raw)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	})

	t.Run("未归档的ID定位失败", func(t *testing.T) {
		_, err := store.EmailPath("<nope@example.com>")
		assert.Error(t, err)
		assert.False(t, store.HasEmail("<nope@example.com>"))
	})

	t.Run("跨日期目录定位最新", func(t *testing.T) {
		old := time.Date(2026, 8, 1, 9, 0, 0, 0, time.Local)
		_, err := store.SaveEmail("<msg-3@example.com>", old, []byte("old"))
		require.NoError(t, err)
		_, err = store.SaveEmail("<msg-3@example.com>", received, []byte("new"))
		require.NoError(t, err)

		got, err := store.GetEmail("<msg-3@example.com>")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got)
	})
}

func TestCleanupExpired(t *testing.T) {
	store := setupTestStore(t)

	old := time.Now().AddDate(0, 0, -40)
	_, err := store.SaveEmail("<old@example.com>", old, []byte("x"))
	require.NoError(t, err)
	_, err = store.SaveEmail("<fresh@example.com>", time.Now(), []byte("y"))
	require.NoError(t, err)

	count, err := store.CleanupExpired(30)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.False(t, store.HasEmail("<old@example.com>"))
	assert.True(t, store.HasEmail("<fresh@example.com>"))
}

func TestGetStorageStats(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.SaveEmail("<a@example.com>", time.Now(), []byte("aaaa"))
	require.NoError(t, err)
	_, err = store.SaveEmail("<b@example.com>", time.Now(), []byte("bbbb"))
	require.NoError(t, err)

	stats, err := store.GetStorageStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats["message_count"])
	assert.Equal(t, int64(8), stats["total_size_bytes"])
}

func TestSanitizeFilename(t *testing.T) {
	t.Run("去掉路径成分", func(t *testing.T) {
		assert.Equal(t, "file.txt", SanitizeFilename("../file.txt"))
		assert.Equal(t, "file.txt", SanitizeFilename("path/to/file.txt"))
	})

	t.Run("空文件名兜底", func(t *testing.T) {
		assert.Equal(t, "", SanitizeFilename("..."))
	})

	t.Run("超长文件名截断保留扩展名", func(t *testing.T) {
		long := strings.Repeat("a", 300) + ".txt"
		got := SanitizeFilename(long)
		assert.LessOrEqual(t, len(got), 200)
		assert.True(t, strings.HasSuffix(got, ".txt"))
	})

	t.Run("控制字符被移除", func(t *testing.T) {
		assert.Equal(t, "filename.txt", SanitizeFilename("file\x01name.txt"))
	})
}
