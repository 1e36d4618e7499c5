// internal/services/normalize_service_test.go
package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizer_InsertsMetaCharset(t *testing.T) {
	n := NewNormalizer()

	doc := "<html><head><title>测试</title></head><body><p>正文</p></body></html>"
	out, changed, err := n.Normalize([]byte(doc))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, string(out), `<meta charset="utf-8">`)

	// meta 必须插在 <head> 开标签之后
	headIdx := strings.Index(string(out), "<head>")
	metaIdx := strings.Index(string(out), "<meta charset=")
	titleIdx := strings.Index(string(out), "<title>")
	assert.Greater(t, metaIdx, headIdx)
	assert.Less(t, metaIdx, titleIdx)

	// 幂等：再跑一遍不再变更
	out2, changed, err := n.Normalize(out)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, out, out2)
}

func TestNormalizer_FragmentLeftAlone(t *testing.T) {
	n := NewNormalizer()

	// 无 <head> 的正文片段不插 meta
	fragment := "<p>你好，世界</p>"
	out, changed, err := n.Normalize([]byte(fragment))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, fragment, string(out))
}

func TestNormalizer_TranscodesDeclaredGBK(t *testing.T) {
	n := NewNormalizer()

	// "中文" 的 GBK 字节序列
	raw := "<html><head><meta http-equiv=\"Content-Type\" content=\"text/html; charset=gb2312\"></head>" +
		"<body><p>\xd6\xd0\xce\xc4</p></body></html>"

	out, changed, err := n.Normalize([]byte(raw))
	require.NoError(t, err)
	assert.True(t, changed)

	text := string(out)
	assert.Contains(t, text, "中文")
	// 转码后原有的 gb2312 声明必须改写为 utf-8
	assert.Contains(t, text, "charset=utf-8")
	assert.NotContains(t, text, "gb2312")
}

func TestNormalizer_RefusesUndeclaredLegacyEncoding(t *testing.T) {
	n := NewNormalizer()

	// 无声明的 GBK 字节：回退编码硬解会产生乱码，必须拒绝而非改写
	raw := []byte("<p>\xd6\xd0\xce\xc4</p>")
	_, changed, err := n.Normalize(raw)
	require.Error(t, err)
	assert.False(t, changed)

	// 带 <head> 的完整文档同样拒绝，不得插入 meta 后写回乱码
	doc := []byte("<html><head></head><body>\xd6\xd0\xce\xc4</body></html>")
	_, changed, err = n.Normalize(doc)
	require.Error(t, err)
	assert.False(t, changed)
}

func TestNormalizer_EmptyContent(t *testing.T) {
	n := NewNormalizer()

	out, changed, err := n.Normalize(nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, out)
}

func TestNormalizer_KeepsExistingUTF8Declaration(t *testing.T) {
	n := NewNormalizer()

	doc := "<html><head><meta charset=\"utf-8\"><title>好</title></head><body>正文</body></html>"
	out, changed, err := n.Normalize([]byte(doc))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, doc, string(out))
	// 不重复插入
	assert.Equal(t, 1, strings.Count(string(out), "<meta"))
}

func TestNormalizeTree(t *testing.T) {
	root := t.TempDir()

	needsFix := filepath.Join(root, "story", "0001.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(needsFix), 0755))
	require.NoError(t, os.WriteFile(needsFix,
		[]byte("<html><head></head><body>第一章</body></html>"), 0644))

	alreadyOK := filepath.Join(root, "story", "0002.html")
	require.NoError(t, os.WriteFile(alreadyOK,
		[]byte("<html><head><meta charset=\"utf-8\"></head><body>第二章</body></html>"), 0644))

	// 无声明的 GBK 文件无法判定编码，记入失败且不得改写
	undeclared := filepath.Join(root, "story", "0003.html")
	legacyBytes := []byte("<html><head></head><body>\xd6\xd0\xce\xc4</body></html>")
	require.NoError(t, os.WriteFile(undeclared, legacyBytes, 0644))

	// 非 HTML 文件不处理
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	svc := NewNormalizeService(zap.NewNop())
	result, err := svc.NormalizeTree(root)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, []string{undeclared}, result.Failed)

	// 失败的文件原样保留，一个字节都不能动
	kept, err := os.ReadFile(undeclared)
	require.NoError(t, err)
	assert.Equal(t, legacyBytes, kept)

	// 变更写回磁盘
	fixed, err := os.ReadFile(needsFix)
	require.NoError(t, err)
	assert.Contains(t, string(fixed), `<meta charset="utf-8">`)

	// 已规范化的文件保持原样
	untouched, err := os.ReadFile(alreadyOK)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(untouched), "<meta"))
}
