// internal/services/normalize_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// headPattern 定位 <head> 开标签，meta 标签插在它之后
var headPattern = regexp.MustCompile(`(?i)<head[^>]*>`)

// metaCharsetPattern 匹配 meta 标签中的字符集声明值
// 覆盖 <meta charset="..."> 与 <meta http-equiv content="...charset=..."> 两种写法
var metaCharsetPattern = regexp.MustCompile(`(?i)(<meta[^>]*charset=["']?)([a-zA-Z0-9][a-zA-Z0-9._\-]*)`)

// Normalizer 对章节正文做编码规范化
// 历史正文文件存在 GBK/BIG5 等多种编码；规范化后统一为 UTF-8，
// 并为带 <head> 的完整文档补齐 <meta charset="utf-8">。操作幂等
// 既无字符集声明也非 UTF-8 的内容拒绝处理：此时无法可靠判定原始编码，
// 改写只会把原文变成乱码
type Normalizer struct{}

// NewNormalizer 创建规范化器
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize 将 HTML 文本转为 UTF-8 并补齐字符集声明
// 返回规范化后的内容及其是否发生了变更；编码无法判定时报错，不改写原文
func (n *Normalizer) Normalize(raw []byte) ([]byte, bool, error) {
	if len(raw) == 0 {
		return raw, false, nil
	}

	// 无 BOM、无声明、又非 UTF-8 时探测会按 HTML 规范回退 windows-1252，
	// 对未声明的 GBK/BIG5 文件硬解等于把原文写成乱码，必须拒绝
	if _, encName, certain := charset.DetermineEncoding(raw, "text/html"); !certain &&
		encName == "windows-1252" && !hasMetaCharset(raw) {
		return nil, false, fmt.Errorf("无法确定原始编码（无字符集声明且非 UTF-8）")
	}

	// 按 meta 声明与字节特征探测原始编码并解码为 UTF-8
	reader, err := charset.NewReader(bytes.NewReader(raw), "text/html")
	if err != nil {
		return nil, false, fmt.Errorf("编码探测失败: %w", err)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("解码失败: %w", err)
	}

	changed := !bytes.Equal(decoded, raw)

	// 转码后原有的 gb2312/big5 等声明已不再属实，统一改写为 utf-8
	if rewritten := metaCharsetPattern.ReplaceAll(decoded, []byte("${1}utf-8")); !bytes.Equal(rewritten, decoded) {
		decoded = rewritten
		changed = true
	}

	// 仅对带 <head> 的完整文档补 meta 标签，正文片段保持原样
	if !hasMetaCharset(decoded) {
		if loc := headPattern.FindIndex(decoded); loc != nil {
			var buf bytes.Buffer
			buf.Write(decoded[:loc[1]])
			buf.WriteString("\n    <meta charset=\"utf-8\">")
			buf.Write(decoded[loc[1]:])
			decoded = buf.Bytes()
			changed = true
		}
	}

	return decoded, changed, nil
}

// hasMetaCharset 检查文档是否已声明字符集
// 识别 <meta charset=...> 与 <meta http-equiv="Content-Type" content="...charset=..."> 两种形式
func hasMetaCharset(doc []byte) bool {
	tokenizer := html.NewTokenizer(bytes.NewReader(doc))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "meta" {
				continue
			}

			var httpEquiv, content string
			for _, attr := range token.Attr {
				switch strings.ToLower(attr.Key) {
				case "charset":
					return true
				case "http-equiv":
					httpEquiv = strings.ToLower(attr.Val)
				case "content":
					content = strings.ToLower(attr.Val)
				}
			}
			if httpEquiv == "content-type" && strings.Contains(content, "charset=") {
				return true
			}
		}
	}
}

// NormalizeResult 是一次目录规范化的统计结果
type NormalizeResult struct {
	Processed int      `json:"processed"`
	Changed   int      `json:"changed"`
	Failed    []string `json:"failed,omitempty"`
}

// NormalizeService 对内容根目录执行批量规范化
type NormalizeService struct {
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewNormalizeService 创建规范化服务
func NewNormalizeService(logger *zap.Logger) *NormalizeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NormalizeService{
		normalizer: NewNormalizer(),
		logger:     logger,
	}
}

// NormalizeTree 递归处理 root 下的所有 HTML 文件
// 单个文件失败只记录，不中断整个批处理
func (s *NormalizeService) NormalizeTree(root string) (*NormalizeResult, error) {
	result := &NormalizeResult{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".html" && ext != ".htm" {
			return nil
		}

		result.Processed++
		changed, normErr := s.normalizeFile(path)
		if normErr != nil {
			s.logger.Warn("规范化失败", zap.String("path", path), zap.Error(normErr))
			result.Failed = append(result.Failed, path)
			return nil
		}
		if changed {
			result.Changed++
			s.logger.Info("已规范化", zap.String("path", path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历内容目录失败: %w", err)
	}

	return result, nil
}

func (s *NormalizeService) normalizeFile(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	normalized, changed, err := s.normalizer.Normalize(raw)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	// 原子写回
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, normalized, 0644); err != nil {
		return false, err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return false, err
	}

	return true, nil
}
