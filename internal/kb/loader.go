package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kb-assist-go/internal/model"
)

// ErrUnsupportedFormat 表示文件扩展名没有对应的解析器。
var ErrUnsupportedFormat = errors.New("不支持的文件格式，仅支持 .json 或 .txt 文件")

// parseFunc 将一个本地文件解析为文档序列。
type parseFunc func(path string) ([]model.Document, error)

// parsers 是按扩展名注册的解析器表，新增格式只需在此登记。
var parsers = map[string]parseFunc{
	".json": parseJSONFile,
	".txt":  parseTextFile,
}

// ParseFile 根据扩展名分发解析器，把文件内容解析为文档序列。
// 内容为空（去除首尾空白后）的条目会被静默丢弃。
func ParseFile(path string) ([]model.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parse, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return parse(path)
}

// jsonDocumentFile 对应 JSON 文件的顶层结构：{"documents": [{"content": ...}, ...]}
type jsonDocumentFile struct {
	Documents []struct {
		Content string `json:"content"`
	} `json:"documents"`
}

// parseJSONFile 从 JSON 文件加载文档。
func parseJSONFile(path string) ([]model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 JSON 文件失败: %w", err)
	}

	var parsed jsonDocumentFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("解析 JSON 文档失败: %w", err)
	}

	fileName := filepath.Base(path)
	documents := make([]model.Document, 0, len(parsed.Documents))
	for _, entry := range parsed.Documents {
		content := strings.TrimSpace(entry.Content)
		if content == "" {
			continue
		}
		documents = append(documents, model.Document{Content: content, FileName: fileName})
	}
	return documents, nil
}

// parseTextFile 从 TXT 文件加载文档，每个非空行作为一个文档。
func parseTextFile(path string) ([]model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 TXT 文件失败: %w", err)
	}

	fileName := filepath.Base(path)
	lines := strings.Split(string(data), "\n")
	documents := make([]model.Document, 0, len(lines))
	for _, line := range lines {
		content := strings.TrimSpace(line)
		if content == "" {
			continue
		}
		documents = append(documents, model.Document{Content: content, FileName: fileName})
	}
	return documents, nil
}
