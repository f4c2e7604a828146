// Package kb 实现了知识库的核心：文本分块、向量索引与文档加载。
package kb

// Split 将多段原始文本切分为有界、带重叠的分块。
// 每段文本独立切分，分块不会跨越两段来源文本；
// 对固定的输入与参数，输出是确定的。
func Split(texts []string, chunkSize, overlap int) []string {
	var chunks []string
	for _, text := range texts {
		chunks = append(chunks, splitText(text, chunkSize, overlap)...)
	}
	return chunks
}

// splitText 对单段文本做滑动窗口切分。
// 相邻分块重叠 overlap 个字符（最后一块可能更短）。
func splitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= overlap {
		// 重叠必须小于分块大小，否则退化为无重叠切分
		return simpleSplit(text, chunkSize)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - overlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
