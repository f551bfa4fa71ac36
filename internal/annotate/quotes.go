// Package annotate 封装了调用大语言模型生成标注与抽取引文的管线。
package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"annolab-go/internal/model"
	"annolab-go/pkg/llm"
	"annolab-go/pkg/log"
)

const quoteSystemPrompt = `你是一名文献检索助手。用户会给出一个查询问题和若干文档片段。
请从片段中逐字摘出能回答该问题的原文引文。
严格按 JSON 数组输出，不要输出任何额外文本。每个元素包含以下字段：
- "quote": 从片段中逐字摘出的原文
- "explanation": 一句话说明该引文如何回答查询
- "relevance": 引文与查询的相关程度，从 ["high", "medium", "low"] 中选择
没有相关内容时输出空数组 []。`

// extractedQuote 是模型回复中单条引文的 JSON 结构。
type extractedQuote struct {
	Quote       string `json:"quote"`
	Explanation string `json:"explanation"`
	Relevance   string `json:"relevance"`
}

// ExtractQuotes 针对查询从一批高相关分块中抽取引文。
// researchContext 非空时一并提供给模型，帮助判断相关性。
// 返回的偏移量基于文档 FullText 的字符坐标系；相关性档位由模型自行判定。
func ExtractQuotes(ctx context.Context, client llm.Client, query, researchContext string, topChunks []model.Chunk) ([]model.QuoteResult, error) {
	if len(topChunks) == 0 {
		return []model.QuoteResult{}, nil
	}

	var sb strings.Builder
	sb.WriteString("查询：")
	sb.WriteString(query)
	sb.WriteString("\n\n")
	if researchContext != "" {
		sb.WriteString("研究背景：")
		sb.WriteString(researchContext)
		sb.WriteString("\n\n")
	}
	sb.WriteString("文档片段：\n")
	for i, chunk := range topChunks {
		sb.WriteString(fmt.Sprintf("[片段 %d]\n%s\n\n", i+1, chunk.TextContent))
	}

	messages := []llm.Message{
		{Role: "system", Content: quoteSystemPrompt},
		{Role: "user", Content: sb.String()},
	}

	reply, err := client.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("引文抽取调用失败: %w", err)
	}

	jsonText := extractJSONArray(reply)
	if jsonText == "" {
		return nil, fmt.Errorf("引文抽取回复中未找到 JSON 数组")
	}

	var extracted []extractedQuote
	if err := json.Unmarshal([]byte(jsonText), &extracted); err != nil {
		return nil, fmt.Errorf("解析引文抽取回复失败: %w", err)
	}

	quotes := make([]model.QuoteResult, 0, len(extracted))
	for _, q := range extracted {
		start, end, ok := locateAcrossChunks(topChunks, q.Quote)
		if !ok {
			log.Warnf("[Annotate] 丢弃无法在原文中定位的引文: %.50s", q.Quote)
			continue
		}
		quotes = append(quotes, model.QuoteResult{
			Quote:       q.Quote,
			Explanation: q.Explanation,
			Relevance:   normalizeRelevance(q.Relevance),
			StartPos:    start,
			EndPos:      end,
		})
	}
	return quotes, nil
}

// normalizeRelevance 把模型给出的相关性归一到既定档位，非法值按 low 处理。
func normalizeRelevance(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case model.RelevanceHigh:
		return model.RelevanceHigh
	case model.RelevanceMedium:
		return model.RelevanceMedium
	default:
		return model.RelevanceLow
	}
}
