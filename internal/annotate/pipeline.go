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

const annotationSystemPrompt = `你是一名文献标注助手。用户会给出一个研究意图和若干文档片段。
请从片段中找出与研究意图直接相关的原文内容并生成标注。
严格按 JSON 数组输出，不要输出任何额外文本。每个元素包含以下字段：
- "highlight_text": 从片段中逐字摘出的原文（不要改写、不要翻译）
- "category": 标注分类，从 ["evidence", "method", "finding", "definition", "limitation", "other"] 中选择
- "note": 一句话说明该内容与研究意图的关联
- "confidence": 0 到 1 之间的相关性置信度
没有相关内容时输出空数组 []。`

// generatedAnnotation 是模型回复中单条标注的 JSON 结构。
type generatedAnnotation struct {
	HighlightText string  `json:"highlight_text"`
	Category      string  `json:"category"`
	Note          string  `json:"note"`
	Confidence    float64 `json:"confidence"`
}

// RunAnnotationPipeline 针对给定的研究意图，对一批高相关分块生成标注。
// 返回的标注偏移量基于文档 FullText 的字符坐标系，来源统一为 generated。
// priorUserAnnotations 作为既有上下文传给模型，避免生成重复标注。
func RunAnnotationPipeline(ctx context.Context, client llm.Client, documentID uint, intent string, topChunks []model.Chunk, priorUserAnnotations []model.Annotation) ([]model.Annotation, error) {
	if len(topChunks) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("研究意图：")
	sb.WriteString(intent)
	sb.WriteString("\n\n")
	if len(priorUserAnnotations) > 0 {
		sb.WriteString("用户已手工标注的内容（不要重复生成）：\n")
		for _, a := range priorUserAnnotations {
			sb.WriteString("- ")
			sb.WriteString(a.HighlightText)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("文档片段：\n")
	for i, chunk := range topChunks {
		sb.WriteString(fmt.Sprintf("[片段 %d]\n%s\n\n", i+1, chunk.TextContent))
	}

	messages := []llm.Message{
		{Role: "system", Content: annotationSystemPrompt},
		{Role: "user", Content: sb.String()},
	}

	reply, err := client.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("标注生成调用失败: %w", err)
	}

	jsonText := extractJSONArray(reply)
	if jsonText == "" {
		return nil, fmt.Errorf("标注生成回复中未找到 JSON 数组")
	}

	var generated []generatedAnnotation
	if err := json.Unmarshal([]byte(jsonText), &generated); err != nil {
		return nil, fmt.Errorf("解析标注生成回复失败: %w", err)
	}

	annotations := make([]model.Annotation, 0, len(generated))
	for _, g := range generated {
		start, end, ok := locateAcrossChunks(topChunks, g.HighlightText)
		if !ok {
			// 定位不到的内容视为模型幻觉，丢弃
			log.Warnf("[Annotate] 丢弃无法在原文中定位的标注: %.50s", g.HighlightText)
			continue
		}
		annotations = append(annotations, model.Annotation{
			DocumentID:    documentID,
			StartPos:      start,
			EndPos:        end,
			HighlightText: g.HighlightText,
			Category:      g.Category,
			Note:          g.Note,
			Confidence:    clampConfidence(g.Confidence),
			Source:        model.AnnotationSourceGenerated,
		})
	}
	return annotations, nil
}

// locateAcrossChunks 在一批分块中定位文本，返回文档坐标系下的 [start, end)。
func locateAcrossChunks(chunks []model.Chunk, text string) (int, int, bool) {
	for _, chunk := range chunks {
		if start, end, ok := locateRuneSpan(chunk.TextContent, text); ok {
			return chunk.StartPos + start, chunk.StartPos + end, true
		}
	}
	return 0, 0, false
}
