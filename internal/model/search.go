// Package model 定义了与数据库表对应的 Go 结构体。
package model

// 全局搜索结果的判别变体。
const (
	ResultTypeProjectContext  = "project_context"
	ResultTypeFolderContext   = "folder_context"
	ResultTypeDocumentContext = "document_context"
	ResultTypeAnnotation      = "annotation"
)

// 相关性档位，由连续得分经固定阈值离散化得到。
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// GlobalSearchResult 是全局搜索返回的单条结果。
// Type 决定了哪些来源字段有值；MatchedText 与 SimilarityScore 对所有变体有效。
type GlobalSearchResult struct {
	Type            string  `json:"type"`
	MatchedText     string  `json:"matchedText"`
	SimilarityScore float64 `json:"similarityScore"`
	RelevanceLevel  string  `json:"relevanceLevel"`

	// 来源定位字段，仅在对应变体下填充。
	FolderID     *uint  `json:"folderId,omitempty"`
	FolderName   string `json:"folderName,omitempty"`
	DocumentID   *uint  `json:"documentId,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	AnnotationID *uint  `json:"annotationId,omitempty"`
	Category     string `json:"category,omitempty"`
	StartPos     *int   `json:"startPosition,omitempty"`
	EndPos       *int   `json:"endPosition,omitempty"`
}

// GlobalSearchResponse 是全局搜索接口的响应体。
// TotalResults 是截断前的命中总数，SearchTimeMs 是整次搜索的耗时。
type GlobalSearchResponse struct {
	Results      []GlobalSearchResult `json:"results"`
	TotalResults int                  `json:"totalResults"`
	SearchTimeMs int64                `json:"searchTime"`
}

// GlobalSearchFilters 是全局搜索的可选过滤条件，多个条件同时给出时取交集。
type GlobalSearchFilters struct {
	Category    string
	FolderIDs   []uint
	DocumentIDs []uint
}

// QuoteResult 是单文档语义搜索返回的引文条目。
// Relevance 由外部引文抽取协作方自行判定，与全局搜索的阈值档位不是同一尺度。
type QuoteResult struct {
	Quote       string `json:"quote"`
	Explanation string `json:"explanation"`
	Relevance   string `json:"relevance"`
	StartPos    int    `json:"startPosition"`
	EndPos      int    `json:"endPosition"`
}

// ChunkMatch 是单文档关键词搜索（text 模式）返回的分块命中。
type ChunkMatch struct {
	ChunkIndex  int     `json:"chunkIndex"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
	StartPos    int     `json:"startPosition"`
	EndPos      int     `json:"endPosition"`
}

// RelevanceLevelOf 把 [0,1] 的连续得分归入固定档位。
func RelevanceLevelOf(score float64) string {
	switch {
	case score >= 0.7:
		return RelevanceHigh
	case score >= 0.5:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}
