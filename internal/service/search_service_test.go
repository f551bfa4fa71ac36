package service

import (
	"context"
	"testing"

	"annolab-go/internal/config"
	"annolab-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeProjectRepo 提供内存中的项目与文件夹数据。
type fakeProjectRepo struct {
	projects map[uint]*model.Project
	folders  []model.Folder
}

func (f *fakeProjectRepo) Create(p *model.Project) error { return nil }
func (f *fakeProjectRepo) FindByID(projectID uint) (*model.Project, error) {
	if p, ok := f.projects[projectID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeProjectRepo) FindByUserID(userID uint) ([]model.Project, error) { return nil, nil }
func (f *fakeProjectRepo) Update(p *model.Project) error                     { return nil }
func (f *fakeProjectRepo) Delete(projectID uint) error                       { return nil }
func (f *fakeProjectRepo) CreateFolder(folder *model.Folder) error           { return nil }
func (f *fakeProjectRepo) FindFolderByID(folderID uint) (*model.Folder, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeProjectRepo) FindFoldersByProject(projectID uint) ([]model.Folder, error) {
	return f.folders, nil
}
func (f *fakeProjectRepo) UpdateFolder(folder *model.Folder) error { return nil }
func (f *fakeProjectRepo) DeleteFolder(folderID uint) error        { return nil }

// fakeDocRepo 提供内存中的文档数据。
type fakeDocRepo struct {
	docs []model.Document
}

func (f *fakeDocRepo) Create(doc *model.Document) error { return nil }
func (f *fakeDocRepo) FindByID(documentID uint) (*model.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == documentID {
			return &f.docs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeDocRepo) FindByProjectID(projectID uint) ([]model.Document, error) { return f.docs, nil }
func (f *fakeDocRepo) FindByFolderID(folderID uint) ([]model.Document, error)   { return nil, nil }
func (f *fakeDocRepo) UpdateFullText(documentID uint, fullText string) error    { return nil }
func (f *fakeDocRepo) UpdateIntent(documentID uint, intent string) error        { return nil }
func (f *fakeDocRepo) MarkReady(documentID uint) error                          { return nil }
func (f *fakeDocRepo) MarkFailed(documentID uint, reason string) error          { return nil }
func (f *fakeDocRepo) Delete(documentID uint) error                             { return nil }

// fakeAnnotationRepo 提供内存中的标注数据。
type fakeAnnotationRepo struct {
	annotations []model.Annotation
}

func (f *fakeAnnotationRepo) Create(a *model.Annotation) error      { return nil }
func (f *fakeAnnotationRepo) BatchCreate(a []model.Annotation) error { return nil }
func (f *fakeAnnotationRepo) FindByID(id uint) (*model.Annotation, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAnnotationRepo) FindByDocumentID(documentID uint, category string) ([]model.Annotation, error) {
	return nil, nil
}
func (f *fakeAnnotationRepo) FindByDocumentIDs(documentIDs []uint) ([]model.Annotation, error) {
	allowed := make(map[uint]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}
	var out []model.Annotation
	for _, a := range f.annotations {
		if allowed[a.DocumentID] {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeAnnotationRepo) FindUserAnnotations(documentID uint) ([]model.Annotation, error) {
	return nil, nil
}
func (f *fakeAnnotationRepo) Update(a *model.Annotation) error             { return nil }
func (f *fakeAnnotationRepo) Delete(id uint) error                         { return nil }
func (f *fakeAnnotationRepo) DeleteGeneratedByDocument(documentID uint) error { return nil }
func (f *fakeAnnotationRepo) DeleteByDocumentID(documentID uint) error     { return nil }

func TestTextMatchScore(t *testing.T) {
	t.Run("整句子串命中得0.9", func(t *testing.T) {
		assert.Equal(t, 0.9, TextMatchScore("cat", "I have a cat"))
	})

	t.Run("匹配不区分大小写", func(t *testing.T) {
		assert.Equal(t, 0.9, TextMatchScore("CAT", "i have a Cat"))
	})

	t.Run("词级部分命中按比例打分", func(t *testing.T) {
		// "attention" 命中, "mechanisms" 未命中 -> 0.6 * 0.5
		assert.InDelta(t, 0.3, TextMatchScore("attention mechanisms", "covers attention and transformers"), 1e-9)
	})

	t.Run("命中率不足一半不计分", func(t *testing.T) {
		assert.Equal(t, 0.0, TextMatchScore("one two three four", "only one word matches here"))
	})

	t.Run("短词不参与词级匹配", func(t *testing.T) {
		assert.Equal(t, 0.0, TextMatchScore("an it", "an apple on it"))
	})

	t.Run("空输入不计分", func(t *testing.T) {
		assert.Equal(t, 0.0, TextMatchScore("", "text"))
		assert.Equal(t, 0.0, TextMatchScore("query", ""))
	})
}

func TestRelevanceLevelOf(t *testing.T) {
	assert.Equal(t, model.RelevanceHigh, model.RelevanceLevelOf(0.9))
	assert.Equal(t, model.RelevanceHigh, model.RelevanceLevelOf(0.7))
	assert.Equal(t, model.RelevanceMedium, model.RelevanceLevelOf(0.5))
	assert.Equal(t, model.RelevanceLow, model.RelevanceLevelOf(0.3))
}

// newTestSearchService 构建带内存数据的搜索服务。
func newTestSearchService(projects *fakeProjectRepo, docs *fakeDocRepo, annotations *fakeAnnotationRepo) SearchService {
	return NewSearchService(
		projects, docs, newFakeChunkRepo(), annotations,
		nil, nil,
		config.ElasticsearchConfig{},
		config.RetrievalConfig{SearchLimit: 20},
	)
}

func TestGlobalSearchUnknownProject(t *testing.T) {
	s := newTestSearchService(&fakeProjectRepo{projects: map[uint]*model.Project{}}, &fakeDocRepo{}, &fakeAnnotationRepo{})

	resp, err := s.GlobalSearch(context.Background(), 42, "anything", model.GlobalSearchFilters{}, 0)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.TotalResults)
}

func TestGlobalSearchMergeAndOrdering(t *testing.T) {
	folderID := uint(3)
	projects := &fakeProjectRepo{
		projects: map[uint]*model.Project{
			1: {ID: 1, Name: "transformer survey", Thesis: "архив"},
		},
		folders: []model.Folder{
			{ID: folderID, ProjectID: 1, Name: "misc", Description: "unrelated notes"},
		},
	}
	docs := &fakeDocRepo{docs: []model.Document{
		{ID: 10, ProjectID: 1, FileName: "attention.pdf", RetrievalContext: "covers attention and transformers"},
	}}
	annotations := &fakeAnnotationRepo{annotations: []model.Annotation{
		{ID: 100, DocumentID: 10, HighlightText: "attention mechanisms are central", Category: "finding", StartPos: 5, EndPos: 36},
	}}
	s := newTestSearchService(projects, docs, annotations)

	resp, err := s.GlobalSearch(context.Background(), 1, "attention mechanisms", model.GlobalSearchFilters{}, 0)
	require.NoError(t, err)

	// 标注整句命中排在前面，文档词级部分命中排在后面，文件夹不相关被丢弃
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.TotalResults)

	first := resp.Results[0]
	assert.Equal(t, model.ResultTypeAnnotation, first.Type)
	assert.Equal(t, 0.9, first.SimilarityScore)
	assert.Equal(t, model.RelevanceHigh, first.RelevanceLevel)
	require.NotNil(t, first.AnnotationID)
	assert.Equal(t, uint(100), *first.AnnotationID)
	assert.Equal(t, "attention.pdf", first.FileName)
	require.NotNil(t, first.StartPos)
	assert.Equal(t, 5, *first.StartPos)

	second := resp.Results[1]
	assert.Equal(t, model.ResultTypeDocumentContext, second.Type)
	assert.InDelta(t, 0.3, second.SimilarityScore, 1e-9)
	assert.Equal(t, model.RelevanceLow, second.RelevanceLevel)
}

func TestGlobalSearchCategoryFilter(t *testing.T) {
	projects := &fakeProjectRepo{projects: map[uint]*model.Project{
		1: {ID: 1, Name: "dataset paper", Thesis: "dataset quality"},
	}}
	docs := &fakeDocRepo{docs: []model.Document{
		{ID: 10, ProjectID: 1, FileName: "dataset.pdf"},
	}}
	annotations := &fakeAnnotationRepo{annotations: []model.Annotation{
		{ID: 1, DocumentID: 10, HighlightText: "dataset bias discussion", Category: "limitation"},
		{ID: 2, DocumentID: 10, HighlightText: "dataset splits table", Category: "method"},
	}}
	s := newTestSearchService(projects, docs, annotations)

	resp, err := s.GlobalSearch(context.Background(), 1, "dataset", model.GlobalSearchFilters{Category: "method"}, 0)
	require.NoError(t, err)

	// 分类过滤后只剩标注来源，且只保留指定分类
	require.Len(t, resp.Results, 1)
	assert.Equal(t, model.ResultTypeAnnotation, resp.Results[0].Type)
	assert.Equal(t, "method", resp.Results[0].Category)
}

func TestGlobalSearchLimitTruncation(t *testing.T) {
	annotations := &fakeAnnotationRepo{}
	for i := 0; i < 8; i++ {
		annotations.annotations = append(annotations.annotations, model.Annotation{
			ID: uint(i + 1), DocumentID: 10, HighlightText: "graph neural network layer",
		})
	}
	projects := &fakeProjectRepo{projects: map[uint]*model.Project{
		1: {ID: 1, Name: "gnn"},
	}}
	docs := &fakeDocRepo{docs: []model.Document{{ID: 10, ProjectID: 1, FileName: "gnn.pdf"}}}
	s := newTestSearchService(projects, docs, annotations)

	resp, err := s.GlobalSearch(context.Background(), 1, "graph neural network", model.GlobalSearchFilters{}, 3)
	require.NoError(t, err)

	// totalResults 统计截断前的命中数
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 8, resp.TotalResults)
}
