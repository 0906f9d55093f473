package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

// MilvusStore keeps chunks in a Milvus collection with a varchar primary
// key, the chunk text, JSON metadata and a float vector.
type MilvusStore struct {
	client      milvus.Client
	collection  string
	vectorField string
	vectorDim   int
}

func NewMilvusStore(ctx context.Context, cli milvus.Client, cfg *config.MilvusConfig) (*MilvusStore, error) {
	s := &MilvusStore{
		client:      cli,
		collection:  cfg.Collection,
		vectorField: cfg.VectorField,
		vectorDim:   cfg.VectorDim,
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Fields: []*entity.Field{
				{Name: "id", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "256"}, PrimaryKey: true},
				{Name: s.vectorField, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.vectorDim)}},
				{Name: "content", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "8192"}},
				{Name: "metadata", DataType: entity.FieldTypeJSON},
			},
		}
		if err := s.client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			return fmt.Errorf("build hnsw index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, s.vectorField, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", s.vectorField, err)
		}
		logger.WithFields(logrus.Fields{"collection": s.collection, "dim": s.vectorDim}).Info("milvus collection created")
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]string, n)
	contents := make([]string, n)
	vectors := make([][]float32, n)
	metadatas := make([][]byte, n)

	for i, r := range records {
		ids[i] = r.ID
		contents[i] = r.Text

		vec32 := make([]float32, len(r.Vector))
		for j, v := range r.Vector {
			vec32[j] = float32(v)
		}
		vectors[i] = vec32

		metaBytes, err := sonic.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		metadatas[i] = metaBytes
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector(s.vectorField, s.vectorDim, vectors),
		entity.NewColumnJSONBytes("metadata", metadatas),
	}

	if _, err := s.client.Upsert(ctx, s.collection, "", columns...); err != nil {
		return fmt.Errorf("upsert %d records: %w", n, err)
	}
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, vector []float64, topK int) ([]Hit, error) {
	vec32 := make([]float32, len(vector))
	for i, v := range vector {
		vec32[i] = float32(v)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("build search param: %w", err)
	}

	results, err := s.client.Search(ctx, s.collection, nil, "",
		[]string{"id", "content", "metadata"},
		[]entity.Vector{entity.FloatVector(vec32)},
		s.vectorField, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}

	var hits []Hit
	for _, result := range results {
		parsed, err := parseSearchResult(result)
		if err != nil {
			return nil, err
		}
		hits = append(hits, parsed...)
	}
	return hits, nil
}

func parseSearchResult(result milvus.SearchResult) ([]Hit, error) {
	n := len(result.Scores)
	if n == 0 {
		return nil, nil
	}

	idCol, ok := result.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", result.IDs)
	}

	var contentCol *entity.ColumnVarChar
	var metaBytes [][]byte
	for _, col := range result.Fields {
		switch col.Name() {
		case "content":
			if c, ok := col.(*entity.ColumnVarChar); ok {
				contentCol = c
			}
		case "metadata":
			if c, ok := col.(interface{ Data() [][]byte }); ok {
				metaBytes = c.Data()
			}
		}
	}
	if contentCol == nil {
		return nil, fmt.Errorf("content column missing from search result")
	}

	hits := make([]Hit, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(idCol.Data()) || i >= len(contentCol.Data()) {
			continue
		}
		h := Hit{
			ID:   idCol.Data()[i],
			Text: contentCol.Data()[i],
			// COSINE scores similarity in [-1, 1]; callers expect distance.
			Distance: 1 - float64(result.Scores[i]),
		}
		if i < len(metaBytes) && metaBytes[i] != nil {
			var m map[string]any
			if err := sonic.Unmarshal(metaBytes[i], &m); err == nil {
				h.Metadata = m
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (s *MilvusStore) ListAll(ctx context.Context) ([]ChunkInfo, error) {
	rs, err := s.client.Query(ctx, s.collection, nil, `id != ""`, []string{"id", "metadata"})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	var ids []string
	var metaBytes [][]byte
	for _, col := range rs {
		switch col.Name() {
		case "id":
			if c, ok := col.(*entity.ColumnVarChar); ok {
				ids = c.Data()
			}
		case "metadata":
			if c, ok := col.(interface{ Data() [][]byte }); ok {
				metaBytes = c.Data()
			}
		}
	}

	infos := make([]ChunkInfo, 0, len(ids))
	for i, id := range ids {
		info := ChunkInfo{ID: id}
		if i < len(metaBytes) && metaBytes[i] != nil {
			var m map[string]any
			if err := sonic.Unmarshal(metaBytes[i], &m); err == nil {
				info.Metadata = m
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (s *MilvusStore) DeleteByDocument(ctx context.Context, docID string) (int, error) {
	// Milvus treats % as the only LIKE wildcard, so the underscore in the
	// chunk ID separator matches literally.
	expr := fmt.Sprintf(`id like "%s_%%"`, docID)
	rs, err := s.client.Query(ctx, s.collection, nil, expr, []string{"id"})
	if err != nil {
		return 0, fmt.Errorf("query chunks for %s: %w", docID, err)
	}

	var ids []string
	for _, col := range rs {
		if col.Name() == "id" {
			if c, ok := col.(*entity.ColumnVarChar); ok {
				ids = c.Data()
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleteExpr := fmt.Sprintf(`id in ["%s"]`, strings.Join(ids, `","`))
	if err := s.client.Delete(ctx, s.collection, "", deleteExpr); err != nil {
		return 0, fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	return len(ids), nil
}
