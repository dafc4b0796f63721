package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore 在进程内保存向量，使用余弦相似度检索，适合本地开发与测试。
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	spaces    map[string]map[string]Vector
}

// NewMemoryStore 创建内存向量库。
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		spaces:    make(map[string]map[string]Vector),
	}
}

// Upsert 写入或覆盖向量。
func (s *MemoryStore) Upsert(_ context.Context, namespace string, vectors []Vector) error {
	if err := ValidateVectors(vectors, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	space := s.spaces[namespace]
	if space == nil {
		space = make(map[string]Vector)
		s.spaces[namespace] = space
	}
	for _, v := range vectors {
		space[v.ID] = cloneVector(v)
	}
	return nil
}

// Fetch 按 ID 读取向量，不存在的 ID 不出现在结果中。
func (s *MemoryStore) Fetch(_ context.Context, namespace string, ids []string) (map[string]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]Vector, len(ids))
	space := s.spaces[namespace]
	for _, id := range ids {
		if v, ok := space[id]; ok {
			result[id] = cloneVector(v)
		}
	}
	return result, nil
}

// Query 返回按相似度降序排列的前 TopK 条结果，分数相同按 ID 排序。
func (s *MemoryStore) Query(_ context.Context, vector []float32, q Query) ([]Match, error) {
	if err := ValidateDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 1
	}

	s.mu.RLock()
	space := s.spaces[q.Namespace]
	matches := make([]Match, 0, len(space))
	for id, v := range space {
		if len(v.Values) != len(vector) {
			continue
		}
		m := Match{ID: id, Score: Cosine(vector, v.Values)}
		if q.IncludeMetadata {
			m.Metadata = cloneMetadata(v.Metadata)
		}
		matches = append(matches, m)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete 删除指定 ID。
func (s *MemoryStore) Delete(_ context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	space := s.spaces[namespace]
	for _, id := range ids {
		delete(space, id)
	}
	return nil
}

// Cosine 计算两个等长向量的余弦相似度，零向量返回 0。
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneVector(v Vector) Vector {
	return Vector{
		ID:       v.ID,
		Values:   append([]float32(nil), v.Values...),
		Metadata: cloneMetadata(v.Metadata),
	}
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
