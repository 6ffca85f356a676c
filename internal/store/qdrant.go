package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: acrecall).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Payload keys. The full record lives in the payload so it round-trips
// exactly, including embeddings Qdrant itself cannot hold.
const (
	payloadID        = "id"
	payloadText      = "text"
	payloadEmbedding = "embedding"
	payloadSource    = "sourceFile"
	payloadCreated   = "created"
	payloadAuthor    = "author"
	payloadType      = "type"
	payloadSeq       = "seq"
)

// scrollBatch is the page size used when enumerating the collection.
const scrollBatch = 256

// QdrantStore implements rag.VectorStore backed by a Qdrant instance.
// Point IDs are name-based UUIDs derived from the record ID. Scores are
// recomputed locally from the stored embedding so ranking matches the
// embedded stores exactly.
type QdrantStore struct {
	// cfg holds the resolved configuration for this store.
	cfg QdrantConfig

	mu sync.RWMutex
	// client is nil until Init succeeds and after Close.
	client *qdrant.Client
}

// NewQdrant returns an uninitialized QdrantStore.
func NewQdrant(cfg QdrantConfig) *QdrantStore {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "acrecall"
	}
	return &QdrantStore{cfg: cfg}
}

// Name returns "qdrant".
func (s *QdrantStore) Name() string { return "qdrant" }

// Client exposes the underlying client for readiness probes. Nil until Init.
func (s *QdrantStore) Client() *qdrant.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Init connects to Qdrant and ensures the collection exists.
func (s *QdrantStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	if s.cfg.VectorSize == 0 {
		return errs.New(errs.CodeConfigInvalid, "store: qdrant vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		APIKey: s.cfg.APIKey,
		UseTLS: s.cfg.UseTLS,
	})
	if err != nil {
		return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
			fmt.Sprintf("store: qdrant client: %v", err), "host", s.cfg.Host, "port", s.cfg.Port)
	}
	if err := ensureCollection(ctx, client, s.cfg); err != nil {
		_ = client.Close()
		return errs.Wrap(errs.ErrStorageUnavailable, errs.CodeStorageUnavailable,
			err.Error(), "host", s.cfg.Host, "collection", s.cfg.Collection)
	}
	s.client = client
	return nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func ensureCollection(ctx context.Context, client *qdrant.Client, cfg QdrantConfig) error {
	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", cfg.Collection, err)
	}
	return nil
}

func (s *QdrantStore) conn(op string) (*qdrant.Client, func(), error) {
	s.mu.RLock()
	if s.client == nil {
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("store: %s: %w", op, errs.ErrNotInitialized)
	}
	return s.client, s.mu.RUnlock, nil
}

// pointID maps a record ID onto a stable UUID.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("acrecall:"+id)).String())
}

// AddRecord upserts r. An overwritten record keeps its scan position.
func (s *QdrantStore) AddRecord(ctx context.Context, r rag.Record) error {
	client, release, err := s.conn("add record")
	if err != nil {
		return err
	}
	defer release()

	seq := time.Now().UnixNano()
	existing, err := client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{pointID(r.ID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant lookup", "id", r.ID)
	}
	if len(existing) > 0 {
		if v, ok := existing[0].GetPayload()[payloadSeq]; ok {
			seq = v.GetIntegerValue()
		}
	}

	emb, err := json.Marshal(nonNil(r.Embedding))
	if err != nil {
		return fmt.Errorf("store: add record: marshal embedding: %w", err)
	}
	created := r.Metadata.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	payload := map[string]any{
		payloadID:        r.ID,
		payloadText:      r.Text,
		payloadEmbedding: string(emb),
		payloadSource:    r.SourceFile,
		payloadCreated:   created.Format(time.RFC3339Nano),
		payloadAuthor:    r.Metadata.Author,
		payloadType:      string(r.Metadata.Type),
		payloadSeq:       seq,
	}

	_, err = client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      pointID(r.ID),
			Vectors: qdrant.NewVectors(s.indexVector(r.Embedding)...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant upsert", "id", r.ID)
	}
	return nil
}

// indexVector returns the vector Qdrant indexes for an embedding. Vectors of
// the wrong size are indexed as zero vectors; they score 0 either way.
func (s *QdrantStore) indexVector(v []float32) []float32 {
	if uint64(len(v)) == s.cfg.VectorSize {
		return v
	}
	return make([]float32, s.cfg.VectorSize)
}

// GetRecord returns the record with id.
func (s *QdrantStore) GetRecord(ctx context.Context, id string) (rag.Record, bool, error) {
	client, release, err := s.conn("get record")
	if err != nil {
		return rag.Record{}, false, err
	}
	defer release()

	points, err := client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return rag.Record{}, false, errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant get", "id", id)
	}
	if len(points) == 0 {
		return rag.Record{}, false, nil
	}
	rec, _, err := recordFromPayload(points[0].GetPayload())
	if err != nil {
		return rag.Record{}, false, fmt.Errorf("store: get record: %w", err)
	}
	return rec, true, nil
}

// FindByText returns every record whose text equals text, ignoring case.
func (s *QdrantStore) FindByText(ctx context.Context, text string) ([]rag.Record, error) {
	all, err := s.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: find by text: %w", err)
	}
	return matchText(all, text), nil
}

// GetAllRecords scrolls the whole collection and returns records in
// insertion order.
func (s *QdrantStore) GetAllRecords(ctx context.Context) ([]rag.Record, error) {
	client, release, err := s.conn("get all records")
	if err != nil {
		return nil, err
	}
	defer release()

	type seqRecord struct {
		rec rag.Record
		seq int64
	}
	var all []seqRecord
	var offset *qdrant.PointId
	for {
		points, next, err := client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollBatch)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant scroll")
		}
		for _, p := range points {
			rec, seq, err := recordFromPayload(p.GetPayload())
			if err != nil {
				return nil, fmt.Errorf("store: get all records: %w", err)
			}
			all = append(all, seqRecord{rec: rec, seq: seq})
		}
		if next == nil || len(points) < scrollBatch {
			break
		}
		offset = next
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]rag.Record, 0, len(all))
	for _, sr := range all {
		out = append(out, sr.rec)
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	client, release, err := s.conn("count")
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant count")
	}
	return int(n), nil //nolint:gosec // collection sizes are far below MaxInt
}

// DeleteRecord removes id if present.
func (s *QdrantStore) DeleteRecord(ctx context.Context, id string) error {
	client, release, err := s.conn("delete record")
	if err != nil {
		return err
	}
	defer release()

	_, err = client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	if err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant delete", "id", id)
	}
	return nil
}

// ClearAll drops and recreates the collection.
func (s *QdrantStore) ClearAll(ctx context.Context) error {
	client, release, err := s.conn("clear all")
	if err != nil {
		return err
	}
	defer release()

	if err := client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant drop collection")
	}
	if err := ensureCollection(ctx, client, s.cfg); err != nil {
		return errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant recreate collection")
	}
	return nil
}

// Search asks Qdrant for candidates, then rescores them locally and applies
// the inclusive threshold. Queries Qdrant cannot index (wrong size or zero
// magnitude) fall back to an exact scan. There a zero vector scores 0
// against every record, so it matches only when threshold <= 0.
func (s *QdrantStore) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}
	if uint64(len(query)) != s.cfg.VectorSize || isZero(query) {
		all, err := s.GetAllRecords(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: search: %w", err)
		}
		return rag.Rank(query, all, topK, threshold), nil
	}

	client, release, err := s.conn("search")
	if err != nil {
		return nil, err
	}
	defer release()

	points, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true),
		},
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStorageFailure, "store: qdrant query")
	}

	type scored struct {
		res rag.SearchResult
		seq int64
	}
	hits := make([]scored, 0, len(points))
	for _, p := range points {
		rec, seq, err := recordFromPayload(p.GetPayload())
		if err != nil {
			return nil, fmt.Errorf("store: search: %w", err)
		}
		score := rag.CosineSimilarity(query, rec.Embedding)
		if score < threshold {
			continue
		}
		hits = append(hits, scored{res: rag.SearchResult{Record: rec, Score: score}, seq: seq})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]rag.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.res)
	}
	return out, nil
}

// IsAvailable calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) IsAvailable(ctx context.Context) bool {
	client, release, err := s.conn("health")
	if err != nil {
		return false
	}
	defer release()
	_, err = client.HealthCheck(ctx)
	return err == nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return fmt.Errorf("store: qdrant close: %w", err)
	}
	return nil
}

// recordFromPayload decodes a point payload written by AddRecord.
func recordFromPayload(p map[string]*qdrant.Value) (rag.Record, int64, error) {
	str := func(k string) string {
		if v, ok := p[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	r := rag.Record{
		ID:         str(payloadID),
		Text:       str(payloadText),
		SourceFile: str(payloadSource),
		Metadata: rag.Metadata{
			Author: str(payloadAuthor),
			Type:   rag.RecordType(str(payloadType)),
		},
	}
	if t, err := time.Parse(time.RFC3339Nano, str(payloadCreated)); err == nil {
		r.Metadata.Created = t
	}
	if raw := str(payloadEmbedding); raw != "" {
		if err := json.Unmarshal([]byte(raw), &r.Embedding); err != nil {
			return rag.Record{}, 0, fmt.Errorf("decode embedding for %q: %w", r.ID, err)
		}
	}
	var seq int64
	if v, ok := p[payloadSeq]; ok {
		seq = v.GetIntegerValue()
	}
	return r, seq, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
