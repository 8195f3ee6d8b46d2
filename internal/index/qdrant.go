package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace is the UUID namespace for deriving Qdrant point IDs from
// record identity keys. Qdrant only accepts UUIDs or unsigned integers as
// point IDs; hashing the key into a v5 UUID keeps upserts idempotent while
// the original key stays in the payload.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance. Unlike a
// single-collection setup, the collection is chosen per call so one client
// serves all record types.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to Qdrant. Collections are created lazily via
// EnsureCollection.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// pointID derives the Qdrant point UUID for a record identity key.
func pointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist, along with a full-text payload index on "text" so lexical
// fallback queries work without embeddings.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "text",
		FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeText),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index text field of %q: %w", name, err)
	}

	return nil
}

// DeleteCollection drops the collection. A missing collection is ignored.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection %q: %w", name, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant: failed to delete collection %q: %w", name, err)
	}
	return nil
}

// Upsert writes points into the collection. Point IDs are derived from the
// record identity key, so re-upserting the same key replaces the point.
func (s *QdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]any{
			"id":   p.ID,
			"text": p.Text,
		}
		for k, v := range p.Metadata {
			payload[k] = v
		}

		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", name, err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, name string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count of %q failed: %w", name, err)
	}
	return count, nil
}

// QueryVector performs a cosine similarity search, returning stored vectors
// alongside payloads so the retriever can rescore.
func (s *QdrantStore) QueryVector(ctx context.Context, name string, vec []float32, limit int) ([]Hit, error) {
	qlimit := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &qlimit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query of %q failed: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{Score: r.Score}
		if v := r.Vectors.GetVector(); v != nil {
			hit.Vector = v.GetData()
		}
		decodePayload(r.Payload, &hit)
		hits = append(hits, hit)
	}
	return hits, nil
}

// QueryText matches the query against the full-text payload index on "text".
// Scores are 0; match order is the backend's scroll order.
func (s *QdrantStore) QueryText(ctx context.Context, name string, query string, limit int) ([]Hit, error) {
	qlimit := uint32(limit)
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchText("text", query),
			},
		},
		Limit:       &qlimit,
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: text query of %q failed: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		var hit Hit
		if v := r.Vectors.GetVector(); v != nil {
			hit.Vector = v.GetData()
		}
		decodePayload(r.Payload, &hit)
		hits = append(hits, hit)
	}
	return hits, nil
}

// decodePayload fills a Hit's ID, Text and Metadata from a Qdrant payload.
func decodePayload(payload map[string]*qdrant.Value, hit *Hit) {
	if payload == nil {
		return
	}
	hit.Metadata = make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case "id":
			hit.ID = v.GetStringValue()
		case "text":
			hit.Text = v.GetStringValue()
		}
		switch v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			hit.Metadata[k] = v.GetStringValue()
		case *qdrant.Value_IntegerValue:
			hit.Metadata[k] = v.GetIntegerValue()
		case *qdrant.Value_DoubleValue:
			hit.Metadata[k] = v.GetDoubleValue()
		case *qdrant.Value_BoolValue:
			hit.Metadata[k] = v.GetBoolValue()
		}
	}
	delete(hit.Metadata, "text")
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
