package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dshills/ragcore/internal/index"
	"github.com/dshills/ragcore/pkg/types"
)

// Payload fields stored with every point
const (
	payloadID       = "id"
	payloadText     = "text"
	payloadSeq      = "seq"
	payloadMetadata = "metadata"
)

// QdrantConfig holds configuration for a remote Qdrant collection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: "localhost")
	Host string

	// Port is the gRPC port (default: 6334)
	Port int

	// UseTLS enables TLS for the gRPC connection
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud
	APIKey string

	// Collection name (default: "ragcore")
	Collection string

	// MaxMessageSize bounds gRPC messages in bytes (default: 64MB).
	// Exact search returns every point, so large collections need headroom.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 64 * 1024 * 1024
	}
}

// Validate validates the configuration
func (c *QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: qdrant port %d out of range", types.ErrInvalidConfiguration, c.Port)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("%w: max message size must be positive", types.ErrInvalidConfiguration)
	}
	return nil
}

// Qdrant implements index.Index on a Qdrant collection.
//
// The collection is created lazily by the first Add with the cosine distance
// and the batch's dimension. Searches disable HNSW (exact brute force) and
// fetch every point so ranking can be finished locally.
type Qdrant struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	mu      sync.RWMutex
	exists  bool // Collection has been created
	collDim int  // Vector size the collection was created with
	dim     int  // Established dimension, 0 while empty
	nextSeq int64
}

var _ index.Index = (*Qdrant)(nil)

// NewQdrant connects to Qdrant and recovers the state of an existing collection.
func NewQdrant(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	s := &Qdrant{client: client, config: cfg, logger: logger}
	if err := s.restore(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant index initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
		zap.Int("dimension", s.dim),
		zap.Int64("entries", s.nextSeq),
	)

	return s, nil
}

// restore loads the vector size and point count of an existing collection
func (s *Qdrant) restore(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return nil
		}
		return fmt.Errorf("getting collection info for %s: %w", s.config.Collection, err)
	}

	s.exists = true
	s.collDim = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())

	count, err := s.count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.dim = s.collDim
		s.nextSeq = int64(count)
	}
	return nil
}

func (s *Qdrant) count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points in %s: %w", s.config.Collection, err)
	}
	return n, nil
}

// ensureCollection creates the collection for dim, replacing an empty
// collection that was created with a different size
func (s *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	if s.exists && s.collDim == dim {
		return nil
	}
	if s.exists {
		if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
		}
		s.exists = false
	}

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}

	s.exists = true
	s.collDim = dim
	return nil
}

// Add upserts entries as points and waits for them to be searchable
func (s *Qdrant) Add(ctx context.Context, entries []types.Entry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := index.ValidateBatch(s.dim, entries)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return nil, fmt.Errorf("%s: %w", index.OpAdd, err)
	}

	ids := make([]string, len(entries))
	points := make([]*qdrant.PointStruct, len(entries))
	for i := range entries {
		ids[i] = uuid.NewString()

		fields := make(map[string]*qdrant.Value, len(entries[i].Metadata))
		for k, v := range entries[i].Metadata {
			fields[k] = stringValue(v)
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ids[i]),
			Vectors: qdrant.NewVectors(entries[i].Embedding...),
			Payload: map[string]*qdrant.Value{
				payloadID:   stringValue(ids[i]),
				payloadText: stringValue(entries[i].Text),
				payloadSeq:  {Kind: &qdrant.Value_IntegerValue{IntegerValue: s.nextSeq + int64(i)}},
				payloadMetadata: {Kind: &qdrant.Value_StructValue{
					StructValue: &qdrant.Struct{Fields: fields},
				}},
			},
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: upserting points to collection %s: %w", index.OpAdd, s.config.Collection, err)
	}

	s.nextSeq += int64(len(entries))
	s.dim = dim

	s.logger.Debug("upserted points to qdrant",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(entries)),
	)

	return ids, nil
}

// Search scores every point exactly and re-ranks locally
func (s *Qdrant) Search(ctx context.Context, query []float32, k int) ([]types.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.exists || s.nextSeq == 0 {
		return []types.Result{}, nil
	}
	if err := index.ValidateQuery(s.dim, query, k); err != nil {
		return nil, err
	}

	// A zero query has no direction; every point scores 0
	if index.Norm(query) == 0 {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.config.Collection,
			Limit:          qdrant.PtrOf(uint32(s.nextSeq)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: scrolling collection %s: %w", index.OpSearch, s.config.Collection, err)
		}
		candidates := make([]index.Candidate, len(points))
		for i, p := range points {
			candidates[i] = candidateFromPayload(p.GetPayload(), 0)
		}
		return index.Rank(candidates, k), nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(s.nextSeq)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true), // Disable HNSW, use brute-force
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: querying collection %s: %w", index.OpSearch, s.config.Collection, err)
	}

	candidates := make([]index.Candidate, len(points))
	for i, p := range points {
		candidates[i] = candidateFromPayload(p.GetPayload(), clampScore(float64(p.GetScore())))
	}
	return index.Rank(candidates, k), nil
}

// Len counts points in the collection
func (s *Qdrant) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return 0, nil
	}
	n, err := s.count(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Dimension returns the fixed embedding length, 0 while empty
func (s *Qdrant) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Reset deletes the collection. It is recreated by the next Add.
func (s *Qdrant) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exists {
		if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
			return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
		}
	}
	s.exists = false
	s.collDim = 0
	s.dim = 0
	s.nextSeq = 0
	return nil
}

// Close closes the gRPC connection
func (s *Qdrant) Close() error {
	return s.client.Close()
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

// candidateFromPayload rebuilds a ranking candidate from a point payload
func candidateFromPayload(payload map[string]*qdrant.Value, score float64) index.Candidate {
	meta := make(map[string]string)
	for k, v := range payload[payloadMetadata].GetStructValue().GetFields() {
		meta[k] = v.GetStringValue()
	}
	return index.Candidate{
		Seq:      payload[payloadSeq].GetIntegerValue(),
		ID:       payload[payloadID].GetStringValue(),
		Text:     payload[payloadText].GetStringValue(),
		Metadata: meta,
		Score:    score,
	}
}
