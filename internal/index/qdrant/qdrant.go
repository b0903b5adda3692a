// Package qdrant delegates retrieval to a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lazypower/memvault/internal/memory"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// payloadID holds the memory id, since Qdrant point ids must be UUIDs
// or integers.
const payloadID = "memory_id"

// pointNamespace derives stable point ids for memory ids that are not UUIDs.
var pointNamespace = uuid.MustParse("6f1b1c6e-2d0c-4e53-9a57-3c3b8e6f4a10")

// Config selects the server and collection.
type Config struct {
	Addr       string
	APIKey     string
	Collection string
	Dimensions int
}

// Index is a memory.Index backed by a Qdrant collection using cosine
// distance.
type Index struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
	dims        int
	apiKey      string
}

var _ memory.Index = (*Index)(nil)

// Dial connects to Qdrant and ensures the collection exists with the
// configured dimensionality.
func Dial(ctx context.Context, cfg Config) (*Index, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %v", memory.ErrIndexUnavailable, cfg.Addr, err)
	}
	idx := newIndex(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg)
	idx.conn = conn
	if err := idx.EnsureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func newIndex(points pb.PointsClient, collections pb.CollectionsClient, cfg Config) *Index {
	return &Index{
		points:      points,
		collections: collections,
		collection:  cfg.Collection,
		dims:        cfg.Dimensions,
		apiKey:      cfg.APIKey,
	}
}

func (q *Index) Dimensions() int { return q.dims }

func (q *Index) ctx(ctx context.Context) context.Context {
	if q.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", q.apiKey)
}

// EnsureCollection creates the collection when missing and fails with
// memory.ErrDimensionMismatch when it exists with another vector size.
func (q *Index) EnsureCollection(ctx context.Context) error {
	resp, err := q.collections.Get(q.ctx(ctx), &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		size := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != q.dims {
			return fmt.Errorf("collection %s: %w", q.collection, &memory.DimensionError{Want: q.dims, Got: int(size)})
		}
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return mapError("get collection", err)
	}

	_, err = q.collections.Create(q.ctx(ctx), &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return mapError("create collection", err)
	}
	return nil
}

func (q *Index) Insert(ctx context.Context, id string, vec []float32) error {
	if err := memory.CheckDimensions(vec, q.dims); err != nil {
		return err
	}
	wait := true
	_, err := q.points.Upsert(q.ctx(ctx), &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: map[string]*pb.Value{
				payloadID: {Kind: &pb.Value_StringValue{StringValue: id}},
			},
		}},
	})
	if err != nil {
		return mapError("upsert", err)
	}
	return nil
}

func (q *Index) Remove(ctx context.Context, id string) error {
	wait := true
	_, err := q.points.Delete(q.ctx(ctx), &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return mapError("delete", err)
	}
	return nil
}

func (q *Index) Query(ctx context.Context, vec []float32, k int) ([]memory.Hit, error) {
	if err := memory.CheckDimensions(vec, q.dims); err != nil {
		return nil, err
	}
	hits := []memory.Hit{}
	if k <= 0 {
		return hits, nil
	}
	resp, err := q.points.Search(q.ctx(ctx), &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, mapError("search", err)
	}
	for _, r := range resp.GetResult() {
		id := r.GetPayload()[payloadID].GetStringValue()
		if id == "" {
			id = r.GetId().GetUuid()
		}
		hits = append(hits, memory.Hit{ID: id, Score: float64(r.GetScore())})
	}
	return hits, nil
}

// Clear deletes every point but keeps the collection and its schema.
func (q *Index) Clear(ctx context.Context) error {
	wait := true
	_, err := q.points.Delete(q.ctx(ctx), &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: &pb.Filter{}},
		},
	})
	if err != nil {
		return mapError("clear", err)
	}
	return nil
}

func (q *Index) Len(ctx context.Context) (int, error) {
	exact := true
	resp, err := q.points.Count(q.ctx(ctx), &pb.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, mapError("count", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close releases the gRPC connection.
func (q *Index) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func pointID(id string) *pb.PointId {
	u, err := uuid.Parse(id)
	if err != nil {
		u = uuid.NewSHA1(pointNamespace, []byte(id))
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

// mapError turns connectivity failures into memory.ErrIndexUnavailable.
// Other gRPC failures are wrapped unchanged.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("qdrant %s: %w: %w", op, memory.ErrIndexUnavailable, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return fmt.Errorf("qdrant %s: %w: %w", op, memory.ErrIndexUnavailable, err)
	}
	return fmt.Errorf("qdrant %s: %w", op, err)
}
