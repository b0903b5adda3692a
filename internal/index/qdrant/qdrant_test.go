package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lazypower/memvault/internal/memory"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePoints struct {
	pb.PointsClient
	upserts []*pb.UpsertPoints
	deletes []*pb.DeletePoints
	search  *pb.SearchResponse
	count   uint64
	err     error
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, in)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, in)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.search == nil {
		return &pb.SearchResponse{}, nil
	}
	return f.search, nil
}

func (f *fakePoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pb.CountResponse{Result: &pb.CountResult{Count: f.count}}, nil
}

type fakeCollections struct {
	pb.CollectionsClient
	size    uint64
	missing bool
	created []*pb.CreateCollection
	err     error
}

func (f *fakeCollections) Get(_ context.Context, _ *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.missing {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	return &pb.GetCollectionInfoResponse{Result: &pb.CollectionInfo{
		Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: f.size, Distance: pb.Distance_Cosine},
			}},
		}},
	}}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func testIndex(points *fakePoints, cols *fakeCollections) *Index {
	return newIndex(points, cols, Config{Collection: "memvault", Dimensions: 3})
}

func TestEnsureCollectionCreatesMissing(t *testing.T) {
	cols := &fakeCollections{missing: true}
	idx := testIndex(&fakePoints{}, cols)

	require.NoError(t, idx.EnsureCollection(context.Background()))
	require.Len(t, cols.created, 1)
	params := cols.created[0].GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(3), params.GetSize())
	assert.Equal(t, pb.Distance_Cosine, params.GetDistance())
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	idx := testIndex(&fakePoints{}, &fakeCollections{size: 768})
	err := idx.EnsureCollection(context.Background())
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestEnsureCollectionUnavailable(t *testing.T) {
	cols := &fakeCollections{err: status.Error(codes.Unavailable, "connection refused")}
	idx := testIndex(&fakePoints{}, cols)
	err := idx.EnsureCollection(context.Background())
	require.ErrorIs(t, err, memory.ErrIndexUnavailable)
	assert.NotErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestInsertRejectsWrongDimensions(t *testing.T) {
	points := &fakePoints{}
	idx := testIndex(points, &fakeCollections{size: 3})

	err := idx.Insert(context.Background(), "a", []float32{1, 2})
	require.ErrorIs(t, err, memory.ErrDimensionMismatch)
	assert.Empty(t, points.upserts, "no call reaches the server")
}

func TestInsertCarriesMemoryID(t *testing.T) {
	points := &fakePoints{}
	idx := testIndex(points, &fakeCollections{size: 3})

	require.NoError(t, idx.Insert(context.Background(), "not-a-uuid", []float32{1, 0, 0}))
	require.Len(t, points.upserts, 1)
	p := points.upserts[0].GetPoints()[0]
	assert.Equal(t, "not-a-uuid", p.GetPayload()[payloadID].GetStringValue())
	_, err := uuid.Parse(p.GetId().GetUuid())
	assert.NoError(t, err)
	assert.Equal(t, pointID("not-a-uuid").GetUuid(), p.GetId().GetUuid(), "point ids are stable")
}

func TestPointIDKeepsUUIDs(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id).GetUuid())
}

func TestQueryMapsHits(t *testing.T) {
	points := &fakePoints{search: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{Id: pointID("a"), Score: 0.9, Payload: map[string]*pb.Value{payloadID: {Kind: &pb.Value_StringValue{StringValue: "a"}}}},
		{Id: pointID("b"), Score: 0.5, Payload: map[string]*pb.Value{payloadID: {Kind: &pb.Value_StringValue{StringValue: "b"}}}},
	}}}
	idx := testIndex(points, &fakeCollections{size: 3})

	hits, err := idx.Query(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-6)
	assert.Equal(t, "b", hits[1].ID)
}

func TestQueryEmpty(t *testing.T) {
	idx := testIndex(&fakePoints{}, &fakeCollections{size: 3})
	hits, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestClearUsesEmptyFilter(t *testing.T) {
	points := &fakePoints{}
	idx := testIndex(points, &fakeCollections{size: 3})
	require.NoError(t, idx.Clear(context.Background()))
	require.Len(t, points.deletes, 1)
	assert.NotNil(t, points.deletes[0].GetPoints().GetFilter())
}

func TestLen(t *testing.T) {
	idx := testIndex(&fakePoints{count: 7}, &fakeCollections{size: 3})
	n, err := idx.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"exhausted", status.Error(codes.ResourceExhausted, "busy"), true},
		{"context", context.DeadlineExceeded, true},
		{"invalid", status.Error(codes.InvalidArgument, "bad vector"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, memory.ErrIndexUnavailable))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestOperationsSurfaceUnavailable(t *testing.T) {
	points := &fakePoints{err: status.Error(codes.Unavailable, "down")}
	idx := testIndex(points, &fakeCollections{size: 3})
	ctx := context.Background()

	assert.ErrorIs(t, idx.Insert(ctx, "a", []float32{1, 0, 0}), memory.ErrIndexUnavailable)
	assert.ErrorIs(t, idx.Remove(ctx, "a"), memory.ErrIndexUnavailable)
	_, err := idx.Query(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, memory.ErrIndexUnavailable)
	assert.ErrorIs(t, idx.Clear(ctx), memory.ErrIndexUnavailable)
}
