package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/poiesic/schedex/core"
)

type fakePoints struct {
	pb.PointsClient
	upserts []*pb.UpsertPoints
	search  *pb.SearchPoints
	results []*pb.ScoredPoint
	err     error
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, in)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.search = in
	return &pb.SearchResponse{Result: f.results}, nil
}

type fakeCollections struct {
	pb.CollectionsClient
	existing []string
	created  *pb.CreateCollection
}

func (f *fakeCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for _, name := range f.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = in
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func TestEnsureCollection(t *testing.T) {
	t.Run("creates missing collection", func(t *testing.T) {
		cols := &fakeCollections{existing: []string{"other"}}
		idx := newIndex(&fakePoints{}, cols, "")
		require.NoError(t, idx.EnsureCollection(context.Background(), 384))
		require.NotNil(t, cols.created)
		assert.Equal(t, DefaultCollection, cols.created.CollectionName)
		assert.Equal(t, uint64(384), cols.created.GetVectorsConfig().GetParams().GetSize())
		assert.Equal(t, pb.Distance_Cosine, cols.created.GetVectorsConfig().GetParams().GetDistance())
	})

	t.Run("keeps existing collection", func(t *testing.T) {
		cols := &fakeCollections{existing: []string{"items"}}
		idx := newIndex(&fakePoints{}, cols, "items")
		require.NoError(t, idx.EnsureCollection(context.Background(), 384))
		assert.Nil(t, cols.created)
	})
}

func TestUpsertVectors(t *testing.T) {
	points := &fakePoints{}
	idx := newIndex(points, &fakeCollections{}, "items")

	embedded := &core.CatalogItem{Number: 23, Category: "1", ProviderType: core.ProviderGeneral, Active: true, Vector: []float32{1, 0}}
	bare := &core.CatalogItem{Number: 36}
	require.NoError(t, idx.UpsertVectors(context.Background(), embedded, bare))

	require.Len(t, points.upserts, 1)
	req := points.upserts[0]
	assert.Equal(t, "items", req.CollectionName)
	assert.True(t, req.GetWait())
	require.Len(t, req.Points, 1, "items without a vector are skipped")
	assert.Equal(t, uint64(23), req.Points[0].GetId().GetNum())
	assert.Equal(t, []float32{1, 0}, req.Points[0].GetVectors().GetVector().GetData())
	assert.Equal(t, "general", req.Points[0].Payload["provider_type"].GetStringValue())

	points.upserts = nil
	require.NoError(t, idx.UpsertVectors(context.Background(), bare))
	assert.Empty(t, points.upserts, "nothing to send")
}

func TestFindSimilar(t *testing.T) {
	points := &fakePoints{results: []*pb.ScoredPoint{
		{Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 23}}, Score: 0.97},
		{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "foreign"}}, Score: 0.9},
		{Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 36}}, Score: 0.81},
	}}
	idx := newIndex(points, &fakeCollections{}, "items")

	matches, err := idx.FindSimilar(context.Background(), []float32{1, 0}, 0.2, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.SimilarityMatch{{Number: 23, Score: 0.97}, {Number: 36, Score: 0.81}}, matches)
	assert.Equal(t, uint64(10), points.search.Limit)
	assert.InDelta(t, 0.2, points.search.GetScoreThreshold(), 1e-6)
}

func TestFindSimilar_Error(t *testing.T) {
	idx := newIndex(&fakePoints{err: errors.New("unavailable")}, &fakeCollections{}, "items")
	_, err := idx.FindSimilar(context.Background(), []float32{1}, 0, 5)
	assert.Error(t, err)
}
