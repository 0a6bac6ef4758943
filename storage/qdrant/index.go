// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package qdrant mirrors catalog item embeddings into a Qdrant collection and
// answers nearest-neighbour queries from it.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

const DefaultCollection = "schedex_items"

// Index is a storage.VectorIndex and storage.VectorSink backed by Qdrant.
// Points are keyed by item number.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

var (
	_ storage.VectorIndex = (*Index)(nil)
	_ storage.VectorSink  = (*Index)(nil)
)

// New creates an Index connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	idx := newIndex(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	idx.conn = conn
	return idx, nil
}

func newIndex(points pb.PointsClient, collections pb.CollectionsClient, collection string) *Index {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{
		points:      points,
		collections: collections,
		collection:  collection,
	}
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if it
// doesn't exist.
func (x *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", x.collection, err)
	}
	return nil
}

// UpsertVectors stores the vectors of items that have one. The payload
// carries the fields search filters on.
func (x *Index) UpsertVectors(ctx context.Context, items ...*core.CatalogItem) error {
	points := make([]*pb.PointStruct, 0, len(items))
	for _, item := range items {
		if !item.HasEmbedding() {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(item.Number)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: item.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"category":      {Kind: &pb.Value_StringValue{StringValue: item.Category}},
				"provider_type": {Kind: &pb.Value_StringValue{StringValue: string(item.ProviderType)}},
				"active":        {Kind: &pb.Value_BoolValue{BoolValue: item.Active}},
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// FindSimilar performs a k-NN cosine search. Qdrant scores are raw cosine
// similarity, matching the storage.VectorIndex contract.
func (x *Index) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	threshold := minSimilarity
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(max(limit, 1)),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	matches := make([]core.SimilarityMatch, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		num := r.GetId().GetNum()
		if num == 0 {
			continue
		}
		matches = append(matches, core.SimilarityMatch{Number: core.ItemNumber(num), Score: r.GetScore()})
	}
	return matches, nil
}
