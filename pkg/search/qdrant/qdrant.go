// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant stores session embeddings in Qdrant over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/jllopis/scribe/pkg/search"
)

// Payload keys written for every point.
const (
	KeyDocID     = "doc_id"
	KeyTitle     = "title"
	KeyContent   = "content"
	KeyCreatedAt = "created_at"
	// KeyCreatedUnix duplicates created_at as seconds for range filters.
	KeyCreatedUnix = "created_unix"
)

// pointNamespace derives stable point UUIDs from document ids, which are
// not UUIDs themselves.
var pointNamespace = uuid.MustParse("6f1c3a52-94a4-4b7e-9d0a-3f3c2b8e7a11")

// Store implements search.VectorStore.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New dials addr (host:port of the Qdrant gRPC endpoint).
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s: %w", addr, err)
	}
	return NewFromConn(conn), nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *grpc.ClientConn) *Store {
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates a cosine collection, treating "already exists"
// as success.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimensions uint64) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: dimensions, Distance: pb.Distance_Cosine},
			},
		},
	})
	if err == nil || alreadyExists(err) {
		return nil
	}
	return fmt.Errorf("qdrant: create collection %s: %w", name, err)
}

func alreadyExists(err error) bool {
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// Upsert writes points, keyed by a UUID derived from the document id.
func (s *Store) Upsert(ctx context.Context, collection string, points []search.Point) error {
	structs := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &pb.PointStruct{
			Id:      PointID(p.Document.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: EncodePayload(p.Document),
		}
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Query runs a nearest-neighbour search with filters pushed down.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, limit int, filters *search.Filters) ([]search.ScoredPoint, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         BuildFilter(filters),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %s: %w", collection, err)
	}

	out := make([]search.ScoredPoint, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		out = append(out, search.ScoredPoint{
			Document: DecodePayload(r.GetPayload()),
			Score:    r.GetScore(),
		})
	}
	return out, nil
}

// PointID maps a document id to its point id.
func PointID(docID string) *pb.PointId {
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(pointNamespace, []byte(docID)).String()},
	}
}

// EncodePayload converts a document to a point payload.
func EncodePayload(doc search.Document) map[string]*pb.Value {
	return map[string]*pb.Value{
		KeyDocID:       stringValue(doc.ID),
		KeyTitle:       stringValue(doc.Title),
		KeyContent:     stringValue(doc.Content),
		KeyCreatedAt:   stringValue(doc.CreatedAt.UTC().Format(time.RFC3339Nano)),
		KeyCreatedUnix: {Kind: &pb.Value_IntegerValue{IntegerValue: doc.CreatedAt.Unix()}},
	}
}

// DecodePayload is the inverse of EncodePayload. Missing keys decode to
// zero values.
func DecodePayload(payload map[string]*pb.Value) search.Document {
	doc := search.Document{
		ID:      payload[KeyDocID].GetStringValue(),
		Title:   payload[KeyTitle].GetStringValue(),
		Content: payload[KeyContent].GetStringValue(),
	}
	if raw := payload[KeyCreatedAt].GetStringValue(); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			doc.CreatedAt = t
		}
	}
	return doc
}

// BuildFilter translates search filters to a Qdrant filter, or nil when
// nothing is constrained. The created_before bound is exclusive, matching
// search.Filters.Match.
func BuildFilter(f *search.Filters) *pb.Filter {
	if f == nil {
		return nil
	}
	var must []*pb.Condition
	if f.CreatedAfter != nil || f.CreatedBefore != nil {
		r := &pb.Range{}
		if f.CreatedAfter != nil {
			gte := float64(f.CreatedAfter.Unix())
			r.Gte = &gte
		}
		if f.CreatedBefore != nil {
			lt := float64(f.CreatedBefore.Unix())
			r.Lt = &lt
		}
		must = append(must, fieldCondition(&pb.FieldCondition{Key: KeyCreatedUnix, Range: r}))
	}
	if len(f.IDs) > 0 {
		must = append(must, fieldCondition(&pb.FieldCondition{
			Key: KeyDocID,
			Match: &pb.Match{MatchValue: &pb.Match_Keywords{
				Keywords: &pb.RepeatedStrings{Strings: f.IDs},
			}},
		}))
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func fieldCondition(fc *pb.FieldCondition) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: fc}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
