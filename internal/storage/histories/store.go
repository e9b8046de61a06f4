// Package histories reads pet history documents from the document store
// (MongoDB). Documents look like {pet_id, history: [...]}; pet_id may be a
// string, any BSON number or an ObjectID.
package histories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/mongo"
)

// Collection is the document-store handle the adapter needs; *mongo.Client
// implements it.
type Collection interface {
	WithSession(ctx context.Context, fn func(ctx context.Context) error) error
	Find(ctx context.Context, filter any, limit int64) ([]bson.Raw, error)
	Count(ctx context.Context, filter any) (int64, error)
	Name() string
}

var _ Collection = (*mongo.Client)(nil)

var (
	errMissingPetID     = errors.New("document has no usable pet_id")
	errMalformedHistory = errors.New("document history is not an array")
)

// Store implements analytics.HistoryStore.
type Store struct {
	coll   Collection
	logger *slog.Logger
}

func New(coll Collection) *Store {
	return &Store{
		coll:   coll,
		logger: logger.WithStore("history-store", apperrors.StoreHistories),
	}
}

func (s *Store) Collection() string { return s.coll.Name() }

// Histories returns up to limit documents in natural order.
func (s *Store) Histories(ctx context.Context, limit int) ([]analytics.HistoryDocument, error) {
	return s.find(ctx, "histories", bson.D{}, int64(limit))
}

// HistoriesFor matches pet_id against both the string and the integer form
// of every id, since writers of the collection disagree on the type.
func (s *Store) HistoriesFor(ctx context.Context, petIDs []string) ([]analytics.HistoryDocument, error) {
	if len(petIDs) == 0 {
		return []analytics.HistoryDocument{}, nil
	}
	return s.find(ctx, "histories_for", bson.D{{Key: "pet_id", Value: bson.D{{Key: "$in", Value: inValues(petIDs)}}}}, 0)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.coll.WithSession(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.coll.Count(ctx, bson.D{})
		return err
	})
	if err != nil {
		return 0, s.wrap("count", err)
	}
	return n, nil
}

func (s *Store) find(ctx context.Context, op string, filter any, limit int64) ([]analytics.HistoryDocument, error) {
	var raws []bson.Raw
	err := s.coll.WithSession(ctx, func(ctx context.Context) error {
		var err error
		raws, err = s.coll.Find(ctx, filter, limit)
		return err
	})
	if err != nil {
		return nil, s.wrap(op, err)
	}

	out := make([]analytics.HistoryDocument, 0, len(raws))
	for _, raw := range raws {
		doc, err := decodeHistory(raw)
		if errors.Is(err, errMissingPetID) || errors.Is(err, errMalformedHistory) || errors.Is(err, analytics.ErrMalformedPetID) {
			s.logger.Warn("skipping history document", "operation", op, "error", err)
			continue
		}
		if err != nil {
			return nil, s.wrap(op, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *Store) wrap(op string, err error) error {
	return apperrors.NewStoreError(apperrors.StoreHistories, op, mongo.Classify(err), err)
}

type historyDoc struct {
	PetID   bson.RawValue `bson:"pet_id"`
	History bson.RawValue `bson:"history"`
}

type historyEvents struct {
	History []any `bson:"history"`
}

// decodeHistory decodes one document. A missing or null history becomes
// empty; any other non-array history is rejected with errMalformedHistory.
func decodeHistory(raw bson.Raw) (analytics.HistoryDocument, error) {
	var doc historyDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return analytics.HistoryDocument{}, fmt.Errorf("decoding history document: %w", err)
	}

	native, err := petIDValue(doc.PetID)
	if err != nil {
		return analytics.HistoryDocument{}, err
	}
	key, err := analytics.NewPetKey(native)
	if err != nil {
		return analytics.HistoryDocument{}, err
	}

	events, err := decodeEvents(raw, doc.History)
	if err != nil {
		return analytics.HistoryDocument{}, fmt.Errorf("pet %s: %w", key, err)
	}
	return analytics.HistoryDocument{Pet: key, History: events}, nil
}

// decodeEvents passes history entries through as decoded. Embedded
// documents become map[string]any so they serialize as JSON objects.
func decodeEvents(raw bson.Raw, v bson.RawValue) ([]analytics.HistoryEvent, error) {
	switch v.Type {
	case 0, bson.TypeNull, bson.TypeUndefined:
		return []analytics.HistoryEvent{}, nil
	case bson.TypeArray:
	default:
		return nil, fmt.Errorf("%w: history is %s", errMalformedHistory, v.Type)
	}

	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(raw))
	if err != nil {
		return nil, err
	}
	dec.DefaultDocumentM()

	var doc historyEvents
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding history entries: %w", err)
	}
	events := make([]analytics.HistoryEvent, 0, len(doc.History))
	for _, e := range doc.History {
		if m, ok := e.(bson.M); ok {
			e = map[string]any(m)
		}
		events = append(events, e)
	}
	return events, nil
}

func petIDValue(v bson.RawValue) (any, error) {
	switch v.Type {
	case bson.TypeString:
		return v.StringValue(), nil
	case bson.TypeInt32:
		return v.Int32(), nil
	case bson.TypeInt64:
		return v.Int64(), nil
	case bson.TypeDouble:
		return v.Double(), nil
	case bson.TypeObjectID:
		return v.ObjectID().Hex(), nil
	default:
		return nil, errMissingPetID
	}
}

func inValues(ids []string) bson.A {
	values := make(bson.A, 0, 2*len(ids))
	for _, id := range ids {
		values = append(values, id)
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			values = append(values, n)
		}
	}
	return values
}
