package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"live-quiz-service/internal/domain"
)

const collectionName = "participants"

type answerDoc struct {
	QuestionRef      string  `bson:"questionId"`
	SelectedOption   string  `bson:"selectedOption"`
	IsCorrect        bool    `bson:"isCorrect"`
	TimeSpentSeconds float64 `bson:"timeSpentSeconds"`
}

type participantDoc struct {
	ID               primitive.ObjectID `bson:"_id"`
	DisplayName      string             `bson:"name"`
	ContactHandle    string             `bson:"contactHandle"`
	Phone            string             `bson:"phone,omitempty"`
	Score            int                `bson:"score"`
	TotalTimeSeconds float64            `bson:"totalTimeSeconds"`
	Completed        bool               `bson:"completed"`
	Answers          []answerDoc        `bson:"answers"`
	RegisteredAt     time.Time          `bson:"registeredAt"`
	CompletedAt      *time.Time         `bson:"completedAt,omitempty"`
}

func (d participantDoc) toDomain() domain.Participant {
	answers := make([]domain.AnswerRecord, len(d.Answers))
	for i, a := range d.Answers {
		answers[i] = domain.AnswerRecord(a)
	}
	var completedAt *time.Time
	if d.CompletedAt != nil {
		at := d.CompletedAt.UTC()
		completedAt = &at
	}
	return domain.Participant{
		ID:               d.ID.Hex(),
		DisplayName:      d.DisplayName,
		ContactHandle:    d.ContactHandle,
		Phone:            d.Phone,
		Score:            d.Score,
		TotalTimeSeconds: d.TotalTimeSeconds,
		Completed:        d.Completed,
		Answers:          answers,
		RegisteredAt:     d.RegisteredAt.UTC(),
		CompletedAt:      completedAt,
	}
}

func toAnswerDocs(answers []domain.AnswerRecord) []answerDoc {
	out := make([]answerDoc, len(answers))
	for i, a := range answers {
		out[i] = answerDoc(a)
	}
	return out
}

// ParticipantStore persists participants in a MongoDB collection with a unique index on contactHandle.
// Completion is a FindOneAndUpdate filtered on completed=false.
type ParticipantStore struct {
	collection *mongo.Collection
}

func NewParticipantStore(db *mongo.Database) *ParticipantStore {
	return &ParticipantStore{collection: db.Collection(collectionName)}
}

// EnsureIndexes creates the uniqueness constraint the registry relies on.
func (s *ParticipantStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contactHandle", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("contactHandle_unique"),
		},
		{
			Keys: bson.D{{Key: "score", Value: -1}, {Key: "totalTimeSeconds", Value: 1}},
		},
	})
	if err != nil {
		return domain.StorageFailure("create indexes", err)
	}
	return nil
}

func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	doc := participantDoc{
		ID:            primitive.NewObjectID(),
		DisplayName:   p.DisplayName,
		ContactHandle: p.ContactHandle,
		Phone:         p.Phone,
		Answers:       []answerDoc{},
		RegisteredAt:  p.RegisteredAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Participant{}, domain.ErrDuplicateParticipant
		}
		return domain.Participant{}, domain.StorageFailure("insert participant", err)
	}
	return doc.toDomain(), nil
}

func (s *ParticipantStore) Get(ctx context.Context, id string) (domain.Participant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	var doc participantDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Participant{}, domain.ErrParticipantNotFound
		}
		return domain.Participant{}, domain.StorageFailure("find participant", err)
	}
	return doc.toDomain(), nil
}

func (s *ParticipantStore) Complete(ctx context.Context, id string, c domain.Completion, at time.Time) (domain.Participant, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}

	update := bson.M{"$set": bson.M{
		"score":            c.Score,
		"totalTimeSeconds": c.TotalTimeSeconds,
		"answers":          toAnswerDocs(c.Answers),
		"completed":        true,
		"completedAt":      at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc participantDoc
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid, "completed": false}, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Participant{}, domain.StorageFailure("complete participant", err)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}
	return existing, domain.ErrAlreadyCompleted
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.Participant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registeredAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, domain.StorageFailure("list participants", err)
	}
	defer cursor.Close(ctx)

	var docs []participantDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StorageFailure("decode participants", err)
	}
	out := make([]domain.Participant, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}
