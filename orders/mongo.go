package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores orders as documents in a single collection.
type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(coll *mongo.Collection) *MongoRepo {
	return &MongoRepo{coll: coll}
}

// EnsureIndexes creates the indexes behind the owner and admin listings.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	idxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_created"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, idxs)
	return err
}

func (r *MongoRepo) Insert(ctx context.Context, o models.Order) error {
	_, err := r.coll.InsertOne(ctx, o)
	return err
}

func (r *MongoRepo) FindByID(ctx context.Context, id string) (models.Order, error) {
	var o models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, models.ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	return o, nil
}

func (r *MongoRepo) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user": userID})
}

func (r *MongoRepo) ListAll(ctx context.Context) ([]models.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoRepo) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// MarkDelivered matches only undelivered orders so the flip happens at most once, even
// when two admins race on the same id.
func (r *MongoRepo) MarkDelivered(ctx context.Context, id string, at time.Time) (models.Order, bool, error) {
	filter := bson.M{"_id": id, "isDelivered": false}
	update := bson.M{"$set": bson.M{"isDelivered": true, "deliveredAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o)
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, false, fmt.Errorf("mark delivered %s: %w", id, err)
	}

	// Either missing or already delivered.
	o, err = r.FindByID(ctx, id)
	if err != nil {
		return models.Order{}, false, err
	}
	return o, false, nil
}
