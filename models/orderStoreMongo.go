package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const OrderCollection = "orders"

type MongoOrderStore struct {
	coll *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{coll: db.Collection(OrderCollection)}
}

// EnsureIndexes creates the unique order_id index and the matching index.
func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "total_pay", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return err
}

func (s *MongoOrderStore) Create(ctx context.Context, order *Order) error {
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.CreatedAt = order.CreatedAt.UTC()
	if _, err := s.coll.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderId, order.OrderId)
		}
		return err
	}
	return nil
}

func (s *MongoOrderStore) FindOnePendingByAmount(ctx context.Context, amount int64, since time.Time) (*Order, error) {
	filter := bson.M{
		"status":     OrderStatusPending,
		"total_pay":  amount,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var order Order
	err := s.coll.FindOne(ctx, filter, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *MongoOrderStore) TryMarkPaid(ctx context.Context, orderId string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"order_id": orderId, "status": OrderStatusPending},
		bson.M{"$set": bson.M{"status": OrderStatusPaid}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoOrderStore) FindByOrderId(ctx context.Context, orderId string) (*Order, error) {
	var order Order
	err := s.coll.FindOne(ctx, bson.M{"order_id": orderId}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
