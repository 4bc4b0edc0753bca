package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultOpTimeout bounds every store call so a stalled server cannot pin
// request handlers indefinitely.
const DefaultOpTimeout = 5 * time.Second

type MongoConfig struct {
	Address   string
	Username  string
	Password  string
	Database  string
	OpTimeout time.Duration
}

type HealthStatus struct {
	Connected bool          `json:"connected"`
	Database  string        `json:"database"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

type MongoService struct {
	client    *mongo.Client
	database  *mongo.Database
	config    MongoConfig
	opTimeout time.Duration
}

type PaginatedResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type PaginationOptions struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
}

// Repository is the keyed-store contract the credential core consumes.
// UpdateIf is the atomic read-modify-write primitive: the filter carries the
// expected prior state and the update applies only when it still holds, in
// one round trip. A nil result with nil error means the condition did not
// match (document absent or concurrently changed).
type Repository[T any] interface {
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error)
	FindWithPagination(ctx context.Context, filter bson.M, pagination PaginationOptions, opts ...*options.FindOptions) (*PaginatedResult[T], error)
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*T, error)
	Create(ctx context.Context, document T) (*T, error)
	UpdateIf(ctx context.Context, filter bson.M, update bson.M) (*T, error)
	Delete(ctx context.Context, filter bson.M, opts ...*options.DeleteOptions) error
	Count(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error)
}

type GenericRepository[T any] struct {
	collection *mongo.Collection
	opTimeout  time.Duration
}

func NewMongoService(config MongoConfig) (*MongoService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uri := fmt.Sprintf("mongodb://%s:%s@%s/?authSource=admin",
		config.Username, config.Password, config.Address)
	if config.Username == "" {
		uri = fmt.Sprintf("mongodb://%s", config.Address)
	}

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetMaxPoolSize(100)
	clientOptions.SetMinPoolSize(5)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	opTimeout := config.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}

	return &MongoService{
		client:    client,
		database:  client.Database(config.Database),
		config:    config,
		opTimeout: opTimeout,
	}, nil
}

func (s *MongoService) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()

	status := HealthStatus{Database: s.config.Database}

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		status.Latency = time.Since(start)
		return status
	}

	status.Connected = true
	status.Latency = time.Since(start)
	return status
}

func (s *MongoService) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

func (s *MongoService) GetCollection(name string) *mongo.Collection {
	return s.database.Collection(name)
}

func NewRepository[T any](service *MongoService, collectionName string) Repository[T] {
	return &GenericRepository[T]{
		collection: service.GetCollection(collectionName),
		opTimeout:  service.opTimeout,
	}
}

func (r *GenericRepository[T]) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *GenericRepository[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute find query: %w", err)
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode find results: %w", err)
	}

	return results, nil
}

func (r *GenericRepository[T]) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*T, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var result T
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to execute findOne query: %w", err)
	}

	return &result, nil
}

func (r *GenericRepository[T]) Create(ctx context.Context, document T) (*T, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	created, err := r.FindOne(ctx, bson.M{"_id": result.InsertedID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created document: %w", err)
	}

	return created, nil
}

func (r *GenericRepository[T]) UpdateIf(ctx context.Context, filter bson.M, update bson.M) (*T, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	findAndUpdateOptions := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result T
	err := r.collection.FindOneAndUpdate(ctx, filter, update, findAndUpdateOptions).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	return &result, nil
}

func (r *GenericRepository[T]) Delete(ctx context.Context, filter bson.M, opts ...*options.DeleteOptions) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("no document found matching filter")
	}

	return nil
}

func (r *GenericRepository[T]) FindWithPagination(ctx context.Context, filter bson.M, pagination PaginationOptions, opts ...*options.FindOptions) (*PaginatedResult[T], error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if pagination.Page <= 0 {
		pagination.Page = 1
	}
	if pagination.Limit <= 0 {
		pagination.Limit = 10
	}

	skip := (pagination.Page - 1) * pagination.Limit

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	totalPages := (total + pagination.Limit - 1) / pagination.Limit

	findOptions := options.Find()
	findOptions.SetSkip(skip)
	findOptions.SetLimit(pagination.Limit)

	for _, opt := range opts {
		if opt.Sort != nil {
			findOptions.SetSort(opt.Sort)
		}
		if opt.Projection != nil {
			findOptions.SetProjection(opt.Projection)
		}
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to execute paginated find query: %w", err)
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode paginated find results: %w", err)
	}

	return &PaginatedResult[T]{
		Data:       results,
		Total:      total,
		Page:       pagination.Page,
		Limit:      pagination.Limit,
		TotalPages: totalPages,
		HasNext:    pagination.Page < totalPages,
		HasPrev:    pagination.Page > 1,
	}, nil
}

func (r *GenericRepository[T]) Count(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter, opts...)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}
