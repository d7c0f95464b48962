package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

const (
	filesCollection = "files"
	usersCollection = "users"
)

// MongoStore хранит метаданные файлов и пользователей в MongoDB
type MongoStore struct {
	client *mongo.Client
	files  *mongo.Collection
	users  *mongo.Collection
}

// NewMongoStore подключается к MongoDB, проверяет соединение и создает индексы
func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client: client,
		files:  db.Collection(filesCollection),
		users:  db.Collection(usersCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logging.Info("connected to mongo", zap.String("database", cfg.Database))
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "folder", Value: 1}, {Key: "filename", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create files index: %w", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	return nil
}

// Close отключается от MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) InsertRecord(ctx context.Context, rec models.FileRecord) error {
	if _, err := s.files.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

func (s *MongoStore) FolderHasRecords(ctx context.Context, folder string) (bool, error) {
	err := s.files.FindOne(ctx, bson.D{{Key: "folder", Value: folder}}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find folder record: %w", err)
	}
	return true, nil
}

func (s *MongoStore) DeleteRecord(ctx context.Context, folder, filename string) (bool, error) {
	res, err := s.files.DeleteOne(ctx, bson.D{
		{Key: "folder", Value: folder},
		{Key: "filename", Value: filename},
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete file record: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteFolderRecords(ctx context.Context, folder string) (int64, error) {
	res, err := s.files.DeleteMany(ctx, bson.D{{Key: "folder", Value: folder}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete folder records: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) ListFolders(ctx context.Context) ([]string, error) {
	var folders []string
	if err := s.files.Distinct(ctx, "folder", bson.D{}).Decode(&folders); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	sort.Strings(folders)
	return folders, nil
}

func (s *MongoStore) ListRecords(ctx context.Context, folder string) ([]models.FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "upload_time", Value: 1}})
	cursor, err := s.files.Find(ctx, bson.D{{Key: "folder", Value: folder}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]models.FileRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user models.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, models.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
