package auth

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig — настройки подключения репозитория аккаунтов
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например tilearena
	Collection string // например users
	Counters   string // например counters (для автоинкремента)
}

// MongoUserRepo реализует UserRepository поверх MongoDB
type MongoUserRepo struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
	ctxTimeout  time.Duration
}

type userDoc struct {
	UserID       uint64    `bson:"user_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	IsAdmin      bool      `bson:"is_admin"`
	CreatedAt    time.Time `bson:"created_at"`
	LastLogin    time.Time `bson:"last_login"`
}

func (d *userDoc) toUser() *User {
	return &User{
		ID:           d.UserID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		LastLogin:    d.LastLogin,
		IsAdmin:      d.IsAdmin,
	}
}

// NewMongoUserRepo устанавливает соединение и возвращает репозиторий
func NewMongoUserRepo(cfg MongoConfig) (*MongoUserRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "tilearena"
	}
	if cfg.Collection == "" {
		cfg.Collection = "users"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	repo := &MongoUserRepo{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
		ctxTimeout:  5 * time.Second,
	}

	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoUserRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	usernameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	userIDIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userid_unique"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{usernameIdx, userIDIdx})
	return err
}

// GetUserByUsername реализует UserRepository
func (m *MongoUserRepo) GetUserByUsername(username string) (*User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	var doc userDoc
	err := m.collection.FindOne(ctx, bson.M{"username": strings.ToLower(username)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

// GetUserByID реализует UserRepository
func (m *MongoUserRepo) GetUserByID(id uint64) (*User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	var doc userDoc
	err := m.collection.FindOne(ctx, bson.M{"user_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

// CreateUser вставляет новый документ и возвращает созданного пользователя
func (m *MongoUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	nextID, err := m.nextSequence("userid")
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           nextID,
		Username:     strings.ToLower(username),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		LastLogin:    time.Now(),
		IsAdmin:      isAdmin,
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	_, err = m.collection.InsertOne(ctx, bson.M{
		"user_id":       user.ID,
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"is_admin":      user.IsAdmin,
		"created_at":    user.CreatedAt,
		"last_login":    user.LastLogin,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateCredentials сверяет логин/пароль и обновляет last_login
func (m *MongoUserRepo) ValidateCredentials(username, password string) (*User, error) {
	user, err := m.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	now := time.Now()
	_, _ = m.collection.UpdateOne(ctx,
		bson.M{"user_id": user.ID},
		bson.M{"$set": bson.M{"last_login": now}},
	)
	user.LastLogin = now
	return user, nil
}

// nextSequence атомарно инкрементирует счётчик и возвращает новое значение
func (m *MongoUserRepo) nextSequence(name string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	res := m.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return uint64(doc.Seq), nil
}

// Close разрывает соединение
func (m *MongoUserRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
