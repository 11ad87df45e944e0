package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"syncgate/internal/storage"
)

// NewStore creates the cache store backed by the shared storage connection.
// The connection is already open, so the returned store is ready for use.
func NewStore(st storage.Storage) (Store, error) {
	switch st.Type() {
	case storage.TypeMemory:
		return NewMemoryStore(), nil
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB())
	case storage.TypeMongoDB:
		db := st.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		mongoDB, ok := db.(*mongo.Database)
		if !ok {
			return nil, fmt.Errorf("invalid MongoDB database type: %T", db)
		}
		return NewMongoDBStore(mongoDB)
	case storage.TypeRedis:
		client := st.RedisClient()
		if client == nil {
			return nil, fmt.Errorf("Redis client is nil")
		}
		redisClient, ok := client.(*redis.Client)
		if !ok {
			return nil, fmt.Errorf("invalid Redis client type: %T", client)
		}
		return NewRedisStore(redisClient)
	default:
		return nil, fmt.Errorf("storage type %s does not support the cache store", st.Type())
	}
}
