package health

import (
	"context"

	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoChecker probes a Mongo deployment with Ping.
type MongoChecker struct {
	client *mongo.Client
}

func NewMongoChecker(client *mongo.Client) *MongoChecker {
	return &MongoChecker{client: client}
}

func (c *MongoChecker) CheckConnectivity(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// RedisChecker probes Redis with PING.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) CheckConnectivity(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NATSChecker reports a connection's current status.
type NATSChecker struct {
	conn *natsgo.Conn
}

func NewNATSChecker(conn *natsgo.Conn) *NATSChecker {
	return &NATSChecker{conn: conn}
}

func (c *NATSChecker) CheckConnectivity(ctx context.Context) error {
	if c.conn.IsConnected() {
		return nil
	}
	return c.conn.LastError()
}
