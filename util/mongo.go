package util

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gookit/slog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDb struct {
	Host     string
	Port     int
	User     string
	Password string
	Client   *mongo.Client
}

func (self *MongoDb) URI() string {
	u := &url.URL{
		Scheme:   "mongodb",
		Host:     fmt.Sprintf("%s:%d", self.Host, self.Port),
		Path:     "/",
		RawQuery: "directConnection=true&authSource=admin",
	}
	if self.User != "" {
		u.User = url.UserPassword(self.User, self.Password)
	}
	return u.String()
}

func (self *MongoDb) Init(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(self.URI()))
	if err != nil {
		return fmt.Errorf("MongoDb.Init(%s:%d) -> %w", self.Host, self.Port, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("MongoDb.Init(%s:%d) -> %w", self.Host, self.Port, err)
	}
	self.Client = client
	return nil
}

func (self *MongoDb) Close() {
	if self.Client == nil {
		return
	}
	if err := self.Client.Disconnect(context.Background()); err != nil {
		slog.Errorf("failed to close mongo client: %s", err)
	}
}

func (self *MongoDb) ListCollectionNames(ctx context.Context, dbname string) ([]string, error) {
	return self.Client.Database(dbname).ListCollectionNames(ctx, bson.M{})
}

func (self *MongoDb) Tb(dbname, tbname string) *mongo.Collection {
	return self.Client.Database(dbname).Collection(tbname)
}
