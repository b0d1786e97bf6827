package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"pgCheck/util"
)

// Database is one side of a mongo document count comparison.
type Database struct {
	DbName string
	Conn   *util.MongoDb
}

func NewDatabase(ctx context.Context, host string, port int, user, password, dbname string) (*Database, error) {
	conn := &util.MongoDb{Host: host, Port: port, User: user, Password: password}
	if err := conn.Init(ctx); err != nil {
		return nil, fmt.Errorf("NewDatabase -> %w", err)
	}
	return &Database{DbName: dbname, Conn: conn}, nil
}

// GetTables lists collections, leaving out system collections.
func (self *Database) GetTables(ctx context.Context) ([]string, error) {
	res, err := self.Conn.ListCollectionNames(ctx, self.DbName)
	if err != nil {
		return nil, fmt.Errorf("GetTables -> %w", err)
	}
	return userCollections(res), nil
}

func userCollections(names []string) []string {
	tables := make([]string, 0, len(names))
	for _, v := range names {
		if !strings.HasPrefix(v, "system.") {
			tables = append(tables, v)
		}
	}
	return tables
}

func (self *Database) CountRows(ctx context.Context, tb string) (int64, error) {
	cnt, err := self.Conn.Tb(self.DbName, tb).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("CountRows(%s) -> %w", tb, err)
	}
	return cnt, nil
}

func (self *Database) Close() {
	self.Conn.Close()
}
