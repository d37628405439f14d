package databases

// go generate: mockery --name OwnerDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/formgate/formgate-api/models"
)

const ownerCollectionName = "owners"

// OwnerDatabase contains the methods to use with the owner database
type OwnerDatabase interface {
	FindOne(ctx context.Context, filter interface{}) SingleResultHelper
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, owner models.Owner) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type ownerDatabase struct {
	db DatabaseHelper
}

// NewOwnerDatabase initializes a new instance of owner database with the provided db connection
func NewOwnerDatabase(db DatabaseHelper) OwnerDatabase {
	return &ownerDatabase{
		db: db,
	}
}

func (o *ownerDatabase) FindOne(ctx context.Context, filter interface{}) SingleResultHelper {
	return o.db.Collection(ownerCollectionName).FindOne(ctx, filter)
}

func (o *ownerDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return o.db.Collection(ownerCollectionName).CountDocuments(ctx, filter, opts...)
}

func (o *ownerDatabase) InsertOne(ctx context.Context, owner models.Owner) (InsertOneResultHelper, error) {
	return o.db.Collection(ownerCollectionName).InsertOne(ctx, owner)
}

func (o *ownerDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return o.db.Collection(ownerCollectionName).UpdateOne(ctx, filter, update, opts...)
}
