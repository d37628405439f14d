package databases

// go generate: mockery --name ApplicationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/formgate/formgate-api/models"
)

const applicationCollectionName = "applications"

// ApplicationDatabase contains the methods to use with the application database
type ApplicationDatabase interface {
	FindOne(ctx context.Context, filter interface{}) SingleResultHelper
	Find(ctx context.Context, filter interface{}, limit, page int) ([]models.Application, error)
	FindAll(ctx context.Context, filter interface{}) ([]models.Application, error)
	InsertOne(ctx context.Context, application models.Application) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}) (CursorHelper, error)
}

type applicationDatabase struct {
	db DatabaseHelper
}

// NewApplicationDatabase initializes a new instance of application database with the provided db connection
func NewApplicationDatabase(db DatabaseHelper) ApplicationDatabase {
	return &applicationDatabase{
		db: db,
	}
}

func (a *applicationDatabase) FindOne(ctx context.Context, filter interface{}) SingleResultHelper {
	return a.db.Collection(applicationCollectionName).FindOne(ctx, filter)
}

func (a *applicationDatabase) Find(ctx context.Context, filter interface{}, limit, page int) ([]models.Application, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	cursor, err := a.db.Collection(applicationCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var applications []models.Application
	if err := cursor.Decode(&applications); err != nil {
		return nil, err
	}
	return applications, nil
}

// FindAll returns every match with no pagination. Used by bulk email where
// capping the recipient list would silently drop applicants.
func (a *applicationDatabase) FindAll(ctx context.Context, filter interface{}) ([]models.Application, error) {
	cursor, err := a.db.Collection(applicationCollectionName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var applications []models.Application
	if err := cursor.Decode(&applications); err != nil {
		return nil, err
	}
	return applications, nil
}

func (a *applicationDatabase) InsertOne(ctx context.Context, application models.Application) (InsertOneResultHelper, error) {
	return a.db.Collection(applicationCollectionName).InsertOne(ctx, application)
}

func (a *applicationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return a.db.Collection(applicationCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (a *applicationDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return a.db.Collection(applicationCollectionName).DeleteOne(ctx, filter)
}

func (a *applicationDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return a.db.Collection(applicationCollectionName).CountDocuments(ctx, filter, opts...)
}

func (a *applicationDatabase) Aggregate(ctx context.Context, pipeline interface{}) (CursorHelper, error) {
	return a.db.Collection(applicationCollectionName).Aggregate(ctx, pipeline)
}
