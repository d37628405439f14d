package databases

// go generate: mockery --name TemplateDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/formgate/formgate-api/models"
)

const templateCollectionName = "emailTemplates"

// TemplateDatabase contains the methods to use with the email template database
type TemplateDatabase interface {
	FindOne(ctx context.Context, filter interface{}) SingleResultHelper
	Find(ctx context.Context, filter interface{}) ([]models.EmailTemplate, error)
	InsertOne(ctx context.Context, template models.EmailTemplate) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
}

type templateDatabase struct {
	db DatabaseHelper
}

// NewTemplateDatabase initializes a new instance of template database with the provided db connection
func NewTemplateDatabase(db DatabaseHelper) TemplateDatabase {
	return &templateDatabase{
		db: db,
	}
}

func (t *templateDatabase) FindOne(ctx context.Context, filter interface{}) SingleResultHelper {
	return t.db.Collection(templateCollectionName).FindOne(ctx, filter)
}

func (t *templateDatabase) Find(ctx context.Context, filter interface{}) ([]models.EmailTemplate, error) {
	cursor, err := t.db.Collection(templateCollectionName).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var templates []models.EmailTemplate
	if err := cursor.Decode(&templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (t *templateDatabase) InsertOne(ctx context.Context, template models.EmailTemplate) (InsertOneResultHelper, error) {
	return t.db.Collection(templateCollectionName).InsertOne(ctx, template)
}

func (t *templateDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return t.db.Collection(templateCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (t *templateDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return t.db.Collection(templateCollectionName).DeleteOne(ctx, filter)
}
