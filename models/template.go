package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// EmailTemplate holds the structure for the email template collection in
// mongo. Templates belong to one owner and are used by the bulk dispatcher.
// The body may contain an {{applicant}} placeholder for the recipient name.
type EmailTemplate struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	OwnerID   primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Name      string             `json:"name" bson:"name"`
	Subject   string             `json:"subject" bson:"subject"`
	Body      string             `json:"body" bson:"body"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// BulkSendRequest selects the applications a template is sent to
type BulkSendRequest struct {
	ApplicationIDs []string `json:"applicationIds"`
	Status         string   `json:"status,omitempty"`
}
