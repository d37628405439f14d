package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Owner holds the structure for the form owner collection in mongo. Every
// owner gets one public application form addressed by FormSlug.
type Owner struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Company   string             `json:"company" bson:"company"`
	Password  string             `json:"-" bson:"password"`
	FormSlug  string             `json:"formSlug" bson:"formSlug"`
	FormTitle string             `json:"formTitle" bson:"formTitle"`
	Premium   bool               `json:"premium" bson:"premium"`
	// TelegramChatID, when set, receives a ping for every new submission.
	TelegramChatID int64 `json:"telegramChatId" bson:"telegramChatId"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// CreateOwnerRequest is the payload for registering a new form owner
type CreateOwnerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Password string `json:"password"`
}
