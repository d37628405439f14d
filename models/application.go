package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Application statuses an owner can move a submission through.
const (
	StatusReceived  = "received"
	StatusScreening = "screening"
	StatusInterview = "interview"
	StatusOffer     = "offer"
	StatusRejected  = "rejected"
)

// ValidStatus reports whether s is a known application status.
func ValidStatus(s string) bool {
	switch s {
	case StatusReceived, StatusScreening, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// Application holds the structure for the application collection in mongo
type Application struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id"`
	OwnerID        primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	FullName       string             `json:"fullName" bson:"fullName"`
	Email          string             `json:"email" bson:"email"`
	Phone          string             `json:"phone" bson:"phone"`
	CoverLetter    string             `json:"coverLetter" bson:"coverLetter"`
	Education      []EducationEntry   `json:"education" bson:"education"`
	Experience     []ExperienceEntry  `json:"experience" bson:"experience"`
	Document       Document           `json:"document" bson:"document"`
	Status         string             `json:"status" bson:"status"`
	Rating         int                `json:"rating" bson:"rating"`
	InterviewNotes []InterviewNote    `json:"interviewNotes" bson:"interviewNotes"`
	CreatedAt      primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt      primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// EducationEntry is one education row on the application form
type EducationEntry struct {
	School    string `json:"school" bson:"school"`
	Degree    string `json:"degree" bson:"degree"`
	Field     string `json:"field" bson:"field"`
	StartYear int    `json:"startYear" bson:"startYear"`
	EndYear   int    `json:"endYear" bson:"endYear"`
}

// ExperienceEntry is one work experience row on the application form
type ExperienceEntry struct {
	Company     string `json:"company" bson:"company"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	StartYear   int    `json:"startYear" bson:"startYear"`
	EndYear     int    `json:"endYear" bson:"endYear"`
}

// Document points at the uploaded file in external storage
type Document struct {
	URL      string `json:"url" bson:"url"`
	PublicID string `json:"publicId" bson:"publicId"`
	FileName string `json:"fileName" bson:"fileName"`
}

// InterviewNote is a dated note an owner leaves on an application
type InterviewNote struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Author    string             `json:"author" bson:"author"`
	Note      string             `json:"note" bson:"note"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// UpdateApplicationRequest is the payload for owner updates to an application
type UpdateApplicationRequest struct {
	Status        string `json:"status,omitempty"`
	Rating        *int   `json:"rating,omitempty"`
	InterviewNote string `json:"interviewNote,omitempty"`
	NoteAuthor    string `json:"noteAuthor,omitempty"`
}

// StatusCounts is one bucket of the owner stats aggregation
type StatusCounts struct {
	Status string `json:"status" bson:"_id"`
	Count  int64  `json:"count" bson:"count"`
}

// OwnerStats is the dashboard aggregation response
type OwnerStats struct {
	Total         int64          `json:"total"`
	ByStatus      []StatusCounts `json:"byStatus"`
	AverageRating float64        `json:"averageRating"`
}
