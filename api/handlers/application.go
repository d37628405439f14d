package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/models"
	"github.com/formgate/formgate-api/notify"
	"github.com/formgate/formgate-api/storage"
	"github.com/formgate/formgate-api/verification"
)

const maxUploadBytes = 10 << 20 // 10 MB multipart memory ceiling

// Limit is the pagination limit var
var Limit int

// Page is the pagination page var
var Page int

// Application handles application-related requests
type Application struct {
	ADB      databases.ApplicationDatabase
	ODB      databases.OwnerDatabase
	Store    verification.Store
	Uploader storage.Uploader
	Notifier notify.Notifier
	Hub      *Hub
	Config   config.Config
}

// SubmitApplicationHandler receives a public multipart application submission.
// The applicant's email must hold a live verification; it is consumed here so
// one confirmation covers exactly one submission.
func (a Application) SubmitApplicationHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
		return
	}

	formSlug := r.FormValue("formSlug")
	fullName := r.FormValue("fullName")
	email := r.FormValue("email")
	if formSlug == "" || fullName == "" || email == "" {
		config.ErrorStatus("formSlug, fullName and email are required", http.StatusBadRequest, w,
			fmt.Errorf("missing required fields"))
		return
	}

	var education []models.EducationEntry
	if raw := r.FormValue("education"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &education); err != nil {
			config.ErrorStatus("failed to parse education entries", http.StatusBadRequest, w, err)
			return
		}
	}
	var experience []models.ExperienceEntry
	if raw := r.FormValue("experience"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &experience); err != nil {
			config.ErrorStatus("failed to parse experience entries", http.StatusBadRequest, w, err)
			return
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	owner := models.Owner{}
	err := a.ODB.FindOne(ctx, bson.M{"formSlug": formSlug}).Decode(&owner)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("form not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to look up form", http.StatusInternalServerError, w, err)
		return
	}

	// Single-use gate: exactly one submission may ride one confirmed
	// verification, even under concurrent submits.
	ok, err := a.Store.ConsumeVerification(ctx, email)
	if err != nil {
		config.ErrorStatus("failed to consume verification", http.StatusInternalServerError, w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": "EMAIL_NOT_VERIFIED", "message": "verify your email before submitting"}`))
		return
	}

	// Stage the document before persisting the record so a failed upload
	// never leaves a record pointing at nothing.
	document := models.Document{}
	file, header, err := r.FormFile("document")
	if err == nil {
		defer file.Close()
		if a.Uploader == nil {
			config.ErrorStatus("document storage is not configured", http.StatusInternalServerError, w,
				fmt.Errorf("no uploader configured"))
			return
		}
		publicID := uuid.New().String()
		url, upErr := a.Uploader.Upload(ctx, file, publicID)
		if upErr != nil {
			config.ErrorStatus("failed to store document", http.StatusInternalServerError, w, upErr)
			return
		}
		document = models.Document{URL: url, PublicID: publicID, FileName: header.Filename}
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	application := models.Application{
		ID:          primitive.NewObjectID(),
		OwnerID:     owner.ID,
		FullName:    fullName,
		Email:       verification.Normalize(email),
		Phone:       r.FormValue("phone"),
		CoverLetter: r.FormValue("coverLetter"),
		Education:   education,
		Experience:  experience,
		Document:    document,
		Status:      models.StatusReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = a.ADB.InsertOne(ctx, application)
	if err != nil {
		// Compensate: the staged document must not outlive the failed record.
		if document.PublicID != "" {
			if destroyErr := a.Uploader.Destroy(ctx, document.PublicID); destroyErr != nil {
				zap.S().Errorw("failed to destroy staged document after insert failure",
					"publicId", document.PublicID, "error", destroyErr)
			}
		}
		config.ErrorStatus("failed to persist application", http.StatusInternalServerError, w, err)
		return
	}

	statusURL, err := a.statusLink(application.ID.Hex(), application.Email)
	if err != nil {
		zap.S().Warnw("failed to sign status link", "applicationId", application.ID.Hex(), "error", err)
	}

	if a.Hub != nil {
		a.Hub.Broadcast(owner.ID.Hex(), application)
	}
	notify.NotifyInBackground(a.Notifier, owner.TelegramChatID,
		fmt.Sprintf("New application from %s for %s", application.FullName, owner.FormTitle))

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"_id":       application.ID.Hex(),
		"statusUrl": statusURL,
	})
}

// statusLink signs a long-lived token the applicant can use to check where
// their application is, without an account.
func (a Application) statusLink(applicationID, email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"applicationId": applicationID,
		"email":         email,
		"exp":           time.Now().Add(90 * 24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(a.Config.JWTSecret))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/api/v1/application-status?token=%s", a.Config.BaseURL, signed), nil
}

// ApplicationStatusHandler lets an applicant check their application status
// through the signed link from the submission response
func (a Application) ApplicationStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		config.ErrorStatus("token is required", http.StatusBadRequest, w, fmt.Errorf("token is required"))
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.Config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		config.ErrorStatus("invalid status token", http.StatusUnauthorized, w, err)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		config.ErrorStatus("invalid status token claims", http.StatusUnauthorized, w, fmt.Errorf("bad claims"))
		return
	}
	applicationID, _ := claims["applicationId"].(string)
	oid, err := primitive.ObjectIDFromHex(applicationID)
	if err != nil {
		config.ErrorStatus("invalid application id in token", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	application := models.Application{}
	err = a.ADB.FindOne(ctx, bson.M{"_id": oid}).Decode(&application)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("application not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get application", http.StatusInternalServerError, w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      application.Status,
		"submittedAt": application.CreatedAt.Time().UTC().Format(time.RFC3339),
		"updatedAt":   application.UpdatedAt.Time().UTC().Format(time.RFC3339),
	})
}

// ApplicationsHandler returns the authed owner's applications, paginated,
// optionally filtered by status
func (a Application) ApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return
	}

	Limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf("limit not set, using defaults")
	}
	Page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		zap.S().Warnf("page not set, using defaults")
	}

	filter := bson.M{"ownerId": ownerID}
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.ValidStatus(status) {
			config.ErrorStatus("unknown status", http.StatusBadRequest, w, fmt.Errorf("unknown status %q", status))
			return
		}
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := a.ADB.Find(ctx, filter, Limit, Page)
	if err != nil {
		config.ErrorStatus("failed to get applications", http.StatusInternalServerError, w, err)
		return
	}

	// Because the frontend requires that we return an array of applications
	if dbResp == nil {
		dbResp = []models.Application{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ApplicationByIDHandler returns one of the authed owner's applications
func (a Application) ApplicationByIDHandler(w http.ResponseWriter, r *http.Request) {
	application, ok := a.findOwnedApplication(w, r)
	if !ok {
		return
	}

	b, err := json.Marshal(application)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateApplicationHandler moves an application through the pipeline: status,
// rating and appended interview notes
func (a Application) UpdateApplicationHandler(w http.ResponseWriter, r *http.Request) {
	application, ok := a.findOwnedApplication(w, r)
	if !ok {
		return
	}

	var requestBody models.UpdateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if requestBody.Status != "" {
		if !models.ValidStatus(requestBody.Status) {
			config.ErrorStatus("unknown status", http.StatusBadRequest, w, fmt.Errorf("unknown status %q", requestBody.Status))
			return
		}
		set["status"] = requestBody.Status
	}
	if requestBody.Rating != nil {
		if *requestBody.Rating < 0 || *requestBody.Rating > 5 {
			config.ErrorStatus("rating must be between 0 and 5", http.StatusBadRequest, w, fmt.Errorf("rating out of range"))
			return
		}
		set["rating"] = *requestBody.Rating
	}

	update := bson.M{"$set": set}
	if requestBody.InterviewNote != "" {
		update["$push"] = bson.M{"interviewNotes": models.InterviewNote{
			ID:        primitive.NewObjectID(),
			Author:    requestBody.NoteAuthor,
			Note:      requestBody.InterviewNote,
			CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
		}}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := a.ADB.UpdateOne(ctx, bson.M{"_id": application.ID}, update)
	if err != nil {
		config.ErrorStatus("failed to update application", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"updated": "%s"}`, application.ID.Hex())))
}

// DeleteApplicationHandler deletes an application and destroys its stored
// document
func (a Application) DeleteApplicationHandler(w http.ResponseWriter, r *http.Request) {
	application, ok := a.findOwnedApplication(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := a.ADB.DeleteOne(ctx, bson.M{"_id": application.ID})
	if err != nil {
		config.ErrorStatus("failed to delete application", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("application not found", http.StatusNotFound, w, mongo.ErrNoDocuments)
		return
	}

	if application.Document.PublicID != "" && a.Uploader != nil {
		if err := a.Uploader.Destroy(ctx, application.Document.PublicID); err != nil {
			zap.S().Errorw("failed to destroy stored document",
				"publicId", application.Document.PublicID, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"deleted": "%s"}`, application.ID.Hex())))
}

// findOwnedApplication loads the application from the path and checks it
// belongs to the authed owner. Writes the error response itself on failure.
func (a Application) findOwnedApplication(w http.ResponseWriter, r *http.Request) (models.Application, bool) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return models.Application{}, false
	}

	applicationID := mux.Vars(r)["application_id"]
	oid, err := primitive.ObjectIDFromHex(applicationID)
	if err != nil {
		config.ErrorStatus("failed to parse application id", http.StatusBadRequest, w, err)
		return models.Application{}, false
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	application := models.Application{}
	err = a.ADB.FindOne(ctx, bson.M{"_id": oid, "ownerId": ownerID}).Decode(&application)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("application not found", http.StatusNotFound, w, err)
			return models.Application{}, false
		}
		config.ErrorStatus("failed to get application", http.StatusInternalServerError, w, err)
		return models.Application{}, false
	}
	return application, true
}

// authedOwnerID converts the middleware identity to an ObjectID
func authedOwnerID(r *http.Request) (primitive.ObjectID, error) {
	id := api.AuthOwnerID(r)
	if id == "" {
		return primitive.NilObjectID, fmt.Errorf("no authenticated owner on request")
	}
	return primitive.ObjectIDFromHex(id)
}
