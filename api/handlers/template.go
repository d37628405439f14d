package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/models"
)

// Template handles email template requests
type Template struct {
	TDB databases.TemplateDatabase
}

// CreateTemplateHandler creates a new email template for the authed owner
func (t Template) CreateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return
	}

	var requestBody models.EmailTemplate
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Name == "" || requestBody.Subject == "" || requestBody.Body == "" {
		config.ErrorStatus("name, subject and body are required", http.StatusBadRequest, w,
			fmt.Errorf("missing required fields"))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	template := models.EmailTemplate{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		Name:      requestBody.Name,
		Subject:   requestBody.Subject,
		Body:      requestBody.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = t.TDB.InsertOne(ctx, template)
	if err != nil {
		config.ErrorStatus("failed to create template", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(template)
}

// TemplatesHandler lists the authed owner's templates
func (t Template) TemplatesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := t.TDB.Find(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		config.ErrorStatus("failed to get templates", http.StatusInternalServerError, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.EmailTemplate{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// TemplateByIDHandler returns one of the authed owner's templates
func (t Template) TemplateByIDHandler(w http.ResponseWriter, r *http.Request) {
	template, ok := t.findOwnedTemplate(w, r)
	if !ok {
		return
	}

	b, err := json.Marshal(template)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateTemplateHandler updates a template's name, subject or body
func (t Template) UpdateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	template, ok := t.findOwnedTemplate(w, r)
	if !ok {
		return
	}

	var requestBody models.EmailTemplate
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if requestBody.Name != "" {
		set["name"] = requestBody.Name
	}
	if requestBody.Subject != "" {
		set["subject"] = requestBody.Subject
	}
	if requestBody.Body != "" {
		set["body"] = requestBody.Body
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := t.TDB.UpdateOne(ctx, bson.M{"_id": template.ID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update template", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"updated": "%s"}`, template.ID.Hex())))
}

// DeleteTemplateHandler deletes one of the authed owner's templates
func (t Template) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	template, ok := t.findOwnedTemplate(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := t.TDB.DeleteOne(ctx, bson.M{"_id": template.ID})
	if err != nil {
		config.ErrorStatus("failed to delete template", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("template not found", http.StatusNotFound, w, mongo.ErrNoDocuments)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"deleted": "%s"}`, template.ID.Hex())))
}

// findOwnedTemplate loads the template from the path scoped to the authed
// owner. Writes the error response itself on failure.
func (t Template) findOwnedTemplate(w http.ResponseWriter, r *http.Request) (models.EmailTemplate, bool) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return models.EmailTemplate{}, false
	}

	templateID := mux.Vars(r)["template_id"]
	oid, err := primitive.ObjectIDFromHex(templateID)
	if err != nil {
		config.ErrorStatus("failed to parse template id", http.StatusBadRequest, w, err)
		return models.EmailTemplate{}, false
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	template := models.EmailTemplate{}
	err = t.TDB.FindOne(ctx, bson.M{"_id": oid, "ownerId": ownerID}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("template not found", http.StatusNotFound, w, err)
			return models.EmailTemplate{}, false
		}
		config.ErrorStatus("failed to get template", http.StatusInternalServerError, w, err)
		return models.EmailTemplate{}, false
	}
	return template, true
}
