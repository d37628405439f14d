package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/mailer"
	"github.com/formgate/formgate-api/models"
	templates "github.com/formgate/formgate-api/templates/html"
)

// BulkMail sends an email template to a set of the owner's applicants
type BulkMail struct {
	TDB        databases.TemplateDatabase
	ADB        databases.ApplicationDatabase
	Dispatcher *mailer.BulkDispatcher
}

// BulkSendHandler sends the template to the selected applications. Recipients
// are delivered one at a time with a fixed delay; a failed recipient is
// recorded in the summary and never stops the rest of the batch.
func (b BulkMail) BulkSendHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := authedOwnerID(r)
	if err != nil {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, err)
		return
	}

	templateID := mux.Vars(r)["template_id"]
	toid, err := primitive.ObjectIDFromHex(templateID)
	if err != nil {
		config.ErrorStatus("failed to parse template id", http.StatusBadRequest, w, err)
		return
	}

	var requestBody models.BulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(requestBody.ApplicationIDs) == 0 && requestBody.Status == "" {
		config.ErrorStatus("applicationIds or status is required", http.StatusBadRequest, w,
			fmt.Errorf("empty recipient selection"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	template := models.EmailTemplate{}
	err = b.TDB.FindOne(ctx, bson.M{"_id": toid, "ownerId": ownerID}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("template not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get template", http.StatusInternalServerError, w, err)
		return
	}

	filter := bson.M{"ownerId": ownerID}
	if len(requestBody.ApplicationIDs) > 0 {
		oids := make([]primitive.ObjectID, 0, len(requestBody.ApplicationIDs))
		for _, id := range requestBody.ApplicationIDs {
			oid, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				config.ErrorStatus("failed to parse application id", http.StatusBadRequest, w, err)
				return
			}
			oids = append(oids, oid)
		}
		filter["_id"] = bson.M{"$in": oids}
	}
	if requestBody.Status != "" {
		if !models.ValidStatus(requestBody.Status) {
			config.ErrorStatus("unknown status", http.StatusBadRequest, w, fmt.Errorf("unknown status %q", requestBody.Status))
			return
		}
		filter["status"] = requestBody.Status
	}

	applications, err := b.ADB.FindAll(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to get applications", http.StatusInternalServerError, w, err)
		return
	}
	if len(applications) == 0 {
		config.ErrorStatus("no matching applications", http.StatusNotFound, w, mongo.ErrNoDocuments)
		return
	}

	msgs := make([]mailer.Message, 0, len(applications))
	for _, app := range applications {
		body := strings.ReplaceAll(template.Body, "{{applicant}}", app.FullName)
		msgs = append(msgs, mailer.Message{
			ToName:    app.FullName,
			ToEmail:   app.Email,
			Subject:   template.Subject,
			PlainText: body,
			HTMLBody:  templates.RenderNotice(template.Subject, body),
		})
	}

	// The batch runs on the request context so a dropped client stops the
	// remaining sends rather than leaking a long-running goroutine.
	summary := b.Dispatcher.Send(r.Context(), msgs)
	zap.S().Infow("bulk send finished",
		"templateId", template.ID.Hex(),
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}
