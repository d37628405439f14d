package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shaj13/go-guardian/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/api/handlers"
	"github.com/formgate/formgate-api/databases"
	mocksdb "github.com/formgate/formgate-api/databases/mocks"
	"github.com/formgate/formgate-api/mailer"
	"github.com/formgate/formgate-api/models"
)

func TestBulkMail_BulkSendHandlerPartialFailure(t *testing.T) {
	ownerID := primitive.NewObjectID()
	templateID := primitive.NewObjectID()

	db := &mocksdb.DatabaseHelper{}

	templateConn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.EmailTemplate)
		*arg = models.EmailTemplate{
			ID:      templateID,
			OwnerID: ownerID,
			Name:    "Interview invite",
			Subject: "Next steps",
			Body:    "Hi {{applicant}}, we would like to schedule an interview.",
		}
	})
	templateConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "emailTemplates").Return(templateConn)

	appConn := &mocksdb.CollectionHelper{}
	cursorHelper := &mocksdb.CursorHelper{}
	cursorHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Application)
		*arg = []models.Application{
			{ID: primitive.NewObjectID(), OwnerID: ownerID, FullName: "Ada", Email: "ada@x.com"},
			{ID: primitive.NewObjectID(), OwnerID: ownerID, FullName: "Bob", Email: "bob@x.com"},
			{ID: primitive.NewObjectID(), OwnerID: ownerID, FullName: "Cam", Email: "cam@x.com"},
		}
	})
	appConn.On("Find", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.On("Collection", "applications").Return(appConn)

	sender := &fakeSender{failFor: map[string]bool{"bob@x.com": true}}
	h := handlers.BulkMail{
		TDB:        databases.NewTemplateDatabase(db),
		ADB:        databases.NewApplicationDatabase(db),
		Dispatcher: mailer.NewBulkDispatcher(sender, 0),
	}

	body, _ := json.Marshal(models.BulkSendRequest{Status: models.StatusScreening})
	req := httptest.NewRequest("POST", "/api/v1/template/"+templateID.Hex()+"/send", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"template_id": templateID.Hex()})
	req = api.WithAuthOwner(req, auth.NewDefaultUser("o@x.com", ownerID.Hex(), nil, nil))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.BulkSendHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var summary mailer.BulkSummary
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	// the failure did not stop later recipients
	assert.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[2].Sent)

	// the placeholder was filled per recipient
	assert.Contains(t, sender.sent[0].PlainText, "Hi Ada,")
	assert.Contains(t, sender.sent[1].PlainText, "Hi Cam,")
}

func TestBulkMail_BulkSendHandlerEmptySelection(t *testing.T) {
	ownerID := primitive.NewObjectID()
	templateID := primitive.NewObjectID()

	h := handlers.BulkMail{}

	req := httptest.NewRequest("POST", "/api/v1/template/"+templateID.Hex()+"/send", bytes.NewReader([]byte(`{}`)))
	req = mux.SetURLVars(req, map[string]string{"template_id": templateID.Hex()})
	req = api.WithAuthOwner(req, auth.NewDefaultUser("o@x.com", ownerID.Hex(), nil, nil))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.BulkSendHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
