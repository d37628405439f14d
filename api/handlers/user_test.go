package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/formgate/formgate-api/api/handlers"
	"github.com/formgate/formgate-api/databases"
	mocksdb "github.com/formgate/formgate-api/databases/mocks"
	"github.com/formgate/formgate-api/models"
)

func TestOwner_OwnerCreateHandlerSuccess(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	conn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(&mocksdb.InsertOneResultHelper{}, nil)
	db.On("Collection", "owners").Return(conn)

	h := handlers.Owner{DB: databases.NewOwnerDatabase(db)}

	body, _ := json.Marshal(models.CreateOwnerRequest{
		Name:     "Grace",
		Email:    "Grace@Acme.com",
		Company:  "Acme Corp",
		Password: "hunter22",
	})
	req := httptest.NewRequest("POST", "/api/v1/user/create-user", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.OwnerCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var owner models.Owner
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &owner))
	assert.Equal(t, "grace@acme.com", owner.Email)
	assert.NotEmpty(t, owner.FormSlug)
	assert.Contains(t, owner.FormSlug, "acme-corp-")
	// the password hash never leaves the server
	assert.NotContains(t, rr.Body.String(), "hunter22")
}

func TestOwner_OwnerCreateHandlerDuplicateEmail(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	conn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)
	db.On("Collection", "owners").Return(conn)

	h := handlers.Owner{DB: databases.NewOwnerDatabase(db)}

	body, _ := json.Marshal(models.CreateOwnerRequest{
		Name:     "Grace",
		Email:    "grace@acme.com",
		Password: "hunter22",
	})
	req := httptest.NewRequest("POST", "/api/v1/user/create-user", bytes.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.OwnerCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Email already exists")
}

func TestOwner_OwnerCreateHandlerMissingFields(t *testing.T) {
	h := handlers.Owner{}

	req := httptest.NewRequest("POST", "/api/v1/user/create-user", bytes.NewReader([]byte(`{"email": "x@y.com"}`)))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.OwnerCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
