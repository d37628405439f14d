package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaj13/go-guardian/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/api/handlers"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	mocksdb "github.com/formgate/formgate-api/databases/mocks"
	"github.com/formgate/formgate-api/models"
	"github.com/formgate/formgate-api/verification"
)

// fakeUploader records staged and destroyed documents.
type fakeUploader struct {
	uploaded  []string
	destroyed []string
	uploadErr error
}

func (f *fakeUploader) Upload(_ context.Context, _ io.Reader, publicID string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, publicID)
	return "https://cdn.test/" + publicID, nil
}

func (f *fakeUploader) Destroy(_ context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func newSubmitRequest(t *testing.T, fields map[string]string, fileName string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("document", fileName)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("resume bytes"))
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/application", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// verifiedStore returns a store where the given address already holds a live
// verification.
func verifiedStore(t *testing.T, address string) *verification.MemoryStore {
	t.Helper()
	store := verification.NewMemoryStore(
		verification.WithCodeGenerator(func() string { return "123456" }),
	)
	if _, err := store.RequestCode(context.Background(), address); err != nil {
		t.Fatal(err)
	}
	if err := store.ConfirmCode(context.Background(), address, "123456"); err != nil {
		t.Fatal(err)
	}
	return store
}

func mockOwnerLookup(db *mocksdb.DatabaseHelper, owner models.Owner) {
	conn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Owner)
		*arg = owner
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "owners").Return(conn)
}

func TestApplication_SubmitApplicationHandlerSuccess(t *testing.T) {
	ownerID := primitive.NewObjectID()
	db := &mocksdb.DatabaseHelper{}
	mockOwnerLookup(db, models.Owner{ID: ownerID, FormSlug: "acme-1234", FormTitle: "Apply to Acme"})

	appConn := &mocksdb.CollectionHelper{}
	appConn.On("InsertOne", mock.Anything, mock.Anything).Return(&mocksdb.InsertOneResultHelper{}, nil)
	db.On("Collection", "applications").Return(appConn)

	store := verifiedStore(t, "a@x.com")
	h := handlers.Application{
		ADB:    databases.NewApplicationDatabase(db),
		ODB:    databases.NewOwnerDatabase(db),
		Store:  store,
		Config: config.Config{BaseURL: "http://localhost:8080", JWTSecret: "test-secret"},
	}

	req := newSubmitRequest(t, map[string]string{
		"formSlug": "acme-1234",
		"fullName": "Ada Lovelace",
		"email":    "A@X.com",
	}, "")
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SubmitApplicationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["_id"])
	assert.Contains(t, resp["statusUrl"], "http://localhost:8080/api/v1/application-status?token=")

	// the verification was consumed, so an immediate second submit is rejected
	req = newSubmitRequest(t, map[string]string{
		"formSlug": "acme-1234",
		"fullName": "Ada Lovelace",
		"email":    "a@x.com",
	}, "")
	rr = httptest.NewRecorder()
	http.HandlerFunc(h.SubmitApplicationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "EMAIL_NOT_VERIFIED")
}

func TestApplication_SubmitApplicationHandlerUnverifiedEmail(t *testing.T) {
	ownerID := primitive.NewObjectID()
	db := &mocksdb.DatabaseHelper{}
	mockOwnerLookup(db, models.Owner{ID: ownerID, FormSlug: "acme-1234"})

	h := handlers.Application{
		ADB:   databases.NewApplicationDatabase(db),
		ODB:   databases.NewOwnerDatabase(db),
		Store: verification.NewMemoryStore(),
	}

	req := newSubmitRequest(t, map[string]string{
		"formSlug": "acme-1234",
		"fullName": "Ada Lovelace",
		"email":    "a@x.com",
	}, "")
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SubmitApplicationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "EMAIL_NOT_VERIFIED")
}

func TestApplication_SubmitApplicationHandlerPersistFailureDestroysDocument(t *testing.T) {
	ownerID := primitive.NewObjectID()
	db := &mocksdb.DatabaseHelper{}
	mockOwnerLookup(db, models.Owner{ID: ownerID, FormSlug: "acme-1234"})

	appConn := &mocksdb.CollectionHelper{}
	appConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	db.On("Collection", "applications").Return(appConn)

	uploader := &fakeUploader{}
	h := handlers.Application{
		ADB:      databases.NewApplicationDatabase(db),
		ODB:      databases.NewOwnerDatabase(db),
		Store:    verifiedStore(t, "a@x.com"),
		Uploader: uploader,
		Config:   config.Config{BaseURL: "http://localhost:8080", JWTSecret: "test-secret"},
	}

	req := newSubmitRequest(t, map[string]string{
		"formSlug": "acme-1234",
		"fullName": "Ada Lovelace",
		"email":    "a@x.com",
	}, "resume.pdf")
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SubmitApplicationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	// the staged file must not outlive the failed record
	assert.Len(t, uploader.uploaded, 1)
	assert.Equal(t, uploader.uploaded, uploader.destroyed)
}

func TestApplication_ApplicationsHandlerSuccess(t *testing.T) {
	ownerID := primitive.NewObjectID()

	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	cursorHelper := &mocksdb.CursorHelper{}
	cursorHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Application)
		*arg = []models.Application{{ID: primitive.NewObjectID(), OwnerID: ownerID, FullName: "Ada Lovelace", Status: models.StatusReceived}}
	})
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.On("Collection", "applications").Return(conn)

	h := handlers.Application{ADB: databases.NewApplicationDatabase(db)}

	req, err := http.NewRequest("GET", "/api/v1/applications?status=received", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = api.WithAuthOwner(req, auth.NewDefaultUser("o@x.com", ownerID.Hex(), nil, nil))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ApplicationsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var apps []models.Application
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apps))
	assert.Len(t, apps, 1)
	assert.Equal(t, "Ada Lovelace", apps[0].FullName)
}

func TestApplication_ApplicationsHandlerUnknownStatus(t *testing.T) {
	ownerID := primitive.NewObjectID()
	h := handlers.Application{}

	req, err := http.NewRequest("GET", "/api/v1/applications?status=bogus", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = api.WithAuthOwner(req, auth.NewDefaultUser("o@x.com", ownerID.Hex(), nil, nil))

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ApplicationsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
