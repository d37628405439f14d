package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/models"
)

// Owner handles form owner requests
type Owner struct {
	DB     databases.OwnerDatabase
	Config config.Config
}

// OwnerCreateHandler registers a new form owner with a unique email and a
// generated form slug
func (o Owner) OwnerCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var requestBody models.CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.Email == "" || requestBody.Password == "" || requestBody.Name == "" {
		config.ErrorStatus("name, email and password are required", http.StatusBadRequest, w,
			fmt.Errorf("missing required fields"))
		return
	}
	requestBody.Email = strings.TrimSpace(strings.ToLower(requestBody.Email))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := o.DB.CountDocuments(ctx, bson.M{"email": requestBody.Email})
	if err != nil {
		config.ErrorStatus("failed to check existing email", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		http.Error(w, `{"success": false, "message": "Email already exists"}`, http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(requestBody.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	owner := models.Owner{
		ID:        primitive.NewObjectID(),
		Name:      requestBody.Name,
		Email:     requestBody.Email,
		Company:   requestBody.Company,
		Password:  string(hashed),
		FormSlug:  newFormSlug(requestBody.Company),
		FormTitle: fmt.Sprintf("Apply to %s", requestBody.Company),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = o.DB.InsertOne(ctx, owner)
	if err != nil {
		config.ErrorStatus("failed to create owner", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(owner)
}

// newFormSlug derives a url-safe slug from the company name plus a short
// random suffix so collisions never need a retry loop.
func newFormSlug(company string) string {
	slug := strings.ToLower(strings.TrimSpace(company))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "form"
	}
	return slug + "-" + uuid.New().String()[:8]
}

// OwnerHandler returns the authed owner's profile
func (o Owner) OwnerHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := o.findAuthedOwner(w, r)
	if !ok {
		return
	}

	b, err := json.Marshal(owner)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateOwnerHandler updates the authed owner's profile fields
func (o Owner) UpdateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := o.findAuthedOwner(w, r)
	if !ok {
		return
	}

	var requestBody struct {
		Name           string `json:"name,omitempty"`
		Company        string `json:"company,omitempty"`
		FormTitle      string `json:"formTitle,omitempty"`
		TelegramChatID *int64 `json:"telegramChatId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if requestBody.Name != "" {
		set["name"] = requestBody.Name
	}
	if requestBody.Company != "" {
		set["company"] = requestBody.Company
	}
	if requestBody.FormTitle != "" {
		set["formTitle"] = requestBody.FormTitle
	}
	if requestBody.TelegramChatID != nil {
		set["telegramChatId"] = *requestBody.TelegramChatID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := o.DB.UpdateOne(ctx, bson.M{"_id": owner.ID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update owner", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"updated": "%s"}`, owner.ID.Hex())))
}

// CreateCheckoutSessionHandler starts a Stripe checkout for the premium plan
func (o Owner) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := o.findAuthedOwner(w, r)
	if !ok {
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(o.Config.PremiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(owner.ID.Hex()),
		CustomerEmail:     stripe.String(owner.Email),
		SuccessURL:        stripe.String(o.Config.BaseURL + "/api/v1/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(o.Config.BaseURL + "/api/v1/cancel"),
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"url": s.URL})
}

// handleSuccessRedirect verifies the completed checkout and flips the owner
// to premium before sending them back to the dashboard
func (o Owner) handleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		config.ErrorStatus("session_id is required", http.StatusBadRequest, w, fmt.Errorf("session_id is required"))
		return
	}

	s, err := checkoutsession.Get(sessionID, nil)
	if err != nil {
		config.ErrorStatus("failed to retrieve checkout session", http.StatusInternalServerError, w, err)
		return
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		config.ErrorStatus("checkout not paid", http.StatusBadRequest, w, fmt.Errorf("payment status %s", s.PaymentStatus))
		return
	}

	oid, err := primitive.ObjectIDFromHex(s.ClientReferenceID)
	if err != nil {
		config.ErrorStatus("invalid owner reference on session", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = o.DB.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"premium":   true,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to activate premium", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("owner upgraded to premium", "ownerId", oid.Hex())
	http.Redirect(w, r, o.Config.BaseURL+"/dashboard?upgraded=true", http.StatusSeeOther)
}

func (o Owner) handleCancelRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, o.Config.BaseURL+"/dashboard?upgraded=false", http.StatusSeeOther)
}

// findAuthedOwner loads the owner from the path and checks it matches the
// middleware identity. Writes the error response itself on failure.
func (o Owner) findAuthedOwner(w http.ResponseWriter, r *http.Request) (models.Owner, bool) {
	authedID := api.AuthOwnerID(r)
	if authedID == "" {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, fmt.Errorf("no authenticated owner"))
		return models.Owner{}, false
	}

	// Path-addressed routes must match the authenticated identity.
	if pathID, ok := mux.Vars(r)["owner_id"]; ok && pathID != authedID {
		config.ErrorStatus("forbidden", http.StatusForbidden, w, fmt.Errorf("owner mismatch"))
		return models.Owner{}, false
	}

	oid, err := primitive.ObjectIDFromHex(authedID)
	if err != nil {
		config.ErrorStatus("failed to parse owner id", http.StatusBadRequest, w, err)
		return models.Owner{}, false
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	owner := models.Owner{}
	err = o.DB.FindOne(ctx, bson.M{"_id": oid}).Decode(&owner)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("owner not found", http.StatusNotFound, w, err)
			return models.Owner{}, false
		}
		config.ErrorStatus("failed to get owner", http.StatusInternalServerError, w, err)
		return models.Owner{}, false
	}
	return owner, true
}
