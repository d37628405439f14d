package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/databases"
	"github.com/formgate/formgate-api/mailer"
	"github.com/formgate/formgate-api/models"
	"github.com/formgate/formgate-api/notify"
	"github.com/formgate/formgate-api/storage"
	"github.com/formgate/formgate-api/verification"
)

// App stores the router and the shared service dependencies, so it can be
// reused across requests
type App struct {
	Router   *mux.Router
	Config   config.Config
	dbHelper databases.DatabaseHelper

	Store    verification.Store
	Sender   mailer.Sender
	Uploader storage.Uploader
	Notifier notify.Notifier
	Hub      *Hub

	// Sweeper is non-nil only for the in-memory store; main hands it to the
	// cron scheduler.
	Sweeper interface{ Sweep() int }
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewOwnerDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	owner := Owner{DB: databases.NewOwnerDatabase(a.dbHelper), Config: a.Config}
	verify := Verification{Store: a.Store, Sender: a.Sender}
	app := Application{
		ADB:      databases.NewApplicationDatabase(a.dbHelper),
		ODB:      databases.NewOwnerDatabase(a.dbHelper),
		Store:    a.Store,
		Uploader: a.Uploader,
		Notifier: a.Notifier,
		Hub:      a.Hub,
		Config:   a.Config,
	}
	tmpl := Template{TDB: databases.NewTemplateDatabase(a.dbHelper)}
	bulk := BulkMail{
		TDB:        databases.NewTemplateDatabase(a.dbHelper),
		ADB:        databases.NewApplicationDatabase(a.dbHelper),
		Dispatcher: mailer.NewBulkDispatcher(a.Sender, a.Config.BulkEmailDelay),
	}
	stats := Stats{ADB: databases.NewApplicationDatabase(a.dbHelper)}
	feed := Livefeed{Hub: a.Hub}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	// applicant-facing verification flow, no auth
	apiCreate.Handle("/verify/request-code", http.HandlerFunc(verify.RequestCodeHandler)).Methods("POST")
	apiCreate.Handle("/verify/confirm-code", http.HandlerFunc(verify.ConfirmCodeHandler)).Methods("POST")
	apiCreate.Handle("/verify/status", http.HandlerFunc(verify.StatusHandler)).Methods("POST")

	// applicant-facing submission flow, no auth
	apiCreate.Handle("/application", http.HandlerFunc(app.SubmitApplicationHandler)).Methods("POST")
	apiCreate.Handle("/application-status", http.HandlerFunc(app.ApplicationStatusHandler)).Methods("GET")

	// owner dashboard
	apiCreate.Handle("/applications", api.Middleware(http.HandlerFunc(app.ApplicationsHandler))).Methods("GET")
	apiCreate.Handle("/application/{application_id}", api.Middleware(http.HandlerFunc(app.ApplicationByIDHandler))).Methods("GET")
	apiCreate.Handle("/application/{application_id}", api.Middleware(http.HandlerFunc(app.UpdateApplicationHandler))).Methods("PUT")
	apiCreate.Handle("/application/{application_id}", api.Middleware(http.HandlerFunc(app.DeleteApplicationHandler))).Methods("DELETE")
	apiCreate.Handle("/application/{application_id}/pdf", api.Middleware(http.HandlerFunc(app.ApplicationPDFHandler))).Methods("GET")

	apiCreate.Handle("/template", api.Middleware(http.HandlerFunc(tmpl.CreateTemplateHandler))).Methods("POST")
	apiCreate.Handle("/templates", api.Middleware(http.HandlerFunc(tmpl.TemplatesHandler))).Methods("GET")
	apiCreate.Handle("/template/{template_id}", api.Middleware(http.HandlerFunc(tmpl.TemplateByIDHandler))).Methods("GET")
	apiCreate.Handle("/template/{template_id}", api.Middleware(http.HandlerFunc(tmpl.UpdateTemplateHandler))).Methods("PUT")
	apiCreate.Handle("/template/{template_id}", api.Middleware(http.HandlerFunc(tmpl.DeleteTemplateHandler))).Methods("DELETE")
	apiCreate.Handle("/template/{template_id}/send", api.Middleware(http.HandlerFunc(bulk.BulkSendHandler))).Methods("POST")

	apiCreate.Handle("/stats", api.Middleware(http.HandlerFunc(stats.OwnerStatsHandler))).Methods("GET")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(owner.OwnerCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/create-checkout-session", api.Middleware(http.HandlerFunc(owner.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/user/{owner_id}", api.Middleware(http.HandlerFunc(owner.OwnerHandler))).Methods("GET")
	apiCreate.Handle("/user/{owner_id}", api.Middleware(http.HandlerFunc(owner.UpdateOwnerHandler))).Methods("PUT")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	apiCreate.Handle("/success", http.HandlerFunc(owner.handleSuccessRedirect)).Methods("GET")
	apiCreate.Handle("/cancel", http.HandlerFunc(owner.handleCancelRedirect)).Methods("GET")

	r.Handle("/ws/applications", api.Middleware(http.HandlerFunc(feed.ServeWS))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("formgate-api has connected to the database")

	// verification store: redis when configured, per-process memory otherwise
	if a.Config.RedisURL != "" {
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			zap.S().With(err).Error("failed to parse redis url")
			return err
		}
		a.Store = verification.NewRedisStore(redis.NewClient(opts), "verify")
		zap.S().Info("verification store backed by redis")
	} else {
		memStore := verification.NewMemoryStore()
		a.Store = memStore
		a.Sweeper = memStore
		zap.S().Info("verification store backed by process memory")
	}

	a.Sender = mailer.NewSendGridSender(a.Config.SendGridAPIKey, a.Config.FromName, a.Config.FromEmail)

	if a.Config.CloudinaryURL != "" {
		uploader, err := storage.NewCloudinaryUploader(a.Config.CloudinaryURL, "applications")
		if err != nil {
			zap.S().With(err).Error("failed to create cloudinary uploader")
			return err
		}
		a.Uploader = uploader
	}

	if n := notify.NewTelegramNotifier(a.Config.TelegramBotToken); n != nil {
		a.Notifier = n
	}

	a.Hub = NewHub()

	// initialize stripe
	if a.Config.StripeSecretKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = a.Config.StripeSecretKey

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
