package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v78"

	"evrental/internal/api"
	"evrental/internal/auth"
	"evrental/internal/repository"
	"evrental/internal/service"
)

func main() {
	godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	database, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Fatal("STRIPE_SECRET_KEY not set")
	}
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")

	unitRepo := repository.NewUnitRepository(database)
	rentalRepo := repository.NewRentalRepository(database)
	paymentRepo := repository.NewPaymentRepository(database)
	jobRepo := repository.NewJobRepository(database)
	staffRepo := repository.NewStaffAuthRepository(database)

	stripeSvc := service.NewStripeService()
	inventorySvc := service.NewInventoryService(unitRepo)
	paymentSvc := service.NewPaymentService(database, paymentRepo, stripeSvc, os.Getenv("PAYMENT_CURRENCY"))
	notifySvc := service.NewNotifyService()
	rentalSvc := service.NewRentalService(database, rentalRepo, inventorySvc, paymentSvc, notifySvc)
	jobSvc := service.NewJobService(jobRepo, rentalSvc, 0)
	staffAuthSvc := service.NewStaffAuthService(staffRepo)

	rentalHandler := api.NewRentalHandler(rentalSvc, paymentSvc)
	unitHandler := api.NewUnitHandler(inventorySvc)
	paymentHandler := api.NewPaymentHandler(webhookSecret, paymentSvc, rentalSvc)
	staffAuthHandler := api.NewStaffAuthHandler(staffAuthSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/stations/{id}/units", unitHandler.ListStationUnits).Methods("GET")
	r.HandleFunc("/api/rentals", rentalHandler.CreateRental).Methods("POST")
	r.HandleFunc("/api/rentals/{code}", rentalHandler.GetRental).Methods("GET")
	r.HandleFunc("/api/rentals/{code}", rentalHandler.CancelRental).Methods("DELETE")
	r.HandleFunc("/api/payments/{id}/verify", paymentHandler.VerifyPayment).Methods("GET")
	r.HandleFunc("/api/stripe/webhook", paymentHandler.HandleWebhook).Methods("POST")
	r.HandleFunc("/staff/login", staffAuthHandler.Login).Methods("POST")

	// Staff endpoints (protected)
	staff := r.PathPrefix("/staff").Subrouter()
	staff.Use(auth.StaffAuthMiddleware)
	staff.HandleFunc("/register", staffAuthHandler.CreateStaff).Methods("POST")
	staff.HandleFunc("/rentals", rentalHandler.ListRentals).Methods("GET")
	staff.HandleFunc("/rentals/{id}", rentalHandler.GetRentalByID).Methods("GET")
	staff.HandleFunc("/rentals/{id}/handover", rentalHandler.HandOver).Methods("POST")
	staff.HandleFunc("/rentals/{id}/return", rentalHandler.Return).Methods("POST")
	staff.HandleFunc("/rentals/{id}/payments", rentalHandler.ListRentalPayments).Methods("GET")
	staff.HandleFunc("/payments/{id}", paymentHandler.GetPayment).Methods("GET")
	staff.HandleFunc("/units", unitHandler.CreateUnit).Methods("POST")
	staff.HandleFunc("/units/{id}", unitHandler.GetUnit).Methods("GET")
	staff.HandleFunc("/units/{id}/retire", unitHandler.RetireUnit).Methods("PUT")
	staff.HandleFunc("/units/{id}/battery", unitHandler.UpdateBattery).Methods("PUT")
	staff.HandleFunc("/units/{id}/restore", unitHandler.FinishMaintenance).Methods("PUT")

	c := cron.New()
	if _, err := c.AddFunc("*/5 * * * *", func() {
		if err := jobSvc.CancelExpiredReservations(context.Background()); err != nil {
			log.Printf("Cron Job: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule reservation sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	corsOrigins := handlers.AllowedOrigins([]string{os.Getenv("CORS_ALLOWED_ORIGIN")})
	corsMethods := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Stripe-Signature"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port,
		handlers.LoggingHandler(os.Stdout, handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r))))
}
