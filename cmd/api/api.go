package api

import (
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/swasthya-health/swasthya-server/service/appointment"
	"github.com/swasthya-health/swasthya-server/service/assistant"
	"github.com/swasthya-health/swasthya-server/service/consultation"
	"github.com/swasthya-health/swasthya-server/service/doctor"
	"github.com/swasthya-health/swasthya-server/service/indiastack"
	"github.com/swasthya-health/swasthya-server/service/medication"
	notification "github.com/swasthya-health/swasthya-server/service/notifications"
	"github.com/swasthya-health/swasthya-server/service/payment"
	"github.com/swasthya-health/swasthya-server/service/records"
	"github.com/swasthya-health/swasthya-server/service/sos"
	"github.com/swasthya-health/swasthya-server/service/user"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	notifier := notification.NewNotifier(s.db)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	doctorHandler := doctor.NewHandler(s.db)
	doctorHandler.RegisterRoutes(subrouter)

	appointmentHandler := appointment.NewHandler(s.db, notifier)
	appointmentHandler.RegisterRoutes(subrouter)

	paymentHandler := payment.NewHandler(s.db, payment.NewDemoGateway())
	paymentHandler.RegisterRoutes(subrouter)

	consultationHandler := consultation.NewHandler(s.db)
	consultationHandler.RegisterRoutes(subrouter)

	recordsHandler := records.NewHandler(s.db)
	recordsHandler.RegisterRoutes(subrouter)

	medicationHandler := medication.NewHandler(s.db)
	medicationHandler.RegisterRoutes(subrouter)

	sosHandler := sos.NewHandler(s.db, notifier)
	sosHandler.RegisterRoutes(subrouter)

	assistantHandler := assistant.NewHandler()
	assistantHandler.RegisterRoutes(subrouter)

	indiaStackHandler := indiastack.NewHandler(s.db)
	indiaStackHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewHandler(s.db, notifier)
	notificationHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, cors(router))
}
