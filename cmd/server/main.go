package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/korawit-s/thriftmarket/internal/apperr"
	"github.com/korawit-s/thriftmarket/internal/config"
	"github.com/korawit-s/thriftmarket/internal/es"
	"github.com/korawit-s/thriftmarket/internal/handlers"
	"github.com/korawit-s/thriftmarket/internal/logging"
	loggingmw "github.com/korawit-s/thriftmarket/internal/middleware/logging"
	"github.com/korawit-s/thriftmarket/internal/mykafka"
	"github.com/korawit-s/thriftmarket/internal/service/order"
	"github.com/korawit-s/thriftmarket/internal/service/problem"
	"github.com/korawit-s/thriftmarket/internal/service/warning"
	httpserver "github.com/korawit-s/thriftmarket/internal/transport/http"
	"github.com/korawit-s/thriftmarket/internal/upload"
	"github.com/korawit-s/thriftmarket/internal/validation"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	jwtSecret := []byte(configuration.JWT_SECRET)

	brokers := []string{configuration.KAFKA_ADDRESS}
	topics := []string{"user_events", "product_events", "order_events", "problem_events", "warning_events"}
	prod, err := mykafka.NewProducer(brokers, topics)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	uploads, err := upload.NewStore(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatal(err)
	}

	orderSvc := &order.Service{DB: db, Producer: prod}
	problemSvc := &problem.Service{DB: db, Producer: prod}
	warningSvc := &warning.Service{DB: db, Producer: prod}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))
	e.Validator = validation.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler

	deps := httpserver.Deps{
		JWTSecret:       jwtSecret,
		UploadDir:       configuration.UPLOAD_DIR,
		AuthHandler:     &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, Producer: prod},
		UserHandler:     &handlers.UserHandler{DB: db, Orders: orderSvc, Problems: problemSvc, Uploads: uploads},
		ProductHandler:  &handlers.ProductHandler{DB: db},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: "product"},
		SellerHandler:   &handlers.SellerHandler{DB: db, Orders: orderSvc, Problems: problemSvc, Warnings: warningSvc, Uploads: uploads, Producer: prod, ES: esClient, ESIndex: "product"},
		AdminHandler:    &handlers.AdminHandler{DB: db, Warnings: warningSvc, Problems: problemSvc, Uploads: uploads},
		SettingsHandler: &handlers.SettingsHandler{DB: db, Uploads: uploads},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
