package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"studiodesk/internal/config"
	"studiodesk/internal/domain"
	"studiodesk/internal/events"
	"studiodesk/internal/lock"
	"studiodesk/internal/middleware"
	"studiodesk/internal/modules/booking"
	"studiodesk/internal/modules/finance"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/modules/scheduling"
	"studiodesk/internal/modules/studio"
	jwtsvc "studiodesk/internal/pkg/jwt"
	"studiodesk/internal/pkg/response"
	"studiodesk/internal/realtime"
	"studiodesk/internal/repository"
)

const snapshotLimit = 200

type app struct {
	router *gin.Engine
	ledger *ledger.Service
	tokens *jwtsvc.Service
	hub    *realtime.Hub
}

func newApp(cfg *config.AppConfig, db *gorm.DB, locker lock.Locker, publisher events.Publisher, hub *realtime.Hub) *app {
	bookingRepo := repository.NewBookingRepository(db)
	configRepo := repository.NewStudioConfigRepository(db)
	clientRepo := repository.NewClientRepository(db)
	staffRepo := repository.NewStaffRepository(db)

	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	ledgerService := ledger.NewService(db, ledger.ExpensePolicy{EnforceFloor: cfg.ExpenseFloor}, publisher, hub)
	schedulingService := scheduling.NewService(bookingRepo, configRepo, locker, cfg.DefaultBufferMinutes)
	bookingService := booking.NewService(db, bookingRepo, clientRepo, staffRepo, schedulingService, ledgerService, publisher, hub)
	studioService := studio.NewService(configRepo, clientRepo, staffRepo)

	registerSnapshotters(hub, db)

	r := gin.New()
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/subscribe", realtime.NewHandler(hub, tokens, cfg.CORSAllowedOrigins).Subscribe)

	internal := r.Group("/internal", middleware.InternalTokenAuth(cfg.InternalToken))
	internal.POST("/reconcile", func(c *gin.Context) {
		drifted, err := ledgerService.RunScheduledReconcile(c.Request.Context())
		if err != nil {
			ledger.WriteError(c, "main", "reconcile", err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"drifted": drifted})
	})

	v1 := r.Group("/api/v1", middleware.JWTAuth(tokens))
	booking.NewHandler(bookingService).RegisterRoutes(v1)
	studio.NewHandler(studioService).RegisterRoutes(v1)
	finance.NewHandler(ledgerService).RegisterRoutes(v1.Group("/finance", middleware.FinancePIN(studioService)))

	return &app{router: r, ledger: ledgerService, tokens: tokens, hub: hub}
}

func registerSnapshotters(hub *realtime.Hub, db *gorm.DB) {
	bookings := repository.NewBookingRepository(db)
	accounts := repository.NewAccountRepository(db)
	txns := repository.NewTransactionRepository(db)

	hub.RegisterSnapshotter(realtime.CollectionBookings, func(ctx context.Context, q realtime.Query) (any, error) {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return bookings.ListByDate(ctx, q.TenantID, q.Date)
	})
	hub.RegisterSnapshotter(realtime.CollectionAccounts, func(ctx context.Context, q realtime.Query) (any, error) {
		return accounts.List(ctx, q.TenantID)
	})
	hub.RegisterSnapshotter(realtime.CollectionTransactions, func(ctx context.Context, q realtime.Query) (any, error) {
		f := repository.TransactionFilter{Limit: snapshotLimit}
		if q.Date != "" {
			day, err := domain.ParseDate(q.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", realtime.ErrInvalidQuery, err)
			}
			next := day.AddDate(0, 0, 1)
			f.From, f.To = &day, &next
		}
		return txns.List(ctx, q.TenantID, f)
	})
}
