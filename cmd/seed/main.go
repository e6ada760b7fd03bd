package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"studiodesk/internal/config"
	"studiodesk/internal/database"
	"studiodesk/internal/domain"
	"studiodesk/internal/lock"
	"studiodesk/internal/logging"
	"studiodesk/internal/modules/booking"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/modules/scheduling"
	jwtsvc "studiodesk/internal/pkg/jwt"
	"studiodesk/internal/repository"
)

const (
	demoTenant = "demo-studio"
	demoOwner  = "demo-owner"
)

var demoClients = []string{
	"Aigerim Nurlanovna", "Bekzat Serikov", "Dina Akhmetova", "Yerlan Tulegenov",
	"Madina Karimova", "Arman Zhaksylykov", "Saule Omarova", "Timur Abenov",
}

var rooms = []string{"Main Studio", "Loft", "Cyclorama"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger().WithError(err).Fatal("config load failed")
	}
	log := logging.Configure(os.Stdout, cfg.LogLevel)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("db migrate failed")
	}

	log.Info("cleaning demo tenant")
	for _, table := range []string{"transactions", "bookings", "accounts", "clients", "staff", "studio_configs"} {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ?", table), demoTenant).Error; err != nil {
			log.WithError(err).Fatalf("cleanup %s failed", table)
		}
	}

	tc := domain.TenantContext{TenantID: demoTenant, ActorID: demoOwner, Role: "owner"}
	configRepo := repository.NewStudioConfigRepository(db)
	if err := configRepo.Upsert(ctx, &domain.StudioConfig{
		TenantID:      demoTenant,
		StudioName:    "Light Room Almaty",
		Rooms:         rooms,
		TaxRate:       decimal.NewFromInt(12),
		BufferMinutes: 15,
		OpenTime:      "09:00",
		CloseTime:     "22:00",
		Currency:      "KZT",
	}); err != nil {
		log.WithError(err).Fatal("studio config failed")
	}

	ledgerService := ledger.NewService(db, ledger.ExpensePolicy{}, nil, nil)
	bank, err := ledgerService.CreateAccount(ctx, tc, ledger.NewAccount{Name: "Kaspi Business", Type: domain.AccountBank, OpeningBalance: decimal.NewFromInt(250000)})
	if err != nil {
		log.WithError(err).Fatal("account failed")
	}
	cash, err := ledgerService.CreateAccount(ctx, tc, ledger.NewAccount{Name: "Cash desk", Type: domain.AccountCash})
	if err != nil {
		log.WithError(err).Fatal("account failed")
	}

	clientRepo := repository.NewClientRepository(db)
	clients := make([]domain.Client, 0, len(demoClients))
	for i, name := range demoClients {
		clients = append(clients, domain.Client{
			TenantID: demoTenant,
			Name:     name,
			Phone:    fmt.Sprintf("+7 701 555 %04d", 1000+i),
		})
	}
	if err := clientRepo.CreateBatch(ctx, clients, 50); err != nil {
		log.WithError(err).Fatal("clients failed")
	}

	staffRepo := repository.NewStaffRepository(db)
	photographer := &domain.Staff{TenantID: demoTenant, Name: "Nurlan", Role: domain.StaffPhotographer, Active: true}
	if err := staffRepo.Create(ctx, photographer); err != nil {
		log.WithError(err).Fatal("staff failed")
	}

	bookingRepo := repository.NewBookingRepository(db)
	scheduler := scheduling.NewService(bookingRepo, configRepo, lock.NewLocalLocker(), cfg.DefaultBufferMinutes)
	bookingService := booking.NewService(db, bookingRepo, clientRepo, staffRepo, scheduler, ledgerService, nil, nil)

	created, conflicts := 0, 0
	today := time.Now().UTC()
	for day := 0; day < 14; day++ {
		date := today.AddDate(0, 0, day).Format(domain.DateLayout)
		for slot := 0; slot < 3; slot++ {
			client := clients[rng.Intn(len(clients))]
			req := booking.CreateBookingRequest{
				ClientID:      client.ID,
				Date:          date,
				StartTime:     fmt.Sprintf("%02d:00", 10+slot*3+rng.Intn(2)),
				DurationHours: float64(1 + rng.Intn(3)),
				Room:          rooms[rng.Intn(len(rooms))],
				Price:         decimal.NewFromInt(int64(40000 + 10000*rng.Intn(6))),
				StaffIDs:      []string{photographer.ID},
			}
			if rng.Intn(2) == 0 {
				req.Deposit = decimal.NewFromInt(20000)
				req.AccountID = bank.ID
			}
			if _, err := bookingService.Create(ctx, tc, req); err != nil {
				conflicts++
				continue
			}
			created++
		}
	}

	if _, err := ledgerService.RecordExpense(ctx, tc, ledger.EntryInput{
		AccountID:   bank.ID,
		Amount:      decimal.NewFromInt(180000),
		Description: "Studio rent",
		Category:    "Rent",
	}); err != nil {
		log.WithError(err).Fatal("expense failed")
	}
	if _, err := ledgerService.Transfer(ctx, tc, ledger.TransferInput{
		FromAccountID: bank.ID,
		ToAccountID:   cash.ID,
		Amount:        decimal.NewFromInt(30000),
		Description:   "Petty cash",
	}); err != nil {
		log.WithError(err).Fatal("transfer failed")
	}

	token, err := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL).GenerateToken(demoOwner, demoTenant, "owner")
	if err != nil {
		log.WithError(err).Fatal("token failed")
	}

	log.WithFields(logrus.Fields{
		"tenant_id": demoTenant,
		"clients":   len(clients),
		"bookings":  created,
		"skipped":   conflicts,
	}).Info("demo data seeded")
	fmt.Printf("\nDev token for %s (owner):\n%s\n", demoTenant, token)
}
