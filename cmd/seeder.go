package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	sessionmodel "github.com/novandria/bankgateway/internal/core/datamodel/session"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo orders for local development",
	RunE:  runSeeder,
}

func runSeeder(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	if !cfg.Gateway.TestMode {
		return fmt.Errorf("seeding is only allowed with gateway test_mode enabled")
	}

	gormDB, _, err := initDB(cfg.Database)
	if err != nil {
		return err
	}

	if err := gormDB.AutoMigrate(&ordermodel.Order{}, &ordermodel.OrderItem{}, &ordermodel.OrderNote{}, &sessionmodel.PaymentSession{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	if clearData {
		log.Println("clearing existing demo data")
		gormDB.Exec("DELETE FROM order_notes")
		gormDB.Exec("DELETE FROM order_items")
		gormDB.Exec("DELETE FROM payment_sessions")
		gormDB.Exec("DELETE FROM orders")
	}

	demoOrders := []ordermodel.Order{
		{
			OrderNo:     "DEMO-1001",
			Status:      ordermodel.StatusPending,
			TotalAmount: 125.50,
			Currency:    cfg.Gateway.CurrencyCode,
			Items: []ordermodel.OrderItem{
				{ReferenceNo: "SKU-100", Description: "Demo item A", Price: 100.00, Quantity: 1},
				{ReferenceNo: "SKU-200", Description: "Demo item B", Price: 25.50, Quantity: 1},
			},
		},
		{
			OrderNo:     "DEMO-1002",
			Status:      ordermodel.StatusPending,
			TotalAmount: 12.50,
			Currency:    cfg.Gateway.CurrencyCode,
			Items: []ordermodel.OrderItem{
				{ReferenceNo: "SKU-300", Description: "Demo item C", Price: 12.50, Quantity: 1},
			},
		},
	}

	for _, o := range demoOrders {
		if err := gormDB.Create(&o).Error; err != nil {
			return fmt.Errorf("failed to seed order %s: %w", o.OrderNo, err)
		}
		log.Printf("seeded order %s (%.2f %s)", o.OrderNo, o.TotalAmount, o.Currency)
	}

	return nil
}
