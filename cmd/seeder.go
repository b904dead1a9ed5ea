package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample menu items and a pending order for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"payment_notifications", "order_items", "orders", "menu_items"} {
				if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		menu := []struct {
			ID    string
			Name  string
			Price float64
			Stock int
		}{
			{uuid.NewString(), "Lamb Curry", 145.00, 20},
			{uuid.NewString(), "Butter Chicken", 125.50, 25},
			{uuid.NewString(), "Garlic Naan", 28.00, 60},
			{uuid.NewString(), "Mango Lassi", 42.00, 30},
		}

		for _, m := range menu {
			var exists int
			err := db.QueryRow("SELECT 1 FROM menu_items WHERE name = $1", m.Name).Scan(&exists)
			if err == nil {
				fmt.Println("menu item already exists, skipping:", m.Name)
				continue
			}
			if _, err := db.Exec(
				"INSERT INTO menu_items (id, name, price, stock, created_at, updated_at) VALUES ($1, $2, $3, $4, now(), now())",
				m.ID, m.Name, m.Price, m.Stock); err != nil {
				log.Fatalf("failed to insert menu item %s: %v", m.Name, err)
			}
			fmt.Println("Seeded menu item:", m.Name)
		}

		orderID := "ORD-" + uuid.NewString()[:8]
		userID := "demo-user"
		if _, err := db.Exec(
			`INSERT INTO orders (id, user_id, status, total_amount, item_name, item_description, created_at, updated_at)
			 VALUES ($1, $2, 'pending', $3, $4, $5, now(), now())`,
			orderID, userID, 173.50, "La Luna Lounge Order", "Lamb Curry, Garlic Naan"); err != nil {
			log.Fatalf("failed to insert demo order: %v", err)
		}

		items := []struct {
			MenuName string
			Quantity int
		}{
			{"Lamb Curry", 1},
			{"Garlic Naan", 1},
		}
		for _, it := range items {
			if _, err := db.Exec(
				`INSERT INTO order_items (id, order_id, menu_item_id, quantity, created_at)
				 SELECT $1, $2, id, $3, now() FROM menu_items WHERE name = $4`,
				uuid.NewString(), orderID, it.Quantity, it.MenuName); err != nil {
				log.Fatalf("failed to insert order item %s: %v", it.MenuName, err)
			}
		}

		fmt.Println("Seeded demo order:", orderID)
	},
}
