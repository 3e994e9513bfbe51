// Command shop is the storefront's command-line client. It keeps the cart
// on disk so it survives restarts, and drives the checkout flow against
// the API.
//
// Usage:
//
//	shop products
//	shop add <product-id> <quantity>
//	shop remove <product-id>
//	shop cart
//	shop checkout
//	shop orders
//	shop pay <order-id> <payment-id> <payer-email>
//
// Configuration comes from the environment: SHOP_API (default
// http://localhost:8080), SHOP_USERNAME, SHOP_PASSWORD, and the
// SHOP_SHIP_* address fields used by checkout.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/pkg/client"
)

func main() {
	viper.SetEnvPrefix("shop")
	viper.SetDefault("API", "http://localhost:8080")
	viper.SetDefault("PAYMENT_METHOD", "PayPal")
	viper.AutomaticEnv()

	if len(os.Args) < 2 {
		usage()
	}

	api := client.New(viper.GetString("API"))
	store := cart.NewStore(cartStorage())
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "products":
		err = listProducts(ctx, api)
	case "add":
		err = addItem(ctx, api, store, os.Args[2:])
	case "remove":
		if len(os.Args) < 3 {
			usage()
		}
		store.RemoveItem(os.Args[2])
	case "cart":
		showCart(store)
	case "checkout":
		err = runCheckout(ctx, api, store)
	case "orders":
		err = listOrders(ctx, api)
	case "pay":
		err = payOrder(ctx, api, os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("shop %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: shop products | add <id> <qty> | remove <id> | cart | checkout | orders | pay <order-id> <payment-id> <email>")
	os.Exit(2)
}

// cartStorage picks the durable cart location, falling back to in-memory
// when no config directory is available.
func cartStorage() cart.Storage {
	dir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("Warning: no config directory, cart will not survive exit: %v", err)
		return cart.NewMemoryStorage()
	}
	return cart.NewFileStorage(filepath.Join(dir, "storefront", "cart.json"))
}

func login(ctx context.Context, api *client.Client) error {
	username := viper.GetString("USERNAME")
	password := viper.GetString("PASSWORD")
	if username == "" || password == "" {
		return errors.New("SHOP_USERNAME and SHOP_PASSWORD must be set")
	}
	return api.Login(ctx, username, password)
}

func listProducts(ctx context.Context, api *client.Client) error {
	products, err := api.GetProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Printf("%-10s %-24s $%-8.2f stock %d\n", p.ID, p.Name, p.Price, p.Stock)
	}
	return nil
}

func addItem(ctx context.Context, api *client.Client, store *cart.Store, args []string) error {
	if len(args) < 2 {
		usage()
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}

	product, err := api.GetProduct(ctx, args[0])
	if err != nil {
		return err
	}
	if err := store.AddItem(*product, qty); err != nil {
		if errors.Is(err, cart.ErrOutOfStock) {
			return fmt.Errorf("only %d of %s in stock", product.Stock, product.Name)
		}
		return err
	}
	fmt.Printf("added %d x %s\n", qty, product.Name)
	return nil
}

func showCart(store *cart.Store) {
	items := store.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	var total float64
	for _, it := range items {
		fmt.Printf("%-10s %-24s %d x $%.2f\n", it.ProductID, it.Name, it.Quantity, it.Price)
		total += it.Price * float64(it.Quantity)
	}
	fmt.Printf("items total: $%.2f (final prices computed at checkout)\n", total)
}

func runCheckout(ctx context.Context, api *client.Client, store *cart.Store) error {
	if err := login(ctx, api); err != nil {
		return err
	}

	flow := checkout.NewOrchestrator(store, api)
	if err := flow.Begin(); err != nil {
		return err
	}

	addr := models.ShippingAddress{
		FullName:   viper.GetString("SHIP_NAME"),
		Address:    viper.GetString("SHIP_ADDRESS"),
		City:       viper.GetString("SHIP_CITY"),
		PostalCode: viper.GetString("SHIP_POSTAL"),
		Country:    viper.GetString("SHIP_COUNTRY"),
	}
	if err := flow.SubmitShipping(addr); err != nil {
		return err
	}
	if err := flow.SubmitPayment(viper.GetString("PAYMENT_METHOD")); err != nil {
		return err
	}
	if err := flow.PlaceOrder(ctx); err != nil {
		return err
	}

	fmt.Printf("order placed: %s\n", flow.OrderID())
	return nil
}

func listOrders(ctx context.Context, api *client.Client) error {
	if err := login(ctx, api); err != nil {
		return err
	}
	orders, err := api.GetMyOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		status := "unpaid"
		if o.IsPaid {
			status = "paid"
		}
		if o.IsDelivered {
			status = "delivered"
		}
		fmt.Printf("%s  $%-8.2f %-9s %s\n", o.ID, o.TotalPrice, status, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func payOrder(ctx context.Context, api *client.Client, args []string) error {
	if len(args) < 3 {
		usage()
	}
	if err := login(ctx, api); err != nil {
		return err
	}
	order, err := api.PayOrder(ctx, args[0], models.PaymentResult{
		ID:         args[1],
		Status:     "COMPLETED",
		PayerEmail: args[2],
	})
	if err != nil {
		return err
	}
	fmt.Printf("order %s paid at %s\n", order.ID, order.PaidAt.Format("2006-01-02 15:04"))
	return nil
}
