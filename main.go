package main

import (
	"log"

	_ "paypal-gateway/docs"
	"paypal-gateway/internal/app"
)

// @title PayPal Webhook Gateway API
// @version 1.0.0
// @description Operator API for the PayPal webhook subscription, event simulations and the cached bearer token.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
