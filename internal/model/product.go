package model

import "time"

// Product is a sellable item; each of its recipes describes one way of making it.
type Product struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	ProductType  ProductType `json:"product_type"`
	Category     string      `json:"category"`
	UnitSale     string      `json:"unit_sale"`
	MarginTarget float64     `json:"margin_target"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}
