package models

// Product is a catalog record as returned by the catalog reader.
type Product struct {
	ID          string  `json:"_id" bson:"_id"`
	Name        string  `json:"name" bson:"name"`
	Price       Money   `json:"price" bson:"price"`
	Image       string  `json:"image" bson:"image"`
	Category    string  `json:"category" bson:"category"` // Electronics, Fashion, Home, Sports
	Description string  `json:"description" bson:"description"`
	Rating      float64 `json:"rating" bson:"rating"`
	Stock       int     `json:"stock" bson:"stock"`
	InStock     bool    `json:"inStock" bson:"inStock"`
}

// ProductFilter narrows a catalog listing. Empty fields match everything.
type ProductFilter struct {
	Category string
	Search   string
}
