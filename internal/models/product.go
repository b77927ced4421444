package models

import "time"

// Product — платный продукт (рубрика) с упорядоченным набором статей.
type Product struct {
	ID             string    `json:"id"`
	Heading        string    `json:"heading"`
	Slug           string    `json:"slug"`
	Category       string    `json:"category"`
	Description    string    `json:"description,omitempty"`
	Price          int64     `json:"price"`
	Currency       string    `json:"currency"`
	DurationMonths int       `json:"duration_months"`
	IsActive       bool      `json:"is_active"`
	Articles       []Article `json:"articles,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Article — статья внутри продукта.
type Article struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Title         string    `json:"title"`
	Body          string    `json:"body,omitempty"`
	Preview       string    `json:"preview,omitempty"`
	IsActive      bool      `json:"is_active"`
	IsFree        bool      `json:"is_free"`
	Position      int       `json:"position"`
	FeaturedImage string    `json:"featured_image,omitempty"`
	Views         int64     `json:"views,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Career — открытая вакансия.
type Career struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Setting — публичная настройка сайта.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
