package generator

import (
	"math"

	"github.com/brianvoe/gofakeit/v7"
)

// FakeData supplies the human-facing parts of a new order.
type FakeData interface {
	Ingredient() string
	ContactName() string
	ItemPrice() float64
}

// GofakeitData produces fake data with gofakeit. It is not safe for concurrent use;
// every producer gets its own instance.
type GofakeitData struct {
	faker *gofakeit.Faker
}

// NewGofakeitData creates a generator seeded with seed; a zero seed picks a random one.
func NewGofakeitData(seed uint64) *GofakeitData {
	return &GofakeitData{faker: gofakeit.New(seed)}
}

// Ingredient returns a fruit, vegetable, or snack name.
func (d *GofakeitData) Ingredient() string {
	switch d.faker.Number(0, 2) {
	case 0:
		return d.faker.Fruit()
	case 1:
		return d.faker.Vegetable()
	default:
		return d.faker.Snack()
	}
}

// ContactName returns a full person name.
func (d *GofakeitData) ContactName() string {
	return d.faker.Name()
}

// ItemPrice returns a price between 0.50 and 25.00 with two decimals.
func (d *GofakeitData) ItemPrice() float64 {
	return roundCents(d.faker.Price(0.5, 25))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
