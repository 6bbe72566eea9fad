// Package seed fills a development database with demo users, restaurants,
// posts and the social activity between them. Everything is written through
// the service layer, so seeded data obeys the same rules as API traffic.
package seed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode"

	"platefeed/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "Platefeed-demo-1!"

// Factory generates fake content. A fixed seed yields the same data.
type Factory struct {
	faker *gofakeit.Faker
	n     int
}

func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Account returns registration details with a unique username.
func (f *Factory) Account(password string) service.RegisterInput {
	f.n++
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, f.faker.FirstName()+f.faker.LastName())
	if len(base) > 20 {
		base = base[:20]
	}
	username := fmt.Sprintf("%s%d", base, 100+f.n)
	return service.RegisterInput{
		Username: username,
		Email:    strings.ToLower(username) + "@seed.platefeed.dev",
		Password: password,
	}
}

func (f *Factory) Bio() string {
	return f.faker.Sentence(8)
}

func (f *Factory) Comment() string {
	return f.faker.RandomString([]string{
		"Looks amazing!", "Adding this to my list.", "Best in town, no contest.",
		"How was the portion size?", "I need this right now.", "Was it worth the wait?",
	})
}

func (f *Factory) ReviewText() string {
	return f.faker.Paragraph(1, 2, 8, " ")
}

// Rating is skewed toward favorable reviews.
func (f *Factory) Rating() int {
	return f.faker.RandomInt([]int{3, 4, 4, 5, 5})
}

// Intn returns a value in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.IntRange(0, n-1)
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// PlateImage renders a small plate on a colored table as a PNG data URL.
func (f *Factory) PlateImage() string {
	const size = 64
	table := color.RGBA{R: uint8(f.faker.IntRange(80, 200)), G: uint8(f.faker.IntRange(40, 160)), B: uint8(f.faker.IntRange(20, 120)), A: 255}
	food := color.RGBA{R: uint8(f.faker.IntRange(150, 255)), G: uint8(f.faker.IntRange(60, 200)), B: uint8(f.faker.IntRange(0, 90)), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := (x-c)*(x-c) + (y-c)*(y-c)
			switch {
			case d < 14*14:
				img.Set(x, y, food)
			case d < 28*28:
				img.Set(x, y, color.White)
			default:
				img.Set(x, y, table)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
