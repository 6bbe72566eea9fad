package seed

import (
	_ "embed"
	"fmt"
	"strings"

	"platefeed/internal/models"
	"platefeed/internal/service"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var defaultCatalog []byte

// Catalog is the set of restaurants and dishes demo content is drawn from.
type Catalog struct {
	Restaurants []CatalogRestaurant `yaml:"restaurants"`
}

type CatalogRestaurant struct {
	Name       string                         `yaml:"name"`
	Street     string                         `yaml:"street"`
	City       string                         `yaml:"city"`
	State      string                         `yaml:"state"`
	ZipCode    string                         `yaml:"zip_code"`
	Country    string                         `yaml:"country"`
	Latitude   float64                        `yaml:"latitude"`
	Longitude  float64                        `yaml:"longitude"`
	Cuisine    string                         `yaml:"cuisine"`
	PriceRange string                         `yaml:"price_range"`
	Website    string                         `yaml:"website"`
	Hours      map[string]models.OpeningHours `yaml:"hours"`
	Dishes     []CatalogDish                  `yaml:"dishes"`
}

type CatalogDish struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Price       float64  `yaml:"price"`
	Tags        []string `yaml:"tags"`
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML catalog. Every restaurant needs a name and at
// least one dish.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Restaurants) == 0 {
		return nil, fmt.Errorf("parse catalog: no restaurants")
	}
	for i, r := range c.Restaurants {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("parse catalog: restaurant %d has no name", i)
		}
		if len(r.Dishes) == 0 {
			return nil, fmt.Errorf("parse catalog: %s has no dishes", r.Name)
		}
	}
	return &c, nil
}

func (r CatalogRestaurant) input() service.RestaurantInput {
	lat, lng := r.Latitude, r.Longitude
	return service.RestaurantInput{
		Name: r.Name,
		Address: models.Address{
			Street:  r.Street,
			City:    r.City,
			State:   r.State,
			ZipCode: r.ZipCode,
			Country: r.Country,
		},
		Coordinates: models.Coordinates{Latitude: &lat, Longitude: &lng},
		Cuisine:     r.Cuisine,
		PriceRange:  r.PriceRange,
		Website:     r.Website,
		Hours:       r.Hours,
	}
}
