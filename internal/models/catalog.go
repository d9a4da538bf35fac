package models

// Catalog is the set of bookable resources loaded from the catalog file.
type Catalog struct {
	Venues     []Venue    `yaml:"venues" json:"venues"`
	Activities []Activity `yaml:"activities" json:"activities"`
}
