package model

import "fmt"

// RawEntry is one line item extracted from a supplier price list.
type RawEntry struct {
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Package       string  `json:"package,omitempty"`
	EngineText    string  `json:"engine,omitempty"`
	TrackText     string  `json:"track,omitempty"`
	StarterText   string  `json:"starter,omitempty"`
	DisplayText   string  `json:"display,omitempty"`
	SpringOptions string  `json:"spring_options,omitempty"`
	Color         string  `json:"color,omitempty"`
	Price         float64 `json:"price,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Market        string  `json:"market,omitempty"`
	Year          int     `json:"year"`
	SourceRow     int     `json:"source_row,omitempty"` // Diagnostics: line/row in the source file
}

// Label returns a short human-readable identifier for logs.
func (e RawEntry) Label() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s %s %d", e.Brand, e.Model, e.Package, e.Year)
	}
	return fmt.Sprintf("%s %s %d", e.Brand, e.Model, e.Year)
}
