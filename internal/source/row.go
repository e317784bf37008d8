// Package source loads supplier price-list entries from CSV and XLSX files.
package source

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-resolver/internal/lookup"
	"github.com/sells-group/catalog-resolver/internal/model"
)

// Field names a header column can map to.
const (
	FieldBrand         = "brand"
	FieldModel         = "model"
	FieldPackage       = "package"
	FieldEngine        = "engine"
	FieldTrack         = "track"
	FieldStarter       = "starter"
	FieldDisplay       = "display"
	FieldSpringOptions = "spring_options"
	FieldColor         = "color"
	FieldPrice         = "price"
	FieldCurrency      = "currency"
	FieldMarket        = "market"
	FieldYear          = "year"
)

// headerAliases maps normalized header text to a field. Finnish and Swedish
// price lists use their own column names.
var headerAliases = map[string]string{
	"brand": FieldBrand, "make": FieldBrand, "manufacturer": FieldBrand, "merkki": FieldBrand, "marke": FieldBrand,
	"model": FieldModel, "model family": FieldModel, "malli": FieldModel, "modell": FieldModel,
	"package": FieldPackage, "trim": FieldPackage, "paketti": FieldPackage, "paket": FieldPackage,
	"engine": FieldEngine, "moottori": FieldEngine, "motor": FieldEngine,
	"track": FieldTrack, "telamatto": FieldTrack, "matto": FieldTrack, "mattan": FieldTrack,
	"starter": FieldStarter, "kaynnistin": FieldStarter, "start": FieldStarter,
	"display": FieldDisplay, "gauge": FieldDisplay, "mittaristo": FieldDisplay, "naytto": FieldDisplay,
	"spring options": FieldSpringOptions, "spring option": FieldSpringOptions, "options": FieldSpringOptions,
	"kevatoptiot": FieldSpringOptions, "lisavarusteet": FieldSpringOptions,
	"color": FieldColor, "colour": FieldColor, "vari": FieldColor, "farg": FieldColor,
	"price": FieldPrice, "hinta": FieldPrice, "pris": FieldPrice, "msrp": FieldPrice,
	"currency": FieldCurrency, "valuutta": FieldCurrency, "valuta": FieldCurrency,
	"market": FieldMarket, "country": FieldMarket, "markkina": FieldMarket,
	"year": FieldYear, "model year": FieldYear, "vuosi": FieldYear, "vuosimalli": FieldYear, "ar": FieldYear,
}

// Header maps field names to column positions.
type Header map[string]int

// ParseHeader resolves column names. Unknown columns are ignored; brand,
// model and year are required.
func ParseHeader(cols []string) (Header, error) {
	h := make(Header)
	for i, c := range cols {
		field, ok := headerAliases[lookup.Normalize(c)]
		if !ok {
			continue
		}
		if _, dup := h[field]; !dup {
			h[field] = i
		}
	}
	for _, req := range []string{FieldBrand, FieldModel, FieldYear} {
		if _, ok := h[req]; !ok {
			return nil, eris.Errorf("source: header missing %q column", req)
		}
	}
	return h, nil
}

func (h Header) get(row []string, field string) string {
	i, ok := h[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseRow converts one data row into an entry. line is stored as SourceRow.
func ParseRow(h Header, row []string, line int) (model.RawEntry, error) {
	e := model.RawEntry{
		Brand:         h.get(row, FieldBrand),
		Model:         h.get(row, FieldModel),
		Package:       h.get(row, FieldPackage),
		EngineText:    h.get(row, FieldEngine),
		TrackText:     h.get(row, FieldTrack),
		StarterText:   h.get(row, FieldStarter),
		DisplayText:   h.get(row, FieldDisplay),
		SpringOptions: h.get(row, FieldSpringOptions),
		Color:         h.get(row, FieldColor),
		Currency:      strings.ToUpper(h.get(row, FieldCurrency)),
		Market:        strings.ToUpper(h.get(row, FieldMarket)),
		SourceRow:     line,
	}
	if e.Brand == "" || e.Model == "" {
		return e, eris.Errorf("source: row %d missing brand or model", line)
	}

	year, err := strconv.Atoi(h.get(row, FieldYear))
	if err != nil || year < 1900 {
		return e, eris.Errorf("source: row %d invalid year %q", line, h.get(row, FieldYear))
	}
	e.Year = year

	if raw := h.get(row, FieldPrice); raw != "" {
		price, cur, err := ParsePrice(raw)
		if err != nil {
			return e, eris.Wrapf(err, "source: row %d", line)
		}
		e.Price = price
		if e.Currency == "" {
			e.Currency = cur
		}
	}
	return e, nil
}

var currencySymbols = map[string]string{"€": "EUR", "$": "USD", "kr": "", "sek": "SEK", "nok": "NOK", "dkk": "DKK", "eur": "EUR", "usd": "USD", "cad": "CAD"}

// ParsePrice reads prices such as "21 990 €", "21.990,00" or "$15,499.99".
// The currency is returned when a symbol or code identifies it.
func ParsePrice(raw string) (float64, string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	cur := ""
	for sym, code := range currencySymbols {
		if strings.Contains(s, sym) {
			if code != "" {
				cur = code
			}
			s = strings.ReplaceAll(s, sym, "")
		}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(s, ",-")
	s = strings.TrimSuffix(s, ".-")

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case dot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-dot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", eris.Errorf("source: invalid price %q", raw)
	}
	return v, cur, nil
}
