package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

// trackedDiseases limits surveillance to the diseases the programme
// follows. Bulletin rows for anything else are ignored.
var trackedDiseases = map[string]bool{
	"lassa fever":  true,
	"cholera":      true,
	"mpox":         true,
	"yellow fever": true,
	"dengue":       true,
	"malaria":      true,
	"ebola":        true,
	"marburg":      true,
}

// cityCoords geocodes the admin-1 locations that appear most often in
// the regional bulletin.
var cityCoords = map[string]hazard.Point{
	"Lagos":        {Lat: 6.5244, Lon: 3.3792},
	"Abuja":        {Lat: 9.0765, Lon: 7.4951},
	"Ondo State":   {Lat: 7.25, Lon: 5.195},
	"Kinshasa":     {Lat: -4.325, Lon: 15.322},
	"Goma":         {Lat: -1.679, Lon: 29.228},
	"Nairobi":      {Lat: -1.286, Lon: 36.817},
	"Mombasa":      {Lat: -4.043, Lon: 39.668},
	"Antananarivo": {Lat: -18.9, Lon: 47.5},
	"Toamasina":    {Lat: -18.144, Lon: 49.401},
	"Johannesburg": {Lat: -26.204, Lon: 28.047},
	"Cape Town":    {Lat: -33.925, Lon: 18.424},
	"Accra":        {Lat: 5.603, Lon: -0.187},
	"Addis Ababa":  {Lat: 9.03, Lon: 38.746},
	"Beira":        {Lat: -19.8314, Lon: 34.837},
	"Maputo":       {Lat: -25.9692, Lon: 32.5732},
	"Lilongwe":     {Lat: -13.9626, Lon: 33.7741},
	"Harare":       {Lat: -17.8252, Lon: 31.0335},
}

// countryCoords is the fallback when the bulletin names no known city.
var countryCoords = map[string]hazard.Point{
	"Nigeria":      {Lat: 9.0, Lon: 8.0},
	"Kenya":        {Lat: 0.0, Lon: 37.0},
	"DRC":          {Lat: -3.0, Lon: 23.0},
	"South Africa": {Lat: -29.0, Lon: 25.0},
	"Madagascar":   {Lat: -19.0, Lon: 47.0},
	"Mozambique":   {Lat: -18.25, Lon: 35.0},
	"Malawi":       {Lat: -13.25, Lon: 34.3},
	"Zimbabwe":     {Lat: -19.0, Lon: 29.15},
	"Ghana":        {Lat: 7.95, Lon: -1.03},
	"Ethiopia":     {Lat: 8.0, Lon: 38.0},
}

// OutbreakAdapter scrapes the regional surveillance bulletin, an HTML
// page carrying one table row per active outbreak.
type OutbreakAdapter struct {
	url string
	hc  *http.Client
}

// NewOutbreakAdapter builds the adapter for the given bulletin URL.
func NewOutbreakAdapter(url string, timeout time.Duration) *OutbreakAdapter {
	return &OutbreakAdapter{url: url, hc: &http.Client{Timeout: timeout}}
}

func (a *OutbreakAdapter) Name() string { return "outbreak-surveillance" }

// Fetch retrieves and parses the bulletin, returning outbreaks reported
// inside the window.
func (a *OutbreakAdapter) Fetch(ctx context.Context, w Window) ([]hazard.Outbreak, error) {
	if a.url == "" {
		return nil, fmt.Errorf("outbreak provider not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bulletin request: %w", err)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbreak bulletin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("outbreak bulletin returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bulletin HTML: %w", err)
	}

	outbreaks := ParseBulletin(doc)

	recent := outbreaks[:0]
	for _, o := range outbreaks {
		if o.Date.Before(w.Start) || o.Date.After(w.End) {
			continue
		}
		recent = append(recent, o)
	}
	zap.S().Infof("Fetched %d outbreaks from surveillance bulletin (%d in window)", len(outbreaks), len(recent))
	return recent, nil
}

// ParseBulletin extracts outbreak rows from the bulletin table. Columns:
// Disease | Country | Location | Cases | Deaths | Reported | Severity.
// The severity column is optional; missing values are inferred from the
// case counts.
func ParseBulletin(doc *goquery.Document) []hazard.Outbreak {
	outbreaks := make([]hazard.Outbreak, 0)

	doc.Find("table.table-bordered tr").Each(func(i int, s *goquery.Selection) {
		// Skip header row
		if i == 0 {
			return
		}

		cols := s.Find("td")
		if cols.Length() < 6 {
			return
		}

		disease := strings.TrimSpace(cols.Eq(0).Text())
		country := strings.TrimSpace(cols.Eq(1).Text())
		location := strings.TrimSpace(cols.Eq(2).Text())

		if !trackedDiseases[strings.ToLower(disease)] {
			return
		}

		cases, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(cols.Eq(3).Text()), ",", ""))
		if err != nil || cases < 0 {
			zap.S().Warnf("Dropping bulletin row: bad case count %q", cols.Eq(3).Text())
			return
		}
		deaths, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(cols.Eq(4).Text()), ",", ""))
		if err != nil || deaths < 0 {
			zap.S().Warnf("Dropping bulletin row: bad death count %q", cols.Eq(4).Text())
			return
		}

		reported, err := time.Parse("2006-01-02", strings.TrimSpace(cols.Eq(5).Text()))
		if err != nil {
			zap.S().Warnf("Dropping bulletin row: bad report date %q", cols.Eq(5).Text())
			return
		}

		severity := hazard.SeverityFromCounts(cases, deaths)
		if cols.Length() >= 7 {
			if v := strings.ToLower(strings.TrimSpace(cols.Eq(6).Text())); v == "low" || v == "medium" || v == "high" {
				severity = hazard.OutbreakSeverity(v)
			}
		}

		point, ok := geocode(country, location)
		if !ok {
			zap.S().Warnf("Dropping bulletin row: no coordinates for %s / %s", country, location)
			return
		}

		outbreaks = append(outbreaks, hazard.Outbreak{
			ID:       outbreakID(disease, country, location, reported),
			Disease:  disease,
			Country:  country,
			Location: point,
			Cases:    cases,
			Deaths:   deaths,
			Severity: severity,
			Date:     reported.UTC(),
			Source:   "surveillance-bulletin",
		})
	})

	return outbreaks
}

func geocode(country, location string) (hazard.Point, bool) {
	if p, ok := cityCoords[location]; ok {
		return p, true
	}
	if p, ok := countryCoords[country]; ok {
		return p, true
	}
	return hazard.Point{}, false
}

// outbreakID is deterministic so re-fetching the same bulletin yields
// matching ids.
func outbreakID(disease, country, location string, reported time.Time) string {
	slug := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
	}
	return fmt.Sprintf("outbreak-%s-%s-%s-%s",
		slug(disease), slug(country), slug(location), reported.Format("20060102"))
}
