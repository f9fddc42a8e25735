package alerts

import (
	"strings"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

// RegionalRoute is the basin-wide catch-all route. Any hazard inside the
// South Indian Ocean basin box is also routed here.
const RegionalRoute = "Regional"

// regionalBasin is the South Indian Ocean catch-all box.
var regionalBasin = hazard.BBox{MinLat: -30, MaxLat: 0, MinLon: 30, MaxLon: 80}

// countryBoxes routes hazards to countries by rectangular bounding box.
// Loaded once; hot reload is not supported.
var countryBoxes = []struct {
	Country string
	Box     hazard.BBox
}{
	{"Mozambique", hazard.BBox{MinLat: -27, MaxLat: -10, MinLon: 30, MaxLon: 41}},
	{"Madagascar", hazard.BBox{MinLat: -26, MaxLat: -11, MinLon: 43, MaxLon: 51}},
	{"Malawi", hazard.BBox{MinLat: -17, MaxLat: -9, MinLon: 33, MaxLon: 36}},
	{"Zimbabwe", hazard.BBox{MinLat: -22, MaxLat: -15, MinLon: 25, MaxLon: 33}},
}

// RouteCountries returns the routes affected by a hazard at p: every
// country whose box contains the point, plus the regional route when the
// point is inside the basin. An empty result means no alert goes out.
func RouteCountries(p hazard.Point) []string {
	routes := make([]string, 0, 2)
	for _, cb := range countryBoxes {
		if cb.Box.Contains(p) {
			routes = append(routes, cb.Country)
		}
	}
	if regionalBasin.Contains(p) {
		routes = append(routes, RegionalRoute)
	}
	return routes
}

// RegionBox returns the bounding box for a named route, used by the
// region-filtered query endpoint.
func RegionBox(region string) (hazard.BBox, bool) {
	for _, cb := range countryBoxes {
		if strings.EqualFold(cb.Country, region) {
			return cb.Box, true
		}
	}
	if strings.EqualFold(region, RegionalRoute) {
		return regionalBasin, true
	}
	return hazard.BBox{}, false
}

// Recipient is one institutional contact on a country's alert list.
type Recipient struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Channel  string `json:"channel"` // email, webhook, sms
	Priority int    `json:"priority"`
}

// recipientTable is the ordered institutional recipient list per route.
// Immutable configuration, loaded once.
var recipientTable = map[string][]Recipient{
	"Mozambique": {
		{Name: "INAM Forecast Desk", Address: "forecast@inam.gov.mz", Channel: "email", Priority: 1},
		{Name: "INGC Emergency Operations", Address: "operations@ingc.gov.mz", Channel: "email", Priority: 1},
		{Name: "INGC Duty Officer", Address: "+258840000001", Channel: "sms", Priority: 2},
	},
	"Madagascar": {
		{Name: "Meteo Madagascar", Address: "alerte@meteomadagascar.mg", Channel: "email", Priority: 1},
		{Name: "BNGRC Operations", Address: "operations@bngrc.mg", Channel: "email", Priority: 1},
		{Name: "BNGRC Duty Officer", Address: "+261320000001", Channel: "sms", Priority: 2},
	},
	"Malawi": {
		{Name: "DCCMS Forecasting", Address: "metdept@metmalawi.gov.mw", Channel: "email", Priority: 1},
		{Name: "DoDMA Operations", Address: "operations@dodma.gov.mw", Channel: "email", Priority: 2},
	},
	"Zimbabwe": {
		{Name: "MSD Forecast Office", Address: "forecast@weatherzw.org.zw", Channel: "email", Priority: 1},
		{Name: "Civil Protection Unit", Address: "cpu@drmc.gov.zw", Channel: "email", Priority: 2},
	},
	RegionalRoute: {
		{Name: "WHO AFRO Emergency Hub", Address: "afroemergencies@who.int", Channel: "email", Priority: 1},
		{Name: "RSMC La Reunion", Address: "https://hooks.meteo.fr/rsmc-lareunion/ingest", Channel: "webhook", Priority: 1},
		{Name: "SADC Climate Services Centre", Address: "csc@sadc.int", Channel: "email", Priority: 2},
	},
}

// RecipientsFor returns the ordered recipient list for a route.
func RecipientsFor(country string) []Recipient {
	return recipientTable[country]
}
