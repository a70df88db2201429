package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyPlaceholder marks where the API key is substituted in a URL template.
const KeyPlaceholder = "{key}"

// Endpoint describes one representative request against a Maps Platform API.
type Endpoint struct {
	Name        string `yaml:"name"`
	Method      string `yaml:"method"`
	URLTemplate string `yaml:"url"`
	Body        string `yaml:"body,omitempty"` // JSON payload for POST endpoints
}

// Expand returns the request URL with the key substituted.
func (e Endpoint) Expand(key string) string {
	return strings.ReplaceAll(e.URLTemplate, KeyPlaceholder, url.QueryEscape(key))
}

var builtin = []Endpoint{
	{Name: "Staticmap API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/staticmap?center=40.714224,-73.961452&zoom=12&size=400x400&key={key}"},
	{Name: "Streetview API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/streetview?size=400x400&location=40.720032,-73.988354&key={key}"},
	{Name: "Geocode API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/geocode/json?address=New+York&key={key}"},
	{Name: "Reverse Geocode API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/geocode/json?latlng=40.714224,-73.961452&key={key}"},
	{Name: "Elevation API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/elevation/json?locations=39.7391536,-104.9847034&key={key}"},
	{Name: "Timezone API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/timezone/json?location=39.6034810,-119.6822510&timestamp=1331161200&key={key}"},
	{Name: "Directions API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/directions/json?origin=Disneyland&destination=Universal+Studios+Hollywood&key={key}"},
	{Name: "Distance Matrix API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/distancematrix/json?origins=Seattle&destinations=San+Francisco&key={key}"},
	{Name: "Nearest Roads API", Method: http.MethodGet, URLTemplate: "https://roads.googleapis.com/v1/nearestRoads?points=60.170880,24.942795&key={key}"},
	{Name: "Snap To Roads API", Method: http.MethodGet, URLTemplate: "https://roads.googleapis.com/v1/snapToRoads?path=60.170880,24.942795&key={key}"},
	{Name: "Speed Limits API", Method: http.MethodGet, URLTemplate: "https://roads.googleapis.com/v1/speedLimits?placeId=ChIJVTPokywQkFQRmtVEaUZlJRA&key={key}"},
	{Name: "Places Text Search API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/textsearch/json?query=restaurants+in+Seattle&key={key}"},
	{Name: "Places Nearby Search API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/nearbysearch/json?location=47.6062,-122.3321&radius=1500&type=restaurant&key={key}"},
	{Name: "Places Find Place API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/findplacefromtext/json?input=restaurants%20in%20Seattle&inputtype=textquery&key={key}"},
	{Name: "Place Details API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/details/json?place_id=ChIJN1t_tDeuEmsRUsoyG83frY4&key={key}"},
	{Name: "Place Autocomplete API", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/autocomplete/json?input=Starbucks&key={key}"},
	{Name: "Places Photo (image)", Method: http.MethodGet, URLTemplate: "https://maps.googleapis.com/maps/api/place/photo?maxwidth=400&photoreference=ATtYBwL...&key={key}"},
	{
		Name:        "Playable Locations API",
		Method:      http.MethodPost,
		URLTemplate: "https://playablelocations.googleapis.com/v3:samplePlayableLocations?key={key}",
		Body:        `{"area_filter":{"s2_cell_id":7715420662885515264},"criteria":[{"gameObjectType":1,"filter":{"maxLocationCount":1},"fields_to_return":{"paths":["name"]}}]}`,
	},
	{
		Name:        "Geolocation API",
		Method:      http.MethodPost,
		URLTemplate: "https://www.googleapis.com/geolocation/v1/geolocate?key={key}",
		Body:        `{"considerIp":true}`,
	},
	{Name: "Maps Embed (basic)", Method: http.MethodGet, URLTemplate: "https://www.google.com/maps/embed/v1/place?key={key}&q=Space+Needle,Seattle+WA"},
}

// Builtin returns a copy of the built-in endpoint table in its fixed order.
func Builtin() []Endpoint {
	out := make([]Endpoint, len(builtin))
	copy(out, builtin)
	return out
}

// Load returns the endpoints to probe. With an empty path the built-in table
// is returned. Otherwise the file's entries are appended to the built-in
// table, or replace it when replace is set.
func Load(path string, replace bool) ([]Endpoint, error) {
	if path == "" {
		return Builtin(), nil
	}
	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if replace {
		return extra, nil
	}
	return append(Builtin(), extra...), nil
}

type fileFormat struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

// LoadFile reads endpoints from a YAML file of the form:
//
//	endpoints:
//	  - name: Geocode API
//	    method: GET
//	    url: https://maps.googleapis.com/maps/api/geocode/json?address=Paris&key={key}
//	  - name: Geolocation API
//	    method: POST
//	    url: https://www.googleapis.com/geolocation/v1/geolocate?key={key}
//	    body: '{"considerIp":true}'
func LoadFile(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoints file %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing endpoints file %s: %w", path, err)
	}

	out := make([]Endpoint, 0, len(f.Endpoints))
	for i, ep := range f.Endpoints {
		ep.Name = strings.TrimSpace(ep.Name)
		ep.URLTemplate = strings.TrimSpace(ep.URLTemplate)
		ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
		if ep.Method == "" {
			ep.Method = http.MethodGet
		}
		if ep.Name == "" {
			return nil, fmt.Errorf("endpoint #%d: name is required", i+1)
		}
		if !strings.Contains(ep.URLTemplate, KeyPlaceholder) {
			return nil, fmt.Errorf("endpoint %q: url must contain %s", ep.Name, KeyPlaceholder)
		}
		if ep.Method != http.MethodGet && ep.Method != http.MethodPost {
			return nil, fmt.Errorf("endpoint %q: unsupported method %s", ep.Name, ep.Method)
		}
		out = append(out, ep)
	}
	return out, nil
}

// Select keeps endpoints whose name contains any include term (all of them
// when include is empty) and then drops those containing any exclude term.
// Matching is case-insensitive and order is preserved.
func Select(eps []Endpoint, include, exclude []string) []Endpoint {
	var out []Endpoint
	for _, ep := range eps {
		if len(include) > 0 && !matchesAny(ep.Name, include) {
			continue
		}
		if matchesAny(ep.Name, exclude) {
			continue
		}
		out = append(out, ep)
	}
	return out
}

func matchesAny(name string, terms []string) bool {
	lower := strings.ToLower(name)
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
