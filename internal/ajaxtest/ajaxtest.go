// Package ajaxtest is an in-process stand-in for the admin-ajax dispatcher,
// serving a fixed vehicle catalog. It is used by tests and by `serve --demo`.
package ajaxtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Request records one call received by the Backend.
type Request struct {
	Method string
	Action string
	Params url.Values
}

// Backend answers get_years, get_makes, get_models and search_vehicles.
type Backend struct {
	Nonce string

	mu       sync.Mutex
	catalog  []map[string]interface{}
	requests []Request
	failing  map[string]bool
}

// New returns a Backend accepting nonce and serving catalog.
func New(nonce string, catalog []map[string]interface{}) *Backend {
	return &Backend{Nonce: nonce, catalog: catalog, failing: map[string]bool{}}
}

// FailAction makes action answer with success:false until cleared.
func (b *Backend) FailAction(action string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[action] = fail
}

// Requests returns the calls received so far, oldest first.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// LastRequest returns the most recent call for action.
func (b *Backend) LastRequest(action string) (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Action == action {
			return b.requests[i], true
		}
	}
	return Request{}, false
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "0", http.StatusBadRequest)
		return
	}
	params := r.Form
	action := params.Get("action")

	b.mu.Lock()
	b.requests = append(b.requests, Request{Method: r.Method, Action: action, Params: params})
	failing := b.failing[action]
	b.mu.Unlock()

	// check_ajax_referer() answers -1 with 403 on a bad nonce.
	if params.Get("nonce") != b.Nonce {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "-1")
		return
	}
	if failing {
		writeJSON(w, map[string]interface{}{"success": false, "data": "forced failure"})
		return
	}

	switch action {
	case "get_years":
		writeSuccess(w, toOptions(b.distinct("year", params.Get("make"), "", true)))
	case "get_makes":
		writeSuccess(w, toOptions(b.distinct("make", "", params.Get("year"), false)))
	case "get_models":
		if params.Get("make") == "" {
			writeJSON(w, map[string]interface{}{"success": false, "data": "make required"})
			return
		}
		writeSuccess(w, toOptions(b.distinct("model", params.Get("make"), params.Get("year"), false)))
	case "search_vehicles":
		if r.Method != http.MethodPost {
			http.Error(w, "0", http.StatusBadRequest)
			return
		}
		writeSuccess(w, map[string]interface{}{"vehicles": b.search(params)})
	default:
		// admin-ajax answers 0 for unknown actions.
		http.Error(w, "0", http.StatusBadRequest)
	}
}

func (b *Backend) distinct(field, vehicleMake, year string, desc bool) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for _, v := range b.catalog {
		if vehicleMake != "" && str(v["make"]) != vehicleMake {
			continue
		}
		if year != "" && str(v["year"]) != year {
			continue
		}
		val := str(v[field])
		if val == "" || seen[val] {
			continue
		}
		seen[val] = true
		out = append(out, val)
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})
	return out
}

func (b *Backend) search(params url.Values) []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	minRating, _ := strconv.ParseFloat(params.Get("minSafetyRating"), 64)
	out := []map[string]interface{}{}
	for _, v := range b.catalog {
		if y := params.Get("year"); y != "" && str(v["year"]) != y {
			continue
		}
		if m := params.Get("make"); m != "" && str(v["make"]) != m {
			continue
		}
		if m := params.Get("model"); m != "" && str(v["model"]) != m {
			continue
		}
		if minRating > 0 {
			rating, _ := strconv.ParseFloat(str(v["safety_rating"]), 64)
			if rating < minRating {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toOptions(names []string) []map[string]string {
	opts := make([]map[string]string, 0, len(names))
	for _, n := range names {
		opts = append(opts, map[string]string{"name": n})
	}
	return opts
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, map[string]interface{}{"success": true, "data": data})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	json.NewEncoder(w).Encode(v)
}

// DefaultCatalog is a small fixed catalog mixing primary and nested rating fields.
func DefaultCatalog() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": 1, "year": 2024, "make": "Toyota", "model": "Camry", "type": "Sedan", "safety_rating": 5, "front_crash": 4.6, "side_crash": 5, "rollover_crash": 4.2, "vehicle_picture": "https://images.example/camry.jpg"},
		{"id": 2, "year": 2024, "make": "Toyota", "model": "RAV4", "type": "SUV", "safety_rating": 4, "rollover_crash": 3.9},
		{"id": 3, "year": 2023, "make": "Toyota", "model": "Corolla", "type": "Sedan", "nhtsa_data": map[string]interface{}{"OverallRating": "5", "VehiclePicture": "https://images.example/corolla.jpg"}},
		{"id": 4, "year": 2023, "make": "Honda", "model": "Civic", "type": "Sedan", "safety_rating": 3, "image": "https://images.example/civic.jpg"},
		{"id": 5, "year": 2024, "make": "Honda", "model": "CR-V", "type": "SUV", "safety_rating": nil},
		{"id": 6, "year": 2022, "make": "Ford", "model": "F-150", "type": "Truck", "safety_rating": 0, "nhtsa_data": map[string]interface{}{"OverallRating": "Not Rated"}},
	}
}
