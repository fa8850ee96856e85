// Package vehicle models the vehicle records returned by the search backend.
//
// Backend records are loosely shaped: the same datum can live under a
// primary key, an alias, or inside the legacy nested nhtsa_data object. The
// parser resolves each field by walking its path list in order.
package vehicle

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ratingPaths   = []string{"safety_rating", "nhtsa_data.OverallRating"}
	frontPaths    = []string{"front_crash", "nhtsa_data.OverallFrontCrashRating"}
	sidePaths     = []string{"side_crash", "nhtsa_data.OverallSideCrashRating"}
	rolloverPaths = []string{"rollover_crash", "nhtsa_data.RolloverRating"}
	imagePaths    = []string{"vehicle_picture", "image", "nhtsa_data.VehiclePicture"}
)

// Vehicle is a read-only search result. Nil rating pointers mean "no value".
type Vehicle struct {
	ID            string   `json:"id"`
	Year          string   `json:"year"`
	Make          string   `json:"make"`
	Model         string   `json:"model"`
	Type          string   `json:"type"`
	SafetyRating  *float64 `json:"safety_rating,omitempty"`
	FrontCrash    *float64 `json:"front_crash,omitempty"`
	SideCrash     *float64 `json:"side_crash,omitempty"`
	RolloverCrash *float64 `json:"rollover_crash,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// Title is "{year} {make} {model}".
func (v Vehicle) Title() string {
	return v.Year + " " + v.Make + " " + v.Model
}

// HasRating reports whether a positive overall rating exists.
func (v Vehicle) HasRating() bool {
	return v.SafetyRating != nil && *v.SafetyRating > 0
}

// Rating returns the overall rating, 0 when absent.
func (v Vehicle) Rating() float64 {
	if v.SafetyRating == nil {
		return 0
	}
	return *v.SafetyRating
}

// FromResult builds a Vehicle from one element of the backend's vehicles array.
func FromResult(r gjson.Result) Vehicle {
	return Vehicle{
		ID:            r.Get("id").String(),
		Year:          r.Get("year").String(),
		Make:          r.Get("make").String(),
		Model:         r.Get("model").String(),
		Type:          r.Get("type").String(),
		SafetyRating:  firstPositive(r, ratingPaths),
		FrontCrash:    firstPositive(r, frontPaths),
		SideCrash:     firstPositive(r, sidePaths),
		RolloverCrash: firstPositive(r, rolloverPaths),
		Image:         firstString(r, imagePaths),
	}
}

// ParseList parses a JSON array of vehicle objects. Non-object elements are skipped.
func ParseList(r gjson.Result) []Vehicle {
	vehicles := []Vehicle{}
	for _, item := range r.Array() {
		if !item.IsObject() {
			continue
		}
		vehicles = append(vehicles, FromResult(item))
	}
	return vehicles
}

// firstPositive returns the first path holding a number > 0. Numeric strings
// count; "Not Rated", null and 0 do not.
func firstPositive(r gjson.Result, paths []string) *float64 {
	for _, p := range paths {
		if f, ok := toFloat(r.Get(p)); ok && f > 0 {
			return &f
		}
	}
	return nil
}

func toFloat(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func firstString(r gjson.Result, paths []string) string {
	for _, p := range paths {
		v := r.Get(p)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	}
	return ""
}
