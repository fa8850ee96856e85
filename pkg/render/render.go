// Package render turns controller state into HTML with gomponents. Every
// value coming from the backend goes through g.Text or an attribute helper,
// so it is escaped on output.
package render

import (
	"fmt"
	"strconv"

	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/vehicle"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// Element ids the htmx attributes target.
const (
	AppID           = "safequote-app"
	FormID          = "filter-form"
	ResultsID       = "vehicle-results"
	CountID         = "results-count"
	RatingLabelID   = "rating-label"
	NotificationsID = "notifications"
)

const STAR_COUNT = 5

// ResultCount renders the "<n> vehicles found" label.
func ResultCount(l Labels, n int) g.Node {
	return Span(ID(CountID), Class("results-count"), g.Text(l.Count(n)))
}

// ResultsList renders the count label and one card per vehicle, in input
// order. An empty list renders a single no-results placeholder.
func ResultsList(l Labels, vehicles []vehicle.Vehicle) g.Node {
	var items g.Node
	if len(vehicles) == 0 {
		items = Div(Class("no-results"), P(g.Text(l.NoResults)))
	} else {
		items = g.Map(vehicles, func(v vehicle.Vehicle) g.Node {
			return VehicleCard(l, v)
		})
	}
	return Div(ID(ResultsID), Class("vehicle-results"),
		Div(Class("results-header"), ResultCount(l, len(vehicles))),
		Div(Class("vehicle-grid"), items),
	)
}

// VehicleCard renders a single search result.
func VehicleCard(l Labels, v vehicle.Vehicle) g.Node {
	return Div(Class("vehicle-card"), g.Attr("data-vehicle-id", v.ID),
		imageBlock(l, v),
		Div(Class("vehicle-info"),
			H3(Class("vehicle-title"), g.Text(v.Title())),
			P(Class("vehicle-type"), g.Text(v.Type)),
			ratingBlock(l, v),
			crashBlock(l, v),
		),
	)
}

func imageBlock(l Labels, v vehicle.Vehicle) g.Node {
	if v.Image == "" {
		return Div(Class("vehicle-image-placeholder"), Span(g.Text(l.NoImage)))
	}
	return Div(Class("vehicle-image"),
		Img(Src(v.Image), Alt(v.Title()), Loading("lazy")),
	)
}

func ratingBlock(l Labels, v vehicle.Vehicle) g.Node {
	if !v.HasRating() {
		return Div(Class("safety-rating no-rating"), Span(g.Text(l.NoRating)))
	}
	return Div(Class("safety-rating"),
		starRow(v.Rating()),
		Span(Class("rating-value"), g.Textf("%s/%d", formatRating(v.Rating()), STAR_COUNT)),
	)
}

// starRow fills star i when i is below the raw rating, so 4.6 fills five.
func starRow(rating float64) g.Node {
	stars := make([]g.Node, 0, STAR_COUNT)
	for i := 0; i < STAR_COUNT; i++ {
		class := "star"
		if float64(i) < rating {
			class = "star filled"
		}
		stars = append(stars, Span(Class(class), g.Text("★")))
	}
	return Span(Class("stars"), Aria("hidden", "true"), g.Group(stars))
}

func crashBlock(l Labels, v vehicle.Vehicle) g.Node {
	var rows []g.Node
	add := func(label string, value *float64) {
		if value == nil || *value <= 0 {
			return
		}
		rows = append(rows, Div(Class("crash-rating"), g.Textf("%s: %.1f", label, *value)))
	}
	add(l.FrontCrash, v.FrontCrash)
	add(l.SideCrash, v.SideCrash)
	add(l.Rollover, v.RolloverCrash)
	if len(rows) == 0 {
		return nil
	}
	return Div(Class("crash-ratings"), g.Group(rows))
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Notification renders a user-facing message swapped into the page out of band.
func Notification(level, message string) g.Node {
	return Div(ID(NotificationsID), g.Attr("hx-swap-oob", "true"),
		g.If(message != "",
			Div(Class(fmt.Sprintf("notification notification-%s", level)), Role("status"), g.Text(message)),
		),
	)
}

// Results renders the results area for st: empty until a search has run.
func Results(l Labels, st filter.State) g.Node {
	if !st.Searched {
		return Div(ID(ResultsID), Class("vehicle-results"))
	}
	return ResultsList(l, st.Results)
}
