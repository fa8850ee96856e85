package render

import (
	"strconv"

	"github.com/safequote/safequote/pkg/filter"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const htmxURL = "https://unpkg.com/htmx.org@2.0.4"

// FilterForm renders the three selects, the rating slider and the buttons.
// Changing a select posts it and swaps the whole form, since a change can
// narrow the other selects.
func FilterForm(l Labels, st filter.State) g.Node {
	return Form(ID(FormID), Class("vehicle-filters"),
		g.Attr("hx-target", "#"+FormID),
		g.Attr("hx-swap", "outerHTML"),
		filterField("vehicle-year", l.Year,
			selectInput("vehicle-year", "year", "/filters/year", l.AllYears, st.Year, false),
		),
		filterField("vehicle-make", l.Make,
			selectInput("vehicle-make", "make", "/filters/make", l.AllMakes, st.Make, false),
		),
		filterField("vehicle-model", l.Model,
			selectInput("vehicle-model", "model", "/filters/model", l.SelectModel, st.Model, st.Make.Selected == ""),
		),
		filterField("min-safety-rating", l.MinRating, ratingInput(st)),
		Div(Class("filter-actions"),
			Button(Type("button"), ID("search-vehicles"), Class("btn btn-primary"),
				g.Attr("hx-post", "/search"),
				g.Attr("hx-target", "#"+ResultsID),
				g.Attr("hx-swap", "outerHTML"),
				g.Text(l.Search),
			),
			Button(Type("button"), ID("reset-filters"), Class("btn btn-secondary"),
				g.Attr("hx-post", "/reset"),
				g.Attr("hx-target", "#"+AppID),
				g.Attr("hx-swap", "outerHTML"),
				g.Text(l.Reset),
			),
		),
	)
}

func filterField(id, label string, input g.Node) g.Node {
	return Div(Class("filter-group"),
		Label(For(id), g.Text(label)),
		input,
	)
}

// selectInput renders a select whose first option is the "" sentinel.
func selectInput(id, name, endpoint, sentinel string, s filter.Select, disabled bool) g.Node {
	return Select(ID(id), Name(name),
		g.Attr("hx-post", endpoint),
		g.Attr("hx-trigger", "change"),
		g.If(disabled, Disabled()),
		Option(Value(""), g.If(s.Selected == "", Selected()), g.Text(sentinel)),
		g.Map(s.Options, func(o string) g.Node {
			return Option(Value(o), g.If(o == s.Selected, Selected()), g.Text(o))
		}),
	)
}

func ratingInput(st filter.State) g.Node {
	return Div(Class("rating-slider"),
		Input(Type("range"), ID("min-safety-rating"), Name("minSafetyRating"),
			Min(strconv.Itoa(filter.MinRating)), Max(strconv.Itoa(filter.MaxRating)), Step("1"),
			Value(strconv.Itoa(st.MinSafetyRating)),
			g.Attr("hx-post", "/filters/rating"),
			g.Attr("hx-trigger", "input"),
			g.Attr("hx-target", "#"+RatingLabelID),
			g.Attr("hx-swap", "outerHTML"),
		),
		RatingLabel(st.RatingLabel),
	)
}

// RatingLabel renders the "<v>/5" text next to the slider.
func RatingLabel(text string) g.Node {
	return Span(ID(RatingLabelID), Class("rating-display"), g.Text(text))
}

// App is the swappable part of the page: the form and the results.
func App(l Labels, st filter.State) g.Node {
	return Div(ID(AppID), Class("safequote-search"),
		FilterForm(l, st),
		Results(l, st),
	)
}

// Page renders the full document. eventsPath is the websocket endpoint whose
// search_completed envelopes are re-dispatched as DOM events; "" disables it.
func Page(title string, l Labels, st filter.State, eventsPath string) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(Lang("en"),
			Head(
				Meta(Charset("UTF-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(title)),
				Script(Src(htmxURL)),
			),
			Body(
				Main(Class("container"),
					H1(g.Text(l.Heading)),
					Div(ID(NotificationsID)),
					App(l, st),
				),
				g.If(eventsPath != "", eventScript(eventsPath)),
			),
		),
	})
}

func eventScript(path string) g.Node {
	return Script(g.Attr("data-events-path", path), g.Raw(`(function () {
  var path = document.currentScript.dataset.eventsPath;
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + path);
  ws.onmessage = function (msg) {
    var env = JSON.parse(msg.data);
    if (env.type === "search_completed") {
      document.dispatchEvent(new CustomEvent("safequote:searchCompleted", { detail: env.data }));
    }
  };
})();`))
}
