package render

import (
	"html"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/vehicle"
	g "maragu.dev/gomponents"
)

func renderString(t *testing.T, n g.Node) string {
	t.Helper()
	var b strings.Builder
	if err := n.Render(&b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

func parse(t *testing.T, n g.Node) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderString(t, n)))
	if err != nil {
		t.Fatalf("parse rendered html: %v", err)
	}
	return doc
}

func ptr(f float64) *float64 { return &f }

func TestResultsList_Empty(t *testing.T) {
	doc := parse(t, ResultsList(DefaultLabels(), nil))

	if n := doc.Find(".no-results").Length(); n != 1 {
		t.Fatalf("expected exactly one placeholder, got %d", n)
	}
	if n := doc.Find(".vehicle-card").Length(); n != 0 {
		t.Fatalf("expected no cards, got %d", n)
	}
	if got := doc.Find("#" + CountID).Text(); got != "0 vehicles found" {
		t.Fatalf("count label %q", got)
	}
}

func TestResultsList_KeepsInputOrder(t *testing.T) {
	vs := []vehicle.Vehicle{
		{ID: "2", Year: "2023", Make: "Honda", Model: "Civic"},
		{ID: "1", Year: "2024", Make: "Toyota", Model: "Camry"},
		{ID: "3", Year: "2022", Make: "Ford", Model: "F-150"},
	}
	doc := parse(t, ResultsList(DefaultLabels(), vs))

	var ids []string
	doc.Find(".vehicle-card").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-vehicle-id")
		ids = append(ids, id)
	})
	if strings.Join(ids, ",") != "2,1,3" {
		t.Fatalf("cards out of order: %v", ids)
	}
	if got := doc.Find("#" + CountID).Text(); got != "3 vehicles found" {
		t.Fatalf("count label %q", got)
	}
	if doc.Find(".no-results").Length() != 0 {
		t.Fatal("placeholder rendered alongside results")
	}
}

func TestVehicleCard_Camry(t *testing.T) {
	v := vehicle.Vehicle{ID: "1", Year: "2024", Make: "Toyota", Model: "Camry", Type: "Sedan", SafetyRating: ptr(5), FrontCrash: ptr(4.6)}
	doc := parse(t, VehicleCard(DefaultLabels(), v))

	if got := doc.Find(".vehicle-title").Text(); got != "2024 Toyota Camry" {
		t.Fatalf("title %q", got)
	}
	if got := doc.Find(".vehicle-type").Text(); got != "Sedan" {
		t.Fatalf("type %q", got)
	}
	if n := doc.Find(".star.filled").Length(); n != 5 {
		t.Fatalf("expected 5 filled stars, got %d", n)
	}
	crash := doc.Find(".crash-ratings")
	if crash.Length() != 1 || !strings.Contains(crash.Text(), "Front Crash: 4.6") {
		t.Fatalf("crash block %q", crash.Text())
	}
	if n := doc.Find(".crash-rating").Length(); n != 1 {
		t.Fatalf("only present crash values should render, got %d rows", n)
	}
	if doc.Find(".vehicle-image-placeholder").Length() != 1 {
		t.Fatal("missing image placeholder")
	}
}

func TestVehicleCard_Stars(t *testing.T) {
	tests := []struct {
		name     string
		rating   *float64
		filled   int
		total    int
		noRating bool
	}{
		{"absent", nil, 0, 0, true},
		{"zero", ptr(0), 0, 0, true},
		{"three", ptr(3), 3, 5, false},
		{"fractional", ptr(3.5), 4, 5, false},
		{"five", ptr(5), 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, VehicleCard(DefaultLabels(), vehicle.Vehicle{Year: "2023", Make: "Honda", Model: "Civic", SafetyRating: tt.rating}))
			if n := doc.Find(".star.filled").Length(); n != tt.filled {
				t.Fatalf("filled stars = %d, want %d", n, tt.filled)
			}
			if n := doc.Find(".star").Length(); n != tt.total {
				t.Fatalf("stars = %d, want %d", n, tt.total)
			}
			hasText := strings.Contains(doc.Find(".safety-rating").Text(), "No Rating")
			if hasText != tt.noRating {
				t.Fatalf("No Rating shown = %v, want %v", hasText, tt.noRating)
			}
		})
	}
}

func TestVehicleCard_CrashBlockFormatting(t *testing.T) {
	v := vehicle.Vehicle{Year: "2023", Make: "Toyota", Model: "Corolla", FrontCrash: ptr(4), SideCrash: ptr(5), RolloverCrash: ptr(3.96)}
	doc := parse(t, VehicleCard(DefaultLabels(), v))

	var rows []string
	doc.Find(".crash-rating").Each(func(_ int, s *goquery.Selection) { rows = append(rows, s.Text()) })
	want := []string{"Front Crash: 4.0", "Side Crash: 5.0", "Rollover: 4.0"}
	if strings.Join(rows, "|") != strings.Join(want, "|") {
		t.Fatalf("crash rows %v, want %v", rows, want)
	}

	none := parse(t, VehicleCard(DefaultLabels(), vehicle.Vehicle{Year: "2023", Make: "Honda", Model: "Civic", FrontCrash: ptr(0)}))
	if none.Find(".crash-ratings").Length() != 0 {
		t.Fatal("crash block should be omitted when nothing is present")
	}
}

func TestVehicleCard_Image(t *testing.T) {
	v := vehicle.Vehicle{Year: "2024", Make: "Toyota", Model: "RAV4", Image: "https://img.example/rav4.jpg"}
	doc := parse(t, VehicleCard(DefaultLabels(), v))

	img := doc.Find(".vehicle-image img")
	if src, _ := img.Attr("src"); src != v.Image {
		t.Fatalf("img src %q", src)
	}
	if alt, _ := img.Attr("alt"); alt != "2024 Toyota RAV4" {
		t.Fatalf("img alt %q", alt)
	}
	if doc.Find(".vehicle-image-placeholder").Length() != 0 {
		t.Fatal("placeholder rendered next to an image")
	}
}

func TestVehicleCard_EscapesBackendText(t *testing.T) {
	v := vehicle.Vehicle{Year: "2024", Make: "O'Brien & Sons <Motors>", Model: `"Roadster"`, Type: "<script>alert(1)</script>"}
	out := renderString(t, VehicleCard(DefaultLabels(), v))

	const escapedMake = "O&#39;Brien &amp; Sons &lt;Motors&gt;"
	if !strings.Contains(out, escapedMake) {
		t.Fatalf("make not escaped: %s", out)
	}
	if !strings.Contains(out, "&#34;Roadster&#34;") {
		t.Fatalf("model not escaped: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("markup leaked into output: %s", out)
	}

	doc := parse(t, VehicleCard(DefaultLabels(), v))
	if got := doc.Find(".vehicle-title").Text(); got != `2024 O'Brien & Sons <Motors> "Roadster"` {
		t.Fatalf("decoded title %q", got)
	}

	// &#39; and the zero-padded &#039; are the same character reference.
	const padded = "O&#039;Brien &amp; Sons &lt;Motors&gt;"
	if got, want := html.UnescapeString(escapedMake), html.UnescapeString(padded); got != want || got != v.Make {
		t.Fatalf("escaped make decodes to %q, %q decodes to %q", got, padded, want)
	}
}

func TestFilterForm_SelectsAndSentinels(t *testing.T) {
	st := filter.State{
		Year:            filter.Select{Options: []string{"2024", "2023"}, Selected: "2023"},
		Make:            filter.Select{Options: []string{"Honda", "Toyota"}},
		MinSafetyRating: 2,
		RatingLabel:     "2/5",
	}
	doc := parse(t, FilterForm(DefaultLabels(), st))

	year := doc.Find("select#vehicle-year option")
	if year.Length() != 3 {
		t.Fatalf("expected sentinel + 2 years, got %d", year.Length())
	}
	if first := year.First(); first.Text() != "All Years" || first.AttrOr("value", "x") != "" {
		t.Fatalf("bad sentinel %q", first.Text())
	}
	if got := doc.Find("select#vehicle-year option[selected]").Text(); got != "2023" {
		t.Fatalf("selected year %q", got)
	}
	if got := doc.Find("select#vehicle-make option[selected]").Text(); got != "All Makes" {
		t.Fatalf("selected make %q", got)
	}

	model := doc.Find("select#vehicle-model")
	if _, disabled := model.Attr("disabled"); !disabled {
		t.Fatal("model select should be disabled without a make")
	}
	if got := model.Find("option").Text(); got != "Select Model" {
		t.Fatalf("model options %q", got)
	}

	if v := doc.Find("#min-safety-rating").AttrOr("value", ""); v != "2" {
		t.Fatalf("slider value %q", v)
	}
	if got := doc.Find("#" + RatingLabelID).Text(); got != "2/5" {
		t.Fatalf("rating label %q", got)
	}
}

func TestFilterForm_ModelEnabledWithMake(t *testing.T) {
	st := filter.State{
		Make:  filter.Select{Options: []string{"Toyota"}, Selected: "Toyota"},
		Model: filter.Select{Options: []string{"Camry", "RAV4"}, Selected: "RAV4"},
	}
	doc := parse(t, FilterForm(DefaultLabels(), st))

	model := doc.Find("select#vehicle-model")
	if _, disabled := model.Attr("disabled"); disabled {
		t.Fatal("model select should be enabled")
	}
	if got := model.Find("option[selected]").Text(); got != "RAV4" {
		t.Fatalf("selected model %q", got)
	}
}

func TestResults_BeforeFirstSearch(t *testing.T) {
	doc := parse(t, Results(DefaultLabels(), filter.State{}))
	if doc.Find("#"+ResultsID).Length() != 1 {
		t.Fatal("results container missing")
	}
	if doc.Find(".no-results, #"+CountID).Length() != 0 {
		t.Fatal("nothing should render before the first search")
	}
}

func TestPage(t *testing.T) {
	out := renderString(t, Page("SafeQuote", DefaultLabels(), filter.State{}, "/events"))
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatal("missing doctype")
	}
	doc := parse(t, Page("SafeQuote", DefaultLabels(), filter.State{}, "/events"))
	if doc.Find("title").Text() != "SafeQuote" {
		t.Fatalf("title %q", doc.Find("title").Text())
	}
	for _, sel := range []string{"#" + AppID, "#" + FormID, "#" + ResultsID, "#" + NotificationsID, "script[data-events-path='/events']"} {
		if doc.Find(sel).Length() != 1 {
			t.Fatalf("expected one %s", sel)
		}
	}
}

func TestLabels(t *testing.T) {
	l := Labels{AllYears: "Alle Jahre", VehiclesFound: "%d Fahrzeuge gefunden"}.WithDefaults()
	if l.AllYears != "Alle Jahre" || l.AllMakes != "All Makes" {
		t.Fatalf("unexpected labels %#v", l)
	}
	if got := l.Count(4); got != "4 Fahrzeuge gefunden" {
		t.Fatalf("count %q", got)
	}
	doc := parse(t, ResultCount(l, 0))
	if doc.Text() != "0 Fahrzeuge gefunden" {
		t.Fatalf("rendered count %q", doc.Text())
	}
}

func TestNotification(t *testing.T) {
	doc := parse(t, Notification("success", "2 vehicles found"))
	n := doc.Find("#" + NotificationsID)
	if n.AttrOr("hx-swap-oob", "") != "true" {
		t.Fatal("notification must swap out of band")
	}
	if got := n.Find(".notification-success").Text(); got != "2 vehicles found" {
		t.Fatalf("message %q", got)
	}
}
