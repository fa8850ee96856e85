package render

import "fmt"

// Labels holds every user-visible string. Zero fields fall back to
// DefaultLabels.
type Labels struct {
	Heading     string `mapstructure:"heading"`
	Year        string `mapstructure:"year"`
	Make        string `mapstructure:"make"`
	Model       string `mapstructure:"model"`
	MinRating   string `mapstructure:"min_rating"`
	AllYears    string `mapstructure:"all_years"`
	AllMakes    string `mapstructure:"all_makes"`
	SelectModel string `mapstructure:"select_model"`
	Search      string `mapstructure:"search"`
	Reset       string `mapstructure:"reset"`
	NoResults   string `mapstructure:"no_results"`
	NoRating    string `mapstructure:"no_rating"`
	NoImage     string `mapstructure:"no_image"`
	FrontCrash  string `mapstructure:"front_crash"`
	SideCrash   string `mapstructure:"side_crash"`
	Rollover    string `mapstructure:"rollover"`

	// VehiclesFound formats the result count and must contain one %d.
	VehiclesFound string `mapstructure:"vehicles_found"`
}

func DefaultLabels() Labels {
	return Labels{
		Heading:       "Find a Safe Vehicle",
		Year:          "Year",
		Make:          "Make",
		Model:         "Model",
		MinRating:     "Minimum Safety Rating",
		AllYears:      "All Years",
		AllMakes:      "All Makes",
		SelectModel:   "Select Model",
		Search:        "Search",
		Reset:         "Reset",
		NoResults:     "No vehicles found matching your criteria.",
		NoRating:      "No Rating",
		NoImage:       "No Image Available",
		FrontCrash:    "Front Crash",
		SideCrash:     "Side Crash",
		Rollover:      "Rollover",
		VehiclesFound: "%d vehicles found",
	}
}

// WithDefaults returns l with every empty field taken from DefaultLabels.
func (l Labels) WithDefaults() Labels {
	d := DefaultLabels()
	for _, f := range []struct{ dst, def *string }{
		{&l.Heading, &d.Heading},
		{&l.Year, &d.Year},
		{&l.Make, &d.Make},
		{&l.Model, &d.Model},
		{&l.MinRating, &d.MinRating},
		{&l.AllYears, &d.AllYears},
		{&l.AllMakes, &d.AllMakes},
		{&l.SelectModel, &d.SelectModel},
		{&l.Search, &d.Search},
		{&l.Reset, &d.Reset},
		{&l.NoResults, &d.NoResults},
		{&l.NoRating, &d.NoRating},
		{&l.NoImage, &d.NoImage},
		{&l.FrontCrash, &d.FrontCrash},
		{&l.SideCrash, &d.SideCrash},
		{&l.Rollover, &d.Rollover},
		{&l.VehiclesFound, &d.VehiclesFound},
	} {
		if *f.dst == "" {
			*f.dst = *f.def
		}
	}
	return l
}

// Count formats the result count label.
func (l Labels) Count(n int) string {
	return fmt.Sprintf(l.VehiclesFound, n)
}
