package render

import (
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// ComingSoon is the placeholder page for features that do not exist yet.
func ComingSoon(title, feature string) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(Lang("en"),
			Head(
				Meta(Charset("UTF-8")),
				TitleEl(g.Text(feature+" - "+title)),
			),
			Body(
				Main(Class("container coming-soon"),
					H1(g.Text(feature)),
					P(g.Text(feature+" is coming soon.")),
					A(Href("/"), g.Text("Back to search")),
				),
			),
		),
	})
}
