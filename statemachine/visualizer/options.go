package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowListeners includes guard and listener names in state descriptions
	ShowListeners bool

	// ShowTransitionNames labels edges with the transition name
	ShowTransitionNames bool

	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right)
	Direction string

	// HighlightPath highlights a specific state path through the diagram,
	// typically the current branch of a running automaton
	HighlightPath []string

	// Theme controls the color scheme: "default", "dark", "forest"
	Theme string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowListeners:       true,
		ShowTransitionNames: true,
		Direction:           "TD",
		Theme:               "default",
	}
}

// WithShowListeners enables/disables guard and listener details.
func (o Options) WithShowListeners(show bool) Options {
	o.ShowListeners = show

	return o
}

// WithShowTransitionNames enables/disables edge labels.
func (o Options) WithShowTransitionNames(show bool) Options {
	o.ShowTransitionNames = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithTheme sets the color theme.
func (o Options) WithTheme(theme string) Options {
	o.Theme = theme

	return o
}

func (o Options) direction() string {
	if o.Direction == "LR" {
		return "LR"
	}

	return "TB"
}
