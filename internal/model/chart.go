package model

// ChartPoint is one (date, value) point. Nil fields are missing and render
// as gaps; they are pointers so the spec survives JSON encoding.
type ChartPoint struct {
	Date  *string  `json:"x"`
	Value *float64 `json:"y"`
}

// ChartSeries is one line of a chart: all points for a single entity.
type ChartSeries struct {
	Name   string       `json:"name"`
	Points []ChartPoint `json:"points"`
}

// RangeSlider configures the zoomable range control under the x-axis.
type RangeSlider struct {
	Visible   bool    `json:"visible"`
	Thickness float64 `json:"thickness"`
}

// Axis configures one chart axis.
type Axis struct {
	Title       string       `json:"title"`
	ShowGrid    bool         `json:"showgrid"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

// Legend configures the chart legend.
type Legend struct {
	Orientation string `json:"orientation"`
}

// ChartLayout holds presentation settings for a chart.
type ChartLayout struct {
	Title  string `json:"title"`
	XAxis  Axis   `json:"xaxis"`
	YAxis  Axis   `json:"yaxis"`
	Legend Legend `json:"legend"`
}

// ChartSpec is a line-chart specification for one metric column:
// one series per entity, x = date, y = the metric.
type ChartSpec struct {
	Metric     string        `json:"metric"`
	XField     string        `json:"x_field"`
	YField     string        `json:"y_field"`
	ColorField string        `json:"color_field"`
	LineShape  string        `json:"line_shape"`
	Series     []ChartSeries `json:"series"`
	Layout     ChartLayout   `json:"layout"`
}

// ChartSet is the payload of a KindChart result: every chart built for a
// table plus the designated metrics that were skipped because their column
// no longer exists.
type ChartSet struct {
	Charts  []ChartSpec `json:"charts"`
	Skipped []string    `json:"skipped,omitempty"`
}
