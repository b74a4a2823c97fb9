package config

// Default keyword sets for question classification. Matching is
// case-insensitive on word boundaries.
var (
	DefaultFileKeywords = []string{
		"download", "file", "attachment", "pdf", "csv", "excel", "spreadsheet",
	}
	DefaultAPIKeywords = []string{
		"api", "endpoint", "json response", "request",
	}
	DefaultStatKeywords = []string{
		"sum", "total", "average", "mean", "median", "count", "how many",
		"minimum", "maximum", "min", "max", "analyze",
	}
	DefaultVisualizationKeywords = []string{
		"chart", "graph", "plot", "visualize", "visualise", "histogram",
	}
)
