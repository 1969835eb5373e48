// Package constants provides shared constants for the robust-portfolio application.
package constants

// Numerical constants
const (
	// KappaTolerance is the mean-reversion speed below which the Vasicek
	// loading is evaluated in its kappa -> 0 limit.
	KappaTolerance = 1e-12

	// SeriesThreshold is the value of kappa*tau below which the integrals of
	// the loading are evaluated from their power series.
	SeriesThreshold = 0.5

	// QuadratureNodes is the default number of Gauss-Legendre nodes per panel.
	QuadratureNodes = 32

	// QuadraturePanels is the default number of panels in composite quadrature.
	QuadraturePanels = 8

	// FloatTolerance is the tolerance for comparisons of closed-form values.
	FloatTolerance = 1e-12
)

// Simulation defaults
const (
	// DefaultSteps is the default number of time steps per path.
	DefaultSteps = 250

	// DefaultPaths is the default number of simulated paths.
	DefaultPaths = 10000

	// DefaultBatchSize is the number of paths drawn from one random stream.
	DefaultBatchSize = 500

	// DefaultSeed seeds the reproducible random streams.
	DefaultSeed uint64 = 20240611

	// DefaultScheduleSteps is the number of intervals in reported weight schedules.
	DefaultScheduleSteps = 10
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatYAML is the YAML output format
	OutputFormatYAML = "yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request size for configs (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultMaxServerPaths caps the number of paths a single API request may simulate.
	DefaultMaxServerPaths = 200000

	// DefaultMaxServerSteps caps the time steps of a single API simulation.
	DefaultMaxServerSteps = 10000

	// DefaultMaxServerPathSteps caps paths x steps of a single API simulation.
	DefaultMaxServerPathSteps int64 = 50_000_000
)

// Scenario names
const (
	// ScenarioWorstCase names the worst-case scenario.
	ScenarioWorstCase = "worst-case"

	// ScenarioReference names the no-ambiguity reference scenario.
	ScenarioReference = "reference"

	// ScenarioBestCase names the most favourable corner of the bounds.
	ScenarioBestCase = "best-case"
)
