// Package constants provides named constants shared across the ecotwin codebase.
package constants

// StateDirName is the directory holding the graph database, JSONL exports,
// session and allocation state.
const StateDirName = ".ecotwin"

// Store backends selectable from configuration.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Propagation bounds applied when neither configuration nor the caller
// overrides them.
const (
	// DefaultMaxDepth is the number of hops explored from the start node.
	DefaultMaxDepth = 10

	// DefaultMagnitudeFloor stops expansion below this absolute magnitude.
	DefaultMagnitudeFloor = 1e-6

	// DefaultMaxVisits bounds the edges examined by one propagation call.
	DefaultMaxVisits = 100000
)

// Telemetry exporters.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"

	// DefaultMetricsAddr is where the Prometheus handler listens.
	DefaultMetricsAddr = "127.0.0.1:9464"
)

// Rate limits applied to MCP tool calls, per tool.
const (
	// ToolRatePerSecond is the sustained call rate of a single tool.
	ToolRatePerSecond = 20

	// ToolBurst is the number of calls accepted back to back.
	ToolBurst = 40

	// SimulateRatePerSecond is lower because each call walks the graph.
	SimulateRatePerSecond = 5

	// SimulateBurst is the burst for ecotwin_simulate.
	SimulateBurst = 10
)
