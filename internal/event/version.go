package event

// EngineVersion identifies this engine build in logs and diagnostics.
const EngineVersion = "0.1.0"

// SchemaVersion is the major version of the event vocabulary this engine
// materializes. Events from other major versions are skipped as unknown.
const SchemaVersion = 1
