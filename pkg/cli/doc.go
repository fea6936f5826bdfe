// Package cli provides the shared pieces of the lingopipe command-line
// tool:
//
//   - Configuration contexts (~/.lingopipe/config.yaml), kubectl-style
//   - Environment variable overrides (LINGOPIPE_*)
//   - The live session terminal UI
//   - Output formatting (YAML, JSON, raw)
package cli
