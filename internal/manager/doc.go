// Package manager owns the lifecycle of the single resident model runtime:
// load, unload, switch with fallback, and serialized generation.
//
// The package is structured into small files by concern:
//
//   - manager.go: core Manager type and simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: runtime states, ModelInfo, Snapshot and the resident instance.
//   - errors.go: typed errors and predicates (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: registry lookup and size estimation.
//   - admission.go: the owner token and bounded generation queue.
//   - ensure.go: EnsureLoaded and the ordered fallback list.
//   - evict.go: memory budget precheck.
//   - unload.go: release of the resident instance.
//   - ops.go: Switch and the desired-model bookkeeping.
//   - infer.go: Generate.
//   - status_report.go: Status/Snapshot reporting.
//   - metrics.go: Prometheus collectors.
//
// Runtimes:
//
//   - In-process llama (`-tags=llama`): go-llama.cpp, adapter_llama.go and
//     llama_cgo.go. Without the tag adapter_llama_stub.go fails fast.
//   - llama_server: one llama-server subprocess per loaded model
//     (adapter_llama_subprocess.go). Releasing the session stops the process.
//   - ollama: a remote Ollama daemon (adapter_ollama.go). Load pre-warms the
//     model with keep_alive, release sends keep_alive=0.
//
// At most one runtime session is resident. A switch always passes through
// the unloaded state before the next model is loaded.
package manager
