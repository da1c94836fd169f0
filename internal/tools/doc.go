// Package tools registers the assistant's capabilities with genkit and
// wires their lifecycle into the active output stream.
//
// # Design
//
//   - Dependency injection: the Kit captures the store, blob store and
//     image client; genkit closures are thin adapters.
//   - Containment: a tool failure becomes a structured error payload in
//     its result. Handlers return a nil Go error so the generation loop
//     keeps running and the model can react to the failure.
//   - Streaming: each invocation is announced on the output sink as a
//     tool-call frame before execution and a tool-result frame after.
//     Artifact generators additionally emit data frames mid-execution.
//
// # Tools
//
//   - getWeather: current and hourly forecast from Open-Meteo
//   - webSearch: DuckDuckGo instant answers
//   - createDocument, updateDocument: text, code, sheet and image artifacts
//   - requestSuggestions: structured edit suggestions for a document
package tools
