// Package inkwell is the Composition Root for the Inkwell autosave engine.
//
// It connects the editor controller (Domain Layer) with a draft backend and a
// remote note API (Infrastructure Layer).
//
// Philosophy:
//
// Typing never waits on the network. Every edit lands in a local draft first
// and reaches the server through a debounced, retrying save loop that knows
// when the device is offline. When a note is reopened, a draft newer than the
// server copy is offered back to the user instead of being silently lost.
//
// Features:
//
//   - **Debounced Autosave**: one request per pause in typing, never two in flight.
//   - **Offline Aware**: saves are held while unreachable and sent on reconnect.
//   - **Bounded Retry**: transient failures back off on a fixed ladder.
//   - **Flush Triggers**: hide, blur and unload persist the draft and save early.
//   - **Conflict Recovery**: stale drafts are dropped, newer ones surfaced for a decision.
//   - **Pluggable Drafts**: memory, Markdown files, SQLite or Redis via `core.DraftBackend`.
//
// Usage:
//
//	client, err := httpapi.New("https://notes.example.com/api")
//	eng, err := inkwell.New(client, "./drafts",
//		inkwell.WithAdapter("fs"),
//		inkwell.WithLogger(logger),
//	)
//
//	eng.Editor.OpenNew(ctx)
//	eng.Editor.SetBody("first line")
package inkwell
