// Package ui implements the recording terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one recording through these views:
//  1. [RecoveryView] : Offer unfinished recordings found in the local backup
//  2. [ConfirmView] : Confirm the project before capture starts
//  3. [RecordingView] : Stopwatch, state badge and chunk counters while recording
//  4. [DiscardView] : Confirm throwing the recording away
//  5. [FinalizingView] : Spinner with finalization progress updates
//  6. [ResultView] : The saved meeting or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the recording Finalizer, providing non-blocking status reporting.
//
// Keys: space pauses and resumes, s stops and saves, q asks to discard, y/n answer prompts.
package ui
