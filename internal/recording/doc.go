// Package recording captures meeting audio, keeps a local backup of every chunk, uploads chunks live
// and turns a finished capture into a transcribed meeting.
//
// A [Controller] owns one recording. Each chunk is handed to two independent goroutines, one writing
// the [BackupStore] and one running the [Uploader], so neither path can stall capture. A [Finalizer]
// then uploads the assembled recording, registers it with the server and waits for task extraction.
package recording
