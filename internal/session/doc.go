// Package session runs conversation turns between the user, the model and
// the local tools.
//
// # Turns
//
// Engine.RunTurn takes one line of user input through as many model round
// trips as the model needs, up to MaxRoundTrips:
//
//  1. stream a completion for the pending prompt and the committed history
//  2. commit the prompt and the assistant message (text plus tool calls)
//  3. validate, confirm and execute each tool call in order
//  4. send the results back as the next prompt
//
// Every tool call the model issues is answered by exactly one tool result,
// whether the call ran, failed, was rejected, skipped or interrupted. An
// interrupt while streaming discards the round trip; an interrupt while a
// tool runs answers the remaining calls and ends the turn without asking
// the model again.
//
// RunTurn never returns an error. Failures are printed, logged and end the
// turn.
//
// # Preamble
//
// Each request carries the embedded system prompt, the project's AGENTS.md
// when present, the project directory and the current time. ContextWatcher
// reloads AGENTS.md when it changes on disk.
//
// # Transcripts
//
// After every turn the full history is written to
// <chats dir>/<session>/turn-NNN.json, where session is the time the
// conversation started.
package session
