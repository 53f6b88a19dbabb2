// Package config resolves agx's runtime configuration and on-disk locations.
//
// Settings come from the environment. A .env file in the project directory is
// loaded first, without overriding variables that are already set:
//
//	PROVIDER             anthropic, gemini, github-copilot, openai, openrouter or ark
//	API_KEY              key for the provider (a GitHub token for github-copilot)
//	MODEL_NAME           model requests are sent to
//	BASE_URL             optional endpoint override
//	AGX_DEBUG_SERVER     "1" starts the debug server
//	AGX_DEBUG_ADDR       debug server address, 127.0.0.1:4880 by default
//	AGX_SKIP_HITL        "1" approves every tool call without asking
//	AGX_LOG_LEVEL        minimum log level
//	AGX_PROTECTED_PATHS  comma separated globs tools may never modify
//
// # Paths
//
// State follows the XDG base directory layout. Each project gets its own
// directory under $XDG_STATE_HOME/agx/projects, named by PathToDirname, which
// holds chat transcripts and input history. Project-local settings live in
// .agx/ inside the project itself.
package config
