// Package permission decides whether the model's tool calls may run.
//
// Reads never need consent. File creation and edits are covered by a
// single per-session flag. Shell commands are matched by CmdPattern, the
// binary plus its first argument:
//
//	p, _ := permission.ParsePattern("git commit -m 'fix'")
//	p.String()                  // "git commit .*"
//	p.Matches("git commit -am x") // true
//	p.Matches("git push")         // false
//	p.Matches("git commit -m x; rm -r src") // false
//
// A pattern recorded without a first argument ("ls .*") matches every
// invocation of the binary. A command line with several simple commands
// (lists, pipelines, substitutions) is covered only when each one is.
//
// Gate consults the Record and, when nothing covers an invocation, shows a
// preview and asks the user: y/enter approves once, a approves from now on,
// n/no rejects, and any other text is returned to the model as feedback.
// Approved command patterns are persisted by Store in
// .agx/config.local.json as {"approved_commands": [{"binary": ..., "first_arg": ...}]}.
package permission
