package repl

const banner = `   __ _  __ ___  __
  / _' |/ _' \ \/ /
 | (_| | (_| |>  <
  \__,_|\__, /_/\_\
        |___/`

const helpText = `commands:
  /help        show this help
  /new         start a new conversation
  /approvals   show what runs without confirmation
  clear        clear the screen
  /quit        quit (also /exit, bye, :q)

anything else is sent to the model. press ctrl+c to interrupt a response or
a running command.
`
