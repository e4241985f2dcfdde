package entities

// CommandResult is the structured outcome of one shell command executed by the
// native bridge. It is produced once per execution and consumed by the caller
// that issued the command.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}
