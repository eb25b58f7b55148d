package types

import "strings"

// CommandType defines an operator command read by the control listener.
type CommandType string

const (
	CommandPause   CommandType = "pause"   // CommandPause blocks the engine at its next safe point.
	CommandResume  CommandType = "resume"  // CommandResume releases a paused engine.
	CommandStop    CommandType = "stop"    // CommandStop ends the run at the next safe point.
	CommandSkip    CommandType = "skip"    // CommandSkip abandons the client currently in flight.
	CommandStatus  CommandType = "status"  // CommandStatus prints progress and ETA.
	CommandHelp    CommandType = "help"    // CommandHelp prints the command vocabulary.
	CommandUnknown CommandType = "unknown" // CommandUnknown is any unrecognized input.
)

// Command is one parsed line of operator input.
type Command struct {
	Type CommandType
	Raw  string
}

var commandAliases = map[string]CommandType{
	"p":      CommandPause,
	"pause":  CommandPause,
	"r":      CommandResume,
	"resume": CommandResume,
	"s":      CommandStop,
	"stop":   CommandStop,
	"q":      CommandStop,
	"quit":   CommandStop,
	"n":      CommandSkip,
	"next":   CommandSkip,
	"skip":   CommandSkip,
	"status": CommandStatus,
	"eta":    CommandStatus,
	"h":      CommandHelp,
	"help":   CommandHelp,
	"?":      CommandHelp,
}

// ParseCommand parses a line of operator input. Blank lines return ok=false.
func ParseCommand(line string) (Command, bool) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Command{}, false
	}
	if t, ok := commandAliases[strings.ToLower(raw)]; ok {
		return Command{Type: t, Raw: raw}, true
	}
	return Command{Type: CommandUnknown, Raw: raw}, true
}

// CommandHelpText describes the command vocabulary.
const CommandHelpText = "commands: p=pause  r=resume  s=stop  n=skip current client  status  h=help"
