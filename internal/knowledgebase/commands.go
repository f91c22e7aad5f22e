package knowledgebase

import "strings"

const commandQuote = "`"

// ExtractCommands pulls inline shell commands out of article text.
//
// The text is split on periods. Every segment holding a backtick contributes the
// text after its first backtick, up to the second one if there is one. Any
// further backtick spans in the same segment are ignored, and a period inside a
// command splits it. The result is empty, never nil, when nothing qualifies.
func ExtractCommands(text string) []string {
	commands := make([]string, 0)
	for _, segment := range strings.Split(text, ".") {
		if !strings.Contains(segment, commandQuote) {
			continue
		}
		commands = append(commands, strings.Split(segment, commandQuote)[1])
	}
	return commands
}
