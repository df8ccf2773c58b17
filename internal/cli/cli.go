// Package cli parses parlo command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandToggle     Command = "toggle"
	CommandStop       Command = "stop"
	CommandPause      Command = "pause"
	CommandResume     Command = "resume"
	CommandCancel     Command = "cancel"
	CommandStatus     Command = "status"
	CommandDevices    Command = "devices"
	CommandVoices     Command = "voices"
	CommandTranscribe Command = "transcribe"
	CommandVoiceover  Command = "voiceover"
	CommandSay        Command = "say"
	CommandHistory    Command = "history"
	CommandForget     Command = "forget"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandToggle:     {},
	CommandStop:       {},
	CommandPause:      {},
	CommandResume:     {},
	CommandCancel:     {},
	CommandStatus:     {},
	CommandDevices:    {},
	CommandVoices:     {},
	CommandTranscribe: {},
	CommandVoiceover:  {},
	CommandSay:        {},
	CommandHistory:    {},
	CommandForget:     {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// commandsWithArg names commands that accept one positional argument;
// the value reports whether the argument is required.
var commandsWithArg = map[Command]bool{
	CommandTranscribe: true,
	CommandVoiceover:  true,
	CommandSay:        true,
	CommandForget:     true,
	CommandHistory:    false,
}

type Parsed struct {
	Command    Command
	Arg        string
	ConfigPath string
	TargetLang string
	Voice      string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	haveCommand := false
	haveArg := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			haveCommand = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--target":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--target requires a language code")
			}
			parsed.TargetLang = args[i]
		case "--voice":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--voice requires a voice name")
			}
			parsed.Voice = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			if !haveCommand {
				cmd := Command(arg)
				if _, ok := validCommands[cmd]; !ok {
					return Parsed{}, fmt.Errorf("unknown command: %s", arg)
				}
				parsed.Command = cmd
				parsed.ShowHelp = cmd == CommandHelp
				haveCommand = true
				continue
			}

			if _, accepts := commandsWithArg[parsed.Command]; !accepts {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			if haveArg {
				return Parsed{}, fmt.Errorf("command %q takes a single argument", parsed.Command)
			}
			parsed.Arg = arg
			haveArg = true
		}
	}

	if haveCommand {
		if required, accepts := commandsWithArg[parsed.Command]; accepts && required && !haveArg {
			return Parsed{}, fmt.Errorf("command %q requires an argument", parsed.Command)
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--target LANG] [--voice NAME] <command> [arg]

Commands:
  toggle            Start recording or stop+commit when already recording
  stop              Stop active recording and commit transcript
  pause             Pause active recording
  resume            Resume paused recording
  cancel            Cancel active recording and discard transcript
  status            Print current state with duration and size
  devices           List available input devices
  voices            List synthesis voices for the configured provider
  transcribe FILE   Transcribe an audio file and print the transcript
  voiceover FILE    Transcribe, translate, and synthesize a voiceover file
  say TEXT          Synthesize text and play it
  history [ID]      List session history, or show one entry
  forget ID         Delete one history entry and its archived audio
  doctor            Run configuration and environment checks
  version           Print version information
  help              Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parlo/config.toml)
  --target LANG   Override translation target language for this invocation
  --voice NAME    Override synthesis voice for this invocation
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
