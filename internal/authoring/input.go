package authoring

import "github.com/lunaris/capsuled/pkg/capsule"

// A Command is a stable, language-independent intent identifier.
// The transport resolves display text separately, dispatch never keys
// on a localized label.
type Command string

// All the commands the session machine understands.
const (
	CmdNone          Command = ""
	CmdStart         Command = "start"
	CmdHelp          Command = "help"
	CmdCreate        Command = "create"
	CmdList          Command = "list"
	CmdSend          Command = "send"
	CmdDelete        Command = "delete"
	CmdEdit          Command = "edit"
	CmdRecipients    Command = "recipients"
	CmdSchedule      Command = "schedule"
	CmdAddRecipients Command = "add_recipients"
	CmdLanguage      Command = "language"

	CmdContinue Command = "continue"
	CmdFinish   Command = "finish"
	CmdYes      Command = "yes"
	CmdNo       Command = "no"
	CmdOffset   Command = "offset"
	CmdCustom   Command = "custom"
	CmdDraft    Command = "draft"
	CmdTitle    Command = "title"
	CmdContent  Command = "content"
)

type (
	// A Sender identifies the person behind an input.
	Sender struct {
		// Handle is the stable transport account id.
		Handle string
		// Username is the mutable public name, may be empty.
		Username string
		// Address is where replies are delivered.
		Address string
		// Language is the transport-reported display language hint.
		Language string
	}

	// A Media is one content submission.
	Media struct {
		Kind capsule.Kind
		Ref  string
	}

	// An Input is one inbound user turn, already stripped of any
	// transport specifics.
	Input struct {
		Sender  Sender
		Command Command
		// Arg qualifies the command, e.g. the offset name or language code.
		Arg  string
		Text string
		// Media is set when the turn carries a content item.
		Media *Media
	}

	// A Choice is an option offered to the user. ID round-trips as a
	// command identifier, Label is presentation only.
	Choice struct {
		ID    string
		Label string
	}

	// A Reply is one outbound message of a turn.
	Reply struct {
		Text    string
		Choices []Choice
	}
)

func reply(text string, choices ...Choice) Reply {
	return Reply{Text: text, Choices: choices}
}

func choice(lang string, cmd Command, arg string) Choice {
	id := string(cmd)
	if arg != "" {
		id += ":" + arg
	}
	return Choice{ID: id, Label: T(lang, "btn."+id)}
}
