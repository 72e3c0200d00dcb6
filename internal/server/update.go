package server

import (
	"strconv"
	"strings"

	"github.com/lunaris/capsuled/internal/authoring"
	"github.com/lunaris/capsuled/pkg/capsule"
)

type (
	// An update is the inbound webhook payload, narrowed to the fields
	// the gateway actually reads.
	update struct {
		Message       *message       `json:"message"`
		CallbackQuery *callbackQuery `json:"callback_query"`
	}

	message struct {
		From     account   `json:"from"`
		Chat     chat      `json:"chat"`
		Text     string    `json:"text"`
		Photo    []fileRef `json:"photo"`
		Video    *fileRef  `json:"video"`
		Audio    *fileRef  `json:"audio"`
		Document *fileRef  `json:"document"`
		Sticker  *fileRef  `json:"sticker"`
		Voice    *fileRef  `json:"voice"`
	}

	account struct {
		ID           int64  `json:"id"`
		Username     string `json:"username"`
		LanguageCode string `json:"language_code"`
	}

	chat struct {
		ID int64 `json:"id"`
	}

	fileRef struct {
		FileID string `json:"file_id"`
	}

	callbackQuery struct {
		From    account  `json:"from"`
		Message *message `json:"message"`
		Data    string   `json:"data"`
	}
)

// commands maps inbound slash commands to their stable identifiers.
var commands = map[string]authoring.Command{
	"/start":            authoring.CmdStart,
	"/help":             authoring.CmdHelp,
	"/create_capsule":   authoring.CmdCreate,
	"/view_capsules":    authoring.CmdList,
	"/send_capsule":     authoring.CmdSend,
	"/delete_capsule":   authoring.CmdDelete,
	"/edit_capsule":     authoring.CmdEdit,
	"/view_recipients":  authoring.CmdRecipients,
	"/select_send_date": authoring.CmdSchedule,
	"/add_recipient":    authoring.CmdAddRecipients,
	"/lang":             authoring.CmdLanguage,
}

// input converts the webhook payload into a transport-independent
// authoring input. It returns false when the update carries nothing
// the authoring machine can consume.
func (u *update) input() (authoring.Input, bool) {
	if u.CallbackQuery != nil && u.CallbackQuery.Message != nil {
		in := authoring.Input{Sender: sender(u.CallbackQuery.From, u.CallbackQuery.Message.Chat)}
		in.Command, in.Arg = splitChoice(u.CallbackQuery.Data)
		return in, in.Command != authoring.CmdNone
	}

	if u.Message == nil {
		return authoring.Input{}, false
	}

	msg := u.Message
	in := authoring.Input{Sender: sender(msg.From, msg.Chat)}

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		fields := strings.Fields(msg.Text)
		cmd, ok := commands[fields[0]]
		if !ok {
			cmd = authoring.CmdHelp
		}
		in.Command = cmd
		if len(fields) > 1 {
			in.Arg = fields[1]
		}
	case len(msg.Photo) > 0:
		// The transport provides several resolutions, the last one is
		// the original size.
		in.Media = &authoring.Media{Kind: capsule.Photo, Ref: msg.Photo[len(msg.Photo)-1].FileID}
	case msg.Video != nil:
		in.Media = &authoring.Media{Kind: capsule.Video, Ref: msg.Video.FileID}
	case msg.Audio != nil:
		in.Media = &authoring.Media{Kind: capsule.Audio, Ref: msg.Audio.FileID}
	case msg.Document != nil:
		in.Media = &authoring.Media{Kind: capsule.Document, Ref: msg.Document.FileID}
	case msg.Sticker != nil:
		in.Media = &authoring.Media{Kind: capsule.Sticker, Ref: msg.Sticker.FileID}
	case msg.Voice != nil:
		in.Media = &authoring.Media{Kind: capsule.Voice, Ref: msg.Voice.FileID}
	case msg.Text != "":
		in.Text = msg.Text
	default:
		return authoring.Input{}, false
	}
	return in, true
}

func sender(a account, c chat) authoring.Sender {
	return authoring.Sender{
		Handle:   strconv.FormatInt(a.ID, 10),
		Username: a.Username,
		Address:  strconv.FormatInt(c.ID, 10),
		Language: a.LanguageCode,
	}
}

// splitChoice parses a choice id of the form "command" or "command:arg".
func splitChoice(data string) (authoring.Command, string) {
	if data == "" {
		return authoring.CmdNone, ""
	}
	cmd, arg, _ := strings.Cut(data, ":")
	return authoring.Command(cmd), arg
}
