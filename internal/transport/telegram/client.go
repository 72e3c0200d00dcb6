// Package telegram is a thin Bot API client, just wide enough for the
// delivery and gateway contracts.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// DefaultEndpoint is the public Bot API endpoint.
const DefaultEndpoint = "https://api.telegram.org"

type (
	// A Choice is an inline option attached to a prompt. Data is the
	// language-independent identifier echoed back by the transport.
	Choice struct {
		Label string
		Data  string
	}

	// A Client defines all interactions performed against the transport.
	Client interface {
		// Me returns the bot account username, used as a startup probe.
		Me(ctx context.Context) (string, error)
		// SendPrompt sends a text with an inline keyboard of choices.
		SendPrompt(ctx context.Context, address, text string, choices []Choice) error
		// SendNotice sends a plain text notice.
		SendNotice(ctx context.Context, address, text string) error
		// SendText sends a text content item.
		SendText(ctx context.Context, address, text string) error
		// SendSticker sends a sticker by file reference.
		SendSticker(ctx context.Context, address, ref string) error
		// SendPhoto sends a photo by file reference.
		SendPhoto(ctx context.Context, address, ref string) error
		// SendDocument sends a document by file reference.
		SendDocument(ctx context.Context, address, ref string) error
		// SendVoice sends a voice message by file reference.
		SendVoice(ctx context.Context, address, ref string) error
		// SendVideo sends a video by file reference.
		SendVideo(ctx context.Context, address, ref string) error
		// SendAudio sends an audio track by file reference.
		SendAudio(ctx context.Context, address, ref string) error
	}

	p      map[string]any
	client struct {
		http     *http.Client
		endpoint string
		token    string
	}

	apiResponse struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
)

// NewDefaultClient returns a new Client against the public endpoint.
func NewDefaultClient(token string) (Client, error) {
	return NewClient(http.DefaultClient, DefaultEndpoint, token)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint, token string) (Client, error) {
	if token == "" {
		return nil, errors.New("missing transport token")
	}
	return &client{http: c, endpoint: endpoint, token: token}, nil
}

func (c *client) Me(ctx context.Context) (string, error) {
	res, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return "", err
	}

	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(res, &me); err != nil {
		return "", errors.Wrap(err, "could not parse getMe result")
	}
	return me.Username, nil
}

func (c *client) SendPrompt(ctx context.Context, address, text string, choices []Choice) error {
	if len(choices) == 0 {
		return c.SendNotice(ctx, address, text)
	}

	rows := make([][]p, 0, (len(choices)+1)/2)
	row := make([]p, 0, 2)
	for _, choice := range choices {
		row = append(row, p{"text": choice.Label, "callback_data": choice.Data})
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]p, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	_, err := c.call(ctx, "sendMessage", p{
		"chat_id":      address,
		"text":         text,
		"reply_markup": p{"inline_keyboard": rows},
	})
	return err
}

func (c *client) SendNotice(ctx context.Context, address, text string) error {
	_, err := c.call(ctx, "sendMessage", p{"chat_id": address, "text": text})
	return err
}

func (c *client) SendText(ctx context.Context, address, text string) error {
	return c.SendNotice(ctx, address, text)
}

func (c *client) SendSticker(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendSticker", p{"chat_id": address, "sticker": ref})
	return err
}

func (c *client) SendPhoto(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendPhoto", p{"chat_id": address, "photo": ref})
	return err
}

func (c *client) SendDocument(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendDocument", p{"chat_id": address, "document": ref})
	return err
}

func (c *client) SendVoice(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendVoice", p{"chat_id": address, "voice": ref})
	return err
}

func (c *client) SendVideo(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendVideo", p{"chat_id": address, "video": ref})
	return err
}

func (c *client) SendAudio(ctx context.Context, address, ref string) error {
	_, err := c.call(ctx, "sendAudio", p{"chat_id": address, "audio": ref})
	return err
}

func (c *client) call(ctx context.Context, method string, params p) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.endpoint, c.token, method)

	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return nil, errors.Wrap(err, "could not serialize params")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(res.Body).Decode(&api); err != nil {
		return nil, errors.Wrap(err, "could not parse response")
	}
	if !api.OK {
		return nil, errors.Errorf("%s: transport refused the call: %s", method, api.Description)
	}
	return api.Result, nil
}
