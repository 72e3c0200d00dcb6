package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lunaris/capsuled/internal/transport/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	path string
	body map[string]any
}

// botAPI is a stub Bot API endpoint recording every call.
type botAPI struct {
	calls  []call
	answer string
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		json.Unmarshal(raw, &body)
	}
	b.calls = append(b.calls, call{path: r.URL.Path, body: body})

	answer := b.answer
	if answer == "" {
		answer = `{"ok":true,"result":{}}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(answer))
}

func setup(t *testing.T) (telegram.Client, *botAPI, func()) {
	t.Helper()

	api := &botAPI{}
	ts := httptest.NewServer(api)

	client, err := telegram.NewClient(ts.Client(), ts.URL, "token")
	require.NoError(t, err)

	return client, api, ts.Close
}

func TestNewClient(t *testing.T) {
	_, err := telegram.NewClient(http.DefaultClient, telegram.DefaultEndpoint, "")
	assert.Error(t, err)
}

func TestClientMe(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()

	api.answer = `{"ok":true,"result":{"username":"capsuled_bot"}}`
	username, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "capsuled_bot", username)
	require.Len(t, api.calls, 1)
	assert.Equal(t, "/bottoken/getMe", api.calls[0].path)
}

func TestClientSendNotice(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()

	require.NoError(t, client.SendNotice(context.Background(), "42", "hello"))
	require.Len(t, api.calls, 1)
	assert.Equal(t, "/bottoken/sendMessage", api.calls[0].path)
	assert.Equal(t, "42", api.calls[0].body["chat_id"])
	assert.Equal(t, "hello", api.calls[0].body["text"])
}

func TestClientSendPrompt(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()

	choices := []telegram.Choice{
		{Label: "A", Data: "a"},
		{Label: "B", Data: "b"},
		{Label: "C", Data: "c"},
	}
	require.NoError(t, client.SendPrompt(context.Background(), "42", "pick one", choices))

	require.Len(t, api.calls, 1)
	assert.Equal(t, "/bottoken/sendMessage", api.calls[0].path)

	// Choices are laid out as an inline keyboard, two per row.
	markup, ok := api.calls[0].body["reply_markup"].(map[string]any)
	require.True(t, ok)
	rows, ok := markup["inline_keyboard"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].([]any), 2)
	assert.Len(t, rows[1].([]any), 1)

	first := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "A", first["text"])
	assert.Equal(t, "a", first["callback_data"])
}

func TestClientSendPromptWithoutChoices(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()

	require.NoError(t, client.SendPrompt(context.Background(), "42", "plain", nil))
	require.Len(t, api.calls, 1)
	_, ok := api.calls[0].body["reply_markup"]
	assert.False(t, ok)
}

func TestClientSendContent(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()
	ctx := context.Background()

	require.NoError(t, client.SendSticker(ctx, "42", "S1"))
	require.NoError(t, client.SendPhoto(ctx, "42", "P1"))
	require.NoError(t, client.SendDocument(ctx, "42", "D1"))
	require.NoError(t, client.SendVoice(ctx, "42", "V1"))
	require.NoError(t, client.SendVideo(ctx, "42", "V2"))
	require.NoError(t, client.SendAudio(ctx, "42", "A1"))

	require.Len(t, api.calls, 6)
	assert.Equal(t, "/bottoken/sendSticker", api.calls[0].path)
	assert.Equal(t, "S1", api.calls[0].body["sticker"])
	assert.Equal(t, "/bottoken/sendPhoto", api.calls[1].path)
	assert.Equal(t, "/bottoken/sendDocument", api.calls[2].path)
	assert.Equal(t, "/bottoken/sendVoice", api.calls[3].path)
	assert.Equal(t, "/bottoken/sendVideo", api.calls[4].path)
	assert.Equal(t, "/bottoken/sendAudio", api.calls[5].path)
	assert.Equal(t, "A1", api.calls[5].body["audio"])
}

func TestClientRefusedCall(t *testing.T) {
	client, api, teardown := setup(t)
	defer teardown()

	api.answer = `{"ok":false,"description":"chat not found"}`
	err := client.SendNotice(context.Background(), "42", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
