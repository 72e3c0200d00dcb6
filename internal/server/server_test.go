package server_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/appleboy/gofight/v2"
	"github.com/labstack/echo/v4"
	"github.com/lunaris/capsuled/internal/authoring"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/server"
	"github.com/lunaris/capsuled/internal/transport/telegram"
	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "c0ffee"

type prompt struct {
	address string
	text    string
	choices []telegram.Choice
}

// fakeTransport records prompts pushed back through the gateway.
type fakeTransport struct {
	mu      sync.Mutex
	prompts []prompt
}

func (f *fakeTransport) Me(context.Context) (string, error) { return "capsuled_bot", nil }

func (f *fakeTransport) SendPrompt(_ context.Context, address, text string, choices []telegram.Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt{address: address, text: text, choices: choices})
	return nil
}

func (f *fakeTransport) SendNotice(ctx context.Context, address, text string) error {
	return f.SendPrompt(ctx, address, text, nil)
}
func (f *fakeTransport) SendText(ctx context.Context, address, text string) error {
	return f.SendPrompt(ctx, address, text, nil)
}
func (f *fakeTransport) SendSticker(context.Context, string, string) error  { return nil }
func (f *fakeTransport) SendPhoto(context.Context, string, string) error    { return nil }
func (f *fakeTransport) SendDocument(context.Context, string, string) error { return nil }
func (f *fakeTransport) SendVoice(context.Context, string, string) error    { return nil }
func (f *fakeTransport) SendVideo(context.Context, string, string) error    { return nil }
func (f *fakeTransport) SendAudio(context.Context, string, string) error    { return nil }

type noopScheduler struct{}

func (noopScheduler) Schedule(string, time.Time) error { return nil }

type noopDeliverer struct{}

func (noopDeliverer) Deliver(context.Context, string) error { return nil }

func setup() (engine *echo.Echo, db database.Client, transport *fakeTransport, r *gofight.RequestConfig, cleanup func()) {
	tmpfile, err := os.CreateTemp("", "capsuled.*.db")
	if err != nil {
		panic(err)
	}
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err = database.StormOpen(filename)
	if err != nil {
		panic(err)
	}

	codec, err := capsule.NewCodec(bytes.Repeat([]byte("k"), capsule.KeySize))
	if err != nil {
		panic(err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	transport = &fakeTransport{}
	manager := authoring.NewManager(db, codec, noopScheduler{}, noopDeliverer{}, time.UTC, logger)

	engine = server.EchoEngine(server.IOC{
		Version:       "test",
		Database:      db,
		Manager:       manager,
		Transport:     transport,
		WebhookSecret: secret,
		Logger:        logger,
	})

	return engine, db, transport, gofight.New(), func() {
		db.Close()
		os.Remove(filename)
	}
}

func TestRequestVersion(t *testing.T) {
	engine, _, _, r, cleanup := setup()
	defer cleanup()

	r.GET("/version").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"version":"test"}`, r.Body.String())
	})
}

func TestRequestHealthz(t *testing.T) {
	engine, _, _, r, cleanup := setup()
	defer cleanup()

	r.GET("/healthz").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"status":"ok"}`, r.Body.String())
	})
}

func TestRequestUpdatesBadSecret(t *testing.T) {
	engine, _, transport, r, cleanup := setup()
	defer cleanup()

	r.POST("/updates").
		SetJSONInterface(messagePayload("/start")).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
		})

	r.POST("/updates").
		SetHeader(gofight.H{"X-Telegram-Bot-Api-Secret-Token": "nope"}).
		SetJSONInterface(messagePayload("/start")).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusUnauthorized, r.Code)
		})

	assert.Empty(t, transport.prompts)
}

func TestRequestUpdatesStart(t *testing.T) {
	engine, _, transport, r, cleanup := setup()
	defer cleanup()

	r.POST("/updates").
		SetHeader(gofight.H{"X-Telegram-Bot-Api-Secret-Token": secret}).
		SetJSONInterface(messagePayload("/start")).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.JSONEq(t, `{"ok":true}`, r.Body.String())
		})

	require.Len(t, transport.prompts, 1)
	assert.Equal(t, "42", transport.prompts[0].address)
	assert.Equal(t, authoring.T(authoring.LangEN, "start"), transport.prompts[0].text)
	assert.NotEmpty(t, transport.prompts[0].choices)
}

func TestRequestUpdatesCallback(t *testing.T) {
	engine, _, transport, r, cleanup := setup()
	defer cleanup()

	payload := map[string]any{
		"callback_query": map[string]any{
			"from":    map[string]any{"id": 7, "username": "alice"},
			"message": map[string]any{"chat": map[string]any{"id": 42}},
			"data":    "create",
		},
	}

	r.POST("/updates").
		SetHeader(gofight.H{"X-Telegram-Bot-Api-Secret-Token": secret}).
		SetJSONInterface(payload).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
		})

	require.Len(t, transport.prompts, 1)
	assert.Equal(t, authoring.T(authoring.LangEN, "enter_title"), transport.prompts[0].text)
}

func TestRequestUpdatesEmpty(t *testing.T) {
	engine, _, transport, r, cleanup := setup()
	defer cleanup()

	// An update the machine cannot consume is acknowledged so the
	// transport does not retry it.
	r.POST("/updates").
		SetHeader(gofight.H{"X-Telegram-Bot-Api-Secret-Token": secret}).
		SetJSONInterface(map[string]any{}).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.JSONEq(t, `{"ok":true}`, r.Body.String())
		})

	assert.Empty(t, transport.prompts)
}

func TestRequestUpdatesStoreDown(t *testing.T) {
	engine, db, transport, r, cleanup := setup()
	defer cleanup()

	// With the store unreachable the turn is refused, not swallowed,
	// so Telegram redelivers the update later.
	require.NoError(t, db.Close())

	r.POST("/updates").
		SetHeader(gofight.H{"X-Telegram-Bot-Api-Secret-Token": secret}).
		SetJSONInterface(messagePayload("/start")).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusServiceUnavailable, r.Code)
			assert.JSONEq(t, `{"error":{"tag":"persistence","message":"could not register user"}}`, r.Body.String())
		})

	assert.Empty(t, transport.prompts)
}

func messagePayload(text string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"from": map[string]any{"id": 7, "username": "alice", "language_code": "en"},
			"chat": map[string]any{"id": 42},
			"text": text,
		},
	}
}
