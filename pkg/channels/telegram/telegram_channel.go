package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"shopmate/pkg/api"
	"shopmate/pkg/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig encapsulates the credentials required to authenticate with
// the Telegram Bot API.
type TelegramConfig struct {
	Token string `json:"token"` // The secret BOT API string provided by @BotFather
	// APIEndpoint overrides tgbotapi.APIEndpoint (format "<base>/bot%s/%s").
	APIEndpoint string `json:"api_endpoint,omitempty"`
}

const (
	greeting = "Hi! I keep your todo list and can manage your Shopify store.\n" +
		"Tell me what to add, complete or remove. /todos shows the list, /clear empties it."
	emptyList = "Your todo list is empty."
)

// chatState is the todo list of one chat. mu serializes its turns.
type chatState struct {
	mu    sync.Mutex
	todos []api.TodoItem
}

// TelegramChannel is the Telegram implementation of api.Channel. It keeps
// the todo list of every chat and replies with the assistant answer
// followed by the checklist.
type TelegramChannel struct {
	config       TelegramConfig
	bot          *tgbotapi.BotAPI
	speech       api.Speech // Optional; enables voice notes
	messageLimit int        // Maximum character count per single message bubble
	httpClient   *http.Client
	chats        map[int64]*chatState
	mu           sync.Mutex
	stopCtx      context.Context    // Cancels the long-polling loop
	stopCancel   context.CancelFunc // and aborts its in-flight request
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int, timeout time.Duration, speech api.Speech) (*TelegramChannel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Tying DialContext to stopCtx aborts an active long poll on Stop(),
	// which prevents a 409 Conflict when the bot is restarted.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	botHttpClient := &http.Client{
		Timeout: 75 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, botHttpClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	if msgLimit <= 0 {
		msgLimit = 4000
	}
	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		speech:       speech,
		messageLimit: msgLimit,
		httpClient:   &http.Client{Timeout: timeout},
		chats:        make(map[int64]*chatState),
		stopCtx:      ctx,
		stopCancel:   cancel,
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start runs the long-polling update loop in the background.
func (t *TelegramChannel) Start(cc api.ChannelContext) error {
	go func() {
		offset := 0
		for {
			select {
			case <-t.stopCtx.Done():
				return
			default:
			}

			reqConfig := tgbotapi.NewUpdate(offset)
			reqConfig.Timeout = 60

			updates, err := t.bot.GetUpdates(reqConfig)
			if err != nil {
				select {
				case <-t.stopCtx.Done():
					return
				default:
					slog.Debug("Failed to get telegram updates", "error", err)
					time.Sleep(3 * time.Second)
					continue
				}
			}

			for _, update := range updates {
				if update.UpdateID < offset {
					continue
				}
				offset = update.UpdateID + 1
				if update.Message == nil || update.Message.From == nil {
					continue
				}
				// Chats run concurrently; turns within a chat are serialized.
				go t.handleMessage(t.stopCtx, cc, update.Message)
			}
		}
	}()

	return nil
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel()

	if httpClient, ok := t.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	return nil
}

func (t *TelegramChannel) chat(chatID int64) *chatState {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chats[chatID]
	if !ok {
		c = &chatState{todos: []api.TodoItem{}}
		t.chats[chatID] = c
	}
	return c
}

// handleMessage answers one incoming message.
func (t *TelegramChannel) handleMessage(ctx context.Context, cc api.ChannelContext, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	state := t.chat(chatID)
	state.mu.Lock()
	defer state.mu.Unlock()

	switch msg.Command() {
	case "start", "help":
		t.send(chatID, greeting)
		return
	case "todos":
		t.send(chatID, RenderChecklist(state.todos))
		return
	case "clear":
		state.todos = []api.TodoItem{}
		t.send(chatID, "Cleared your todo list.")
		return
	}

	text := msg.Text
	if msg.Voice != nil {
		transcript, err := t.transcribeVoice(ctx, msg.Voice)
		if err != nil {
			slog.ErrorContext(ctx, "Voice note transcription failed", "chat", chatID, "error", err)
			t.send(chatID, "Sorry, I couldn't understand that voice note.")
			return
		}
		text = transcript
	}
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	session := api.SessionContext{
		ChannelID: t.ID(),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		ChatID:    strconv.FormatInt(chatID, 10),
		Username:  msg.From.UserName,
	}
	resp := cc.Converse(ctx, session, text, state.todos)

	before := state.todos
	state.todos = MergeTodos(state.todos, resp.UpdatedTodoList)

	t.send(chatID, FormatReply(resp, state.todos))
	for _, img := range newImages(before, state.todos) {
		if _, err := t.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(img))); err != nil {
			slog.WarnContext(ctx, "Failed to send product image", "chat", chatID, "url", img, "error", err)
		}
	}
}

// send delivers text, split into bubbles of at most messageLimit runes.
func (t *TelegramChannel) send(chatID int64, text string) {
	for i, chunk := range SplitMessage(text, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			slog.Error("Telegram send failed", "chat", chatID, "chunk", i, "error", err)
			return
		}
	}
}

// transcribeVoice downloads a voice note and converts it to text.
func (t *TelegramChannel) transcribeVoice(ctx context.Context, voice *tgbotapi.Voice) (string, error) {
	if t.speech == nil {
		return "", fmt.Errorf("speech is not configured")
	}

	fileInfo, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: voice.FileID})
	if err != nil {
		return "", fmt.Errorf("failed to get voice file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileInfo.Link(t.config.Token), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download voice note: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download voice note: status code %d", resp.StatusCode)
	}

	return t.speech.Transcribe(ctx, utils.GenerateTimestampPrefix()+"voice.ogg", resp.Body)
}

// FormatReply renders the assistant answer followed by the checklist.
func FormatReply(resp api.ChatResponse, todos []api.TodoItem) string {
	var sb strings.Builder
	sb.WriteString(resp.Response)
	if resp.Error != "" {
		sb.WriteString("\n\n(" + resp.Error + ")")
	}
	sb.WriteString("\n\n")
	sb.WriteString(RenderChecklist(todos))
	return sb.String()
}

// RenderChecklist renders the todo list as one line per task.
func RenderChecklist(todos []api.TodoItem) string {
	if len(todos) == 0 {
		return emptyList
	}
	lines := make([]string, 0, len(todos)+1)
	lines = append(lines, "Your todo list:")
	for _, todo := range todos {
		box := "⬜"
		if todo.Status == api.TodoStatusDone {
			box = "✅"
		}
		lines = append(lines, box+" "+todo.Text)
	}
	return strings.Join(lines, "\n")
}

// SplitMessage cuts text into chunks of at most limit runes, preferring
// line breaks as cut points.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// MergeTodos folds a turn's returned list into the chat's stored list.
// An empty list leaves the stored list alone: tool answers and failures
// return none. A single product addition is merged: an entry with the same
// text is updated in place, otherwise the item is appended. Anything else is
// the model's full list and replaces the stored one.
func MergeTodos(current, returned []api.TodoItem) []api.TodoItem {
	if len(returned) == 0 {
		return current
	}
	if len(returned) != 1 || !api.IsProductAddition(returned[0]) {
		return returned
	}

	added := returned[0]
	merged := make([]api.TodoItem, 0, len(current)+1)
	merged = append(merged, current...)
	for i := range merged {
		if merged[i].Text == added.Text {
			merged[i].Status = added.Status
			if added.Image != "" {
				merged[i].Image = added.Image
			}
			return merged
		}
	}
	return append(merged, added)
}

// newImages returns image URLs present in after but not in before.
func newImages(before, after []api.TodoItem) []string {
	seen := make(map[string]bool, len(before))
	for _, t := range before {
		if t.Image != "" {
			seen[t.Image] = true
		}
	}
	var out []string
	for _, t := range after {
		if t.Image != "" && !seen[t.Image] {
			seen[t.Image] = true
			out = append(out, t.Image)
		}
	}
	return out
}
