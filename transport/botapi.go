package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// BotClient talks to a Telegram-style bot HTTP API. It is the production
// Messenger and also the update source for the polling worker.
type BotClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewBotClient() *BotClient {
	baseURL := os.Getenv("BOT_API_URL")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}

	return &BotClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type keyboardButton struct {
	Text            string `json:"text"`
	RequestContact  bool   `json:"request_contact,omitempty"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

type replyKeyboard struct {
	Keyboard        [][]keyboardButton `json:"keyboard,omitempty"`
	ResizeKeyboard  bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
	RemoveKeyboard  bool               `json:"remove_keyboard,omitempty"`
}

type sendMessageRequest struct {
	ChatID      string         `json:"chat_id"`
	Text        string         `json:"text"`
	ReplyMarkup *replyKeyboard `json:"reply_markup,omitempty"`
}

func (c *BotClient) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call bot api %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bot api %s returned status %d: %s", method, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}
	}
	return nil
}

func (c *BotClient) SendMessage(ctx context.Context, userID, text string, opts *SendOptions) error {
	req := sendMessageRequest{ChatID: userID, Text: text}
	if opts != nil {
		if opts.RemoveKeyboard {
			req.ReplyMarkup = &replyKeyboard{RemoveKeyboard: true}
		} else if len(opts.Buttons) > 0 {
			kb := &replyKeyboard{ResizeKeyboard: true, OneTimeKeyboard: opts.OneTime}
			for _, row := range opts.Buttons {
				var btnRow []keyboardButton
				for _, label := range row {
					btnRow = append(btnRow, keyboardButton{Text: label})
				}
				kb.Keyboard = append(kb.Keyboard, btnRow)
			}
			req.ReplyMarkup = kb
		}
	}
	return c.call(ctx, "sendMessage", req, nil)
}

func (c *BotClient) PromptForContact(ctx context.Context, userID, text string) error {
	req := sendMessageRequest{
		ChatID: userID,
		Text:   text,
		ReplyMarkup: &replyKeyboard{
			Keyboard: [][]keyboardButton{
				{{Text: "📱 Share My Phone Number", RequestContact: true}},
			},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	}
	return c.call(ctx, "sendMessage", req, nil)
}

func (c *BotClient) PromptForLocation(ctx context.Context, userID, text string) error {
	req := sendMessageRequest{
		ChatID: userID,
		Text:   text,
		ReplyMarkup: &replyKeyboard{
			Keyboard: [][]keyboardButton{
				{{Text: "📍 Share My Location", RequestLocation: true}},
			},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	}
	return c.call(ctx, "sendMessage", req, nil)
}

func (c *BotClient) NotifyReward(ctx context.Context, n RewardNotification) error {
	return c.SendMessage(ctx, n.ReferrerID, RenderRewardNotification(n), nil)
}

// --- update polling ---

type apiUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Text    string `json:"text"`
		Contact *struct {
			PhoneNumber string `json:"phone_number"`
		} `json:"contact"`
		Location *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"message"`
}

// GetUpdates long-polls the bot API and converts raw updates into InputEvents.
// Returns the next offset to ask for.
func (c *BotClient) GetUpdates(ctx context.Context, offset int64) ([]InputEvent, int64, error) {
	var resp struct {
		Result []apiUpdate `json:"result"`
	}
	payload := map[string]any{"offset": offset, "timeout": 25}
	if err := c.call(ctx, "getUpdates", payload, &resp); err != nil {
		return nil, offset, err
	}

	var events []InputEvent
	next := offset
	for _, u := range resp.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
		ev, ok := updateToEvent(u)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, next, nil
}

// ParseUpdateJSON decodes one webhook delivery into an InputEvent. The
// second return is false for update kinds this service does not consume
// (edits, channel posts, joins).
func ParseUpdateJSON(data []byte) (InputEvent, bool, error) {
	var u apiUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return InputEvent{}, false, fmt.Errorf("failed to decode update: %w", err)
	}
	ev, ok := updateToEvent(u)
	return ev, ok, nil
}

func updateToEvent(u apiUpdate) (InputEvent, bool) {
	if u.Message == nil || u.Message.From.ID == 0 {
		return InputEvent{}, false
	}
	ev := InputEvent{UserID: fmt.Sprintf("%d", u.Message.From.ID)}
	switch {
	case u.Message.Contact != nil:
		ev.Kind = EventContact
		ev.Contact = &Contact{PhoneNumber: u.Message.Contact.PhoneNumber}
	case u.Message.Location != nil:
		ev.Kind = EventLocation
		ev.Location = &GeoPoint{Latitude: u.Message.Location.Latitude, Longitude: u.Message.Location.Longitude}
	case u.Message.Text != "":
		ev.Kind = EventText
		ev.Text = u.Message.Text
	default:
		return InputEvent{}, false
	}
	return ev, true
}
