/*
 * file: client.go
 * package: vkapi
 * description:
 *     MessagingClient implementation against the VK Bots Long Poll API.
 *     Handshakes once at startup, long-polls for updates, and sends
 *     messages/fetches chat members over the same method endpoint.
 */

package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/core/domain"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

const (
	methodBaseURL  = "https://api.vk.com/method/"
	apiVersion     = "5.131"
	// IDConstant converts between a group chat's inbound peer_id and the
	// chat_id form used in outbound sends.
	IDConstant int64 = 2_000_000_000
)

// Client is the concrete ports.MessagingClient. Not safe to share the
// in-flight handshake state (server/key/ts) across goroutines without
// external synchronization; the Poller is its sole caller for LongPoll.
type Client struct {
	http    *http.Client
	groupID int
	token   string
	wait    time.Duration
	log     zerolog.Logger

	server string
	key    string
	ts     string
}

// NewClient constructs a Client. No session is held yet; the first
// LongPoll performs the Handshake itself.
func NewClient(groupID int, token string, wait, sendTimeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: wait + sendTimeout},
		groupID: groupID,
		token:   token,
		wait:    wait,
		log:     log,
	}
}

func buildQuery(host, method string, params url.Values) string {
	if params.Get("v") == "" {
		params.Set("v", apiVersion)
	}
	u := host + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

type longPollServerResponse struct {
	Response struct {
		Server string `json:"server"`
		Key    string `json:"key"`
		Ts     string `json:"ts"`
	} `json:"response"`
	Error *vkAPIError `json:"error"`
}

type vkAPIError struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Handshake fetches a fresh (server, key, ts) descriptor. LongPoll calls
// it whenever no session is held: on the first poll, and on the poll
// after one that reported a *apperrors.ProtocolError.
func (c *Client) Handshake(ctx context.Context) error {
	params := url.Values{}
	params.Set("group_id", strconv.Itoa(c.groupID))
	params.Set("access_token", c.token)

	var out longPollServerResponse
	if err := c.get(ctx, buildQuery(methodBaseURL, "groups.getLongPollServer", params), &out); err != nil {
		return apperrors.NewTransportError("handshake", err)
	}
	if out.Error != nil {
		return apperrors.NewProtocolError("handshake", fmt.Errorf("vk error %d: %s", out.Error.ErrorCode, out.Error.ErrorMsg))
	}
	if out.Response.Server == "" || out.Response.Key == "" {
		return apperrors.NewProtocolError("handshake", fmt.Errorf("missing server/key in response"))
	}

	c.server = out.Response.Server
	c.key = out.Response.Key
	c.ts = out.Response.Ts
	c.log.Info().Str("server", c.server).Msg("long poll session established")
	return nil
}

type longPollUpdate struct {
	Type   string `json:"type"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			Text   string `json:"text"`
			ID     int64  `json:"id"`
			PeerID int64  `json:"peer_id"`
		} `json:"message"`
	} `json:"object"`
}

type longPollResponse struct {
	Ts      string           `json:"ts"`
	Updates []longPollUpdate `json:"updates"`
	Failed  int              `json:"failed"`
}

// LongPoll performs one a_check request and returns the parsed
// updates. A failed=2, failed=3 or unknown failed code drops the
// session and is surfaced as a *apperrors.ProtocolError, so the next
// LongPoll call re-handshakes; failed=1 only needs the returned ts,
// which LongPoll already applies internally.
func (c *Client) LongPoll(ctx context.Context) ([]ports.Update, error) {
	if c.server == "" || c.key == "" {
		if err := c.Handshake(ctx); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("act", "a_check")
	params.Set("key", c.key)
	params.Set("ts", c.ts)
	params.Set("wait", strconv.Itoa(int(c.wait.Seconds())))

	var out longPollResponse
	if err := c.get(ctx, buildQuery(c.server, "", params), &out); err != nil {
		return nil, apperrors.NewTransportError("longpoll", err)
	}

	switch out.Failed {
	case 0:
		c.ts = out.Ts
	case 1:
		c.ts = out.Ts
	case 2, 3:
		c.server, c.key, c.ts = "", "", ""
		return nil, apperrors.NewProtocolError("longpoll", fmt.Errorf("failed=%d, key/server expired", out.Failed))
	default:
		c.server, c.key, c.ts = "", "", ""
		return nil, apperrors.NewProtocolError("longpoll", fmt.Errorf("unexpected failed=%d", out.Failed))
	}

	updates := make([]ports.Update, 0, len(out.Updates))
	for _, u := range out.Updates {
		updates = append(updates, ports.Update{
			Type: u.Type,
			Message: ports.UpdateMessage{
				FromID: u.Object.Message.FromID,
				Text:   u.Object.Message.Text,
				ID:     u.Object.Message.ID,
				PeerID: u.Object.Message.PeerID,
			},
		})
	}
	return updates, nil
}

// randomID produces the random_id VK expects on messages.send: a
// collision-resistant int64 sourced from a fresh UUID rather than a
// hand-rolled counter, hashed down since random_id is a signed integer
// and a UUID is 128 bits.
func randomID() int64 {
	h := fnv.New64a()
	id := uuid.New()
	_, _ = h.Write(id[:])
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// SendMessage sends text with an optional keyboard to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard []byte) error {
	params := url.Values{}
	params.Set("random_id", strconv.FormatInt(randomID(), 10))
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message", text)
	params.Set("access_token", c.token)
	if len(keyboard) > 0 {
		params.Set("keyboard", string(keyboard))
	}

	var out struct {
		Error *vkAPIError `json:"error"`
	}
	if err := c.get(ctx, buildQuery(methodBaseURL, "messages.send", params), &out); err != nil {
		return apperrors.NewTransportError("send_message", err)
	}
	if out.Error != nil {
		return apperrors.NewTransportError("send_message", fmt.Errorf("vk error %d: %s", out.Error.ErrorCode, out.Error.ErrorMsg))
	}
	return nil
}

type conversationMembersResponse struct {
	Response struct {
		Profiles []struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"profiles"`
	} `json:"response"`
	Error *vkAPIError `json:"error"`
}

// FetchMembers returns the full roster of the chat identified by peerID.
func (c *Client) FetchMembers(ctx context.Context, peerID int64) ([]domain.User, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("fields", "id")
	params.Set("access_token", c.token)

	var out conversationMembersResponse
	if err := c.get(ctx, buildQuery(methodBaseURL, "messages.getConversationMembers", params), &out); err != nil {
		return nil, apperrors.NewTransportError("fetch_members", err)
	}
	if out.Error != nil {
		return nil, apperrors.NewTransportError("fetch_members", fmt.Errorf("vk error %d: %s", out.Error.ErrorCode, out.Error.ErrorMsg))
	}

	members := make([]domain.User, 0, len(out.Response.Profiles))
	for _, p := range out.Response.Profiles {
		members = append(members, domain.User{VkID: p.ID, Name: p.FirstName, LastName: p.LastName})
	}
	return members, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
