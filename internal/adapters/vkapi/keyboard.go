/*
 * file: keyboard.go
 * package: vkapi
 * description:
 *     Inline keyboard factories. Each returns the opaque JSON blob VK
 *     expects in the "keyboard" form parameter of messages.send.
 */

package vkapi

import "encoding/json"

type kbAction struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Label   string `json:"label"`
}

type kbButton struct {
	Action kbAction `json:"action"`
	Color  string   `json:"color"`
}

type keyboard struct {
	Inline  bool         `json:"inline"`
	Buttons [][]kbButton `json:"buttons"`
}

func button(label, payloadButton, color string) kbButton {
	return kbButton{
		Action: kbAction{
			Type:    "text",
			Payload: `{"button":"` + payloadButton + `"}`,
			Label:   label,
		},
		Color: color,
	}
}

func marshalKeyboard(rows [][]kbButton) []byte {
	b, err := json.Marshal(keyboard{Inline: true, Buttons: rows})
	if err != nil {
		// Only unmarshalable types (channels, funcs) cause this; the
		// keyboard literals in this file never do.
		panic(err)
	}
	return b
}

// PreviewKeyboard is shown before a game starts: Info / Start, then a
// leaderboard row.
func (c *Client) PreviewKeyboard() []byte {
	return marshalKeyboard([][]kbButton{
		{
			button("Инфо 🌍", "info", "positive"),
			button("Старт 🚀", "start", "positive"),
		},
		{
			button("Таблица Лидеров 🏆", "leaderboard", "positive"),
		},
	})
}

// DefaultKeyboard is a single "Бот отвечает" button, attached to the
// riddle announcement and to in-game replies that await typed input.
func (c *Client) DefaultKeyboard() []byte {
	return marshalKeyboard([][]kbButton{
		{
			button("Бот отвечает", "default", "primary"),
		},
	})
}

// GameKeyboard is shown to the turn-holder of an active game: choose a
// letter, a whole word, or stop.
func (c *Client) GameKeyboard() []byte {
	return marshalKeyboard([][]kbButton{
		{button("Выбрать букву 💬", "letter", "positive")},
		{button("Назвать слово 🗣", "word", "positive")},
		{button("Остановить игру ⛔", "stop", "negative")},
	})
}
