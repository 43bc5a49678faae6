/*
 * file: domain.go
 * package: domain
 * description:
 *     Defines the core domain entities of the application.
 *     These structs are shared across all layers, including database persistence
 *     (via GORM), business logic (services), and transport (DTOs).
 */

package domain

import "time"

// State is the per-game turn state. It is the enum form of the legacy
// "status_last_action" string column: the tag lives in Status, the raw
// guess/button text that produced the last transition lives in LastMessage.
type State string

const (
	StatePicking State = "picking"
	StateLetter  State = "letter"
	StateWord    State = "word"
	StateFinish  State = "finish"
)

// User represents a platform member. Created on first sighting in any
// chat and never deleted; TotalPoints is monotone non-decreasing.
type User struct {
	VkID        int64  `gorm:"primaryKey;column:vk_id" json:"vkId"`
	Name        string `gorm:"size:100;not null" json:"name"`
	LastName    string `gorm:"size:100;not null" json:"lastName"`
	TotalPoints int64  `gorm:"not null;default:0" json:"totalPoints"`
}

// Question is an immutable (question, answer) pair. AnswerText is
// compared case-insensitively; its characters form the active alphabet.
type Question struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestionText string `gorm:"not null" json:"questionText"`
	AnswerText   string `gorm:"not null" json:"answerText"`
}

// Game is one instance of a match in a chat. At most one Game per
// ChatID may have Status != StateFinish at any time.
type Game struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID          int64      `gorm:"not null;index" json:"chatId"`
	CreatedAt       time.Time  `gorm:"not null" json:"createdAt"`
	QuestionID      int64      `gorm:"not null" json:"questionId"`
	Question        Question   `gorm:"foreignKey:QuestionID" json:"question"`
	Status          State      `gorm:"size:20;not null" json:"status"`
	LastMessage     string     `gorm:"not null;default:''" json:"lastMessage"`
	TurnUserID      int64      `gorm:"not null" json:"turnUserId"`
	LettersRevealed string     `gorm:"not null;default:''" json:"lettersRevealed"`
	Players         []User      `gorm:"-" json:"players"`
	Scores          []GameScore `gorm:"foreignKey:GameID" json:"scores"`
}

// GameScore is the association row between a Game and a User: one per
// (game, user), carrying that user's points and elimination status in
// this game. Game.Players is populated from these rows by the Store,
// not through a GORM relation, since the join table also carries
// Points/UserIsActive rather than being a bare association.
type GameScore struct {
	GameID       int64 `gorm:"primaryKey;column:game_id" json:"gameId"`
	UserVkID     int64 `gorm:"primaryKey;column:user_vk_id" json:"userVkId"`
	User         User  `gorm:"foreignKey:UserVkID;references:VkID" json:"user"`
	Points       int64 `gorm:"not null;default:0" json:"points"`
	UserIsActive bool  `gorm:"not null;default:true" json:"userIsActive"`
}

func (GameScore) TableName() string { return "game_user" }
