/*
 * file: text.go
 * package: services
 * description:
 *     Literal chat copy and command/button labels. Labels and the
 *     riddle/turn/leaderboard phrasing mirror the original bot's
 *     strings; the rest follows the same register.
 */

package services

const (
	InfoCommand        = "Инфо 🌍"
	StartCommand       = "Старт 🚀"
	LeaderboardCommand = "Таблица Лидеров 🏆"

	LetterButton = "Выбрать букву 💬"
	WordButton   = "Назвать слово 🗣"
	StopButton   = "Остановить игру ⛔"
)

const (
	aboutGameText  = "Я бот для игры 'Поле чудес'. Нажмите Старт, чтобы начать новую игру в этом чате."
	wantToPlayText = "Хотите начать игру?"
	noQuestionsText = "Вопросов больше нет!"
	noOnePlayedText = "Пока никто не играл"
)

func riddleText(questionText string) string {
	return "Внимание, загадка! " + questionText + "?"
}

func turnPromptText(name, lastName string) string {
	return name + " " + lastName + " ваш ход, выберите букву или слово!"
}

func lastPlayerTurnText(name, lastName string) string {
	return name + " " + lastName + ", вы остались последним, назовите слово!"
}

func actionChosenText(action string) string {
	switch action {
	case LetterButton:
		return "выберите букву!"
	case WordButton:
		return "назовите слово!"
	default:
		return "выберите действие!"
	}
}

func chooseOneLetterText(name, lastName string) string {
	return name + " " + lastName + " выберите 1 букву!"
}

func letterNotFoundText(name string) string {
	return name + " такой буквы нет!"
}

func letterAlreadyRevealedText(name string) string {
	return name + " такая буква уже открыта!"
}

func chooseAgainText(display string) string {
	return display + ". Снова выберите букву или слово"
}

func nameAWordText(name, lastName string) string {
	return name + " " + lastName + " назовите слово!"
}

func userKickedText(name, lastName string) string {
	return name + " " + lastName + " неверно, вы исключены из игры!"
}

func victoryText(name, lastName, answer, leaderboard string) string {
	return name + " " + lastName + " поздравляю вы выиграли! " + answer + " верный ответ! " + leaderboard
}

func gameAbortedText(leaderboard string) string {
	return "Игра окончена. " + leaderboard
}
