package session

// noMatchPreamble opens the first clarifying reply of a conversation.
const noMatchPreamble = "По вашему запросу не удалось найти достаточно подходящих товаров."

// initialPrompts are the clarifying questions for a fresh ambiguous query.
// Which one is shown is arbitrary; the choice never affects outcome data.
var initialPrompts = []string{
	"Пожалуйста, уточните: какие характеристики товара для вас наиболее важны (например, цвет, размер, материал, бренд)?",
	"Не могли бы вы подробнее описать, что именно ищете? Укажите, пожалуйста, предпочтения по стилю, цене или функционалу",
	"Чтобы подобрать для вас оптимальный товар, сообщите, пожалуйста, дополнительные детали: желаемый бренд, ценовой диапазон или особенности",
	"Опишите, пожалуйста, какие критерии для вас являются приоритетными: качество, цвет, размер или дополнительные функции",
	"Уточните, пожалуйста, какие именно параметры вас интересуют, чтобы я смог найти товар, максимально соответствующий вашим ожиданиям",
}

// followupPrompts are shown when the combined query still finds nothing.
var followupPrompts = []string{
	"По комбинированному запросу товаров не найдено. Попробуйте указать, какие параметры для вас наиболее важны (например, цвет, размер, материал или бренд)",
	"Не удалось найти подходящие товары по вашему уточнению. Опишите, пожалуйста, подробнее, что именно вы ищете, и какие характеристики для вас приоритетны",
	"Комбинированный запрос не дал результатов. Уточните, пожалуйста, дополнительные детали, такие как стиль, бренд или желаемый ценовой диапазон",
	"Похоже, что результата недостаточно. Сообщите, пожалуйста, дополнительные параметры (например, функционал, материал или размер), чтобы найти лучший вариант",
	"По вашему уточнению товаров не найдено. Попробуйте подробнее описать, что именно вам нужно: укажите, какие характеристики для вас важны",
}
