package authoring

import "fmt"

// Supported display languages. The language is a per-session setting,
// never a process-wide one.
const (
	LangEN = "en"
	LangRU = "ru"
)

// catalog maps stable message keys to display strings. Intent
// recognition never depends on these, commands are dispatched on
// language-independent identifiers.
var catalog = map[string]map[string]string{
	LangEN: {
		"start":               "Hi! I keep time capsules: bundle texts, photos and more, pick recipients and a date, and I will deliver everything on time.",
		"help":                "Create a capsule, fill it with content, add recipients and choose a delivery date. Drafts can be sent at any moment with the send command.",
		"enter_title":         "What is the title of your capsule?",
		"enter_content":       "Capsule «%s» started. Send me texts, photos, videos, audio, documents, stickers or voice messages. Press Finish when done.",
		"added_text":          "Text added.",
		"added_sticker":       "Sticker added.",
		"added_photo":         "Photo added.",
		"added_document":      "Document added.",
		"added_voice":         "Voice message added.",
		"added_video":         "Video added.",
		"added_audio":         "Audio added.",
		"content_empty":       "The capsule is still empty, add at least one item.",
		"enter_recipients":    "Who should receive it? Send usernames separated by spaces, e.g. @alice @bob.",
		"recipients_added":    "Recipients saved: %s.",
		"recipients_empty":    "I could not find any username in there, try again.",
		"choose_date":         "When should it be delivered?",
		"enter_custom_date":   "Send the date and time, e.g. 17.03.2027 12:00:00.",
		"invalid_date":        "I could not read that date, use a format like 17.03.2027 12:00:00.",
		"date_in_past":        "That moment is already gone, pick a date in the future.",
		"date_set":            "Scheduled. The capsule will be delivered on %s.",
		"draft_saved":         "Saved as a draft. Use the send command whenever you are ready.",
		"enter_number":        "Which capsule? Send its number.",
		"invalid_number":      "That is not a capsule number, send a plain number like 2.",
		"not_your_capsule":    "You do not have a capsule with this number.",
		"your_capsules":       "Your capsules:",
		"no_capsules":         "You have no capsules yet.",
		"capsule_line":        "📦 #%d %s — %s",
		"status_scheduled":    "scheduled for %s",
		"status_draft":        "draft",
		"recipients_list":     "Recipients of capsule #%d:\n%s",
		"no_recipients":       "This capsule has no recipients yet, add some first.",
		"confirm_delete":      "Delete capsule #%d «%s» for good?",
		"confirm_send":        "Send capsule #%d «%s» right now?",
		"preview.sticker":     "🎟 Stickers: %d",
		"preview.photo":       "📷 Photos: %d",
		"preview.document":    "📄 Documents: %d",
		"preview.voice":       "🎤 Voice messages: %d",
		"preview.video":       "🎬 Videos: %d",
		"preview.audio":       "🎵 Audio tracks: %d",
		"capsule_deleted":     "Capsule deleted.",
		"capsule_sent":        "Capsule sent.",
		"capsule_corrupt":     "This capsule cannot be opened anymore. It was kept for inspection.",
		"choose_edit_field":   "What do you want to change?",
		"enter_new_title":     "Send the new title.",
		"enter_new_content":   "Send an item to append to the capsule.",
		"capsule_updated":     "Capsule updated.",
		"cancelled":           "Cancelled.",
		"language_changed":    "Language switched to English.",
		"choose_language":     "Choose a language.",
		"unexpected_input":    "I did not expect that here. Starting over, pick a command from the menu.",
		"service_unavailable": "The service is temporarily unavailable, please try again later.",

		// Choice labels.
		"btn.create":         "📦 New capsule",
		"btn.list":           "📂 My capsules",
		"btn.send":           "📨 Send now",
		"btn.delete":         "🗑 Delete",
		"btn.edit":           "✏️ Edit",
		"btn.recipients":     "👥 Recipients",
		"btn.schedule":       "📅 Delivery date",
		"btn.add_recipients": "👤 Add recipients",
		"btn.help":           "❓ Help",
		"btn.language":       "🌐 Language",
		"btn.continue":       "Add more",
		"btn.finish":         "Finish",
		"btn.yes":            "Yes",
		"btn.no":             "No",
		"btn.offset:day":     "In a day",
		"btn.offset:week":    "In a week",
		"btn.offset:month":   "In a month",
		"btn.offset:year":    "In a year",
		"btn.custom":         "Pick a date",
		"btn.draft":          "Keep as draft",
		"btn.title":          "Title",
		"btn.content":        "Content",
		"btn.language:en":    "English",
		"btn.language:ru":    "Русский",
	},
	LangRU: {
		"start":               "Привет! Я храню капсулы времени: собери тексты, фото и не только, выбери получателей и дату — я доставлю всё вовремя.",
		"help":                "Создай капсулу, наполни её содержимым, добавь получателей и выбери дату отправки. Черновик можно отправить в любой момент командой отправки.",
		"enter_title":         "Как назовём капсулу?",
		"enter_content":       "Капсула «%s» создана. Присылай тексты, фото, видео, аудио, документы, стикеры или голосовые. Нажми «Готово», когда закончишь.",
		"added_text":          "Текст добавлен.",
		"added_sticker":       "Стикер добавлен.",
		"added_photo":         "Фото добавлено.",
		"added_document":      "Документ добавлен.",
		"added_voice":         "Голосовое добавлено.",
		"added_video":         "Видео добавлено.",
		"added_audio":         "Аудио добавлено.",
		"content_empty":       "Капсула пока пуста, добавь хотя бы один элемент.",
		"enter_recipients":    "Кому отправить? Пришли имена через пробел, например @alice @bob.",
		"recipients_added":    "Получатели сохранены: %s.",
		"recipients_empty":    "Не вижу ни одного имени, попробуй ещё раз.",
		"choose_date":         "Когда доставить капсулу?",
		"enter_custom_date":   "Пришли дату и время, например 17.03.2027 12:00:00.",
		"invalid_date":        "Не получилось разобрать дату, пример: 17.03.2027 12:00:00.",
		"date_in_past":        "Этот момент уже прошёл, выбери дату в будущем.",
		"date_set":            "Готово. Капсула будет доставлена %s.",
		"draft_saved":         "Сохранено как черновик. Отправить можно в любой момент.",
		"enter_number":        "Какая капсула? Пришли её номер.",
		"invalid_number":      "Это не номер капсулы, пришли просто число, например 2.",
		"not_your_capsule":    "У тебя нет капсулы с таким номером.",
		"your_capsules":       "Твои капсулы:",
		"no_capsules":         "У тебя пока нет капсул.",
		"capsule_line":        "📦 #%d %s — %s",
		"status_scheduled":    "отправка %s",
		"status_draft":        "черновик",
		"recipients_list":     "Получатели капсулы #%d:\n%s",
		"no_recipients":       "У этой капсулы пока нет получателей, сначала добавь их.",
		"confirm_delete":      "Удалить капсулу #%d «%s» безвозвратно?",
		"confirm_send":        "Отправить капсулу #%d «%s» прямо сейчас?",
		"preview.sticker":     "🎟 Стикеры: %d",
		"preview.photo":       "📷 Фото: %d",
		"preview.document":    "📄 Документы: %d",
		"preview.voice":       "🎤 Голосовые: %d",
		"preview.video":       "🎬 Видео: %d",
		"preview.audio":       "🎵 Аудио: %d",
		"capsule_deleted":     "Капсула удалена.",
		"capsule_sent":        "Капсула отправлена.",
		"capsule_corrupt":     "Эту капсулу больше нельзя открыть. Она сохранена для разбора.",
		"choose_edit_field":   "Что изменить?",
		"enter_new_title":     "Пришли новое название.",
		"enter_new_content":   "Пришли элемент, который добавить в капсулу.",
		"capsule_updated":     "Капсула обновлена.",
		"cancelled":           "Отменено.",
		"language_changed":    "Язык переключён на русский.",
		"choose_language":     "Выбери язык.",
		"unexpected_input":    "Я не ожидал этого здесь. Начнём заново, выбери команду из меню.",
		"service_unavailable": "Сервис временно недоступен, попробуй позже.",

		// Choice labels.
		"btn.create":         "📦 Создать капсулу",
		"btn.list":           "📂 Просмотреть капсулы",
		"btn.send":           "📨 Отправить капсулу",
		"btn.delete":         "🗑 Удалить капсулу",
		"btn.edit":           "✏️ Редактировать капсулу",
		"btn.recipients":     "👥 Просмотреть получателей",
		"btn.schedule":       "📅 Установить дату отправки",
		"btn.add_recipients": "👤 Добавить получателя",
		"btn.help":           "❓ Помощь",
		"btn.language":       "🌐 Язык",
		"btn.continue":       "Добавить ещё",
		"btn.finish":         "Готово",
		"btn.yes":            "Да",
		"btn.no":             "Нет",
		"btn.offset:day":     "Через день",
		"btn.offset:week":    "Через неделю",
		"btn.offset:month":   "Через месяц",
		"btn.offset:year":    "Через год",
		"btn.custom":         "Выбрать дату",
		"btn.draft":          "Оставить черновиком",
		"btn.title":          "Название",
		"btn.content":        "Содержимое",
		"btn.language:en":    "English",
		"btn.language:ru":    "Русский",
	},
}

// T resolves a message by key for the given language, formatting args
// in. Unknown languages fall back to English, unknown keys to the key
// itself so a missing string stays visible instead of crashing a turn.
func T(lang, key string, args ...any) string {
	strings, ok := catalog[lang]
	if !ok {
		strings = catalog[LangEN]
	}

	format, ok := strings[key]
	if !ok {
		format = catalog[LangEN][key]
	}
	if format == "" {
		return key
	}

	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
