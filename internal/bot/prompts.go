package bot

// System prompt for free-form marketing questions.
const systemPrompt = `Ты — ассистент по маркетингу и бизнесу для предпринимателей малого бизнеса.
Отвечай практично и по делу, предлагай конкретные шаги и примеры.
Если вопрос не связан с маркетингом или бизнесом, вежливо верни разговор к этим темам.`

// Wrapper applied to the system prompt when knowledge base content matched
// the user's question.
const kbContextPrompt = `%s

Используй следующую информацию из базы знаний при ответе. Если информация
не относится к вопросу, отвечай на основе собственных знаний:

%s`

const startText = `👋 Здравствуйте! Я бот-ассистент по маркетингу и бизнесу.

Я помогу вам создать маркетинговые материалы и решить бизнес-задачи.
Отправьте /help, чтобы увидеть список возможностей, или просто задайте вопрос.`

const helpText = `🤖 Бот-ассистент по маркетингу и бизнесу

Я помогу вам создать маркетинговые материалы и решить бизнес-задачи:

📊 Основные возможности:
• Создание бизнес-планов
• Формирование ценностных предложений
• Маркетинговые советы и рекомендации
• Поиск информации в базе знаний

📝 Доступные команды:
/start - Начать работу с ботом
/business - Создать бизнес-план
/value - Создать ценностное предложение
/status - Показать статус подписки
/subscribe - Оформить подписку
/feedback - Отправить отзыв разработчикам
/cancel - Отменить текущую операцию
/help - Помощь по боту

⚡ Инлайн-режим: наберите @имя_бота и ваш запрос в любом чате,
чтобы получить быстрый совет, идею поста или ответ клиенту.

💡 Вы можете задать любой вопрос, и бот ответит с использованием доступных знаний.`

const businessPlanRequest = `📊 Создание бизнес-плана

Опишите ваш бизнес: чем занимаетесь, для кого работаете, какой у вас
бюджет и какие цели вы ставите. Чем подробнее описание, тем точнее
будет план.

Для отмены используйте команду /cancel`

const valuePropositionRequest = `💎 Создание ценностного предложения

Опишите ваш продукт или услугу, вашего клиента и проблему, которую вы
решаете.

Для отмены используйте команду /cancel`

// Headings of the generated business plan, in delivery order.
var businessPlanSections = []string{
	"1. Резюме проекта",
	"2. Описание продукта/услуги",
	"3. Анализ рынка",
	"4. Портрет целевой аудитории",
	"5. Конкурентный анализ",
	"6. Маркетинговая стратегия",
	"7. Финансовый план",
}

const businessPlanSystem = `Ты — эксперт по созданию бизнес-планов для предпринимателей.
Создай структурированный бизнес-план из %d разделов, пронумерованных
"1.", "2." и так далее, с такими заголовками:
%s
Каждый раздел начинай с новой строки с его номера и заголовка.`

const businessPlanUser = `Информация о бизнесе:
%s`

const valuePropositionSystem = `Ты — эксперт по маркетингу и ценностным предложениям.
Создай %d варианта ценностного предложения на основе информации о бизнесе.
Пронумеруй варианты "1.", "2.", "3.", каждый вариант начинай с новой строки.`

const valuePropositionUser = `Информация о продукте и клиенте:
%s`

const feedbackRequest = `📬 Обратная связь

Напишите ваши комментарии, пожелания или замечания по работе бота.
Сообщение будет отправлено разработчикам.

Для отмены используйте команду /cancel`

const feedbackAdminText = `📬 Получена обратная связь!

👤 От пользователя:
ID: %d
Имя: %s
Username: @%s

💬 Сообщение:
%s`

const feedbackThanksText = "Спасибо за вашу обратную связь! Ваше сообщение отправлено разработчикам."

const feedbackFailedText = "Произошла ошибка при отправке обратной связи. Пожалуйста, попробуйте позже."

const quotaExceededText = `🔒 Достигнут лимит сообщений

Вы использовали %d из %d доступных сообщений в тарифе "%s".

Для продолжения работы оформите подписку командой /subscribe.`

const genericErrorText = "Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."

const floodText = "Слишком много запросов. Подождите немного и повторите."
