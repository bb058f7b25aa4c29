package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vision-classifier/internal/container"
	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/log"
)

const (
	msgStart = `👋 Привет! Я бот-классификатор изображений.

📸 Отправьте мне фото, и я скажу, что на нём изображено.

📋 Команды:
/classify — классифицировать фото
/camera — включить или выключить камеру
/status — текущее состояние
/reload — перезагрузить модель
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото
2️⃣ Бот приведёт его к размеру 224×224 и прогонит через модель
3️⃣ Вы получите три самых вероятных класса

📷 /camera включает непрерывную классификацию с камеры,
пока камера включена, вы получаете её статусы.

📋 Команды:
/classify — классифицировать фото
/camera — камера вкл/выкл
/status — состояние
/reload — перезагрузить модель
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото для классификации."
	msgCancelled       = "❌ Операция отменена. Отправьте /classify для новой классификации."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото для классификации."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Классифицирую изображение..."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте другое фото."
	msgInvalidImage    = "⚠️ Не удалось прочитать изображение. Поддерживаются JPEG и PNG."
	msgBusy            = "⏳ Уже классифицирую другое фото, подождите."
	msgModelNotReady   = "⏳ Модель ещё загружается, попробуйте позже."
	msgCameraStarting  = "📷 Камера включается. Статусы камеры будут приходить сюда."
	msgCameraStopped   = "📷 Камера выключена."
	msgCameraDenied    = "🚫 Нет доступа к камере."
	msgCameraError     = "⚠️ Не удалось включить камеру."
	msgReloading       = "🔄 Перезагружаю модель..."
	msgReloadFailed    = "⚠️ Не удалось загрузить модель. Классификация недоступна до следующей перезагрузки."
)

// API описывает методы Telegram Bot API, которые использует бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api    API
	c      *container.Container
	client *http.Client
	logger *slog.Logger
}

// NewBot создаёт нового бота по токену
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot := New(api, c)
	bot.logger.Info("authorized", "account", api.Self.UserName)
	return bot, nil
}

// New создаёт бота поверх готового клиента API
func New(api API, c *container.Container) *Bot {
	return &Bot{
		api:    api,
		c:      c,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: log.With("component", "telegram"),
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	sub := b.c.Bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)

		case status, ok := <-sub.Statuses:
			if !ok {
				return nil
			}
			b.forwardStatus(ctx, status)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.c.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get user", "error", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "classify":
		if _, err := b.c.UserService.BeginClassify(ctx, user.ID, user.ChatID); err != nil {
			b.logger.Error("begin classify", "user_id", user.ID, "error", err)
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "camera":
		b.handleCamera(ctx, msg, user)

	case "reload":
		b.handleReload(ctx, msg)

	case "status":
		b.sendMessage(msg.Chat.ID, b.statusText())

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto классифицирует фото максимального разрешения
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	b.sendMessage(msg.Chat.ID, msgProcessing)

	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("download photo", "file_id", photo.FileID, "error", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.logger.Info("photo received", "user_id", msg.From.ID, "bytes", len(imageData))

	result, err := b.c.PhotoService.AcceptPhoto(ctx, msg.From.ID, msg.Chat.ID, imageData)
	if err != nil {
		b.logger.Warn("classify photo", "user_id", msg.From.ID, "error", err)
		b.sendMessage(msg.Chat.ID, classifyErrorText(err))
		return
	}

	b.sendMessage(msg.Chat.ID, resultText(result))
}

// handleCamera включает или выключает цикл камеры
func (b *Bot) handleCamera(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	started, err := b.c.Capture.Toggle(ctx)
	switch {
	case err == nil && started:
		if _, err := b.c.UserService.Watch(ctx, user.ID, user.ChatID); err != nil {
			b.logger.Error("watch camera", "user_id", user.ID, "error", err)
		}
		b.sendMessage(msg.Chat.ID, msgCameraStarting)

	case err == nil:
		if err := b.c.UserService.UnwatchAll(ctx); err != nil {
			b.logger.Error("unwatch camera", "error", err)
		}
		b.sendMessage(msg.Chat.ID, msgCameraStopped)

	case errors.Is(err, entity.ErrPermission):
		b.sendMessage(msg.Chat.ID, msgCameraDenied)

	case errors.Is(err, entity.ErrSessionNotReady):
		b.sendMessage(msg.Chat.ID, msgModelNotReady)

	default:
		b.logger.Error("toggle camera", "error", err)
		b.sendMessage(msg.Chat.ID, msgCameraError)
	}
}

// handleReload перезагружает модель из того же источника
func (b *Bot) handleReload(ctx context.Context, msg *tgbotapi.Message) {
	b.sendMessage(msg.Chat.ID, msgReloading)

	if err := b.c.Classifier.ReloadModel(ctx); err != nil {
		b.logger.Error("reload model", "error", err)
		b.sendMessage(msg.Chat.ID, msgReloadFailed)
		return
	}

	session := b.c.Sessions.Current()
	if session == nil {
		b.sendMessage(msg.Chat.ID, msgReloadFailed)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Модель перезагружена (версия %d, выход %q).", session.Version, session.OutputName))
}

// forwardStatus рассылает статусы камеры наблюдателям
func (b *Bot) forwardStatus(ctx context.Context, status entity.Status) {
	if !cameraStatus(status) {
		return
	}
	watchers, err := b.c.UserService.Watchers(ctx)
	if err != nil {
		b.logger.Error("list watchers", "error", err)
		return
	}
	for _, u := range watchers {
		b.sendMessage(u.ChatID, "📷 "+string(status))
	}
}

// cameraStatus отбирает статусы, интересные наблюдателю камеры
func cameraStatus(status entity.Status) bool {
	s := string(status)
	return strings.HasPrefix(s, "Camera") ||
		strings.HasPrefix(s, "Error:") ||
		status == entity.StatusModelWaiting ||
		status == entity.StatusCameraWaiting
}

func (b *Bot) statusText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Статус: %s\n", b.c.Bus.Status())
	fmt.Fprintf(&sb, "📷 Камера: %s\n", b.c.Capture.State())
	if session := b.c.Sessions.Current(); session != nil {
		fmt.Fprintf(&sb, "🧠 Модель: версия %d, выход %q, классов %d\n", session.Version, session.OutputName, session.NumClasses)
	} else {
		sb.WriteString("🧠 Модель: не загружена\n")
	}
	fmt.Fprintf(&sb, "🔖 Подписей классов: %d\n", len(b.c.Classifier.Labels()))
	if result := b.c.Bus.Result(); !result.Empty() {
		fmt.Fprintf(&sb, "🏷 Последний результат: %s", result)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resultText(result entity.ClassificationResult) string {
	var sb strings.Builder
	sb.WriteString("✅ Результат:\n")
	for i, p := range result.Predictions {
		fmt.Fprintf(&sb, "%d. %s — %.1f%%\n", i+1, p.Label, p.Probability*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func classifyErrorText(err error) string {
	switch {
	case errors.Is(err, entity.ErrBusy):
		return msgBusy
	case errors.Is(err, entity.ErrSessionNotReady):
		return msgModelNotReady
	case errors.Is(err, entity.ErrDecode), errors.Is(err, entity.ErrShape):
		return msgInvalidImage
	default:
		return msgProcessingError
	}
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	if _, err := b.c.UserService.SetState(ctx, user.ID, user.ChatID, state); err != nil {
		b.logger.Error("set user state", "user_id", user.ID, "state", state, "error", err)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}
