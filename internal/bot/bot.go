// Package bot 实现 Telegram 渠道的接入：长轮询拉取消息并逐条应答。
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"camaral-smart-go/internal/ratelimit"
	"camaral-smart-go/internal/service"
	"camaral-smart-go/pkg/log"
	"camaral-smart-go/pkg/telegram"
)

// ChannelID 是 Telegram 渠道的渠道标识。
const ChannelID = "telegram"

const (
	rateLimitText = "您发送消息太频繁了，请稍后再试。"
	errorText     = "抱歉，我这边出了点问题，请稍后再试。"
)

// Bot 封装 Telegram 长轮询循环和消息处理。
type Bot struct {
	client              *telegram.Client
	chatService         service.ChatService
	conversationService service.ConversationService
	pollTimeoutSeconds  int
}

// New 创建一个新的 Bot 实例。
func New(
	client *telegram.Client,
	chatService service.ChatService,
	conversationService service.ConversationService,
	pollTimeoutSeconds int,
) *Bot {
	if pollTimeoutSeconds <= 0 {
		pollTimeoutSeconds = 30
	}
	return &Bot{
		client:              client,
		chatService:         chatService,
		conversationService: conversationService,
		pollTimeoutSeconds:  pollTimeoutSeconds,
	}
}

// Run 启动长轮询循环，直到 ctx 被取消。
func (b *Bot) Run(ctx context.Context) {
	log.Info("[Bot] Telegram 长轮询已启动")
	var offset int64

	for {
		select {
		case <-ctx.Done():
			log.Info("[Bot] Telegram 长轮询已停止")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("[Bot] Telegram 长轮询已停止")
				return
			}
			log.Errorf("[Bot] 拉取更新失败: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go b.handleUpdate(update)
		}
	}
}

// handleUpdate 处理单条更新。非文本消息直接忽略。
func (b *Bot) handleUpdate(update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID
	ctx := context.Background()

	if !ratelimit.Default().CheckAndRecord(userID, ChannelID) {
		b.send(ctx, chatID, rateLimitText)
		return
	}

	conversationID, err := b.conversationService.Resolve(ctx, userID, ChannelID)
	if err != nil {
		log.Errorf("[Bot] 解析会话失败 (user=%s): %v", userID, err)
		b.send(ctx, chatID, errorText)
		return
	}

	reply, err := b.chatService.Respond(ctx, userID, ChannelID, conversationID, text)
	if err != nil {
		log.Errorf("[Bot] 生成回复失败 (user=%s, conversation=%s): %v", userID, conversationID, err)
		b.send(ctx, chatID, errorText)
		return
	}

	b.send(ctx, chatID, reply)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.client.SendMessage(ctx, chatID, text); err != nil {
		log.Errorf("[Bot] 发送消息失败 (chat=%d): %v", chatID, err)
	}
}
