package handler

import (
	"net/http"
	"strings"
	"time"

	"camaral-smart-go/internal/ratelimit"
	"camaral-smart-go/internal/service"
	"camaral-smart-go/pkg/log"
	"camaral-smart-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// web 渠道的渠道标识，用户在不同渠道各自维护会话流水。
const webChannelID = "web"

const (
	webRateLimitText = "您发送消息太频繁了，请稍后再试。"
	webErrorText     = "抱歉，服务暂时不可用，请稍后重试。"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 web 渠道的 WebSocket 聊天连接。
type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
	jwtManager          *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(
	chatService service.ChatService,
	conversationService service.ConversationService,
	jwtManager *token.JWTManager,
) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
		jwtManager:          jwtManager,
	}
}

// GetWebsocketToken 为已登录的操作员签发 WebSocket 连接用的 token。
// 浏览器的 WebSocket API 不能带自定义请求头，token 改走路径参数。
func (h *ChatHandler) GetWebsocketToken(c *gin.Context) {
	username := c.GetString("username")
	role := c.GetString("role")

	wsToken, err := h.jwtManager.GenerateToken(username, role)
	if err != nil {
		log.Errorf("GetWebsocketToken: Failed to generate token for '%s': %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成 token 失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"wsToken": wsToken},
	})
}

// wsReply 是写回 WebSocket 的统一消息格式。
type wsReply struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Handle 处理一个传入的 WebSocket 连接。
// 路径参数 token 是登录接口签发的 JWT，浏览器的 WebSocket API 不能带自定义请求头。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	userID := claims.Username
	log.Infof("WebSocket 连接已建立，用户: %s", userID)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		text := strings.TrimSpace(string(message))
		if text == "" {
			continue
		}

		if !ratelimit.Default().CheckAndRecord(userID, webChannelID) {
			h.write(conn, "error", webRateLimitText)
			continue
		}

		ctx := c.Request.Context()
		conversationID, err := h.conversationService.Resolve(ctx, userID, webChannelID)
		if err != nil {
			log.Errorf("解析会话失败 (user=%s): %v", userID, err)
			h.write(conn, "error", webErrorText)
			continue
		}

		reply, err := h.chatService.Respond(ctx, userID, webChannelID, conversationID, text)
		if err != nil {
			log.Errorf("生成回复失败 (user=%s, conversation=%s): %v", userID, conversationID, err)
			h.write(conn, "error", webErrorText)
			continue
		}

		h.write(conn, "reply", reply)
	}
}

func (h *ChatHandler) write(conn *websocket.Conn, msgType, content string) {
	reply := wsReply{Type: msgType, Content: content, Timestamp: time.Now().UnixMilli()}
	if err := conn.WriteJSON(reply); err != nil {
		log.Warnf("写 WebSocket 消息失败: %v", err)
	}
}
