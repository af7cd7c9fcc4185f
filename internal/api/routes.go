package api

import (
	"whatsapp-inbox/internal/catalog"
	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/outbound"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the REST handlers need.
type Deps struct {
	DB         *gorm.DB
	Inbox      *inbox.Service
	Dispatcher *outbound.Dispatcher
	Syncer     *catalog.Syncer
}

// RegisterRoutes mounts the dashboard API on group (normally /api).
func RegisterRoutes(group *gin.RouterGroup, deps Deps) {
	businessHandler := NewBusinessHandler(deps.DB)
	conversationHandler := NewConversationHandler(deps.Inbox)
	contactHandler := NewContactHandler(deps.DB)
	messageHandler := NewMessageHandler(deps.Dispatcher)
	broadcastHandler := NewBroadcastHandler(deps.DB, deps.Dispatcher)
	quickReplyHandler := NewQuickReplyHandler(deps.DB)
	catalogHandler := NewCatalogHandler(deps.DB, deps.Syncer)

	group.GET("/businesses", businessHandler.ListBusinesses)
	group.POST("/businesses", businessHandler.CreateBusiness)

	b := group.Group("/businesses/:businessId", BusinessScope(deps.DB))
	{
		b.GET("", businessHandler.GetBusiness)

		b.GET("/conversations", conversationHandler.ListConversations)
		b.GET("/conversations/:conversationId", conversationHandler.GetConversation)
		b.GET("/conversations/:conversationId/messages", conversationHandler.GetMessages)
		b.PATCH("/conversations/:conversationId", conversationHandler.UpdateStatus)

		b.GET("/contacts", contactHandler.GetContacts)
		b.GET("/contacts/export", contactHandler.ExportContacts)
		b.PUT("/contacts/:contactId", contactHandler.UpdateContact)

		b.POST("/messages", messageHandler.SendMessage)

		b.GET("/broadcasts", broadcastHandler.GetBroadcasts)
		b.POST("/broadcasts", broadcastHandler.SendBroadcast)

		b.GET("/quick-replies", quickReplyHandler.GetQuickReplies)
		b.POST("/quick-replies", quickReplyHandler.CreateQuickReply)
		b.PUT("/quick-replies/:quickReplyId", quickReplyHandler.UpdateQuickReply)
		b.DELETE("/quick-replies/:quickReplyId", quickReplyHandler.DeleteQuickReply)

		b.GET("/products", catalogHandler.GetProducts)
		b.POST("/products", catalogHandler.CreateProduct)
		b.POST("/products/sync", catalogHandler.SyncPending)
		b.POST("/products/:productId/sync", catalogHandler.SyncProduct)
	}
}
