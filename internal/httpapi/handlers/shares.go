package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apshuang/ShareDocs/internal/store"
)

type ShareHandler struct {
	documents *store.DocumentStore
	shares    *store.ShareStore
	users     *store.UserStore
}

func NewShareHandler(documents *store.DocumentStore, shares *store.ShareStore, users *store.UserStore) *ShareHandler {
	return &ShareHandler{documents: documents, shares: shares, users: users}
}

type createShareReq struct {
	Username   string `json:"username" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

// 分享管理只对文档所有者开放
func (h *ShareHandler) requireOwnedDoc(c *gin.Context) (*store.Document, bool) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return nil, false
	}

	doc, err := h.documents.GetDocument(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在"})
		return nil, false
	}
	if doc.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "只有文档所有者可以管理分享"})
		return nil, false
	}
	return doc, true
}

func (h *ShareHandler) Create(c *gin.Context) {
	doc, ok := h.requireOwnedDoc(c)
	if !ok {
		return
	}

	var req createShareReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "JSON格式错误", "detail": err.Error()})
		return
	}
	permission := store.PermissionType(req.Permission)
	if permission != store.PermissionRead && permission != store.PermissionEdit && permission != store.PermissionAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "无效的权限类型"})
		return
	}

	ctx := c.Request.Context()
	target, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "查询用户失败"})
		return
	}
	if target.ID == doc.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "不能分享给文档所有者"})
		return
	}

	share, created, err := h.shares.UpsertShare(ctx, doc.ID, target.ID, permission, c.GetUint64("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "分享失败"})
		return
	}

	status := http.StatusOK
	message := "分享权限已更新"
	if created {
		status = http.StatusCreated
		message = "分享成功"
	}
	c.JSON(status, gin.H{
		"success": true,
		"data": gin.H{
			"id":          share.ID,
			"document_id": share.DocumentID,
			"user_id":     share.UserID,
			"username":    target.Username,
			"permission":  share.Permission,
		},
		"message": message,
	})
}

func (h *ShareHandler) List(c *gin.Context) {
	doc, ok := h.requireOwnedDoc(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	shares, err := h.shares.ListShares(ctx, doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "获取分享列表失败"})
		return
	}

	list := make([]gin.H, 0, len(shares))
	for _, s := range shares {
		username := ""
		if u, err := h.users.GetByID(ctx, s.UserID); err == nil {
			username = u.Username
		}
		list = append(list, gin.H{
			"id":          s.ID,
			"document_id": s.DocumentID,
			"user_id":     s.UserID,
			"username":    username,
			"permission":  s.Permission,
			"created_at":  s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"shares": list}, "message": "获取成功"})
}

func (h *ShareHandler) Delete(c *gin.Context) {
	doc, ok := h.requireOwnedDoc(c)
	if !ok {
		return
	}

	shareID, err := strconv.ParseUint(c.Param("shareId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "无效的分享ID"})
		return
	}

	if err := h.shares.DeleteShare(c.Request.Context(), doc.ID, shareID); err != nil {
		if errors.Is(err, store.ErrShareNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "分享记录不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "取消分享失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "已取消分享"})
}
