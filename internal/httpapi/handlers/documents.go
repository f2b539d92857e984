package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apshuang/ShareDocs/internal/collab"
	"github.com/apshuang/ShareDocs/internal/op"
	"github.com/apshuang/ShareDocs/internal/store"
	"github.com/apshuang/ShareDocs/internal/ws"
)

type DocumentHandler struct {
	documents *store.DocumentStore
	shares    *store.ShareStore
	contents  *store.FileContentStore
	oplog     *store.OperationStore
	svc       collab.Service
	hub       *ws.Hub
}

func NewDocumentHandler(documents *store.DocumentStore, shares *store.ShareStore, contents *store.FileContentStore, oplog *store.OperationStore, svc collab.Service, hub *ws.Hub) *DocumentHandler {
	return &DocumentHandler{documents: documents, shares: shares, contents: contents, oplog: oplog, svc: svc, hub: hub}
}

type createDocumentReq struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

type updateDocumentReq struct {
	Title *string `json:"title"`
}

func docIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "无效的文档ID"})
		return 0, false
	}
	return id, true
}

func (h *DocumentHandler) Create(c *gin.Context) {
	userID := c.GetUint64("userId")

	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "JSON格式错误", "detail": err.Error()})
		return
	}

	doc, err := h.documents.CreateDocument(c.Request.Context(), userID, req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "创建文档失败"})
		return
	}
	if err := h.contents.WriteContent(doc.ID, req.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "写入文档内容失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"id":              doc.ID,
			"title":           doc.Title,
			"owner_id":        doc.OwnerID,
			"current_version": doc.CurrentVersion,
			"created_at":      doc.CreatedAt,
			"updated_at":      doc.UpdatedAt,
		},
		"message": "文档创建成功",
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID := c.GetUint64("userId")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	search := c.Query("search")

	docs, total, err := h.documents.ListDocuments(c.Request.Context(), userID, page, pageSize, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "获取文档列表失败"})
		return
	}

	items := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		permission := h.shares.GetUserPermission(c.Request.Context(), &doc, userID)
		items = append(items, gin.H{
			"id":              doc.ID,
			"title":           doc.Title,
			"owner_id":        doc.OwnerID,
			"is_owner":        doc.OwnerID == userID,
			"permission":      permission,
			"current_version": doc.CurrentVersion,
			"created_at":      doc.CreatedAt,
			"updated_at":      doc.UpdatedAt,
		})
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"items":       items,
			"total":       total,
			"page":        page,
			"page_size":   pageSize,
			"total_pages": totalPages,
		},
		"message": "获取成功",
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在或无权访问"})
		return
	}
	if !h.shares.HasDocumentAccess(ctx, doc, userID, store.PermissionRead) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在或无权访问"})
		return
	}

	// 经过协作引擎读，未落盘的在编内容也能取到
	content, revision, err := h.svc.LoadDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "读取文档内容失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":              doc.ID,
			"title":           doc.Title,
			"owner_id":        doc.OwnerID,
			"content":         content,
			"current_version": revision,
			"permission":      h.shares.GetUserPermission(ctx, doc, userID),
			"created_at":      doc.CreatedAt,
			"updated_at":      doc.UpdatedAt,
		},
		"message": "获取成功",
	})
}

func (h *DocumentHandler) Update(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}

	var req updateDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "JSON格式错误", "detail": err.Error()})
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在"})
		return
	}
	if doc.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "只有文档所有者可以修改标题"})
		return
	}

	if req.Title != nil {
		if err := h.documents.UpdateTitle(ctx, docID, *req.Title); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "更新失败"})
			return
		}
		doc.Title = *req.Title
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"id": doc.ID, "title": doc.Title},
		"message": "更新成功",
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在"})
		return
	}
	if doc.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "只有文档所有者可以删除文档"})
		return
	}

	if err := h.documents.DeleteDocument(ctx, docID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "删除失败"})
		return
	}
	if err := h.contents.RemoveContent(docID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "删除文档内容失败"})
		return
	}
	if forgetter, ok := h.svc.(interface{ Forget(uint64) }); ok {
		forgetter.Forget(docID)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "文档删除成功"})
}

// SubmitOperation 处理 POST /api/documents/:id/operations。
// 版本门控的提交入口：接受则应用+版本+1+广播（含提交者），
// base_version 不一致返回 409，由客户端重新同步后再提交。
func (h *DocumentHandler) SubmitOperation(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}

	var operation op.Operation
	if err := c.ShouldBindJSON(&operation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "JSON格式错误", "detail": err.Error()})
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在"})
		return
	}
	if !h.shares.HasDocumentAccess(ctx, doc, userID, store.PermissionEdit) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "无权编辑此文档"})
		return
	}

	applied, err := h.svc.Submit(ctx, docID, userID, operation)
	if err != nil {
		switch {
		case errors.Is(err, collab.ErrVersionConflict):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "版本冲突", "detail": err.Error()})
		case errors.Is(err, op.ErrInvalidRange), errors.Is(err, op.ErrMissingContent), errors.Is(err, op.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "操作应用失败", "detail": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "操作应用失败"})
		}
		return
	}

	h.hub.BroadcastOperation(docID, ws.OperationAppliedPayload{
		DocumentID: docID,
		UserID:     userID,
		Operation:  operation,
		Version:    applied.Revision,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"version":   applied.Revision,
			"operation": operation,
		},
		"message": "操作应用成功",
	})
}

func (h *DocumentHandler) ListEditors(c *gin.Context) {
	userID := c.GetUint64("userId")
	docID, ok := docIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.documents.GetDocument(ctx, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在或无权访问"})
		return
	}
	if !h.shares.HasDocumentAccess(ctx, doc, userID, store.PermissionRead) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "文档不存在或无权访问"})
		return
	}

	editors, err := h.oplog.ListEditors(ctx, docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "获取编辑者失败"})
		return
	}

	list := make([]gin.H, 0, len(editors))
	for _, e := range editors {
		list = append(list, gin.H{
			"user_id":        e.UserID,
			"username":       e.Username,
			"color":          e.Color,
			"last_edit_time": e.LastEditTime,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"editors":      list,
			"last_updated": doc.UpdatedAt,
		},
		"message": "获取成功",
	})
}
