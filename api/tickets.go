package api

import (
	"errors"
	"net/http"
	"strconv"

	"backend_taskly/middleware"
	"backend_taskly/models"
	"backend_taskly/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TicketsAPI управляет API для тикетов и предложений по доработкам
type TicketsAPI struct {
	DB        *gorm.DB
	Tickets   *services.TicketService
	Proposals *services.ProposalService
}

// NewTicketsAPI создает новый экземпляр TicketsAPI
func NewTicketsAPI(db *gorm.DB, tickets *services.TicketService, proposals *services.ProposalService) *TicketsAPI {
	return &TicketsAPI{DB: db, Tickets: tickets, Proposals: proposals}
}

// TicketRequest структура для создания тикета
type TicketRequest struct {
	Subject  string `json:"subject" binding:"required,min=1,max=200"`
	Body     string `json:"body,omitempty"`
	Type     string `json:"type,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// ProposalRequest структура для подачи предложения по доработке
type ProposalRequest struct {
	ModuleID       uint            `json:"module_id" binding:"required"`
	EstimatedPrice decimal.Decimal `json:"estimated_price" binding:"required"`
	EstimatedDays  int             `json:"estimated_days" binding:"required"`
}

// RegisterTicketsRoutes регистрирует маршруты для управления тикетами
func (api *TicketsAPI) RegisterTicketsRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	tickets := r.Group("/tickets")
	{
		tickets.GET("", api.GetTickets)
		tickets.POST("", api.CreateTicket)
		tickets.GET("/:id", api.GetTicket)
		tickets.PUT("/:id/status", api.ChangeTicketStatus)
		tickets.POST("/:id/comments", api.AddComment)
		tickets.GET("/:id/history", api.GetStatusHistory)
	}

	// Решение по предложению принимает компания, а не администратор
	proposals := r.Group("/proposals")
	{
		proposals.PUT("/:id/approve", api.ApproveProposal)
		proposals.PUT("/:id/reject", api.RejectProposal)
	}

	adminProposals := admin.Group("/proposals")
	{
		adminProposals.GET("", api.GetProposals)
		adminProposals.POST("/tickets/:ticket_id", api.SubmitProposal)
		adminProposals.GET("/unbilled", api.GetUnbilledProposals)
	}
}

// loadProposalForDecision загружает предложение и проверяет доступ компании к
// тикету предложения. Возвращает nil, если ответ уже записан.
func (api *TicketsAPI) loadProposalForDecision(c *gin.Context) *models.TicketProposal {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return nil
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID предложения",
		})
		return nil
	}

	var proposal models.TicketProposal
	if err := api.DB.Preload("Ticket").First(&proposal, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Предложение не найдено",
			})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения предложения: " + err.Error(),
		})
		return nil
	}

	if proposal.Ticket == nil || !authCtx.CanAccessCompany(proposal.Ticket.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к предложениям этой компании",
		})
		return nil
	}

	return &proposal
}

// GetTickets получает список тикетов текущей компании
func (api *TicketsAPI) GetTickets(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset := (page - 1) * limit

	query := api.DB.Model(&models.Ticket{})

	// Администратор видит тикеты всех компаний
	if !authCtx.IsAdmin() {
		query = query.Where("company_id = ?", authCtx.CompanyID)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if ticketType := c.Query("type"); ticketType != "" {
		query = query.Where("type = ?", ticketType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка подсчета тикетов: " + err.Error(),
		})
		return
	}

	var tickets []models.Ticket
	if err := query.Preload("Proposal").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&tickets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тикетов: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"tickets": tickets,
			"pagination": gin.H{
				"current_page": page,
				"total_pages":  (total + int64(limit) - 1) / int64(limit),
				"total_items":  total,
				"per_page":     limit,
			},
		},
	})
}

// CreateTicket создает новый тикет
func (api *TicketsAPI) CreateTicket(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	ticket, err := api.Tickets.CreateTicket(authCtx.CompanyID, req.Subject, req.Body, req.Type, req.Priority, authCtx.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка создания тикета: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   ticket,
	})
}

// GetTicket получает тикет по ID с предложением и комментариями
func (api *TicketsAPI) GetTicket(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	id := c.Param("id")

	var ticket models.Ticket
	if err := api.DB.Preload("Proposal").Preload("Comments").
		Where("id = ?", id).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "Тикет не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения тикета: " + err.Error(),
		})
		return
	}

	if authCtx == nil || !authCtx.CanAccessCompany(ticket.CompanyID) {
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"error":  "Нет доступа к тикетам этой компании",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   ticket,
	})
}

// ChangeTicketStatus переводит тикет в новый статус с записью в историю
func (api *TicketsAPI) ChangeTicketStatus(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID тикета",
		})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	ticket, err := api.Tickets.ChangeStatus(uint(id), req.Status, authCtx.UserID, req.Note)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Ошибка смены статуса: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   ticket,
	})
}

// AddComment добавляет комментарий к тикету
func (api *TicketsAPI) AddComment(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID тикета",
		})
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	comment, err := api.Tickets.AddComment(uint(id), authCtx.UserID, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка добавления комментария: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   comment,
	})
}

// GetStatusHistory возвращает историю смены статусов тикета
func (api *TicketsAPI) GetStatusHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID тикета",
		})
		return
	}

	history, err := api.Tickets.GetStatusHistory(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения истории: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   history,
	})
}

// GetProposals получает список предложений по доработкам
func (api *TicketsAPI) GetProposals(c *gin.Context) {
	query := api.DB.Model(&models.TicketProposal{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var proposals []models.TicketProposal
	if err := query.Preload("Ticket").Preload("Module").
		Order("created_at DESC").Find(&proposals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения предложений: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   proposals,
	})
}

// SubmitProposal подает предложение по доработке для feature-тикета
func (api *TicketsAPI) SubmitProposal(c *gin.Context) {
	authCtx := middleware.GetAuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Требуется аутентификация",
		})
		return
	}

	ticketID, err := strconv.ParseUint(c.Param("ticket_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный ID тикета",
		})
		return
	}

	var req ProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректные данные: " + err.Error(),
		})
		return
	}

	proposal, err := api.Proposals.SubmitProposal(uint(ticketID), req.ModuleID, req.EstimatedPrice, req.EstimatedDays, authCtx.UserID)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrProposalExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"status": "error",
			"error":  "Ошибка подачи предложения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   proposal,
	})
}

// ApproveProposal одобряет предложение от имени компании и сразу выставляет счет
func (api *TicketsAPI) ApproveProposal(c *gin.Context) {
	found := api.loadProposalForDecision(c)
	if found == nil {
		return
	}

	authCtx := middleware.GetAuthContext(c)
	proposal, err := api.Proposals.ApproveProposal(found.ID, authCtx.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrProposalNotPending) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"status": "error",
			"error":  "Ошибка одобрения предложения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   proposal,
	})
}

// RejectProposal отклоняет предложение от имени компании
func (api *TicketsAPI) RejectProposal(c *gin.Context) {
	found := api.loadProposalForDecision(c)
	if found == nil {
		return
	}

	authCtx := middleware.GetAuthContext(c)
	proposal, err := api.Proposals.RejectProposal(found.ID, authCtx.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrProposalNotPending) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"status": "error",
			"error":  "Ошибка отклонения предложения: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   proposal,
	})
}

// GetUnbilledProposals возвращает одобренные предложения без счета
func (api *TicketsAPI) GetUnbilledProposals(c *gin.Context) {
	proposals, err := api.Proposals.GetUnbilledProposals()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка получения предложений: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   proposals,
	})
}
