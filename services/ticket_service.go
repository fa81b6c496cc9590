package services

import (
	"fmt"
	"time"

	"backend_taskly/models"

	"gorm.io/gorm"
)

// Количество попыток генерации уникального кода тикета
const ticketCodeAttempts = 5

// TicketService управляет тикетами поддержки и их статусами
type TicketService struct {
	db *gorm.DB
}

// NewTicketService создает новый экземпляр TicketService
func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// CreateTicket создает тикет с кодом вида TCK-YYYYMMDD-NNNN, где NNNN —
// порядковый номер за день
func (ts *TicketService) CreateTicket(companyID uint, subject, body, ticketType, priority string, createdBy uint) (*models.Ticket, error) {
	if subject == "" {
		return nil, fmt.Errorf("тема тикета обязательна")
	}
	if ticketType != models.TicketTypeBug && ticketType != models.TicketTypeFeature {
		return nil, fmt.Errorf("неизвестный тип тикета: %s", ticketType)
	}
	if priority == "" {
		priority = models.TicketPriorityMedium
	}

	ticket := &models.Ticket{
		CompanyID: companyID,
		Subject:   subject,
		Body:      body,
		Type:      ticketType,
		Priority:  priority,
		Status:    models.TicketStatusOpen,
		CreatedBy: createdBy,
	}

	// Порядковый номер за день с повторами на случай гонки за код
	for attempt := 0; attempt < ticketCodeAttempts; attempt++ {
		dayStart := time.Now().Truncate(24 * time.Hour)

		var count int64
		if err := ts.db.Model(&models.Ticket{}).
			Where("created_at >= ?", dayStart).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("ошибка подсчета тикетов за день: %w", err)
		}

		ticket.Code = models.GenerateTicketCode(time.Now(), int(count)+1+attempt)

		err := ts.db.Create(ticket).Error
		if err == nil {
			return ticket, nil
		}

		if !isDuplicateKeyError(err) {
			return nil, fmt.Errorf("ошибка создания тикета: %w", err)
		}

		ticket.ID = 0
	}

	return nil, fmt.Errorf("не удалось сгенерировать уникальный код тикета за %d попыток", ticketCodeAttempts)
}

// ChangeStatus переводит тикет в новый статус с записью в журнал аудита.
// Журнал только пополняется, существующие записи не изменяются.
func (ts *TicketService) ChangeStatus(ticketID uint, toStatus string, changedBy uint, note string) (*models.Ticket, error) {
	var ticket models.Ticket

	err := ts.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			First(&ticket, ticketID).Error; err != nil {
			return fmt.Errorf("тикет не найден: %w", err)
		}

		if ticket.Status == toStatus {
			return fmt.Errorf("тикет уже в статусе %s", toStatus)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": toStatus}
		switch toStatus {
		case models.TicketStatusResolved:
			updates["resolved_at"] = &now
		case models.TicketStatusClosed:
			updates["closed_at"] = &now
		}

		fromStatus := ticket.Status
		if err := tx.Model(&ticket).Updates(updates).Error; err != nil {
			return fmt.Errorf("ошибка обновления статуса тикета: %w", err)
		}

		history := &models.TicketStatusHistory{
			TicketID:   ticket.ID,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			ChangedBy:  changedBy,
			Note:       note,
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("ошибка записи истории статусов: %w", err)
		}

		ticket.Status = toStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ticket, nil
}

// AddComment добавляет комментарий к тикету
func (ts *TicketService) AddComment(ticketID uint, userID uint, body string) (*models.TicketComment, error) {
	if body == "" {
		return nil, fmt.Errorf("текст комментария обязателен")
	}

	var ticket models.Ticket
	if err := ts.db.First(&ticket, ticketID).Error; err != nil {
		return nil, fmt.Errorf("тикет не найден: %w", err)
	}

	comment := &models.TicketComment{
		TicketID: ticketID,
		UserID:   userID,
		Body:     body,
	}

	if err := ts.db.Create(comment).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания комментария: %w", err)
	}

	return comment, nil
}

// GetStatusHistory возвращает журнал смены статусов тикета
func (ts *TicketService) GetStatusHistory(ticketID uint) ([]models.TicketStatusHistory, error) {
	var history []models.TicketStatusHistory
	if err := ts.db.Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения истории статусов: %w", err)
	}
	return history, nil
}
