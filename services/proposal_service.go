package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"backend_taskly/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ошибки жизненного цикла предложений
var (
	ErrProposalNotPending  = errors.New("предложение не в статусе pending")
	ErrProposalNotApproved = errors.New("предложение не одобрено")
	ErrProposalExists      = errors.New("у тикета уже есть предложение")
)

// ProposalService управляет жизненным циклом предложений по тикетам:
// pending -> approved -> billed, либо pending -> rejected
type ProposalService struct {
	db       *gorm.DB
	invoices *InvoiceService
	tickets  *TicketService
}

// NewProposalService создает новый экземпляр ProposalService
func NewProposalService(db *gorm.DB) *ProposalService {
	return &ProposalService{
		db:       db,
		invoices: NewInvoiceService(db),
		tickets:  NewTicketService(db),
	}
}

// SubmitProposal создает предложение по тикету-доработке. Модуль должен быть
// активным addon-модулем, у тикета может быть только одно предложение.
func (prs *ProposalService) SubmitProposal(ticketID uint, moduleID uint, estimatedPrice decimal.Decimal, estimatedDays int, submittedBy uint) (*models.TicketProposal, error) {
	if !estimatedPrice.IsPositive() {
		return nil, fmt.Errorf("оценка стоимости должна быть положительной")
	}
	if estimatedDays <= 0 {
		return nil, fmt.Errorf("оценка сроков должна быть положительной")
	}

	// Проверяем тикет
	var ticket models.Ticket
	if err := prs.db.First(&ticket, ticketID).Error; err != nil {
		return nil, fmt.Errorf("тикет не найден: %w", err)
	}

	if !ticket.IsFeatureRequest() {
		return nil, fmt.Errorf("предложение можно создать только для тикета-доработки, тип: %s", ticket.Type)
	}

	// Модуль должен быть активным дополнением
	var module models.Module
	if err := prs.db.First(&module, moduleID).Error; err != nil {
		return nil, fmt.Errorf("модуль не найден: %w", err)
	}

	if !module.IsBillableAddon() {
		return nil, fmt.Errorf("модуль '%s' не является активным addon-модулем", module.Name)
	}

	// У тикета может быть только одно предложение
	var existing models.TicketProposal
	if err := prs.db.Where("ticket_id = ?", ticketID).First(&existing).Error; err == nil {
		return nil, ErrProposalExists
	}

	proposal := &models.TicketProposal{
		TicketID:       ticketID,
		ModuleID:       moduleID,
		EstimatedPrice: estimatedPrice,
		EstimatedDays:  estimatedDays,
		Status:         models.ProposalStatusPending,
	}

	if err := prs.db.Create(proposal).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrProposalExists
		}
		return nil, fmt.Errorf("ошибка создания предложения: %w", err)
	}

	return proposal, nil
}

// ApproveProposal одобряет предложение от имени компании. Переход
// односторонний: вернуть approved обратно в pending нельзя. Сразу после
// одобрения выставляется счет; если выставление не удалось, предложение
// остается approved без счета и его подберет фоновая задача биллинга.
func (prs *ProposalService) ApproveProposal(proposalID uint, approvedBy uint) (*models.TicketProposal, error) {
	var proposal models.TicketProposal

	err := prs.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			First(&proposal, proposalID).Error; err != nil {
			return fmt.Errorf("предложение не найдено: %w", err)
		}

		if proposal.Status != models.ProposalStatusPending {
			return ErrProposalNotPending
		}

		now := time.Now()
		if err := tx.Model(&proposal).Updates(map[string]interface{}{
			"status":      models.ProposalStatusApproved,
			"approved_at": &now,
		}).Error; err != nil {
			return fmt.Errorf("ошибка одобрения предложения: %w", err)
		}

		proposal.Status = models.ProposalStatusApproved
		proposal.ApprovedAt = &now

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Выставляем счет сразу после одобрения. Ошибка не откатывает одобрение:
	// предложение остается approved и будет обработано повторно.
	if _, err := prs.BillProposal(proposal.ID); err != nil {
		log.Printf("⚠️  Не удалось выставить счет по предложению %d: %v", proposal.ID, err)
	}

	// Перечитываем актуальное состояние
	if err := prs.db.First(&proposal, proposal.ID).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки предложения: %w", err)
	}

	return &proposal, nil
}

// RejectProposal отклоняет ожидающее предложение. Терминальное состояние,
// счет не выставляется.
func (prs *ProposalService) RejectProposal(proposalID uint, rejectedBy uint) (*models.TicketProposal, error) {
	var proposal models.TicketProposal

	err := prs.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			First(&proposal, proposalID).Error; err != nil {
			return fmt.Errorf("предложение не найдено: %w", err)
		}

		if proposal.Status != models.ProposalStatusPending {
			return ErrProposalNotPending
		}

		if err := tx.Model(&proposal).Update("status", models.ProposalStatusRejected).Error; err != nil {
			return fmt.Errorf("ошибка отклонения предложения: %w", err)
		}

		proposal.Status = models.ProposalStatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &proposal, nil
}

// BillProposal выставляет счет за одобренное предложение. Операция
// идемпотентна: при повторном вызове возвращается уже существующий счет,
// уникальный индекс по ticket_proposal_id исключает дубликаты под гонкой.
func (prs *ProposalService) BillProposal(proposalID uint) (*models.InvoiceAddOn, error) {
	var invoice *models.InvoiceAddOn

	err := prs.db.Transaction(func(tx *gorm.DB) error {
		var proposal models.TicketProposal
		if err := lockForUpdate(tx).
			Preload("Ticket").
			Preload("Module").
			First(&proposal, proposalID).Error; err != nil {
			return fmt.Errorf("предложение не найдено: %w", err)
		}

		// Идемпотентность: счет уже выставлен
		var existing models.InvoiceAddOn
		if err := tx.Where("ticket_proposal_id = ?", proposal.ID).First(&existing).Error; err == nil {
			invoice = &existing
			return nil
		}

		if proposal.Status != models.ProposalStatusApproved {
			return ErrProposalNotApproved
		}

		if proposal.Ticket == nil {
			return fmt.Errorf("у предложения %d отсутствует тикет", proposal.ID)
		}

		moduleName := ""
		if proposal.Module != nil {
			moduleName = proposal.Module.Name
		}

		newInvoice := &models.InvoiceAddOn{
			CompanyID:        proposal.Ticket.CompanyID,
			ModuleID:         proposal.ModuleID,
			TicketProposalID: proposal.ID,
			Description:      fmt.Sprintf("Доработка по тикету %s, модуль '%s'", proposal.Ticket.Code, moduleName),
			Amount:           proposal.EstimatedPrice,
			Status:           models.InvoiceStatusUnpaid,
			DueDate:          time.Now().AddDate(0, 0, prs.invoices.AddOnPaymentTermDays),
		}

		if err := prs.invoices.createAddOnInvoiceWithUniqueNumber(tx, newInvoice); err != nil {
			return err
		}

		// Связываем предложение со счетом и переводим в billed
		if err := tx.Model(&proposal).Updates(map[string]interface{}{
			"invoice_id": newInvoice.ID,
			"status":     models.ProposalStatusBilled,
		}).Error; err != nil {
			return fmt.Errorf("ошибка привязки счета к предложению: %w", err)
		}

		invoice = newInvoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// GetUnbilledProposals возвращает одобренные предложения без счета.
// Используется фоновой задачей как страховка на случай сбоя выставления
// счета при одобрении.
func (prs *ProposalService) GetUnbilledProposals() ([]models.TicketProposal, error) {
	var proposals []models.TicketProposal
	if err := prs.db.Where("status = ? AND invoice_id IS NULL", models.ProposalStatusApproved).
		Preload("Ticket").
		Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения предложений без счета: %w", err)
	}
	return proposals, nil
}

// BillUnbilledProposals выставляет счета по всем одобренным предложениям без счета
func (prs *ProposalService) BillUnbilledProposals() (int, error) {
	proposals, err := prs.GetUnbilledProposals()
	if err != nil {
		return 0, err
	}

	billed := 0
	for _, proposal := range proposals {
		if _, err := prs.BillProposal(proposal.ID); err != nil {
			log.Printf("⚠️  Ошибка выставления счета по предложению %d: %v", proposal.ID, err)
			continue
		}
		billed++
	}

	return billed, nil
}
