package services

import (
	"fmt"

	"backend_taskly/config"

	"github.com/shopspring/decimal"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// PaymentCustomer содержит данные плательщика для платежной сессии
type PaymentCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// PaymentGateway описывает внешний платежный шлюз. Ядро использует только
// создание платежной сессии; подтверждения статусов приходят асинхронно
// через вебхук (см. PaymentService.ProcessNotification).
type PaymentGateway interface {
	// CreateSnapTransaction создает платежную сессию и возвращает snap-токен
	// и URL для оплаты
	CreateSnapTransaction(orderID string, amount decimal.Decimal, description string, customer PaymentCustomer) (token string, redirectURL string, err error)
}

// MidtransGateway реализует PaymentGateway поверх Midtrans Snap
type MidtransGateway struct {
	client snap.Client
}

// NewMidtransGateway создает новый экземпляр MidtransGateway
func NewMidtransGateway(cfg config.MidtransConfig) *MidtransGateway {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	gw := &MidtransGateway{}
	gw.client.New(cfg.ServerKey, env)

	// Ограничиваем время ожидания HTTP-вызова к шлюзу: при сбое счет
	// остается неоплаченным, пользователь повторяет оплату вручную
	if cfg.Timeout > 0 {
		midtrans.DefaultGoHttpClient.Timeout = cfg.Timeout
	}

	return gw
}

// CreateSnapTransaction создает платежную сессию в Midtrans Snap
func (mg *MidtransGateway) CreateSnapTransaction(orderID string, amount decimal.Decimal, description string, customer PaymentCustomer) (string, string, error) {
	if !amount.IsPositive() {
		return "", "", fmt.Errorf("сумма платежа должна быть положительной: %s", amount.String())
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount.IntPart(),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customer.FirstName,
			LName: customer.LastName,
			Email: customer.Email,
			Phone: customer.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    orderID,
				Price: amount.IntPart(),
				Qty:   1,
				Name:  truncate(description, 50),
			},
		},
	}

	resp, err := mg.client.CreateTransaction(req)
	if err != nil {
		return "", "", fmt.Errorf("ошибка создания платежной сессии: %w", err)
	}

	return resp.Token, resp.RedirectURL, nil
}

// truncate обрезает строку до n байт по границе руны (ограничение полей
// Midtrans); кириллическое описание не режется посреди символа
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
