// Package session хранит состояние многошаговых диалогов по идентификатору чата.
//
// Каждый сценарий держит свои данные в отдельном типизированном черновике,
// шаги читают и пишут только свой черновик.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound сессии для чата нет.
var ErrNotFound = errors.New("session not found")

// Store хранилище сессий. Реализации обязаны быть безопасны для конкурентного доступа.
type Store interface {
	Get(ctx context.Context, chatID string) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Delete(ctx context.Context, chatID string) error
}

// Session состояние одного диалога.
type Session struct {
	ChatID          string          `json:"chat_id"`
	Step            Step            `json:"step"`
	LastInteraction time.Time       `json:"last_interaction"`
	Sale            *SaleDraft      `json:"sale,omitempty"`
	Renewal         *RenewalDraft   `json:"renewal,omitempty"`
	Clients         *ClientsDraft   `json:"clients,omitempty"`
	Account         *AccountDraft   `json:"account,omitempty"`
	Broadcast       *BroadcastDraft `json:"broadcast,omitempty"`
}

// New создаёт сессию на шаге step.
func New(chatID string, step Step, now time.Time) *Session {
	return &Session{ChatID: chatID, Step: step, LastInteraction: now}
}

// Expired сообщает, что с последнего сообщения прошло больше timeout.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastInteraction) > timeout
}

// Done сообщает, что диалог завершён и сессию нужно удалить.
func (s *Session) Done() bool {
	return s.Step == StepIdle
}

// ClientRef клиент в нумерованном меню.
type ClientRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// SubRef подписка в нумерованном меню.
type SubRef struct {
	ID          int64     `json:"id"`
	ServiceName string    `json:"service_name"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	ProfileName string    `json:"profile_name"`
	ProfilePin  string    `json:"profile_pin"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

// SaleDraft данные сценария продажи.
type SaleDraft struct {
	Category string `json:"category"`
	Platform string `json:"platform"`

	Client      ClientRef `json:"client"`
	ClientFixed bool      `json:"client_fixed,omitempty"`

	Email        string `json:"email"`
	Password     string `json:"password"`
	AccountFixed bool   `json:"account_fixed,omitempty"`
	Overbooked   bool   `json:"overbooked,omitempty"`

	ProfileName string `json:"profile_name"`
	ProfilePin  string `json:"profile_pin"`
}

// RenewalDraft данные сценария продления.
type RenewalDraft struct {
	Candidates    []ClientRef `json:"candidates,omitempty"`
	Client        ClientRef   `json:"client"`
	Subscriptions []SubRef    `json:"subscriptions,omitempty"`
	Subscription  SubRef      `json:"subscription"`
	Months        int         `json:"months,omitempty"`
	NewExpiry     time.Time   `json:"new_expiry"`
}

// ClientsDraft данные меню клиентов.
type ClientsDraft struct {
	Term          string      `json:"term"`
	Candidates    []ClientRef `json:"candidates,omitempty"`
	Client        ClientRef   `json:"client"`
	Subscriptions []SubRef    `json:"subscriptions,omitempty"`
	Subscription  SubRef      `json:"subscription"`
}

// AccountOrigin откуда открыт аккаунт: из списка платформы или по email.
type AccountOrigin uint8

const (
	OriginList AccountOrigin = iota
	OriginEmail
)

// AccountRef аккаунт в нумерованном меню.
type AccountRef struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Occupancy int    `json:"occupancy"`
}

// MemberRef участник аккаунта.
type MemberRef struct {
	SubscriptionID int64     `json:"subscription_id"`
	ClientID       int64     `json:"client_id"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	ServiceName    string    `json:"service_name"`
	ProfileName    string    `json:"profile_name"`
	ProfilePin     string    `json:"profile_pin"`
	ExpiryDate     time.Time `json:"expiry_date"`
}

// AccountDraft данные управления аккаунтом и его участниками.
type AccountDraft struct {
	Origin   AccountOrigin `json:"origin"`
	Platform string        `json:"platform,omitempty"`
	Accounts []AccountRef  `json:"accounts,omitempty"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Members  []MemberRef   `json:"members,omitempty"`
	Member   MemberRef     `json:"member"`
}

// BroadcastDraft данные массовой рассылки.
type BroadcastDraft struct {
	Message    string `json:"message"`
	Recipients int    `json:"recipients"`
}
