// Package models содержит доменные структуры реселлера: клиентов, подписки
// на стриминговые платформы, себестоимость аккаунтов, лицензии и системные настройки.
package models

import "time"

// Client покупатель, идентифицируемый нормализованным телефоном.
type Client struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientSummary клиент с количеством активных подписок, для списков поиска.
type ClientSummary struct {
	Client
	SubscriptionCount int `json:"subscription_count"`
}

// Subscription место на общем аккаунте платформы, проданное клиенту.
type Subscription struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	ServiceName   string    `json:"service_name"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Email         string    `json:"email"`
	Password      string    `json:"password"`
	ProfileName   string    `json:"profile_name"`
	ProfilePin    string    `json:"profile_pin"`
	SalePrice     float64   `json:"sale_price"`
	IsFullAccount bool      `json:"is_full_account"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// SubscriptionDetail подписка вместе с данными клиента.
type SubscriptionDetail struct {
	Subscription
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
}

// SubscriptionPatch частичное обновление подписки: nil означает "не менять".
type SubscriptionPatch struct {
	ExpiryDate  *time.Time
	Email       *string
	Password    *string
	ProfileName *string
	ProfilePin  *string
	SalePrice   *float64
}

// Empty сообщает, что патч ничего не меняет.
func (p SubscriptionPatch) Empty() bool {
	return p.ExpiryDate == nil && p.Email == nil && p.Password == nil &&
		p.ProfileName == nil && p.ProfilePin == nil && p.SalePrice == nil
}

// AffectedClient клиент, чья подписка была затронута групповой операцией.
type AffectedClient struct {
	ClientID       int64  `json:"client_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	SubscriptionID int64  `json:"subscription_id"`
	ServiceName    string `json:"service_name"`
	ProfileName    string `json:"profile_name"`
	ProfilePin     string `json:"profile_pin"`
}

// Account производный аккаунт: активные подписки с одинаковыми
// (платформа, email, пароль).
type Account struct {
	ServiceName string
	Email       string
	Password    string
	Members     []SubscriptionDetail
}

// Occupancy количество занятых мест.
func (a Account) Occupancy() int {
	return len(a.Members)
}

// GroupAccounts собирает подписки в аккаунты по (платформа, email, пароль),
// сохраняя порядок первого появления.
func GroupAccounts(details []SubscriptionDetail) []Account {
	type key struct{ service, email, password string }
	index := make(map[key]int)
	var accounts []Account
	for _, d := range details {
		k := key{d.ServiceName, d.Email, d.Password}
		i, ok := index[k]
		if !ok {
			i = len(accounts)
			index[k] = i
			accounts = append(accounts, Account{ServiceName: d.ServiceName, Email: d.Email, Password: d.Password})
		}
		accounts[i].Members = append(accounts[i].Members, d)
	}
	return accounts
}
