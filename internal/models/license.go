package models

import "time"

// AccountCost себестоимость аккаунта, ключ: email.
type AccountCost struct {
	Email       string    `json:"email"`
	ServiceName string    `json:"service_name"`
	CostPrice   float64   `json:"cost_price"`
	BoughtDate  time.Time `json:"bought_date"`
}

// License одноразовый ключ активации.
type License struct {
	Key          string     `json:"key"`
	DurationDays int        `json:"duration_days"`
	IsUsed       bool       `json:"is_used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Ключи таблицы system_config.
const (
	ConfigLicenseExpiry = "license_expiry"
	ConfigCountryCode   = "country_code"
	ConfigBotSilenced   = "bot_silenced"
)

// FinancialSummary сводка по выручке и себестоимости, включая удалённые записи.
type FinancialSummary struct {
	Revenue       float64 `json:"revenue"`
	Cost          float64 `json:"cost"`
	Subscriptions int     `json:"subscriptions"`
	Accounts      int     `json:"accounts"`
}

// Profit чистая прибыль.
func (f FinancialSummary) Profit() float64 {
	return f.Revenue - f.Cost
}

// ImportReport итог импорта файла.
type ImportReport struct {
	Created  int `json:"created"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	// Header первая строка распознана как заголовок и не входит в Skipped.
	Header bool `json:"header,omitempty"`
}

// NextLicenseExpiry продлевает лицензию на days дней от более позднего из
// (текущий срок, now). current == nil означает, что лицензии ещё не было.
func NextLicenseExpiry(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}
