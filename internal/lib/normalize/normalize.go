// Package normalize содержит чистые функции разбора ввода оператора:
// телефонов, дат, сумм, пар "имя + телефон", учётных данных и профиля с PIN.
//
// Функции не обращаются к хранилищу и не зависят от времени, кроме явно
// переданного now, поэтому их удобно покрывать таблицами тестов.
package normalize

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Ошибки разбора.
var (
	ErrInvalidPhone  = errors.New("invalid phone")
	ErrNoPhone       = errors.New("phone not found")
	ErrNoName        = errors.New("name too short")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrCredentials   = errors.New("email and password expected")
	ErrProfile       = errors.New("profile and pin expected")
)

const (
	localDigits   = 9
	minPhoneLen   = 10
	maxPhoneLen   = 15
	minNameLength = 2
)

var nonDigit = regexp.MustCompile(`\D`)

// Phone приводит номер к виду "<код страны><номер>" без плюса и разделителей.
//
// Ведущий 0 заменяется кодом страны, ровно 9 цифр дополняются кодом страны,
// префикс 00 международного набора отбрасывается. Функция идемпотентна.
func Phone(raw, countryCode string) (string, error) {
	digits := nonDigit.ReplaceAllString(raw, "")
	switch {
	case digits == "":
		return "", ErrInvalidPhone
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case len(digits) == localDigits:
		digits = countryCode + digits
	}
	if len(digits) < minPhoneLen || len(digits) > maxPhoneLen {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// LooksLikePhone сообщает, похож ли ввод на телефон, а не на поисковую строку.
func LooksLikePhone(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if !unicode.IsDigit(r) && !strings.ContainsRune("+-() ", r) {
			return false
		}
	}
	return len(nonDigit.ReplaceAllString(trimmed, "")) > 6
}

// ExtractNamePhone разбирает строку вида "Juan Pérez 0991234567".
//
// Сначала ищется номер по шаблону местного или международного формата,
// окружённый не-цифрами, затем первый токен, содержащий больше шести цифр. Всё остальное считается именем.
// Слишком длинный местный номер считается ошибкой, а не обрезается.
func ExtractNamePhone(input, countryCode string) (name, phone string, err error) {
	input = strings.TrimSpace(input)

	pattern := regexp.MustCompile(`(?:^|[^\d+])((?:\+?` + regexp.QuoteMeta(countryCode) + `|0)(?:[\s-]*\d){9})(?:\D|$)`)
	if loc := pattern.FindStringSubmatchIndex(input); loc != nil {
		phone, err = Phone(input[loc[2]:loc[3]], countryCode)
		if err != nil {
			return "", "", err
		}
		name = cleanName(input[:loc[2]] + " " + input[loc[3]:])
	} else {
		var rest []string
		for _, tok := range strings.Fields(input) {
			if digits := nonDigit.ReplaceAllString(tok, ""); phone == "" && len(digits) > 6 {
				if overlong(digits, countryCode) {
					return "", "", ErrInvalidPhone
				}
				phone, err = Phone(tok, countryCode)
				if err != nil {
					return "", "", err
				}
				continue
			}
			rest = append(rest, tok)
		}
		if phone == "" {
			return "", "", ErrNoPhone
		}
		name = cleanName(strings.Join(rest, " "))
	}

	if utf8.RuneCountInString(name) < minNameLength {
		return "", "", ErrNoName
	}
	return name, phone, nil
}

// overlong местный или национальный номер с лишними цифрами.
func overlong(digits, countryCode string) bool {
	switch {
	case strings.HasPrefix(digits, "00"):
		return false
	case strings.HasPrefix(digits, "0"):
		return len(digits) > 1+localDigits
	case strings.HasPrefix(digits, countryCode):
		return len(digits) > len(countryCode)+localDigits
	}
	return false
}

func cleanName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;:-")
}

var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
}

var shortDateLayouts = []string{
	"2/1",
	"2-1",
}

// excelEpoch начало отсчёта серийных дат Excel.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Date разбирает дату в одном из форматов YYYY-MM-DD, DD/MM/YYYY, DD-MM-YYYY,
// DD/MM (текущий год) или серийный номер Excel. Возвращает дату в UTC без времени.
func Date(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t), nil
		}
	}
	for _, layout := range shortDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	if serial, err := strconv.Atoi(raw); err == nil && serial > 0 && len(raw) == 5 {
		return excelEpoch.AddDate(0, 0, serial), nil
	}
	return time.Time{}, ErrInvalidDate
}

// Day отбрасывает время и переводит дату в UTC, сохраняя календарный день.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ISODate форматирует дату как YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Money разбирает сумму вида "3.50", "3,50" или "$3.50" с округлением до центов.
func Money(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidAmount
	}
	return math.Round(v*100) / 100, nil
}

// Email каноническая форма адреса: без пробелов по краям и в нижнем регистре.
// Группы аккаунтов сравниваются только по этой форме.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Credentials делит ввод на email и пароль по пробелам.
func Credentials(input string) (email, password string, err error) {
	parts := strings.Fields(input)
	if len(parts) < 2 {
		return "", "", ErrCredentials
	}
	return Email(parts[0]), strings.Join(parts[1:], " "), nil
}

// NotAvailable значение профиля и PIN для платформ без профилей.
const NotAvailable = "N/A"

// ProfilePin разбирает "Perfil Juan 1234": PIN это токены после последнего
// нечислового токена имени профиля. Если нечисловых токенов нет, профиль N/A.
// Если чисел нет, PIN это последний токен.
func ProfilePin(input string) (profile, pin string, err error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return "", "", ErrProfile
	}

	last := -1
	for i, p := range parts {
		if !isNumeric(p) {
			last = i
		}
	}

	switch {
	case last == -1:
		return NotAvailable, strings.Join(parts, " "), nil
	case last < len(parts)-1:
		return strings.Join(parts[:last+1], " "), strings.Join(parts[last+1:], " "), nil
	case len(parts) >= 2:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1], nil
	default:
		return "", "", ErrProfile
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
