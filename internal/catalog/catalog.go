// Package catalog содержит статический справочник стриминговых платформ:
// категорию, лимит мест на одном аккаунте, признак профиля с PIN и цену по умолчанию.
package catalog

import "strings"

// DefaultLimit лимит мест для сервиса, отсутствующего в справочнике.
const DefaultLimit = 5

// Category группа платформ в меню продажи.
type Category string

// Категории меню.
const (
	Video Category = "Video"
	Music Category = "Música"
	Anime Category = "Anime"
	TV    Category = "TV"
)

// Platform описание одной платформы.
type Platform struct {
	ID              int
	Name            string
	Category        Category
	Limit           int
	RequiresProfile bool
	Price           float64
}

var platforms = []Platform{
	{ID: 1, Name: "Netflix", Category: Video, Limit: 5, RequiresProfile: true, Price: 4.00},
	{ID: 2, Name: "Disney+", Category: Video, Limit: 7, RequiresProfile: true, Price: 3.50},
	{ID: 3, Name: "Prime Video", Category: Video, Limit: 6, RequiresProfile: true, Price: 3.00},
	{ID: 4, Name: "HBO Max", Category: Video, Limit: 5, RequiresProfile: true, Price: 3.50},
	{ID: 5, Name: "Paramount+", Category: Video, Limit: 5, RequiresProfile: true, Price: 3.00},
	{ID: 6, Name: "Spotify", Category: Music, Limit: 6, Price: 3.00},
	{ID: 7, Name: "Crunchyroll", Category: Anime, Limit: 4, Price: 3.00},
	{ID: 8, Name: "YouTube Premium", Category: Music, Limit: 5, Price: 3.50},
	{ID: 9, Name: "IPTV", Category: TV, Limit: 1, Price: 5.00},
	{ID: 10, Name: "Magis TV", Category: TV, Limit: 1, Price: 4.00},
}

var categories = []Category{Video, Music, Anime, TV}

// All возвращает копию справочника в порядке идентификаторов.
func All() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// ByID ищет платформу по номеру.
func ByID(id int) (Platform, bool) {
	for _, p := range platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// ByName ищет платформу по имени без учёта регистра и пробелов по краям.
func ByName(name string) (Platform, bool) {
	name = strings.TrimSpace(name)
	for _, p := range platforms {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Platform{}, false
}

// Categories возвращает категории в порядке меню.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// InCategory возвращает платформы категории.
func InCategory(c Category) []Platform {
	var out []Platform
	for _, p := range platforms {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

// Limit лимит мест для сервиса; для неизвестного сервиса DefaultLimit.
func Limit(serviceName string) int {
	if p, ok := ByName(serviceName); ok {
		return p.Limit
	}
	return DefaultLimit
}

// RequiresProfile сообщает, нужен ли профиль с PIN для сервиса.
func RequiresProfile(serviceName string) bool {
	p, ok := ByName(serviceName)
	return ok && p.RequiresProfile
}
