// Package importer загружает клиентов и подписки из таблиц CSV и XLSX.
//
// Колонки позиционные: телефон, имя, сервис, email, пароль, дата окончания
// и необязательный PIN. Клиент ищется или создаётся по телефону, подписка
// добавляется всегда, без слияния с существующими.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/magabrotheeeer/streaming-reseller/internal/catalog"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
)

var (
	// ErrUnsupportedFormat расширение файла не csv и не xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMalformed файл не удалось разобрать.
	ErrMalformed = errors.New("malformed file")
)

// Позиции колонок.
const (
	colPhone = iota
	colName
	colService
	colEmail
	colPassword
	colExpiry
	colPin

	requiredColumns = colExpiry + 1
)

// Repository операции хранилища, нужные импорту.
type Repository interface {
	AddClient(ctx context.Context, phone, name string) (*models.Client, bool, error)
	AddSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	GetConfig(ctx context.Context, key string) (string, error)
}

// Service импорт таблиц.
type Service struct {
	repo        Repository
	log         *slog.Logger
	countryCode string
	now         func() time.Time
}

// New создаёт сервис импорта. countryCode используется, если в system_config нет country_code.
func New(repo Repository, log *slog.Logger, countryCode string) *Service {
	return &Service{
		repo:        repo,
		log:         log,
		countryCode: countryCode,
		now:         time.Now,
	}
}

// Import разбирает файл по расширению и записывает строки в хранилище.
func (s *Service) Import(ctx context.Context, filename string, data []byte) (models.ImportReport, error) {
	const op = "importer.Import"

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		rows, err = readCSV(data)
	case ".xlsx":
		rows, err = readXLSX(data)
	default:
		return models.ImportReport{}, fmt.Errorf("%s: %w", op, ErrUnsupportedFormat)
	}
	if err != nil {
		return models.ImportReport{}, fmt.Errorf("%s: %w", op, err)
	}

	report, err := s.importRows(ctx, rows)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

func (s *Service) importRows(ctx context.Context, rows [][]string) (models.ImportReport, error) {
	log := s.log.With(sl.Op("importer.importRows"))
	cc := s.country(ctx)
	now := s.now()

	var report models.ImportReport
	for i, row := range rows {
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
		}
		if i == 0 && len(row) > 0 && row[colPhone] != "" && !normalize.LooksLikePhone(row[colPhone]) {
			report.Header = true
			continue
		}
		if len(row) == 0 || row[colPhone] == "" {
			report.Skipped++
			continue
		}
		if len(row) < requiredColumns {
			log.Debug("row incomplete", slog.Int("line", i+1))
			report.Skipped++
			continue
		}

		phone, err := normalize.Phone(row[colPhone], cc)
		if err != nil {
			log.Debug("invalid phone", slog.Int("line", i+1), slog.String("phone", row[colPhone]))
			report.Skipped++
			continue
		}
		expiry, err := normalize.Date(row[colExpiry], now)
		if err != nil {
			log.Debug("invalid date", slog.Int("line", i+1), slog.String("date", row[colExpiry]))
			report.Skipped++
			continue
		}
		if row[colService] == "" {
			report.Skipped++
			continue
		}

		name := row[colName]
		if name == "" {
			name = phone
		}
		client, created, err := s.repo.AddClient(ctx, phone, name)
		if err != nil {
			return report, err
		}
		if created {
			report.Created++
		}

		service := row[colService]
		if p, ok := catalog.ByName(service); ok {
			service = p.Name
		}
		profile, pin := normalize.NotAvailable, normalize.NotAvailable
		if len(row) > colPin && row[colPin] != "" {
			profile, pin = client.Name, row[colPin]
		}

		_, err = s.repo.AddSubscription(ctx, models.Subscription{
			ClientID:      client.ID,
			ServiceName:   service,
			ExpiryDate:    expiry,
			Email:         row[colEmail],
			Password:      row[colPassword],
			ProfileName:   profile,
			ProfilePin:    pin,
			IsFullAccount: catalog.Limit(service) == 1,
			IsActive:      true,
		})
		if err != nil {
			return report, err
		}
		report.Imported++
	}

	log.Info("rows imported",
		slog.Int("created", report.Created),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

func (s *Service) country(ctx context.Context) string {
	if cc, err := s.repo.GetConfig(ctx, models.ConfigCountryCode); err == nil && cc != "" {
		return cc
	}
	return s.countryCode
}

// readCSV разделитель определяется по первой строке: запятая или точка с запятой.
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	first, _, _ := bytes.Cut(data, []byte("\n"))

	r := csv.NewReader(bytes.NewReader(data))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		r.Comma = ';'
	}
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readXLSX читает первый лист книги.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformed)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rows, nil
}
