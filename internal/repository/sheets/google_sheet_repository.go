package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/clinic-webhook/internal/config"
	"github.com/mamadbah2/clinic-webhook/internal/domain/models"
)

const (
	bookingColumns   = "A:F"
	bookingDataRange = "A2:F"
	timestampLayout  = "2006-01-02 15:04:05"
)

// preferredSheetNames are tried, case-insensitively, when no sheet name is configured.
var preferredSheetNames = []string{"bookings", "الحجوزات", "appointments"}

// GoogleSheetRepository is the booking store on top of the official Google
// Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger

	mu        sync.RWMutex
	sheetName string
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
		sheetName:     cfg.SheetName,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReadRange fetches a rectangular data range from the spreadsheet.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}

	return resp.Values, nil
}

// DetectSheetName resolves which tab holds the bookings: the configured one if
// it exists, else the first tab with a bookings-like title, else the first tab.
func (r *GoogleSheetRepository) DetectSheetName(ctx context.Context) (string, error) {
	resp, err := r.service.Spreadsheets.Get(r.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("load spreadsheet %s metadata: %w", r.spreadsheetID, err)
	}

	titles := make([]string, 0, len(resp.Sheets))
	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil {
			titles = append(titles, sheet.Properties.Title)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name, err := chooseSheet(r.sheetName, titles)
	if err != nil {
		return "", err
	}
	r.sheetName = name

	r.logger.Debug("sheet selected", zap.String("sheet", name), zap.Strings("available", titles))
	return name, nil
}

// GetAllBookings reads every booking row below the header.
func (r *GoogleSheetRepository) GetAllBookings(ctx context.Context) ([]models.Booking, error) {
	sheet, err := r.currentSheet(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.ReadRange(ctx, a1Range(sheet, bookingDataRange))
	if err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(rows))
	for i, row := range rows {
		booking, ok := bookingFromRow(row)
		if !ok {
			r.logger.Debug("skip booking row", zap.Int("row", i+2), zap.Any("values", row))
			continue
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

// SaveBooking appends booking as a new row.
func (r *GoogleSheetRepository) SaveBooking(ctx context.Context, booking models.Booking) error {
	sheet, err := r.currentSheet(ctx)
	if err != nil {
		return err
	}
	return r.WriteRow(ctx, a1Range(sheet, bookingColumns), bookingToRow(booking))
}

func (r *GoogleSheetRepository) currentSheet(ctx context.Context) (string, error) {
	r.mu.RLock()
	name := r.sheetName
	r.mu.RUnlock()

	if name != "" {
		return name, nil
	}
	return r.DetectSheetName(ctx)
}

func chooseSheet(configured string, titles []string) (string, error) {
	if len(titles) == 0 {
		return "", fmt.Errorf("spreadsheet has no sheets")
	}

	if configured != "" {
		for _, title := range titles {
			if title == configured {
				return title, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found", configured)
	}

	for _, preferred := range preferredSheetNames {
		for _, title := range titles {
			if strings.EqualFold(strings.TrimSpace(title), preferred) {
				return title, nil
			}
		}
	}

	return titles[0], nil
}

func a1Range(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

func bookingFromRow(row []interface{}) (models.Booking, bool) {
	cell := func(i int) string {
		if i >= len(row) || row[i] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[i]))
	}

	booking := models.Booking{
		Name:        cell(1),
		Phone:       cell(2),
		Service:     cell(3),
		Appointment: cell(4),
		Status:      cell(5),
	}
	if booking.Name == "" && booking.Phone == "" {
		return models.Booking{}, false
	}

	if created := cell(0); created != "" {
		for _, layout := range []string{time.RFC3339, timestampLayout, "2006-01-02"} {
			if ts, err := time.Parse(layout, created); err == nil {
				booking.CreatedAt = ts
				break
			}
		}
	}

	return booking, true
}

func bookingToRow(booking models.Booking) []interface{} {
	return []interface{}{
		booking.CreatedAt.UTC().Format(timestampLayout),
		booking.Name,
		booking.Phone,
		booking.Service,
		booking.Appointment,
		booking.Status,
	}
}
