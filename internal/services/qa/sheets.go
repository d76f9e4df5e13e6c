package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/laila-tgbot-go/internal/config"
)

// Store is the external question→answer row store.
type Store interface {
	// AppendRow persists one learned pair. Questions arrive already
	// normalized.
	AppendRow(ctx context.Context, question, answer string) error
	// FindByQuestion scans for a case-insensitive exact match.
	FindByQuestion(ctx context.Context, question string) (string, bool, error)
}

// SheetsStore keeps learned answers in a Google Sheet, two columns:
// question, answer. An O(n) scan over all rows is fine at this scale.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
	logger        *logrus.Logger
}

// NewSheetsStore connects to the configured spreadsheet using service
// account credentials.
func NewSheetsStore(ctx context.Context, cfg *config.SheetsConfig, logger *logrus.Logger) (*SheetsStore, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("sheets credentials are not configured")
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger.WithField("spreadsheet_id", cfg.SpreadsheetID).Info("Connected to answer sheet")

	return &SheetsStore{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.Range,
		logger:        logger,
	}, nil
}

// AppendRow implements Store.
func (s *SheetsStore) AppendRow(ctx context.Context, question, answer string) error {
	values := &sheets.ValueRange{
		Values: [][]interface{}{{question, answer}},
	}
	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.readRange, values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// FindByQuestion implements Store.
func (s *SheetsStore) FindByQuestion(ctx context.Context, question string) (string, bool, error) {
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, s.readRange).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, fmt.Errorf("failed to read sheet: %w", err)
	}

	want := strings.ToLower(question)
	for _, row := range resp.Values {
		if len(row) < 2 {
			continue
		}
		q, ok := row[0].(string)
		if !ok {
			continue
		}
		if strings.ToLower(q) == want {
			if a, ok := row[1].(string); ok {
				return a, true, nil
			}
		}
	}
	return "", false, nil
}
