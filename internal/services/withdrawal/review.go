package withdrawal

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/htams/backend/internal/apperrors"
	"github.com/htams/backend/internal/models"
	"gorm.io/gorm"
)

// DateBucket is a coarse time filter for the admin review queue
type DateBucket string

const (
	BucketToday     DateBucket = "today"
	BucketYesterday DateBucket = "yesterday"
	BucketLast7     DateBucket = "last7"
	BucketLast30    DateBucket = "last30"
)

// ReviewFilter narrows the admin listing. Zero values mean "no filter".
type ReviewFilter struct {
	Status     models.WithdrawalStatus
	Mode       models.PayoutMode
	DateBucket DateBucket
	Search     string
	Page       int
	PageSize   int
}

// ReviewStats aggregates the filtered review queue
type ReviewStats struct {
	CountByStatus map[models.WithdrawalStatus]int64   `json:"count_by_status"`
	SumByStatus   map[models.WithdrawalStatus]float64 `json:"sum_by_status"`
	TotalTDS      float64                             `json:"total_tds_collected"`
	TotalNetPaid  float64                             `json:"total_net_disbursed"`
}

// csvHeader is the fixed export column set
var csvHeader = []string{
	"Transaction ID", "User Name", "Email", "Mobile",
	"Gross Amount", "TDS %", "TDS Amount", "Net Amount",
	"Mode", "Status", "Requested Date", "Processed Date",
}

// List returns withdrawal requests from the global view matching the filter,
// newest first
func (s *WithdrawalService) List(filter ReviewFilter) ([]models.WithdrawalRequest, int64, error) {
	query, err := s.filtered(filter)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting withdrawals: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var requests []models.WithdrawalRequest
	if err := query.Order("requested_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("error listing withdrawals: %w", err)
	}

	return requests, total, nil
}

// Stats computes per-status counts and sums plus TDS and net totals over
// approved requests, scoped by the same filter as List
func (s *WithdrawalService) Stats(filter ReviewFilter) (*ReviewStats, error) {
	// Status is intentionally ignored here: the stat cards show all states
	// side by side regardless of the list's status filter
	filter.Status = ""

	query, err := s.filtered(filter)
	if err != nil {
		return nil, err
	}

	type row struct {
		Status models.WithdrawalStatus
		Count  int64
		Gross  float64
		TDS    float64
		Net    float64
	}

	var rows []row
	if err := query.
		Select("status, COUNT(*) AS count, COALESCE(SUM(gross_amount), 0) AS gross, COALESCE(SUM(tds_amount), 0) AS tds, COALESCE(SUM(net_amount), 0) AS net").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error aggregating withdrawals: %w", err)
	}

	stats := &ReviewStats{
		CountByStatus: make(map[models.WithdrawalStatus]int64),
		SumByStatus:   make(map[models.WithdrawalStatus]float64),
	}
	for _, r := range rows {
		stats.CountByStatus[r.Status] = r.Count
		stats.SumByStatus[r.Status] = r.Gross
		if r.Status == models.WithdrawalStatusApproved {
			stats.TotalTDS = r.TDS
			stats.TotalNetPaid = r.Net
		}
	}

	return stats, nil
}

// ExportCSV renders the filtered view as CSV with the fixed column set.
// Returns the suggested filename and the file body.
func (s *WithdrawalService) ExportCSV(filter ReviewFilter) (string, []byte, error) {
	query, err := s.filtered(filter)
	if err != nil {
		return "", nil, err
	}

	var requests []models.WithdrawalRequest
	if err := query.Order("requested_at DESC").Find(&requests).Error; err != nil {
		return "", nil, fmt.Errorf("error listing withdrawals for export: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return "", nil, fmt.Errorf("error writing CSV header: %w", err)
	}

	for _, r := range requests {
		record := []string{
			r.ID.String(),
			stringDetail(r.UserDetails, "name"),
			stringDetail(r.UserDetails, "email"),
			stringDetail(r.UserDetails, "mobile"),
			formatAmount(r.GrossAmount),
			formatAmount(r.TDSPercentage),
			formatAmount(r.TDSAmount),
			formatAmount(r.NetAmount),
			string(r.Mode),
			string(r.Status),
			formatDate(&r.RequestedAt),
			formatDate(r.ProcessedAt),
		}
		if err := writer.Write(record); err != nil {
			return "", nil, fmt.Errorf("error writing CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", nil, fmt.Errorf("error flushing CSV: %w", err)
	}

	label := "all"
	if filter.Status != "" {
		label = string(filter.Status)
	}
	if filter.DateBucket != "" {
		label = label + " " + string(filter.DateBucket)
	}
	filename := fmt.Sprintf("withdrawals-%s-%s.csv", slug.Make(label), time.Now().Format("20060102"))

	return filename, buf.Bytes(), nil
}

// filtered builds the base query for the admin review surface
func (s *WithdrawalService) filtered(filter ReviewFilter) (*gorm.DB, error) {
	query := s.db.Model(&models.WithdrawalRequest{})

	if filter.Status != "" {
		switch filter.Status {
		case models.WithdrawalStatusPending, models.WithdrawalStatusApproved,
			models.WithdrawalStatusRejected, models.WithdrawalStatusCancelled:
			query = query.Where("status = ?", filter.Status)
		default:
			return nil, apperrors.ErrInvalidInput
		}
	}

	if filter.Mode != "" {
		if filter.Mode != models.PayoutModeBank && filter.Mode != models.PayoutModeUPI {
			return nil, apperrors.ErrInvalidInput
		}
		query = query.Where("mode = ?", filter.Mode)
	}

	if filter.DateBucket != "" {
		from, to, err := bucketRange(filter.DateBucket, time.Now())
		if err != nil {
			return nil, err
		}
		query = query.Where("requested_at >= ? AND requested_at < ?", from, to)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conditions := s.db.
			Where("LOWER(reference) LIKE ?", pattern).
			Or("LOWER(user_details ->> 'name') LIKE ?", pattern).
			Or("LOWER(user_details ->> 'email') LIKE ?", pattern).
			Or("user_details ->> 'mobile' LIKE ?", pattern)
		if amount, err := strconv.ParseFloat(search, 64); err == nil {
			conditions = conditions.Or("gross_amount = ?", amount).Or("net_amount = ?", amount)
		}
		query = query.Where(conditions)
	}

	return query, nil
}

// bucketRange translates a date bucket into a half-open [from, to) interval
func bucketRange(bucket DateBucket, now time.Time) (time.Time, time.Time, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch bucket {
	case BucketToday:
		return startOfDay, startOfDay.Add(24 * time.Hour), nil
	case BucketYesterday:
		return startOfDay.Add(-24 * time.Hour), startOfDay, nil
	case BucketLast7:
		return startOfDay.Add(-7 * 24 * time.Hour), startOfDay.Add(24 * time.Hour), nil
	case BucketLast30:
		return startOfDay.Add(-30 * 24 * time.Hour), startOfDay.Add(24 * time.Hour), nil
	}
	return time.Time{}, time.Time{}, apperrors.ErrInvalidInput
}

// formatDate renders timestamps as DD/MM/YY for the export
func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/06")
}

// formatAmount renders currency amounts with two decimals
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// stringDetail pulls a string field out of a snapshot map
func stringDetail(details models.JSON, key string) string {
	if details == nil {
		return ""
	}
	if v, ok := details[key].(string); ok {
		return v
	}
	return ""
}
