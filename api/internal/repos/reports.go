package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/ledger"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/events"
)

// chainAppendLockKey serializes report appends across API instances. Row
// locks are not enough here: two writers appending to an empty table would
// both see no tail.
const chainAppendLockKey = int64(0x77677261)

var ErrInvalidReportTransition = errors.New("invalid report status transition")

type ReportsRepo struct {
	pool   *pgxpool.Pool
	outbox *OutboxRepo
}

func NewReportsRepo(pool *pgxpool.Pool, outbox *OutboxRepo) *ReportsRepo {
	return &ReportsRepo{pool: pool, outbox: outbox}
}

const reportColumns = "report_id, type, location, description, status, reported_at, report_hash, previous_hash, block_number, signature, created_at"

// Append seals the submission into the next chain block and stores it,
// emitting a report.events outbox entry in the same transaction.
func (r *ReportsRepo) Append(ctx context.Context, report models.CitizenReport) (models.CitizenReport, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.CitizenReport{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chainAppendLockKey); err != nil {
		return models.CitizenReport{}, err
	}

	var tail models.CitizenReport
	var tailPtr *models.CitizenReport
	err = tx.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM citizen_reports
		ORDER BY block_number DESC
		LIMIT 1
	`).Scan(&tail.ReportID, &tail.Type, &tail.Location, &tail.Description, &tail.Status, &tail.ReportedAt, &tail.ReportHash, &tail.PreviousHash, &tail.BlockNumber, &tail.Signature, &tail.CreatedAt)
	switch {
	case err == nil:
		tailPtr = &tail
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	default:
		return models.CitizenReport{}, err
	}

	if report.ReportID == uuid.Nil {
		report.ReportID = uuid.New()
	}
	if report.Status == "" {
		report.Status = "pending"
	}
	now := time.Now().UTC()
	block := ledger.NextBlock(tailPtr, report, now)
	block.CreatedAt = now

	err = tx.QueryRow(ctx, `
		INSERT INTO citizen_reports (report_id, type, location, description, status, reported_at, report_hash, previous_hash, block_number, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+reportColumns+`
	`, block.ReportID, block.Type, block.Location, block.Description, block.Status, block.ReportedAt, block.ReportHash, block.PreviousHash, block.BlockNumber, block.Signature, block.CreatedAt).
		Scan(&block.ReportID, &block.Type, &block.Location, &block.Description, &block.Status, &block.ReportedAt, &block.ReportHash, &block.PreviousHash, &block.BlockNumber, &block.Signature, &block.CreatedAt)
	if err != nil {
		return models.CitizenReport{}, err
	}

	if err = r.enqueueReportEvent(ctx, tx, block, "report_submitted"); err != nil {
		return models.CitizenReport{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.CitizenReport{}, err
	}
	return block, nil
}

func (r *ReportsRepo) GetByID(ctx context.Context, reportID uuid.UUID) (models.CitizenReport, error) {
	var report models.CitizenReport
	err := r.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM citizen_reports
		WHERE report_id = $1
	`, reportID).
		Scan(&report.ReportID, &report.Type, &report.Location, &report.Description, &report.Status, &report.ReportedAt, &report.ReportHash, &report.PreviousHash, &report.BlockNumber, &report.Signature, &report.CreatedAt)
	return report, err
}

func (r *ReportsRepo) List(ctx context.Context, status string, limit int, offset int) ([]models.CitizenReport, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+reportColumns+`
			FROM citizen_reports
			WHERE status = $1
			ORDER BY block_number DESC
			LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+reportColumns+`
			FROM citizen_reports
			ORDER BY block_number DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

// ListChain loads the full chain in block order for verification and stats.
func (r *ReportsRepo) ListChain(ctx context.Context) ([]models.CitizenReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM citizen_reports
		ORDER BY block_number ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

// TransitionStatus updates only the status column; chain fields are never
// written here, so verification stays intact across the report lifecycle.
func (r *ReportsRepo) TransitionStatus(ctx context.Context, reportID uuid.UUID, toStatus string, canTransition func(string, string) bool, eventForTransition func(string, string) string) (models.CitizenReport, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.CitizenReport{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var report models.CitizenReport
	err = tx.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM citizen_reports
		WHERE report_id = $1
		FOR UPDATE
	`, reportID).
		Scan(&report.ReportID, &report.Type, &report.Location, &report.Description, &report.Status, &report.ReportedAt, &report.ReportHash, &report.PreviousHash, &report.BlockNumber, &report.Signature, &report.CreatedAt)
	if err != nil {
		return models.CitizenReport{}, false, err
	}
	if report.Status == toStatus {
		if err = tx.Commit(ctx); err != nil {
			return models.CitizenReport{}, false, err
		}
		return report, false, nil
	}
	if canTransition != nil && !canTransition(report.Status, toStatus) {
		err = ErrInvalidReportTransition
		// Hand back the loaded report so callers can say what state it
		// refused to leave.
		return report, false, err
	}

	eventType := ""
	if eventForTransition != nil {
		eventType = eventForTransition(report.Status, toStatus)
	}

	_, err = tx.Exec(ctx, `
		UPDATE citizen_reports
		SET status = $2
		WHERE report_id = $1
	`, reportID, toStatus)
	if err != nil {
		return models.CitizenReport{}, false, err
	}
	report.Status = toStatus

	if eventType != "" {
		if err = r.enqueueReportEvent(ctx, tx, report, eventType); err != nil {
			return models.CitizenReport{}, false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.CitizenReport{}, false, err
	}
	return report, true, nil
}

func (r *ReportsRepo) enqueueReportEvent(ctx context.Context, tx pgx.Tx, report models.CitizenReport, eventType string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		OccurredAt:    time.Now().UTC(),
		AggregateType: "citizen_report",
		AggregateID:   report.ReportID,
		EventType:     eventType,
		Payload:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = r.outbox.Insert(ctx, tx, models.OutboxEvent{
		EventID:       envelope.EventID,
		AggregateType: envelope.AggregateType,
		AggregateID:   report.ReportID,
		Topic:         events.TopicReportEvents,
		Payload:       body,
	})
	return err
}

func scanReports(rows pgx.Rows) ([]models.CitizenReport, error) {
	reports := make([]models.CitizenReport, 0, 32)
	for rows.Next() {
		var report models.CitizenReport
		if err := rows.Scan(&report.ReportID, &report.Type, &report.Location, &report.Description, &report.Status, &report.ReportedAt, &report.ReportHash, &report.PreviousHash, &report.BlockNumber, &report.Signature, &report.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
