package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type campaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a Postgres-backed implementation of CampaignRepository.
func NewCampaignRepository(pool *pgxpool.Pool) repository.CampaignRepository {
	return &campaignRepository{pool: pool}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if campaign == nil || campaign.OrganizationID == "" || campaign.Name == "" {
		return nil, domain.ErrInvalidPayload
	}
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.Status == "" {
		campaign.Status = domain.CampaignDraft
	}

	const query = `
	INSERT INTO campaigns (id, organization_id, name, status, message_template, target_audience)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		campaign.ID,
		campaign.OrganizationID,
		campaign.Name,
		string(campaign.Status),
		campaign.MessageTemplate,
		marshalJSON(campaign.TargetAudience),
	).Scan(&campaign.CreatedAt, &campaign.UpdatedAt); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (r *campaignRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	const query = `
	SELECT id, organization_id, name, status, message_template, target_audience, start_date, end_date, created_at, updated_at
	FROM campaigns
	WHERE id = $1 AND organization_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanCampaign(row)
}

func (r *campaignRepository) List(ctx context.Context, organizationID string) ([]domain.Campaign, error) {
	const query = `
	SELECT id, organization_id, name, status, message_template, target_audience, start_date, end_date, created_at, updated_at
	FROM campaigns
	WHERE organization_id = $1
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *campaign)
	}
	return campaigns, rows.Err()
}

func (r *campaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	if campaign == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE campaigns
	SET name = $3,
		status = $4,
		message_template = $5,
		target_audience = $6,
		start_date = $7,
		end_date = $8,
		updated_at = NOW()
	WHERE id = $1 AND organization_id = $2
	RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		campaign.ID,
		campaign.OrganizationID,
		campaign.Name,
		string(campaign.Status),
		campaign.MessageTemplate,
		marshalJSON(campaign.TargetAudience),
		nullTime(campaign.StartDate),
		nullTime(campaign.EndDate),
	).Scan(&campaign.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrCampaignNotFound
		}
		return err
	}
	return nil
}

func (r *campaignRepository) Delete(ctx context.Context, id, organizationID string) error {
	const query = `DELETE FROM campaigns WHERE id = $1 AND organization_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Campaign, error) {
	var (
		c        domain.Campaign
		status   string
		audience []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&status,
		&c.MessageTemplate,
		&audience,
		&c.StartDate,
		&c.EndDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}
	c.Status = domain.CampaignStatus(status)
	if len(audience) > 0 {
		_ = json.Unmarshal(audience, &c.TargetAudience)
	}
	return &c, nil
}

type sequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository returns a Postgres-backed implementation of SequenceRepository.
func NewSequenceRepository(pool *pgxpool.Pool) repository.SequenceRepository {
	return &sequenceRepository{pool: pool}
}

func (r *sequenceRepository) Create(ctx context.Context, sequence *domain.CampaignSequence) (*domain.CampaignSequence, error) {
	if sequence == nil || sequence.CampaignID == "" || sequence.StepNumber <= 0 {
		return nil, domain.ErrInvalidPayload
	}
	if sequence.ID == "" {
		sequence.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO campaign_sequences (id, campaign_id, step_number, delay_days, delay_hours, template, conditions, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		sequence.ID,
		sequence.CampaignID,
		sequence.StepNumber,
		sequence.DelayDays,
		sequence.DelayHours,
		sequence.Template,
		marshalJSON(sequence.Conditions),
		sequence.IsActive,
	).Scan(&sequence.CreatedAt); err != nil {
		return nil, err
	}
	return sequence, nil
}

func (r *sequenceRepository) ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignSequence, error) {
	const query = `
	SELECT id, campaign_id, step_number, delay_days, delay_hours, template, conditions, is_active, created_at
	FROM campaign_sequences
	WHERE campaign_id = $1
	ORDER BY step_number ASC
	`
	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sequences []domain.CampaignSequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, *seq)
	}
	return sequences, rows.Err()
}

func (r *sequenceRepository) NextActive(ctx context.Context, campaignID string, currentStep int) (*domain.CampaignSequence, error) {
	const query = `
	SELECT id, campaign_id, step_number, delay_days, delay_hours, template, conditions, is_active, created_at
	FROM campaign_sequences
	WHERE campaign_id = $1 AND step_number > $2 AND is_active = TRUE
	ORDER BY step_number ASC
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, campaignID, currentStep)
	return scanSequence(row)
}

func scanSequence(row interface {
	Scan(dest ...interface{}) error
}) (*domain.CampaignSequence, error) {
	var (
		s          domain.CampaignSequence
		conditions []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.CampaignID,
		&s.StepNumber,
		&s.DelayDays,
		&s.DelayHours,
		&s.Template,
		&conditions,
		&s.IsActive,
		&s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSequenceNotFound
		}
		return nil, err
	}
	if len(conditions) > 0 {
		_ = json.Unmarshal(conditions, &s.Conditions)
	}
	return &s, nil
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a Postgres-backed implementation of MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) repository.MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.CampaignMessage) (*domain.CampaignMessage, error) {
	if message == nil || message.CampaignID == "" || message.ContactID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Status == "" {
		message.Status = domain.MessagePending
	}

	const query = `
	INSERT INTO campaign_messages (id, campaign_id, contact_id, sequence_step, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		message.ID,
		message.CampaignID,
		message.ContactID,
		message.SequenceStep,
		string(message.Status),
	).Scan(&message.CreatedAt); err != nil {
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) HasReplied(ctx context.Context, campaignID, contactID string) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM campaign_messages
		WHERE campaign_id = $1 AND contact_id = $2 AND status = 'replied'
	)
	`
	var replied bool
	if err := r.pool.QueryRow(ctx, query, campaignID, contactID).Scan(&replied); err != nil {
		return false, err
	}
	return replied, nil
}

func (r *messageRepository) LatestSent(ctx context.Context, organizationID, contactID string) (*domain.CampaignMessage, error) {
	const query = `
	SELECT m.id, m.campaign_id, m.contact_id, m.sequence_step, m.status, m.sent_at, m.replied_at, m.error_message, m.created_at
	FROM campaign_messages m
	JOIN campaigns c ON c.id = m.campaign_id
	WHERE m.contact_id = $1
	  AND m.status IN ('sent', 'delivered')
	  AND c.organization_id = $2
	  AND c.status = 'active'
	ORDER BY m.sent_at DESC NULLS LAST
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, contactID, organizationID)
	return scanMessage(row)
}

func (r *messageRepository) MarkSent(ctx context.Context, id string) error {
	const query = `
	UPDATE campaign_messages
	SET status = 'sent', sent_at = NOW()
	WHERE id = $1 AND status = 'pending'
	`
	return r.execStatusUpdate(ctx, query, id)
}

func (r *messageRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	const query = `
	UPDATE campaign_messages
	SET status = 'failed', error_message = $2
	WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query, id, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) MarkReplied(ctx context.Context, id string) error {
	const query = `
	UPDATE campaign_messages
	SET status = 'replied', replied_at = NOW()
	WHERE id = $1 AND status IN ('sent', 'delivered', 'pending')
	`
	return r.execStatusUpdate(ctx, query, id)
}

func (r *messageRepository) SkipPending(ctx context.Context, campaignID, contactID string) (int64, error) {
	const query = `
	UPDATE campaign_messages
	SET status = 'skipped'
	WHERE campaign_id = $1 AND contact_id = $2 AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query, campaignID, contactID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepository) List(ctx context.Context, filter repository.MessageFilter) ([]domain.CampaignMessage, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	const query = `
	SELECT id, campaign_id, contact_id, sequence_step, status, sent_at, replied_at, error_message, created_at
	FROM campaign_messages
	WHERE ($1 = '' OR campaign_id = $1)
	  AND ($2 = '' OR contact_id = $2)
	  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, filter.CampaignID, filter.ContactID, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.CampaignMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *messageRepository) execStatusUpdate(ctx context.Context, query, id string) error {
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*domain.CampaignMessage, error) {
	var (
		m      domain.CampaignMessage
		status string
	)
	if err := row.Scan(
		&m.ID,
		&m.CampaignID,
		&m.ContactID,
		&m.SequenceStep,
		&status,
		&m.SentAt,
		&m.RepliedAt,
		&m.ErrorMessage,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	m.Status = domain.MessageStatus(status)
	return &m, nil
}
