package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Frequency is how often a recurrence rule repeats
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Frequencies lists every supported frequency in ascending period order
var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

// Event is a row of the general event table. Rows with IsRecurringEventTemplate
// set act as templates for the instances of a series.
type Event struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name                     string     `gorm:"not null" json:"name"`
	Description              *string    `json:"description"`
	Location                 *string    `json:"location"`
	StartAt                  time.Time  `gorm:"not null" json:"startAt"`
	EndAt                    time.Time  `gorm:"not null" json:"endAt"`
	AllDay                   bool       `gorm:"not null;default:false" json:"allDay"`
	IsPublic                 bool       `gorm:"not null;default:false" json:"isPublic"`
	IsRegisterable           bool       `gorm:"not null;default:false" json:"isRegisterable"`
	IsInviteOnly             bool       `gorm:"not null;default:false" json:"isInviteOnly"`
	IsRecurringEventTemplate bool       `gorm:"not null;default:false;index" json:"isRecurringEventTemplate"`
	OrganizationID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"organizationId"`
	CreatorID                *uuid.UUID `gorm:"type:uuid" json:"creatorId"`
	UpdaterID                *uuid.UUID `gorm:"type:uuid" json:"updaterId"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                *time.Time `json:"updatedAt"`
}

func (Event) TableName() string { return "events" }

// RecurrenceRule describes how a template event repeats
type RecurrenceRule struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID       uuid.UUID      `gorm:"type:uuid;not null;index:rr_organization_id_idx" json:"organizationId"`
	BaseRecurringEventID uuid.UUID      `gorm:"type:uuid;not null;index:rr_base_recurring_event_id_idx" json:"baseRecurringEventId"`
	OriginalSeriesID     *uuid.UUID     `gorm:"type:uuid" json:"originalSeriesId"`
	RecurrenceRuleString string         `gorm:"type:varchar(512);not null" json:"recurrenceRuleString"`
	Frequency            Frequency      `gorm:"type:varchar(16);not null;index:rr_frequency_idx" json:"frequency"`
	Interval             int            `gorm:"not null;default:1" json:"interval"`
	RecurrenceStartDate  time.Time      `gorm:"not null;index:rr_recurrence_start_date_idx" json:"recurrenceStartDate"`
	RecurrenceEndDate    *time.Time     `gorm:"index:rr_recurrence_end_date_idx" json:"recurrenceEndDate"`
	Count                *int           `json:"count"`
	LatestInstanceDate   time.Time      `gorm:"not null;index:rr_latest_instance_date_idx" json:"latestInstanceDate"`
	ByDay                pq.StringArray `gorm:"type:text[]" json:"byDay"`
	ByMonth              pq.Int64Array  `gorm:"type:integer[]" json:"byMonth"`
	ByMonthDay           pq.Int64Array  `gorm:"type:integer[]" json:"byMonthDay"`
	CreatorID            uuid.UUID      `gorm:"type:uuid;not null;index:rr_creator_id_idx" json:"creatorId"`
	UpdaterID            *uuid.UUID     `gorm:"type:uuid" json:"updaterId"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            *time.Time     `json:"updatedAt"`
}

func (RecurrenceRule) TableName() string { return "recurrence_rules" }

// RecurringEventInstance is one materialized occurrence of a series.
// Rows are produced by the materializer and only read here.
type RecurringEventInstance struct {
	ID                        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BaseRecurringEventID      uuid.UUID  `gorm:"type:uuid;not null;index:reei_base_recurring_event_idx" json:"baseRecurringEventId"`
	RecurrenceRuleID          uuid.UUID  `gorm:"type:uuid;not null;index:reei_recurrence_rule_idx" json:"recurrenceRuleId"`
	OriginalSeriesID          uuid.UUID  `gorm:"type:uuid;not null;index:reei_original_series_idx" json:"originalSeriesId"`
	OriginalInstanceStartTime time.Time  `gorm:"not null" json:"originalInstanceStartTime"`
	ActualStartTime           time.Time  `gorm:"not null;index:reei_org_date_range_idx,priority:2" json:"actualStartTime"`
	ActualEndTime             time.Time  `gorm:"not null;index:reei_org_date_range_idx,priority:3" json:"actualEndTime"`
	IsCancelled               bool       `gorm:"not null;default:false" json:"isCancelled"`
	OrganizationID            uuid.UUID  `gorm:"type:uuid;not null;index:reei_org_date_range_idx,priority:1" json:"organizationId"`
	GeneratedAt               time.Time  `gorm:"not null;autoCreateTime" json:"generatedAt"`
	LastUpdatedAt             *time.Time `json:"lastUpdatedAt"`
	Version                   string     `gorm:"not null;default:'1'" json:"version"`
	SequenceNumber            int        `gorm:"not null" json:"sequenceNumber"`
	TotalCount                *int       `json:"totalCount"`
}

func (RecurringEventInstance) TableName() string { return "recurring_event_instances" }

// EventException overrides fields of exactly one instance.
// A nil override column means the inherited value is kept.
type EventException struct {
	ID                       uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RecurringEventInstanceID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"recurringEventInstanceId"`
	OrganizationID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"organizationId"`
	ExceptionData            datatypes.JSONMap `gorm:"type:jsonb;not null" json:"exceptionData"`
	Name                     *string           `json:"name"`
	Description              *string           `json:"description"`
	Location                 *string           `json:"location"`
	CreatorID                uuid.UUID         `gorm:"type:uuid;not null;index" json:"creatorId"`
	UpdaterID                *uuid.UUID        `gorm:"type:uuid" json:"updaterId"`
	CreatedAt                time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                *time.Time        `json:"updatedAt"`
}

func (EventException) TableName() string { return "event_exceptions" }

// EventVolunteerGroup belongs to a template event and applies to every instance
type EventVolunteerGroup struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"eventId"`
	Name               string     `gorm:"not null" json:"name"`
	Description        *string    `json:"description"`
	VolunteersRequired *int       `json:"volunteersRequired"`
	LeaderID           uuid.UUID  `gorm:"type:uuid;not null" json:"leaderId"`
	CreatorID          uuid.UUID  `gorm:"type:uuid;not null" json:"creatorId"`
	UpdaterID          *uuid.UUID `gorm:"type:uuid" json:"updaterId"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          *time.Time `json:"updatedAt"`
}

func (EventVolunteerGroup) TableName() string { return "event_volunteer_groups" }

// EventVolunteerGroupException is the per-instance override of a volunteer group
type EventVolunteerGroupException struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	VolunteerGroupID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"volunteerGroupId"`
	RecurringEventInstanceID uuid.UUID  `gorm:"type:uuid;not null;index" json:"recurringEventInstanceId"`
	Name                     *string    `json:"name"`
	Description              *string    `json:"description"`
	VolunteersRequired       *int       `json:"volunteersRequired"`
	LeaderID                 *uuid.UUID `gorm:"type:uuid" json:"leaderId"`
	Deleted                  bool       `gorm:"not null;default:false" json:"deleted"`
	CreatorID                uuid.UUID  `gorm:"type:uuid;not null" json:"creatorId"`
	UpdaterID                *uuid.UUID `gorm:"type:uuid" json:"updaterId"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                *time.Time `json:"updatedAt"`
}

func (EventVolunteerGroupException) TableName() string { return "event_volunteer_group_exceptions" }

// ResolvedRecurringEventInstance is the read model of one occurrence after the
// template, the generated instance and any exception have been merged. It is
// built on every read and never persisted.
type ResolvedRecurringEventInstance struct {
	ID                        uuid.UUID  `json:"id"`
	BaseRecurringEventID      uuid.UUID  `json:"baseRecurringEventId"`
	RecurrenceRuleID          uuid.UUID  `json:"recurrenceRuleId"`
	OriginalSeriesID          uuid.UUID  `json:"originalSeriesId"`
	OriginalInstanceStartTime time.Time  `json:"originalInstanceStartTime"`
	ActualStartTime           time.Time  `json:"actualStartTime"`
	ActualEndTime             time.Time  `json:"actualEndTime"`
	IsCancelled               bool       `json:"isCancelled"`
	OrganizationID            uuid.UUID  `json:"organizationId"`
	GeneratedAt               time.Time  `json:"generatedAt"`
	LastUpdatedAt             *time.Time `json:"lastUpdatedAt"`
	Version                   string     `json:"version"`
	SequenceNumber            int        `json:"sequenceNumber"`
	TotalCount                *int       `json:"totalCount"`

	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	Location       *string    `json:"location"`
	AllDay         bool       `json:"allDay"`
	IsPublic       bool       `json:"isPublic"`
	IsRegisterable bool       `json:"isRegisterable"`
	IsInviteOnly   bool       `json:"isInviteOnly"`
	CreatorID      *uuid.UUID `json:"creatorId"`
	UpdaterID      *uuid.UUID `json:"updaterId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`

	HasExceptions        bool                   `json:"hasExceptions"`
	AppliedExceptionData map[string]interface{} `json:"appliedExceptionData"`
	ExceptionCreatedBy   *uuid.UUID             `json:"exceptionCreatedBy"`
	ExceptionCreatedAt   *time.Time             `json:"exceptionCreatedAt"`
}

// SetupModels runs migrations for every table this service reads
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Event{},
		&RecurrenceRule{},
		&RecurringEventInstance{},
		&EventException{},
		&EventVolunteerGroup{},
		&EventVolunteerGroupException{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
