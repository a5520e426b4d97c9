package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/calendar/internal/models"
	"example.com/backstage/services/calendar/internal/services"
)

// InstanceReader is the part of the instance service the HTTP layer uses
type InstanceReader interface {
	GetRecurringEventInstanceByID(ctx context.Context, instanceID, organizationID uuid.UUID) (*models.ResolvedRecurringEventInstance, error)
	GetRecurringEventInstancesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ResolvedRecurringEventInstance, error)
	GetRecurringEventInstancesInDateRange(ctx context.Context, input services.DateRangeInput) ([]models.ResolvedRecurringEventInstance, error)
	GetRecurringEventInstancesByBaseID(ctx context.Context, baseID uuid.UUID, opts services.BaseIDsOptions) ([]models.ResolvedRecurringEventInstance, error)
	GetVolunteerGroupsForInstance(ctx context.Context, instanceID, organizationID uuid.UUID) ([]models.EventVolunteerGroup, error)
}

// InstanceHandler handles recurring event instance HTTP requests
type InstanceHandler struct {
	service InstanceReader
	maxIDs  int
}

// NewInstanceHandler creates a new instance handler. maxIDs caps the ids query parameter.
func NewInstanceHandler(service InstanceReader, maxIDs int) *InstanceHandler {
	return &InstanceHandler{
		service: service,
		maxIDs:  maxIDs,
	}
}

// InstancesResponse wraps a list of resolved instances
type InstancesResponse struct {
	Instances []models.ResolvedRecurringEventInstance `json:"instances"`
	Count     int                                     `json:"count"`
}

// VolunteerGroupsResponse wraps the volunteer groups of an instance
type VolunteerGroupsResponse struct {
	VolunteerGroups []models.EventVolunteerGroup `json:"volunteerGroups"`
}

// RegisterRoutes registers the instance routes
func (h *InstanceHandler) RegisterRoutes(router gin.IRouter) {
	org := router.Group("/organizations/:organizationId/recurring-event-instances")
	org.GET("", h.ListInDateRange)
	org.GET("/:instanceId", h.GetByID)
	org.GET("/:instanceId/volunteer-groups", h.GetVolunteerGroups)

	router.GET("/recurring-event-instances", h.GetByIDs)
	router.GET("/events/:eventId/instances", h.ListBySeries)
}

// GetByID handles GET /organizations/:organizationId/recurring-event-instances/:instanceId
func (h *InstanceHandler) GetByID(c *gin.Context) {
	orgID, ok := pathUUID(c, "organizationId")
	if !ok {
		return
	}
	instanceID, ok := pathUUID(c, "instanceId")
	if !ok {
		return
	}

	resolved, err := h.service.GetRecurringEventInstanceByID(c.Request.Context(), instanceID, orgID)
	if err != nil {
		WriteError(c, err)
		return
	}
	if resolved == nil {
		WriteError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// GetByIDs handles GET /recurring-event-instances?ids=a,b,c
func (h *InstanceHandler) GetByIDs(c *gin.Context) {
	ids, err := parseUUIDList(c.Query("ids"))
	if err != nil {
		WriteError(c, NewValidationError(fmt.Sprintf("ids: %s", err)))
		return
	}
	if h.maxIDs > 0 && len(ids) > h.maxIDs {
		WriteError(c, NewValidationError(fmt.Sprintf("ids: at most %d ids may be requested", h.maxIDs)))
		return
	}

	resolved, err := h.service.GetRecurringEventInstancesByIDs(c.Request.Context(), ids)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, InstancesResponse{Instances: resolved, Count: len(resolved)})
}

// ListInDateRange handles GET /organizations/:organizationId/recurring-event-instances
func (h *InstanceHandler) ListInDateRange(c *gin.Context) {
	orgID, ok := pathUUID(c, "organizationId")
	if !ok {
		return
	}

	input := services.DateRangeInput{OrganizationID: orgID}
	var err error

	if input.StartDate, err = parseTime(c.Query("startDate")); err != nil {
		WriteError(c, NewValidationError("startDate must be an RFC 3339 date-time"))
		return
	}
	if input.EndDate, err = parseTime(c.Query("endDate")); err != nil {
		WriteError(c, NewValidationError("endDate must be an RFC 3339 date-time"))
		return
	}
	if input.IncludeCancelled, err = queryBool(c, "includeCancelled"); err != nil {
		WriteError(c, NewValidationError("includeCancelled must be a boolean"))
		return
	}
	if input.Limit, err = queryInt(c, "limit"); err != nil {
		WriteError(c, NewValidationError("limit must be an integer"))
		return
	}
	if input.ExcludeInstanceIDs, err = parseUUIDList(c.Query("exclude")); err != nil {
		WriteError(c, NewValidationError(fmt.Sprintf("exclude: %s", err)))
		return
	}

	resolved, err := h.service.GetRecurringEventInstancesInDateRange(c.Request.Context(), input)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, InstancesResponse{Instances: resolved, Count: len(resolved)})
}

// ListBySeries handles GET /events/:eventId/instances
func (h *InstanceHandler) ListBySeries(c *gin.Context) {
	eventID, ok := pathUUID(c, "eventId")
	if !ok {
		return
	}

	var opts services.BaseIDsOptions
	var err error
	if opts.IncludeCancelled, err = queryBool(c, "includeCancelled"); err != nil {
		WriteError(c, NewValidationError("includeCancelled must be a boolean"))
		return
	}
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		WriteError(c, NewValidationError("limit must be an integer"))
		return
	}

	resolved, err := h.service.GetRecurringEventInstancesByBaseID(c.Request.Context(), eventID, opts)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, InstancesResponse{Instances: resolved, Count: len(resolved)})
}

// GetVolunteerGroups handles GET /organizations/:organizationId/recurring-event-instances/:instanceId/volunteer-groups
func (h *InstanceHandler) GetVolunteerGroups(c *gin.Context) {
	orgID, ok := pathUUID(c, "organizationId")
	if !ok {
		return
	}
	instanceID, ok := pathUUID(c, "instanceId")
	if !ok {
		return
	}

	groups, err := h.service.GetVolunteerGroupsForInstance(c.Request.Context(), instanceID, orgID)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, VolunteerGroupsResponse{VolunteerGroups: groups})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		WriteError(c, NewValidationError(name+" must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// parseUUIDList parses a comma separated id list; blank entries are skipped
func parseUUIDList(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid UUID", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseTime returns the zero time for an empty value so validation reports it as required
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
