package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/calendar/internal/models"
	"example.com/backstage/services/calendar/internal/resolver"
	"example.com/backstage/services/calendar/internal/services"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetRecurringEventInstanceByID(ctx context.Context, instanceID, organizationID uuid.UUID) (*models.ResolvedRecurringEventInstance, error) {
	args := m.Called(ctx, instanceID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResolvedRecurringEventInstance), args.Error(1)
}

func (m *MockService) GetRecurringEventInstancesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ResolvedRecurringEventInstance, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ResolvedRecurringEventInstance), args.Error(1)
}

func (m *MockService) GetRecurringEventInstancesInDateRange(ctx context.Context, input services.DateRangeInput) ([]models.ResolvedRecurringEventInstance, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ResolvedRecurringEventInstance), args.Error(1)
}

func (m *MockService) GetRecurringEventInstancesByBaseID(ctx context.Context, baseID uuid.UUID, opts services.BaseIDsOptions) ([]models.ResolvedRecurringEventInstance, error) {
	args := m.Called(ctx, baseID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ResolvedRecurringEventInstance), args.Error(1)
}

func (m *MockService) GetVolunteerGroupsForInstance(ctx context.Context, instanceID, organizationID uuid.UUID) ([]models.EventVolunteerGroup, error) {
	args := m.Called(ctx, instanceID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventVolunteerGroup), args.Error(1)
}

func (m *MockService) PreviewOccurrences(ctx context.Context, ruleID, organizationID uuid.UUID, windowStart, windowEnd time.Time, max int) (*services.OccurrencePreview, error) {
	args := m.Called(ctx, ruleID, organizationID, windowStart, windowEnd, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OccurrencePreview), args.Error(1)
}

func setupRouter(svc *MockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewInstanceHandler(svc, 3).RegisterRoutes(router)
	NewRecurrenceHandler(svc).RegisterRoutes(router)
	return router
}

func serve(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetByID(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	orgID, instanceID := uuid.New(), uuid.New()

	resolved := &models.ResolvedRecurringEventInstance{ID: instanceID, OrganizationID: orgID, Name: "Standup"}
	svc.On("GetRecurringEventInstanceByID", mock.Anything, instanceID, orgID).Return(resolved, nil)

	w := serve(router, http.MethodGet, "/organizations/"+orgID.String()+"/recurring-event-instances/"+instanceID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.ResolvedRecurringEventInstance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Standup", got.Name)
	assert.Equal(t, instanceID, got.ID)
	svc.AssertExpectations(t)
}

func TestGetByID_Errors(t *testing.T) {
	orgID, instanceID := uuid.New(), uuid.New()
	path := "/organizations/" + orgID.String() + "/recurring-event-instances/" + instanceID.String()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", nil, http.StatusNotFound, "NOT_FOUND"},
		{"missing template", &resolver.TemplateNotFoundError{InstanceID: instanceID, TemplateID: uuid.New()}, http.StatusInternalServerError, "DATA_INTEGRITY_ERROR"},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			router := setupRouter(svc)
			svc.On("GetRecurringEventInstanceByID", mock.Anything, instanceID, orgID).Return(nil, tt.err)

			w := serve(router, http.MethodGet, path, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestGetByID_InvalidUUID(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	w := serve(router, http.MethodGet, "/organizations/not-a-uuid/recurring-event-instances/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
	svc.AssertNotCalled(t, "GetRecurringEventInstanceByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetByIDs(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	a, b := uuid.New(), uuid.New()

	svc.On("GetRecurringEventInstancesByIDs", mock.Anything, []uuid.UUID{a, b}).
		Return([]models.ResolvedRecurringEventInstance{{ID: a}, {ID: b}}, nil)

	w := serve(router, http.MethodGet, "/recurring-event-instances?ids="+a.String()+",,"+b.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp InstancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, a, resp.Instances[0].ID)
	svc.AssertExpectations(t)
}

func TestGetByIDs_TooMany(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()}
	w := serve(router, http.MethodGet, "/recurring-event-instances?ids="+strings.Join(ids, ","), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "at most 3")
	svc.AssertNotCalled(t, "GetRecurringEventInstancesByIDs", mock.Anything, mock.Anything)
}

func TestGetByIDs_BadID(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	w := serve(router, http.MethodGet, "/recurring-event-instances?ids=nope", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, `"nope"`)
}

func TestListInDateRange(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	orgID, excluded := uuid.New(), uuid.New()

	expected := services.DateRangeInput{
		OrganizationID:     orgID,
		StartDate:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		IncludeCancelled:   true,
		Limit:              25,
		ExcludeInstanceIDs: []uuid.UUID{excluded},
	}
	svc.On("GetRecurringEventInstancesInDateRange", mock.Anything, mock.MatchedBy(func(in services.DateRangeInput) bool {
		return in.OrganizationID == expected.OrganizationID &&
			in.StartDate.Equal(expected.StartDate) &&
			in.EndDate.Equal(expected.EndDate) &&
			in.IncludeCancelled &&
			in.Limit == 25 &&
			len(in.ExcludeInstanceIDs) == 1 && in.ExcludeInstanceIDs[0] == excluded
	})).Return([]models.ResolvedRecurringEventInstance{}, nil)

	target := "/organizations/" + orgID.String() + "/recurring-event-instances" +
		"?startDate=2025-01-01T00:00:00Z&endDate=2025-02-01T00:00:00Z&includeCancelled=true&limit=25&exclude=" + excluded.String()
	w := serve(router, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"instances":[],"count":0}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestListInDateRange_BadQuery(t *testing.T) {
	orgID := uuid.NewString()
	base := "/organizations/" + orgID + "/recurring-event-instances"

	tests := []struct {
		name  string
		query string
	}{
		{"bad start", "?startDate=yesterday&endDate=2025-02-01T00:00:00Z"},
		{"bad end", "?startDate=2025-01-01T00:00:00Z&endDate=tomorrow"},
		{"bad bool", "?startDate=2025-01-01T00:00:00Z&endDate=2025-02-01T00:00:00Z&includeCancelled=maybe"},
		{"bad limit", "?startDate=2025-01-01T00:00:00Z&endDate=2025-02-01T00:00:00Z&limit=ten"},
		{"bad exclude", "?startDate=2025-01-01T00:00:00Z&endDate=2025-02-01T00:00:00Z&exclude=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			w := serve(setupRouter(svc), http.MethodGet, base+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "GetRecurringEventInstancesInDateRange", mock.Anything, mock.Anything)
		})
	}
}

func TestListInDateRange_ServiceValidation(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	orgID := uuid.New()

	svc.On("GetRecurringEventInstancesInDateRange", mock.Anything, mock.Anything).
		Return(nil, services.NewValidationError("endDate", "gtefield", "must not be before startDate"))

	w := serve(router, http.MethodGet, "/organizations/"+orgID.String()+"/recurring-event-instances?startDate=2025-02-01T00:00:00Z&endDate=2025-01-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeError(t, w)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "endDate", resp.Violations[0].Field)
}

func TestListBySeries(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	eventID := uuid.New()

	svc.On("GetRecurringEventInstancesByBaseID", mock.Anything, eventID, services.BaseIDsOptions{Limit: 5}).
		Return([]models.ResolvedRecurringEventInstance{{ID: uuid.New(), BaseRecurringEventID: eventID}}, nil)

	w := serve(router, http.MethodGet, "/events/"+eventID.String()+"/instances?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp InstancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	svc.AssertExpectations(t)
}

func TestGetVolunteerGroups(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	orgID, instanceID := uuid.New(), uuid.New()
	path := "/organizations/" + orgID.String() + "/recurring-event-instances/" + instanceID.String() + "/volunteer-groups"

	svc.On("GetVolunteerGroupsForInstance", mock.Anything, instanceID, orgID).
		Return([]models.EventVolunteerGroup{{ID: uuid.New(), Name: "Setup"}}, nil).Once()

	w := serve(router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp VolunteerGroupsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.VolunteerGroups, 1)
	assert.Equal(t, "Setup", resp.VolunteerGroups[0].Name)

	svc.On("GetVolunteerGroupsForInstance", mock.Anything, instanceID, orgID).
		Return(nil, services.ErrInstanceNotFound).Once()

	w = serve(router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateRule(t *testing.T) {
	router := setupRouter(new(MockService))

	valid := `{
		"recurrenceRuleString": "FREQ=WEEKLY;BYDAY=MO",
		"frequency": "WEEKLY",
		"recurrenceStartDate": "2025-01-06T10:00:00Z",
		"latestInstanceDate": "2025-01-06T10:00:00Z",
		"byDay": ["MO"],
		"baseRecurringEventId": "` + uuid.NewString() + `",
		"organizationId": "` + uuid.NewString() + `",
		"creatorId": "` + uuid.NewString() + `"
	}`

	w := serve(router, http.MethodPost, "/recurrence-rules/validate", valid)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateRuleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Violations)
	assert.Contains(t, resp.RRule, "FREQ=WEEKLY")
}

func TestValidateRule_Invalid(t *testing.T) {
	router := setupRouter(new(MockService))

	w := serve(router, http.MethodPost, "/recurrence-rules/validate", `{"frequency":"HOURLY","interval":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateRuleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Empty(t, resp.RRule)

	fields := make(map[string]bool)
	for _, v := range resp.Violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["frequency"])
	assert.True(t, fields["interval"])
	assert.True(t, fields["organizationId"])
}

func TestOccurrences(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	orgID, ruleID := uuid.New(), uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	preview := &services.OccurrencePreview{
		RuleID:      ruleID,
		RRule:       "FREQ=WEEKLY;BYDAY=MO",
		Occurrences: []time.Time{time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)},
	}
	svc.On("PreviewOccurrences", mock.Anything, ruleID, orgID, mock.MatchedBy(start.Equal), mock.MatchedBy(end.Equal), 10).
		Return(preview, nil)

	target := "/organizations/" + orgID.String() + "/recurrence-rules/" + ruleID.String() +
		"/occurrences?start=2025-01-01T00:00:00Z&end=2025-01-31T00:00:00Z&max=10"
	w := serve(router, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got services.OccurrencePreview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, ruleID, got.RuleID)
	assert.Len(t, got.Occurrences, 1)
	svc.AssertExpectations(t)
}

func TestOccurrences_Errors(t *testing.T) {
	orgID, ruleID := uuid.New(), uuid.New()
	base := "/organizations/" + orgID.String() + "/recurrence-rules/" + ruleID.String() + "/occurrences"

	svc := new(MockService)
	router := setupRouter(svc)

	w := serve(router, http.MethodGet, base+"?start=bad&end=2025-01-31T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodGet, base+"?start=2025-01-01T00:00:00Z&end=2025-01-31T00:00:00Z&max=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("PreviewOccurrences", mock.Anything, ruleID, orgID, mock.Anything, mock.Anything, 0).
		Return(nil, services.ErrRuleNotFound)
	w = serve(router, http.MethodGet, base+"?start=2025-01-01T00:00:00Z&end=2025-01-31T00:00:00Z", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
