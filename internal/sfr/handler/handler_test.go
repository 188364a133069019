package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sfr_ops_backend/internal/sfr/domain"
	"sfr_ops_backend/internal/sfr/lifecycle"
	"sfr_ops_backend/internal/sfr/repository"
	"sfr_ops_backend/platform/apperr"
	"sfr_ops_backend/platform/httpkit"
	"sfr_ops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op    string
	id    int64
	actor domain.Actor
	opts  lifecycle.MutationOptions
	in    any
}

type fakeService struct {
	calls []call
	err   error
}

func (f *fakeService) result(op string, id int64, actor domain.Actor, opts lifecycle.MutationOptions, in any) (lifecycle.Result, error) {
	f.calls = append(f.calls, call{op: op, id: id, actor: actor, opts: opts, in: in})
	if f.err != nil {
		return lifecycle.Result{}, f.err
	}
	req := &domain.Request{ID: id, Callsign: "RCH123", Status: domain.StatusAmended}
	return lifecycle.Result{Request: req, Previous: domain.StatusConfirmed, Status: domain.StatusAmended}, nil
}

func (f *fakeService) Create(_ context.Context, in lifecycle.CreateInput, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("create", 101, a, o, in)
}
func (f *fakeService) ApplyMutation(_ context.Context, in lifecycle.MutationInput, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("mutate", in.RequestID, a, o, in)
}
func (f *fakeService) Cancel(_ context.Context, id int64, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("cancel", id, a, o, nil)
}
func (f *fakeService) ConfirmHandling(_ context.Context, id int64, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("confirm_handling", id, a, o, nil)
}
func (f *fakeService) SendReconfirmation(_ context.Context, id int64, a domain.Actor, automatic bool, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("send_reconfirmation", id, a, o, automatic)
}
func (f *fakeService) ConfirmDepartureUpdate(_ context.Context, id int64, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("confirm_departure_update", id, a, o, nil)
}
func (f *fakeService) UpdateFuelBooking(_ context.Context, id int64, u lifecycle.FuelUpdate, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("fuel", id, a, o, u)
}
func (f *fakeService) UpdateServiceConfirmation(_ context.Context, id, bookingID int64, s domain.ServiceState, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("service", id, a, o, [2]any{bookingID, s})
}
func (f *fakeService) SetAOG(_ context.Context, id int64, on bool, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("aog", id, a, o, on)
}
func (f *fakeService) SetUnableToSupport(_ context.Context, id int64, on bool, a domain.Actor, o lifecycle.MutationOptions) (lifecycle.Result, error) {
	return f.result("uts", id, a, o, on)
}
func (f *fakeService) Get(_ context.Context, id int64) (*domain.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Request{ID: id, Callsign: "RCH123", Status: domain.StatusConfirmed}, nil
}
func (f *fakeService) Status(context.Context, int64) (domain.Status, error) {
	return domain.StatusConfirmed, f.err
}
func (f *fakeService) Activity(_ context.Context, _ int64, limit int) ([]repository.ActivityLogEntry, error) {
	return make([]repository.ActivityLogEntry, limit), f.err
}

func newRouter(svc *fakeService, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextActorIDKey, int64(42))
		c.Set(httpkit.ContextRolesKey, roles)
		c.Next()
	})
	New(svc, validator.New()).RegisterRoutes(r.Group("/sfr"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateMapsBodyAndReturnsCreated(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleClient)
	arr := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	body := `{"callsign":"rch123","tailNumber":"06-6154","organisationId":3,"locationCode":"egll",
		"arrival":{"scheduledAt":"` + arr.Format(time.RFC3339) + `"},
		"departure":{"scheduledAt":"` + arr.Add(4*time.Hour).Format(time.RFC3339) + `"},
		"services":[{"serviceId":2,"direction":"ARRIVAL","action":"add","note":"12 meals"}]}`

	w := do(r, http.MethodPost, "/sfr", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, svc.calls, 1)
	in := svc.calls[0].in.(lifecycle.CreateInput)
	assert.Equal(t, "RCH123", in.Callsign)
	assert.Equal(t, "EGLL", in.LocationCode)
	assert.Equal(t, domain.FuelNone, in.FuelRequired)
	assert.Equal(t, domain.DirectionDeparture, in.Departure.Direction)
	require.Len(t, in.Services, 1)
	assert.Equal(t, domain.ServiceAdd, in.Services[0].Action)
	assert.Equal(t, int64(42), svc.calls[0].actor.ID)
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleClient)

	w := do(r, http.MethodPost, "/sfr", `{"callsign":"not a callsign!","organisationId":3,"locationCode":"EGLL"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, msgValidationFailed, resp.Error)
	assert.Empty(t, svc.calls)
}

func TestCreateRejectsQuantityWithFreeText(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleStaff)
	body := `{"callsign":"RCH1","organisationId":3,"locationCode":"EGLL",
		"arrival":{"scheduledAt":"2026-03-11T10:00:00Z"},"departure":{"scheduledAt":"2026-03-11T12:00:00Z"},
		"services":[{"serviceId":3,"direction":"ARRIVAL","action":"add","freeText":"fill up","quantity":200}]}`

	w := do(r, http.MethodPost, "/sfr", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.calls)
}

func TestMutateIgnoresStaffOptionsForClients(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleClient)

	w := do(r, http.MethodPatch, "/sfr/11", `{"tailNumber":"06-6155","markReviewed":true,"suppressNotifications":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, svc.calls, 1)
	assert.Equal(t, lifecycle.MutationOptions{}, svc.calls[0].opts)
	in := svc.calls[0].in.(lifecycle.MutationInput)
	assert.Equal(t, "06-6155", *in.Fields.TailNumber)
}

func TestMutatePassesStaffOptions(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleSupervisor)

	w := do(r, http.MethodPatch, "/sfr/11", `{"handlingAgentId":10,"markReviewed":true,"retainFuelOrder":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	opts := svc.calls[0].opts
	assert.True(t, opts.MarkReviewed)
	assert.True(t, opts.RetainFuelOrder)
	assert.True(t, opts.Privileged)
	assert.Equal(t, int64(10), svc.calls[0].in.(lifecycle.MutationInput).Fields.HandlingAgent.ID)
}

func TestStaffRoutesForbidClients(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleClient)

	w := do(r, http.MethodPut, "/sfr/11/aog", `{"on":true}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.calls)
}

func TestToggleRequiresValue(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleStaff)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/sfr/11/unable-to-support", `{}`).Code)

	w := do(r, http.MethodPut, "/sfr/11/unable-to-support", `{"on":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, svc.calls[0].in)
}

func TestServiceConfirmationParsesBookingID(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleStaff)

	w := do(r, http.MethodPut, "/sfr/11/services/101", `{"state":"unavailable"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]any{int64(101), domain.ServiceUnavailable}, svc.calls[0].in)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/sfr/11/services/abc", `{"state":"confirmed"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/sfr/11/services/101", `{"state":"maybe"}`).Code)
}

func TestSendReconfirmationAcceptsEmptyBody(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleStaff)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/sfr/11/reconfirmation", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/sfr/11/reconfirmation", `{"automatic":true}`).Code)
	assert.Equal(t, false, svc.calls[0].in)
	assert.Equal(t, true, svc.calls[1].in)
}

func TestDomainErrorsMapToStatusCodes(t *testing.T) {
	cases := map[error]int{
		apperr.Conflict("request is being modified by someone else, retry"): http.StatusConflict,
		apperr.NotFound("request not found"):                               http.StatusNotFound,
		apperr.Validation("departure must be after arrival"):               http.StatusBadRequest,
	}
	for err, want := range cases {
		svc := &fakeService{err: err}
		r := newRouter(svc, httpkit.RoleStaff)
		w := do(r, http.MethodPost, "/sfr/11/cancel", "")
		assert.Equal(t, want, w.Code, err.Error())
	}
}

func TestReadEndpoints(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc, httpkit.RoleClient)

	w := do(r, http.MethodGet, "/sfr/11/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":3,"label":"Confirmed"}`, w.Body.String())

	w = do(r, http.MethodGet, "/sfr/11/activity?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/sfr/11/activity?limit=9000", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/sfr/0", "").Code)
}
