package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lawfirm/booking/internal/platform/auth"
)

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func jsonContext(e *echo.Echo, method, body string, sess auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Submit(t *testing.T) {
	f := newFixture(t)
	f.addWeekly(4)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"lawyer_id":"` + f.lawyer.ID.String() + `","date":"2026-03-10","time":"10:00",` +
		`"client_name":"Grace","client_email":"grace@example.com"}`
	c, rec := jsonContext(e, http.MethodPost, body, auth.Anonymous())
	if err := h.Submit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["status"] != StatusPending || got["appointment_date"] != "2026-03-10" || got["appointment_time"] != "10:00" {
		t.Errorf("unexpected body %v", got)
	}

	c, _ = jsonContext(e, http.MethodPost, body, auth.Anonymous())
	expectHTTPStatus(t, h.Submit(c), http.StatusConflict)
}

func TestHandler_Submit_BadRequest(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	c, _ := jsonContext(e, http.MethodPost, `{"lawyer_id":`, auth.Anonymous())
	expectHTTPStatus(t, h.Submit(c), http.StatusBadRequest)

	c, _ = jsonContext(e, http.MethodPost, `{"lawyer_id":"`+f.lawyer.ID.String()+`"}`, auth.Anonymous())
	expectHTTPStatus(t, h.Submit(c), http.StatusBadRequest)
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	f.addWeekly(4)
	a := f.reserve(t, "2026-03-10", "10:00")
	h := NewHandler(f.svc)
	e := echo.New()

	c, rec := jsonContext(e, http.MethodPatch, `{"status":"confirmed"}`, f.admin)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodPatch, `{"status":"archived"}`, f.admin)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	expectHTTPStatus(t, h.UpdateStatus(c), http.StatusBadRequest)

	c, _ = jsonContext(e, http.MethodPatch, `{"status":"cancelled"}`, auth.Anonymous())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	expectHTTPStatus(t, h.UpdateStatus(c), http.StatusForbidden)

	c, _ = jsonContext(e, http.MethodPatch, `{"status":"cancelled"}`, f.admin)
	c.SetParamNames("id")
	c.SetParamValues("nope")
	expectHTTPStatus(t, h.UpdateStatus(c), http.StatusBadRequest)

	c, _ = jsonContext(e, http.MethodPatch, `{"status":"cancelled"}`, f.admin)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectHTTPStatus(t, h.UpdateStatus(c), http.StatusNotFound)
}

func TestHandler_ListByLawyer(t *testing.T) {
	f := newFixture(t)
	f.addWeekly(4)
	f.reserve(t, "2026-03-10", "10:00")
	f.reserve(t, "2026-03-10", "11:00")
	h := NewHandler(f.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?limit=1&date=2026-03-10", nil)
	req = req.WithContext(auth.WithSession(req.Context(), f.admin))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(f.lawyer.ID.String())

	if err := h.ListByLawyer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Data    []Appointment `json:"data"`
		Total   int           `json:"total"`
		HasMore bool          `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Total != 2 || len(got.Data) != 1 || !got.HasMore {
		t.Errorf("unexpected page %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?date=tomorrow", nil)
	req = req.WithContext(auth.WithSession(req.Context(), f.admin))
	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(f.lawyer.ID.String())
	expectHTTPStatus(t, h.ListByLawyer(c), http.StatusBadRequest)
}
