package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodtrack/internal/apperror"
	"github.com/sakif/foodtrack/internal/auth"
	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/export"
	"github.com/sakif/foodtrack/internal/logger"
	"github.com/sakif/foodtrack/internal/model"
	"github.com/sakif/foodtrack/internal/service"
	"github.com/sakif/foodtrack/internal/tracker"
)

// MaxValueLength caps one field of one day, in bytes.
const MaxValueLength = 500

// CycleHandler exposes the tracker to the browser.
//
// Every route works on the signed-in user's tracker.Session, so reads come
// from memory and edits are applied optimistically.
type CycleHandler struct {
	sessions *tracker.Registry
	cycles   *service.CycleService
	users    *service.AuthService
	logger   *slog.Logger
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(
	sessions *tracker.Registry,
	cycles *service.CycleService,
	users *service.AuthService,
	logger *slog.Logger,
) *CycleHandler {
	return &CycleHandler{
		sessions: sessions,
		cycles:   cycles,
		users:    users,
		logger:   logger,
	}
}

// dayView is one row of the grid.
type dayView struct {
	Day int `json:"day"`
	model.DayEntry
	Status string `json:"status"` // Current, Completed or Upcoming
}

type cycleView struct {
	ID               string    `json:"id"`
	Number           int       `json:"cycleNumber"`
	StartDate        string    `json:"startDate"`        // YYYY-MM-DD
	StartDateDisplay string    `json:"startDateDisplay"` // January 2, 2006
	Days             []dayView `json:"days"`
}

// cycleResponse is the dashboard: the grid plus the calculator's figures.
type cycleResponse struct {
	Cycle cycleView `json:"cycle"`
	service.Status
}

func (h *CycleHandler) view(s *tracker.Session) (cycleResponse, error) {
	c, ok := s.Snapshot()
	if !ok {
		if err := s.Err(); err != nil {
			return cycleResponse{}, err
		}
		return cycleResponse{}, apperror.NotFound("cycle for user", "current")
	}

	today := h.cycles.Today()
	st := service.Status{
		CurrentDay:    s.CurrentDay(),
		RemainingDays: s.RemainingDays(),
		Progress:      calendar.Progress(c.StartDate, today),
		IsComplete:    calendar.IsComplete(c.StartDate, today),
	}

	days := make([]dayView, calendar.CycleLength)
	for i, entry := range c.Days {
		days[i] = dayView{
			Day:      i + 1,
			DayEntry: entry,
			Status:   export.DayStatus(i+1, st.CurrentDay),
		}
	}

	return cycleResponse{
		Cycle: cycleView{
			ID:               c.ID,
			Number:           c.Number,
			StartDate:        calendar.FormatISO(c.StartDate),
			StartDateDisplay: calendar.FormatDate(c.StartDate),
			Days:             days,
		},
		Status: st,
	}, nil
}

// session returns the caller's session. RequireAuth guarantees the user ID.
func (h *CycleHandler) session(r *http.Request) (*tracker.Session, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return h.sessions.Get(userID), true
}

// HandleGet loads the active cycle (creating or rolling it over as needed)
// and returns it with the current day, remaining days and progress.
//
// HTTP: GET /api/cycle
func (h *CycleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := s.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, s)
}

type updateEntryRequest struct {
	Value *string `json:"value"`
}

type updateEntryResponse struct {
	Day   int            `json:"day"`
	Entry model.DayEntry `json:"entry"`
}

// HandleUpdateEntry sets one field of one day.
//
// HTTP: PUT /api/cycle/days/{day}/{field}
// REQUEST BODY: {"value": "oats"}
//
// On a store failure the in-memory value is rolled back and the response is
// 503 with the persistence message; the client should show it and may retry.
func (h *CycleHandler) HandleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("day", "day must be a number"))
		return
	}
	if err := model.ValidateDay(day); err != nil {
		writeError(w, err)
		return
	}
	field, err := model.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Value == nil {
		writeError(w, apperror.ValidationFailed("value", "value is required"))
		return
	}
	if len(*req.Value) > MaxValueLength {
		writeError(w, apperror.ValidationFailed("value",
			fmt.Sprintf("value must be %d characters or less", MaxValueLength)))
		return
	}

	if err := s.Ensure(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if err := s.UpdateEntry(r.Context(), day, field, *req.Value); err != nil {
		writeError(w, err)
		return
	}

	c, _ := s.Snapshot()
	writeJSON(w, http.StatusOK, updateEntryResponse{Day: day, Entry: c.Days[day-1]})
}

// HandleStartNew begins the next cycle now, keeping the old one.
//
// HTTP: POST /api/cycle/new
func (h *CycleHandler) HandleStartNew(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := s.StartNewCycle(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, s)
}

// HandleRestart deletes every cycle and starts again at #1.
//
// HTTP: POST /api/cycle/restart
func (h *CycleHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := s.RestartFromCycle1(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, s)
}

// HandleExport streams the active cycle as a PDF download.
//
// HTTP: GET /api/cycle/export.pdf
//
// The PDF is rendered into memory first so a rendering error can still be
// reported as JSON instead of a truncated download.
func (h *CycleHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := s.Ensure(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	c, ok := s.Snapshot()
	if !ok {
		writeError(w, apperror.NotFound("cycle for user", userID))
		return
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	today := h.cycles.Today()
	var buf bytes.Buffer
	err = export.WritePDF(&buf, export.Report{
		User:        *user,
		Cycle:       c,
		CurrentDay:  s.CurrentDay(),
		GeneratedOn: today,
	})
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Error("pdf export failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	name := export.FileName(c.Number, user.Username, today)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("pdf download interrupted", slog.String("error", err.Error()))
	}
}

func (h *CycleHandler) respond(w http.ResponseWriter, status int, s *tracker.Session) {
	resp, err := h.view(s)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, resp)
}
