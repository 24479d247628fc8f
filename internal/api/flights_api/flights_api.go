package flights_api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/guests"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/BearBump/FlightBox/internal/services/flights"
	"github.com/BearBump/FlightBox/internal/services/livetracking"
	"github.com/BearBump/FlightBox/internal/storage/pgflights"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const (
	maxJSONBody   = 4 << 20
	maxUploadBody = 16 << 20
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Verifier interface {
	VerifyFlight(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult
	VerifyAllFlights(ctx context.Context, fs []models.FlightToTrack) map[string]models.FlightVerificationResult
}

type Scheduler interface {
	GetPollingSchedule(flightDate time.Time) models.PollingSchedule
	EstimateAPIUsage(fs []models.FlightToTrack) models.APIUsageEstimate
}

type LiveTracker interface {
	GetLiveFlightStatus(ctx context.Context, flightNumber string) models.ProviderResponse[models.LiveFlightStatus]
	GetBatchFlightStatus(ctx context.Context, flightNumbers []string) (map[string]*models.LiveFlightStatus, error)
	GetAirportTraffic(ctx context.Context, iata string) ([]models.LiveFlightStatus, error)
}

type Checks interface {
	TrackFlights(ctx context.Context, fs []models.FlightToTrack) ([]*models.FlightCheck, error)
	GetChecks(ctx context.Context, ids []uint64) ([]*models.FlightCheck, error)
	ListChecks(ctx context.Context, f pgflights.ListFilter) ([]*models.FlightCheck, error)
	ListCheckResults(ctx context.Context, checkID uint64, limit, offset int) ([]*models.FlightCheckResult, error)
	RefreshCheck(ctx context.Context, id uint64) error
}

// FlightsAPI is the HTTP surface of the flight verification core.
type FlightsAPI struct {
	verifier  Verifier
	scheduler Scheduler
	live      LiveTracker
	checks    Checks
}

func New(verifier Verifier, scheduler Scheduler, live LiveTracker, checks Checks) *FlightsAPI {
	return &FlightsAPI{verifier: verifier, scheduler: scheduler, live: live, checks: checks}
}

func (a *FlightsAPI) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/flights/verify", a.verifyFlight)
		r.Post("/flights/verify-batch", a.verifyBatch)
		r.Get("/flights/schedule", a.pollingSchedule)
		r.Post("/flights/estimate", a.estimateUsage)
		r.Post("/flights/report", a.report)

		r.Post("/flights/live", a.liveBatch)
		r.Get("/flights/live/{flightNumber}", a.liveOne)
		r.Get("/airports/{iata}/traffic", a.airportTraffic)

		r.Post("/guests/flights", a.guestFlights)
		r.Post("/guests/import", a.importGuests)

		if a.checks != nil {
			r.Post("/flights/track", a.trackFlights)
			r.Get("/flights/checks", a.listChecks)
			r.Get("/flights/checks/{id}/results", a.checkResults)
			r.Post("/flights/checks/{id}/refresh", a.refreshCheck)
		}
	})
}

type flightInput struct {
	FlightNumber string `json:"flightNumber"`
	FlightDate   string `json:"flightDate"`
	Direction    string `json:"direction"`
	ExpectedTime string `json:"expectedTime,omitempty"`
}

func (in flightInput) toModel() (models.FlightToTrack, error) {
	num := models.NormalizeFlightNumber(in.FlightNumber)
	if num == "" {
		return models.FlightToTrack{}, errors.New("flightNumber is required")
	}
	date, err := parseDate(in.FlightDate)
	if err != nil {
		return models.FlightToTrack{}, err
	}
	dir := models.Direction(strings.ToLower(strings.TrimSpace(in.Direction)))
	if !dir.Valid() {
		return models.FlightToTrack{}, errors.Errorf("direction must be arrival or departure, got %q", in.Direction)
	}
	return models.FlightToTrack{
		FlightNumber: num,
		FlightDate:   date,
		Direction:    dir,
		ExpectedTime: strings.TrimSpace(in.ExpectedTime),
	}, nil
}

type flightsRequest struct {
	Flights []flightInput `json:"flights"`
}

func (req flightsRequest) toModels() ([]models.FlightToTrack, error) {
	if len(req.Flights) == 0 {
		return nil, errors.New("flights is empty")
	}
	out := make([]models.FlightToTrack, 0, len(req.Flights))
	for i, in := range req.Flights {
		f, err := in.toModel()
		if err != nil {
			return nil, errors.Wrapf(err, "flights[%d]", i)
		}
		out = append(out, f)
	}
	return out, nil
}

func (a *FlightsAPI) verifyFlight(w http.ResponseWriter, r *http.Request) {
	var in flightInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := in.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.verifier.VerifyFlight(r.Context(), f))
}

func (a *FlightsAPI) verifyBatch(w http.ResponseWriter, r *http.Request) {
	var req flightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fs, err := req.toModels()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": a.verifier.VerifyAllFlights(r.Context(), fs)})
}

func (a *FlightsAPI) pollingSchedule(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.scheduler.GetPollingSchedule(date))
}

func (a *FlightsAPI) estimateUsage(w http.ResponseWriter, r *http.Request) {
	var req flightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fs, err := req.toModels()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, a.scheduler.EstimateAPIUsage(fs))
}

// report verifies the posted flights and returns the results as an xlsx workbook
// in request order.
func (a *FlightsAPI) report(w http.ResponseWriter, r *http.Request) {
	var req flightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fs, err := req.toModels()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	byKey := a.verifier.VerifyAllFlights(r.Context(), fs)
	results := make([]models.FlightVerificationResult, 0, len(byKey))
	seen := make(map[string]struct{}, len(byKey))
	for _, f := range fs {
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		if res, ok := byKey[k]; ok {
			seen[k] = struct{}{}
			results = append(results, res)
		}
	}

	var buf bytes.Buffer
	if err := guests.WriteReport(&buf, results); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="flights-report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *FlightsAPI) liveBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FlightNumbers []string `json:"flightNumbers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.FlightNumbers) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("flightNumbers is empty"))
		return
	}
	out, err := a.live.GetBatchFlightStatus(r.Context(), req.FlightNumbers)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flights": out})
}

func (a *FlightsAPI) liveOne(w http.ResponseWriter, r *http.Request) {
	fn := models.NormalizeFlightNumber(chi.URLParam(r, "flightNumber"))
	if fn == "" {
		writeError(w, http.StatusBadRequest, errors.New("flightNumber is required"))
		return
	}
	writeJSON(w, http.StatusOK, a.live.GetLiveFlightStatus(r.Context(), fn))
}

func (a *FlightsAPI) airportTraffic(w http.ResponseWriter, r *http.Request) {
	iata := strings.ToUpper(chi.URLParam(r, "iata"))
	if _, ok := livetracking.AirportBox(iata); !ok {
		writeError(w, http.StatusNotFound, errors.Errorf("unknown airport %q", iata))
		return
	}
	out, err := a.live.GetAirportTraffic(r.Context(), iata)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"airport": iata, "aircraft": out})
}

func (a *FlightsAPI) guestFlights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Guests []models.Guest `json:"guests"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flights": flights.GetUniqueFlights(req.Guests)})
}

// importGuests accepts an xlsx guest list, either as a multipart "file" field or as
// the raw request body.
func (a *FlightsAPI) importGuests(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "file"))
			return
		}
		defer file.Close()
		src = file
	}

	res, err := guests.ReadGuests(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if res.Errors == nil {
		res.Errors = []guests.RowError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"guests":  res.Guests,
		"flights": flights.GetUniqueFlights(res.Guests),
		"errors":  res.Errors,
	})
}

func (a *FlightsAPI) trackFlights(w http.ResponseWriter, r *http.Request) {
	var req flightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fs, err := req.toModels()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cs, err := a.checks.TrackFlights(r.Context(), fs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": cs})
}

// listChecks returns checks by id when ?ids= is given, otherwise a filtered page.
func (a *FlightsAPI) listChecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("ids"); raw != "" {
		var ids []uint64
		for _, p := range strings.Split(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.Errorf("invalid id %q", p))
				return
			}
			ids = append(ids, id)
		}
		cs, err := a.checks.GetChecks(r.Context(), ids)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"checks": cs})
		return
	}

	var f pgflights.ListFilter
	if v := q.Get("from"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.To = &d
	}
	f.Status = models.VerificationStatus(q.Get("status"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	cs, err := a.checks.ListChecks(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cs == nil {
		cs = []*models.FlightCheck{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": cs})
}

func (a *FlightsAPI) checkResults(w http.ResponseWriter, r *http.Request) {
	id, err := checkID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rs, err := a.checks.ListCheckResults(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rs == nil {
		rs = []*models.FlightCheckResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rs})
}

func (a *FlightsAPI) refreshCheck(w http.ResponseWriter, r *http.Request) {
	id, err := checkID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.checks.RefreshCheck(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

func checkID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Errorf("invalid check id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(models.DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return models.CivilDate(t), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
