package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/reports"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/photostore"
)

// ─── Reports API ────────────────────────────────────────────────────────────
//
// POST /api/report                multipart: description, address, lat, lng, photo
// GET  /api/myreports             the session user's reports
// GET  /api/reports               every report plus status counts (admin)
// POST /api/report/{id}/status    move a report through its lifecycle (admin)
// GET  /uploads/{name}            a stored photo

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 1 << 20

// ReportsAPI serves report submission and triage.
type ReportsAPI struct {
	Reports *reports.Service
	Photos  *photostore.Store
	log     *zap.Logger
}

// HandleSubmit stores a report with an optional photo and pays its credits.
func (a *ReportsAPI) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, a.Photos.MaxBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	lat, errLat := parseCoord(r.FormValue("lat"), 90)
	lng, errLng := parseCoord(r.FormValue("lng"), 180)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}

	in := reports.SubmitInput{
		Description: r.FormValue("description"),
		Address:     r.FormValue("address"),
		Lat:         lat,
		Lng:         lng,
	}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		declared := header.Header.Get("Content-Type")
		if declared == "application/octet-stream" {
			declared = ""
		}
		photo, err := a.Photos.Save(file, declared)
		if err != nil {
			writeDomainError(w, a.log, err)
			return
		}
		in.PhotoURL = photo.URL
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "unreadable photo")
		return
	}

	report, credits, err := a.Reports.Submit(r.Context(), u, in)
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
		"credits": credits,
	})
}

// HandleMyReports lists the session user's reports.
func (a *ReportsAPI) HandleMyReports(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	list, err := a.Reports.ListByUser(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reports": list,
	})
}

// HandleListAll lists every report for the admin dashboard.
func (a *ReportsAPI) HandleListAll(w http.ResponseWriter, r *http.Request) {
	list, err := a.Reports.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reports": list,
		"stats":   reports.Summarize(list),
	})
}

type statusRequest struct {
	Status         domain.ReportStatus   `json:"status"`
	DisposalMethod domain.DisposalMethod `json:"disposalMethod"`
}

// HandleUpdateStatus changes a report's status and pays the reporter.
func (a *ReportsAPI) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, a.log, err)
		return
	}

	report, credits, err := a.Reports.UpdateStatus(r.Context(), id, req.Status, req.DisposalMethod)
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
		"credits": credits,
	})
}

// HandlePhoto streams a stored photo.
func (a *ReportsAPI) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, err := a.Photos.Open(name)
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeDomainError(w, a.log, err)
		return
	}
	// Names are content digests, so a name never changes meaning.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// parseCoord parses an optional coordinate bounded by ±limit.
func parseCoord(s string, limit float64) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.Abs(v) > limit {
		return nil, errors.New("coordinate out of range")
	}
	return &v, nil
}
