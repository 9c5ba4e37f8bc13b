package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tsheringp/pharmstock-backend/api/responses"
	"github.com/tsheringp/pharmstock-backend/api/validators"
	dispensingsvc "github.com/tsheringp/pharmstock-backend/internal/dispensing"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

type recordDispensingRequest struct {
	DrugID   string  `json:"drug_id" validate:"required"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category" validate:"required"`
	Notes    *string `json:"notes,omitempty"`
	Date     *string `json:"date,omitempty"`
}

// RecordDispensing books a quantity against today's dispensing entry for a
// drug and category, deducting stock.
func RecordDispensing(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordDispensingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drugID, err := uuid.Parse(strings.TrimSpace(payload.DrugID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid drug id"))
			return
		}

		category, err := enums.ParseDispensingCategory(payload.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		date, err := parseBodyDate(payload.Date, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Record(r.Context(), dispensingsvc.RecordInput{
			ActorID:  actor,
			DrugID:   drugID,
			Quantity: payload.Quantity,
			Category: category,
			Notes:    payload.Notes,
			Date:     date,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// ListDispensing returns the caller's dispensing records, optionally
// filtered by date range and category.
func ListDispensing(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := dispensingFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, records)
	}
}

// ListTodayDispensing returns the caller's records for the current date.
func ListTodayDispensing(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListToday(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, records)
	}
}

// DispensingSummary aggregates dispensed quantities per drug and category
// over a date range. The range defaults to the last 30 days.
func DispensingSummary(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		end := time.Now().UTC()
		if to != nil {
			end = *to
		}
		start := end.AddDate(0, 0, -30)
		if from != nil {
			start = *from
		}

		rows, err := svc.Summary(r.Context(), actor, start, end)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// DeleteDispensing removes a record and restores the deducted stock.
func DeleteDispensing(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "recordId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ImportDispensingCSV ingests dispensing rows from a multipart CSV upload.
func ImportDispensingCSV(svc dispensingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispensing service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "csv file required"))
			return
		}
		defer file.Close()

		result, err := svc.ImportCSV(r.Context(), actor, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func dispensingFilter(r *http.Request) (dispensingsvc.ListFilter, error) {
	var filter dispensingsvc.ListFilter

	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return filter, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return filter, err
	}
	filter.From = from
	filter.To = to

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseDispensingCategory(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		filter.Category = &category
	}

	return filter, nil
}
