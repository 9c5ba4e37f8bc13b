package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tsheringp/pharmstock-backend/api/responses"
	"github.com/tsheringp/pharmstock-backend/api/validators"
	drugsvc "github.com/tsheringp/pharmstock-backend/internal/drugs"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

type createDrugRequest struct {
	Name        string          `json:"name" validate:"required"`
	DrugType    string          `json:"drug_type" validate:"required"`
	BatchNo     string          `json:"batch_no" validate:"required"`
	Description *string         `json:"description,omitempty"`
	Stock       int             `json:"stock" validate:"min=0"`
	MfgDate     *string         `json:"mfg_date,omitempty"`
	ExpDate     *string         `json:"exp_date,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    *string         `json:"category,omitempty"`
}

type updateDrugRequest struct {
	Name        *string          `json:"name,omitempty"`
	DrugType    *string          `json:"drug_type,omitempty"`
	BatchNo     *string          `json:"batch_no,omitempty"`
	Description *string          `json:"description,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	MfgDate     *string          `json:"mfg_date,omitempty"`
	ExpDate     *string          `json:"exp_date,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

func parseBodyDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD").WithDetails(map[string]any{"field": field})
	}
	return &parsed, nil
}

// CreateDrug adds a catalog entry owned by the authenticated user.
func CreateDrug(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createDrugRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mfg, err := parseBodyDate(payload.MfgDate, "mfg_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		exp, err := parseBodyDate(payload.ExpDate, "exp_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drug, err := svc.Create(r.Context(), drugsvc.CreateInput{
			OwnerID:     owner,
			Name:        payload.Name,
			DrugType:    payload.DrugType,
			BatchNo:     payload.BatchNo,
			Description: payload.Description,
			Stock:       payload.Stock,
			MfgDate:     mfg,
			ExpDate:     exp,
			Price:       payload.Price,
			Category:    payload.Category,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, drug)
	}
}

// ListDrugs returns a cursor-paginated page of the caller's catalog.
func ListDrugs(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(r.Context(), drugsvc.ListInput{
			OwnerID: owner,
			Filter: drugsvc.ListFilter{
				Search:   strings.TrimSpace(query.Get("search")),
				DrugType: strings.TrimSpace(query.Get("drug_type")),
				Category: strings.TrimSpace(query.Get("category")),
			},
			Limit:  limit,
			Cursor: strings.TrimSpace(query.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// GetDrug returns one catalog entry scoped to the caller.
func GetDrug(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "drugId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drug, err := svc.Get(r.Context(), id, owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drug)
	}
}

// UpdateDrug applies a partial update to a catalog entry.
func UpdateDrug(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "drugId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateDrugRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mfg, err := parseBodyDate(payload.MfgDate, "mfg_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		exp, err := parseBodyDate(payload.ExpDate, "exp_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drug, err := svc.Update(r.Context(), drugsvc.UpdateInput{
			ID:          id,
			OwnerID:     owner,
			Name:        payload.Name,
			DrugType:    payload.DrugType,
			BatchNo:     payload.BatchNo,
			Description: payload.Description,
			Stock:       payload.Stock,
			MfgDate:     mfg,
			ExpDate:     exp,
			Price:       payload.Price,
			Category:    payload.Category,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, drug)
	}
}

// DeleteDrug removes a catalog entry scoped to the caller.
func DeleteDrug(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := pathUUID(r, "drugId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id, owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ImportDrugsCSV ingests a multipart CSV upload into the caller's catalog.
func ImportDrugsCSV(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
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

		result, err := svc.ImportCSV(r.Context(), owner, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ExportDrugsCSV streams the caller's catalog as a CSV download.
func ExportDrugsCSV(svc drugsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drug service unavailable"))
			return
		}

		owner, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="drugs.csv"`)

		if err := svc.ExportCSV(r.Context(), owner, w); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "drugs.export.failed", err)
			}
		}
	}
}
