package controllers

import (
	"net/http"

	"github.com/tsheringp/pharmstock-backend/api/responses"
	"github.com/tsheringp/pharmstock-backend/api/validators"
	taxonomysvc "github.com/tsheringp/pharmstock-backend/internal/taxonomy"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/logger"
)

type createDrugTypeRequest struct {
	Name string `json:"name" validate:"required"`
}

type addDrugNameRequest struct {
	TypeName string `json:"type_name" validate:"required"`
	DrugName string `json:"drug_name" validate:"required"`
}

// CreateDrugType registers a new classification bucket.
func CreateDrugType(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		var payload createDrugTypeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateType(r.Context(), payload.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListDrugTypes returns every classification bucket.
func ListDrugTypes(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		types, err := svc.ListTypes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, types)
	}
}

// DeleteDrugType removes a classification bucket.
func DeleteDrugType(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		id, err := pathUUID(r, "typeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteType(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AddDrugName registers a reference drug name under a type, creating the
// type on first use.
func AddDrugName(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		var payload addDrugNameRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.AddName(r.Context(), payload.TypeName, payload.DrugName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListDrugNames returns the reference names under one type.
func ListDrugNames(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		typeID, err := pathUUID(r, "typeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		names, err := svc.ListNames(r.Context(), typeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, names)
	}
}

// DeleteDrugName removes one reference name.
func DeleteDrugName(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		id, err := pathUUID(r, "nameId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteName(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ImportTaxonomyCSV ingests type and name pairs from a multipart CSV upload.
func ImportTaxonomyCSV(svc taxonomysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "taxonomy service unavailable"))
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "csv file required"))
			return
		}
		defer file.Close()

		result, err := svc.ImportCSV(r.Context(), file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
