package controllers

import (
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

const (
	uploadField        = "image"
	multipartOverhead  = 1 << 20
	multipartMemoryCap = 8 << 20
)

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadImage forwards a multipart "image" field to the backend.
func UploadImage(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, backend.MaxImageBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "image file is required").
				WithDetails(map[string]string{uploadField: "is required"}))
			return
		}
		defer func() { _ = file.Close() }()

		location, err := sf.UploadImage(r.Context(), header.Filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, uploadResponse{URL: location})
	}
}
