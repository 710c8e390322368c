package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
)

// maxUploadBytes bounds multipart product uploads.
const maxUploadBytes = 512 << 20

func viewerFromRequest(r *http.Request) visibility.Viewer {
	return visibility.Viewer{
		SeeDisabled: middleware.PermissionsFromContext(r.Context()).Has(permissions.ProductDisabled),
	}
}

func containsFile(files []models.ProductFile, id uuid.UUID) bool {
	for _, f := range files {
		if f.ID == id {
			return true
		}
	}
	return false
}
