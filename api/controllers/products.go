package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ProductSearch lists products matching the query filters.
func ProductSearch(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseProductFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Search(r.Context(), filter, page, viewerFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductFilter(r *http.Request) (productsvc.SearchFilter, error) {
	q := r.URL.Query()
	filter := productsvc.SearchFilter{
		SKU:  validators.SanitizeString(q.Get("sku"), 100),
		URL:  validators.SanitizeString(q.Get("url"), 255),
		Name: validators.SanitizeString(q.Get("name"), 200),
	}

	ids, err := validators.ParseUUIDList(r, "ids")
	if err != nil {
		return filter, err
	}
	filter.IDs = ids

	if raw := strings.TrimSpace(q.Get("productType")); raw != "" {
		pt, err := enums.ParseProductType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid productType")
		}
		filter.ProductType = pt
	}

	enabled, err := validators.ParseQueryBool(r, "enabled")
	if err != nil {
		return filter, err
	}
	filter.Enabled = enabled

	if raw := strings.TrimSpace(q.Get("tagId")); raw != "" {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid tagId")
		}
		filter.TagID = &tagID
	}
	return filter, nil
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), productID, viewerFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	Name               string          `json:"name" validate:"required,max=255"`
	SKU                string          `json:"sku" validate:"required,max=100"`
	URL                string          `json:"url" validate:"omitempty,max=255"`
	Description        string          `json:"description"`
	DescriptionShort   string          `json:"descriptionShort"`
	ProductType        string          `json:"productType" validate:"required,oneof=digital grouped"`
	SubscriptionOnly   bool            `json:"subscriptionOnly"`
	ReleaseDate        *time.Time      `json:"releaseDate,omitempty"`
	BrokeredAt         *string         `json:"brokeredAt,omitempty"`
	BrokerageProductID *string         `json:"brokerageProductId,omitempty"`
	Price              decimal.Decimal `json:"price"`
	Enabled            *bool           `json:"enabled,omitempty"`
	MetaTitle          *string         `json:"metaTitle,omitempty"`
	MetaDescription    *string         `json:"metaDescription,omitempty"`
	MetaKeywords       *string         `json:"metaKeywords,omitempty"`
}

func (p createProductRequest) toInput() productsvc.CreateInput {
	return productsvc.CreateInput{
		Name:               p.Name,
		SKU:                p.SKU,
		URL:                p.URL,
		Description:        p.Description,
		DescriptionShort:   p.DescriptionShort,
		ProductType:        enums.ProductType(p.ProductType),
		SubscriptionOnly:   p.SubscriptionOnly,
		ReleaseDate:        p.ReleaseDate,
		BrokeredAt:         p.BrokeredAt,
		BrokerageProductID: p.BrokerageProductID,
		Price:              p.Price,
		Enabled:            p.Enabled,
		MetaTitle:          p.MetaTitle,
		MetaDescription:    p.MetaDescription,
		MetaKeywords:       p.MetaKeywords,
	}
}

func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name               *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	SKU                *string          `json:"sku,omitempty" validate:"omitempty,max=100"`
	URL                *string          `json:"url,omitempty" validate:"omitempty,max=255"`
	Description        *string          `json:"description,omitempty"`
	DescriptionShort   *string          `json:"descriptionShort,omitempty"`
	ProductType        *string          `json:"productType,omitempty" validate:"omitempty,oneof=digital grouped"`
	SubscriptionOnly   *bool            `json:"subscriptionOnly,omitempty"`
	ReleaseDate        *time.Time       `json:"releaseDate,omitempty"`
	BrokeredAt         *string          `json:"brokeredAt,omitempty"`
	BrokerageProductID *string          `json:"brokerageProductId,omitempty"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	Enabled            *bool            `json:"enabled,omitempty"`
	MetaTitle          *string          `json:"metaTitle,omitempty"`
	MetaDescription    *string          `json:"metaDescription,omitempty"`
	MetaKeywords       *string          `json:"metaKeywords,omitempty"`
	ThumbnailID        *uuid.UUID       `json:"thumbnailId,omitempty"`
	MainImageID        *uuid.UUID       `json:"mainImageId,omitempty"`
}

func (p updateProductRequest) toInput() productsvc.UpdateInput {
	input := productsvc.UpdateInput{
		Name:               p.Name,
		SKU:                p.SKU,
		URL:                p.URL,
		Description:        p.Description,
		DescriptionShort:   p.DescriptionShort,
		SubscriptionOnly:   p.SubscriptionOnly,
		ReleaseDate:        p.ReleaseDate,
		BrokeredAt:         p.BrokeredAt,
		BrokerageProductID: p.BrokerageProductID,
		Price:              p.Price,
		Enabled:            p.Enabled,
		MetaTitle:          p.MetaTitle,
		MetaDescription:    p.MetaDescription,
		MetaKeywords:       p.MetaKeywords,
		ThumbnailID:        p.ThumbnailID,
		MainImageID:        p.MainImageID,
	}
	if p.ProductType != nil {
		pt := enums.ProductType(*p.ProductType)
		input.ProductType = &pt
	}
	return input
}

func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ProductTags(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.Get(r.Context(), productID, viewerFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tags, err := svc.Tags(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tags)
	}
}

func AllTags(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := svc.AllTags(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tags)
	}
}

type linkRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// relationHandlers adapts one product relation's add and remove calls.
type relationHandlers struct {
	param  string
	add    func(r *http.Request, productID, targetID uuid.UUID) error
	remove func(r *http.Request, productID, targetID uuid.UUID) error
}

func (h relationHandlers) Add(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload linkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := h.add(r, productID, payload.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h relationHandlers) Remove(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := validators.ParseUUIDParam(r, h.param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := h.remove(r, productID, targetID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ProductTagLinks(svc productsvc.Service) relationHandlers {
	return relationHandlers{
		param:  "tagId",
		add:    func(r *http.Request, p, t uuid.UUID) error { return svc.AddTag(r.Context(), p, t) },
		remove: func(r *http.Request, p, t uuid.UUID) error { return svc.RemoveTag(r.Context(), p, t) },
	}
}

func ProductRelatedLinks(svc productsvc.Service) relationHandlers {
	return relationHandlers{
		param:  "relatedProductId",
		add:    func(r *http.Request, p, t uuid.UUID) error { return svc.AddRelated(r.Context(), p, t) },
		remove: func(r *http.Request, p, t uuid.UUID) error { return svc.RemoveRelated(r.Context(), p, t) },
	}
}

func ProductSubProductLinks(svc productsvc.Service) relationHandlers {
	return relationHandlers{
		param:  "subProductId",
		add:    func(r *http.Request, p, t uuid.UUID) error { return svc.AddSubProduct(r.Context(), p, t) },
		remove: func(r *http.Request, p, t uuid.UUID) error { return svc.RemoveSubProduct(r.Context(), p, t) },
	}
}

func ProductRelated(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Related(r.Context(), productID, viewerFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func ProductSubProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.SubProducts(r.Context(), productID, viewerFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
