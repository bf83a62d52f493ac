package handlers

import (
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"

	"github.com/AndrewYakovlev/aso-store/internal/middleware"
	"github.com/AndrewYakovlev/aso-store/internal/services"
)

type CatalogHandler struct {
	catalog    *services.CatalogService
	anonCookie string
}

func NewCatalogHandler(catalog *services.CatalogService, anonCookie string) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, anonCookie: anonCookie}
}

// GetProduct карточка товара по id или slug, просмотр пишется асинхронно
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("idOrSlug"))
	if err != nil {
		return err
	}

	event := services.ProductViewEvent{
		ProductID:      product.ID,
		AnonymousToken: fiberutils.CopyString(c.Cookies(h.anonCookie)),
		Referrer:       fiberutils.CopyString(c.Get(fiber.HeaderReferer)),
	}
	if id, ok := middleware.CurrentIdentity(c); ok {
		userID := id.UserID
		event.UserID = &userID
	}
	h.catalog.RecordProductView(event)

	return success(c, product)
}

func (h *CatalogHandler) Search(c *fiber.Ctx) error {
	result, err := h.catalog.Search(c.UserContext(), fiberutils.CopyString(c.Query("q")), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return success(c, result)
}
