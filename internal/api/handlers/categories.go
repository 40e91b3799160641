package handlers

import (
	"net/http"

	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/domain"
)

// ListCategories handles GET /api/categories
func ListCategories(w http.ResponseWriter, r *http.Request) {
	names := domain.CategoryNames()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": names,
		"count":      len(names),
	})
}
