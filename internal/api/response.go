package api

import (
	"encoding/json"
	"net/http"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
)

// response is the JSON envelope every endpoint answers with. A plain list
// carries Total; a paginated one carries Pagination instead. Which of the
// two is decided by the Listing's explicit page variant, never guessed from
// the request.
type response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Total      *int        `json:"total,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
	Token      string      `json:"token,omitempty"`
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

func writeListing[T any](w http.ResponseWriter, listing *models.Listing[T]) {
	items := listing.Items
	if items == nil {
		items = []T{}
	}

	if listing.Page != nil {
		writeJSON(w, http.StatusOK, response{
			Success: true,
			Data:    items,
			Pagination: &pagination{
				Page:       listing.Page.Page,
				Limit:      listing.Page.PageSize,
				Total:      listing.Total,
				TotalPages: listing.Page.TotalPages,
			},
		})
		return
	}

	total := listing.Total
	writeJSON(w, http.StatusOK, response{Success: true, Data: items, Total: &total})
}
