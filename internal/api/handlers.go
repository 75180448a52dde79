package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nguyenquoctri04/HeThongPhanTan/internal/domain/models"
	"github.com/nguyenquoctri04/HeThongPhanTan/internal/lib/jwt"
)

const tokenLifetime = 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TransferRequest struct {
	FromUserID int64  `json:"fromUserId"`
	ToUsername string `json:"toUsername"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note"`
}

// TransferResult pairs the new record with the sender's updated snapshot.
type TransferResult struct {
	Transaction *models.Transaction `json:"transaction"`
	User        *models.User        `json:"user"`
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     "Hệ thống phân tán API đang chạy!",
			"version":     "1.0.0",
			"environment": s.config.Env,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Định dạng yêu cầu không hợp lệ")
			return
		}

		if strings.TrimSpace(req.Username) == "" {
			writeError(w, http.StatusBadRequest, "Tên đăng nhập không hợp lệ")
			return
		}
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, "Mật khẩu không hợp lệ")
			return
		}

		user, err := s.ledger.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			s.respondError(w, err)
			return
		}

		token, err := jwt.NewToken(user, string(s.jwtSecret), tokenLifetime)
		if err != nil {
			s.logger.Error("Failed to issue token", "error", err)
			writeError(w, http.StatusInternalServerError, "Lỗi hệ thống")
			return
		}

		writeJSON(w, http.StatusOK, response{
			Success: true,
			Message: "Đăng nhập thành công",
			Data:    user,
			Token:   token,
		})
	}
}

func (s *APIServer) listUsersHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseListOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		listing, err := s.ledger.ListUsers(r.Context(), r.URL.Query().Get("search"), opts)
		if err != nil {
			s.respondError(w, err)
			return
		}

		writeListing(w, listing)
	}
}

func (s *APIServer) userHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "ID người dùng không hợp lệ")
			return
		}

		user, err := s.ledger.UserByID(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}

		writeData(w, http.StatusOK, user)
	}
}

func (s *APIServer) transferHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Định dạng yêu cầu không hợp lệ")
			return
		}

		if req.FromUserID <= 0 {
			writeError(w, http.StatusBadRequest, "ID người gửi không hợp lệ")
			return
		}
		if strings.TrimSpace(req.ToUsername) == "" {
			writeError(w, http.StatusBadRequest, "Tên người nhận không hợp lệ")
			return
		}

		transaction, user, err := s.ledger.Transfer(r.Context(), req.FromUserID, req.ToUsername, req.Amount, req.Note)
		if err != nil {
			transfersTotal.WithLabelValues("failed").Inc()
			s.respondError(w, err)
			return
		}
		transfersTotal.WithLabelValues(models.StatusCompleted).Inc()

		writeJSON(w, http.StatusOK, response{
			Success: true,
			Message: "Chuyển tiền thành công",
			Data:    TransferResult{Transaction: transaction, User: user},
		})
	}
}

func (s *APIServer) listTransactionsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := parseListOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var userID int64
		if raw := r.URL.Query().Get("userId"); raw != "" {
			userID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				writeError(w, http.StatusBadRequest, "ID người dùng không hợp lệ")
				return
			}
		}

		listing, err := s.ledger.ListTransactions(r.Context(), userID, opts)
		if err != nil {
			s.respondError(w, err)
			return
		}

		writeListing(w, listing)
	}
}

func (s *APIServer) transactionHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusNotFound, "Không tìm thấy giao dịch")
			return
		}

		transaction, err := s.ledger.TransactionByID(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}

		writeData(w, http.StatusOK, transaction)
	}
}

func (s *APIServer) statsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.ledger.Stats(r.Context())
		if err != nil {
			s.respondError(w, err)
			return
		}

		writeData(w, http.StatusOK, stats)
	}
}

func (s *APIServer) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound,
		fmt.Sprintf("Route %s %s không tồn tại", r.Method, r.URL.Path))
}

// respondError maps domain errors onto HTTP codes and the user-facing
// messages of the API. Anything unrecognized is an internal failure.
func (s *APIServer) respondError(w http.ResponseWriter, err error) {
	var insufficient *models.InsufficientFundsError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Số dư không đủ, số dư hiện tại: %d", insufficient.Balance))
	case errors.Is(err, models.ErrSenderNotFound):
		writeError(w, http.StatusNotFound, "Không tìm thấy người gửi")
	case errors.Is(err, models.ErrRecipientNotFound):
		writeError(w, http.StatusNotFound, "Không tìm thấy người nhận")
	case errors.Is(err, models.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "Không tìm thấy người dùng")
	case errors.Is(err, models.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "Không tìm thấy giao dịch")
	case errors.Is(err, models.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, "Không thể chuyển tiền cho chính mình")
	case errors.Is(err, models.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Số tiền phải là số dương và lớn hơn 0")
	case errors.Is(err, models.ErrNoteTooLong):
		writeError(w, http.StatusBadRequest, "Nội dung ghi chú không được vượt quá 500 ký tự")
	case errors.Is(err, models.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Tên đăng nhập hoặc mật khẩu không đúng")
	case errors.Is(err, models.ErrInvalidListOptions):
		writeError(w, http.StatusBadRequest, "Tham số truy vấn không hợp lệ")
	default:
		s.logger.Error("Internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "Lỗi hệ thống")
	}
}

// parseListOptions reads sortBy/sortOrder/page/limit query parameters.
// Pagination is requested only when both page and limit are present.
func parseListOptions(r *http.Request) (models.ListOptions, error) {
	q := r.URL.Query()

	opts := models.ListOptions{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	if opts.SortOrder != "" {
		switch strings.ToLower(opts.SortOrder) {
		case models.OrderAsc, models.OrderDesc:
		default:
			return opts, errors.New("Thứ tự sắp xếp không hợp lệ (phải là asc hoặc desc)")
		}
	}

	pageRaw, limitRaw := q.Get("page"), q.Get("limit")

	if pageRaw != "" {
		page, err := strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return opts, errors.New("Trang không hợp lệ (phải >= 1)")
		}
		opts.Page = page
	}
	if limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil || limit < models.MinPageSize || limit > models.MaxPageSize {
			return opts, errors.New("Số lượng mỗi trang không hợp lệ (phải từ 1 đến 100)")
		}
		opts.PageSize = limit
	}

	opts.Paginated = pageRaw != "" && limitRaw != ""
	return opts, nil
}
