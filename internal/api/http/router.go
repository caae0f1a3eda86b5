package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Ledger        *LedgerHandler
	Operations    *OperationHandler
	Files         *FileHandler
	Notifications *NotificationHandler
}

// NewRouter registers every route under its security config name.
func NewRouter(auth *AuthMiddleware, h Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(RecoveryMiddleware, LoggingMiddleware, auth.Handler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet).Name("Health")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/transfers", h.Ledger.Allocate).Methods(http.MethodPost).Name("Allocate")
	api.HandleFunc("/deposits", h.Ledger.RequestDeposit).Methods(http.MethodPost).Name("RequestDeposit")
	api.HandleFunc("/withdrawals", h.Ledger.RequestWithdrawal).Methods(http.MethodPost).Name("RequestWithdrawal")

	api.HandleFunc("/transactions", h.Ledger.ListTransactions).Methods(http.MethodGet).Name("ListTransactions")
	api.HandleFunc("/transactions/{family}/{id:[0-9]+}", h.Ledger.GetTransaction).Methods(http.MethodGet).Name("GetTransaction")
	api.HandleFunc("/transactions/{family}/{id:[0-9]+}", h.Ledger.UpdatePending).Methods(http.MethodPatch).Name("UpdatePending")
	api.HandleFunc("/transactions/{family}/{id:[0-9]+}/approve", h.Ledger.Approve).Methods(http.MethodPost).Name("Approve")
	api.HandleFunc("/transactions/{family}/{id:[0-9]+}/decline", h.Ledger.Decline).Methods(http.MethodPost).Name("Decline")
	api.HandleFunc("/balances/{type}/{id:[0-9]+}", h.Ledger.GetBalance).Methods(http.MethodGet).Name("GetBalance")

	api.HandleFunc("/operations", h.Operations.Create).Methods(http.MethodPost).Name("CreateOperation")
	api.HandleFunc("/operations", h.Operations.List).Methods(http.MethodGet).Name("ListOperations")
	api.HandleFunc("/operations/{id:[0-9]+}", h.Operations.Get).Methods(http.MethodGet).Name("GetOperation")
	api.HandleFunc("/operations/{id:[0-9]+}/advance", h.Operations.Advance).Methods(http.MethodPost).Name("AdvanceOperation")
	api.HandleFunc("/operations/{id:[0-9]+}/complete-fuel", h.Operations.CompleteFuel).Methods(http.MethodPost).Name("CompleteFuel")
	api.HandleFunc("/operations/{id:[0-9]+}/complete-other", h.Operations.CompleteOther).Methods(http.MethodPost).Name("CompleteOther")
	api.HandleFunc("/operations/{id:[0-9]+}/abort", h.Operations.Abort).Methods(http.MethodPost).Name("AbortOperation")
	api.HandleFunc("/files", h.Files.Download).Methods(http.MethodGet).Name("DownloadAttachment")

	api.HandleFunc("/notifications", h.Notifications.GetNotifications).Methods(http.MethodGet).Name("GetNotifications")
	api.HandleFunc("/notifications/{id:[0-9]+}/read", h.Notifications.MarkNotificationRead).Methods(http.MethodPost).Name("MarkNotificationRead")

	return router
}
