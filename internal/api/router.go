package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/auth"
	"github.com/erazemk/assetdesk/internal/cache"
	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/notify"
)

// Deps are the collaborators the API needs.
type Deps struct {
	DB     *sql.DB
	Tokens *auth.Tokens
	// Catalog serves product reads. Nil means no cache.
	Catalog  *cache.Catalog
	Notifier notify.Notifier
	// Outbox is woken after an assignment queues a notification. May be nil.
	Outbox           Waker
	AssignmentPolicy string
	FrontendURL      string
	TestRecipient    string
	Log              *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	catalog := d.Catalog
	if catalog == nil {
		catalog = cache.NewCatalog(d.DB, nil, 0, log)
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}
	policy := d.AssignmentPolicy
	if policy == "" {
		policy = model.PolicyExclusive
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Tokens: d.Tokens, Log: log.Named("auth")}
	operatorsHandler := &OperatorsHandler{DB: d.DB, Log: log.Named("operators")}
	inventoryHandler := &InventoryHandler{DB: d.DB, Catalog: catalog, Log: log.Named("inventory")}
	assignmentsHandler := &AssignmentsHandler{
		DB:      d.DB,
		Catalog: catalog,
		Policy:  policy,
		Outbox:  d.Outbox,
		Log:     log.Named("assignments"),
	}
	employeesHandler := &EmployeesHandler{DB: d.DB, Log: log.Named("employees")}
	systemHandler := &SystemHandler{
		DB:            d.DB,
		Notifier:      notifier,
		TestRecipient: d.TestRecipient,
		Log:           log.Named("system"),
	}

	authMW := AuthMiddleware(d.Tokens, d.DB, log.Named("auth"))
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", systemHandler.Health)

	// Session.
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))

	// Operators (admin only).
	mux.Handle("GET /api/operators", admin(operatorsHandler.List))
	mux.Handle("POST /api/operators", admin(operatorsHandler.Create))
	mux.Handle("GET /api/operators/{id}", admin(operatorsHandler.Get))
	mux.Handle("PUT /api/operators/{id}", admin(operatorsHandler.Update))
	mux.Handle("PUT /api/operators/{id}/password", admin(operatorsHandler.ResetPassword))
	mux.Handle("DELETE /api/operators/{id}", admin(operatorsHandler.Delete))

	// Inventory: read (all roles), write (manager+).
	mux.Handle("GET /api/inventory", read(inventoryHandler.List))
	mux.Handle("POST /api/inventory/{kind}", write(inventoryHandler.Create))
	mux.Handle("GET /api/inventory/{id}", read(inventoryHandler.Get))
	mux.Handle("PATCH /api/inventory/{id}", write(inventoryHandler.Update))
	mux.Handle("DELETE /api/inventory/{id}", write(inventoryHandler.Delete))
	mux.Handle("GET /api/inventory/{id}/assignments", read(inventoryHandler.Assignments))
	mux.Handle("PUT /api/inventory/{id}/attachments/{kind}", write(inventoryHandler.UploadAttachment))
	mux.Handle("GET /api/inventory/{id}/attachments/{kind}", read(inventoryHandler.GetAttachment))

	// Assignments.
	mux.Handle("GET /api/assignments", read(assignmentsHandler.List))
	mux.Handle("GET /api/assignments/active", read(assignmentsHandler.Active))
	mux.Handle("GET /api/assignments/history", read(assignmentsHandler.History))
	mux.Handle("GET /api/assignments/{id}", read(assignmentsHandler.Get))
	mux.Handle("POST /api/assignments", write(assignmentsHandler.Create))
	mux.Handle("PATCH /api/assignments/{id}/return", write(assignmentsHandler.Return))
	mux.Handle("PATCH /api/assignments/{id}", write(assignmentsHandler.Update))
	mux.Handle("DELETE /api/assignments/{id}", write(assignmentsHandler.Delete))

	// Employees.
	mux.Handle("GET /api/employees", read(employeesHandler.List))
	mux.Handle("POST /api/employees", write(employeesHandler.Create))
	mux.Handle("GET /api/employees/{id}", read(employeesHandler.Get))
	mux.Handle("PATCH /api/employees/{id}", write(employeesHandler.Update))
	mux.Handle("DELETE /api/employees/{id}", write(employeesHandler.Delete))
	mux.Handle("GET /api/employees/{first}/{second}", read(employeesHandler.Subresource))

	// Notifications.
	mux.Handle("GET /api/notifications", write(systemHandler.Notifications))
	mux.Handle("GET /api/test-email", admin(systemHandler.TestEmail))

	var h http.Handler = mux
	h = CORSMiddleware(d.FrontendURL)(h)
	h = RecoveryMiddleware(log)(h)
	h = LoggingMiddleware(log.Named("http"))(h)
	return h
}
