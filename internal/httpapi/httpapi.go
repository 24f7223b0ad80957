// Package httpapi exposes the manager's operations as a REST surface over
// gorilla/mux, grounded on the teacher's cmd/gateway router/middleware
// layout (internal/httpapi mirrors what that package's handlers.go and
// middleware.go did for the wallet API, minus the JWT/API-key auth which
// has no equivalent concern here).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/subscription"
)

// Manager is the subset of *manager.Manager the HTTP surface calls into.
// Declared locally so this package depends on behavior, not the concrete
// manager type.
type Manager interface {
	AddNode(ctx context.Context, name, pluginName string, isMonitor bool) error
	DelNode(ctx context.Context, name string) error
	RenameNode(ctx context.Context, oldName, newName string) error
	NodeSetting(ctx context.Context, name string, setting json.RawMessage) error
	NodeCtl(ctx context.Context, name, action string) error
	GetNode(name string) (*model.Node, error)
	GetNodes(typeFilter *model.NodeType) []*model.Node
	GetNodeState(nodeName string) (model.RunningState, model.LinkState, error)
	GetNodeSetting(nodeName string) ([]byte, error)

	CreateGroup(ctx context.Context, nodeName, groupName string, intervalMillis int64) error
	UpdateGroup(ctx context.Context, nodeName, groupName string, intervalMillis int64) error
	DelGroup(ctx context.Context, nodeName, groupName string) error
	GetGroup(nodeName, groupName string) (*model.Group, error)
	GetGroups(nodeName string) ([]*model.Group, error)

	AddTag(ctx context.Context, nodeName, groupName string, def *model.TagDef) error
	UpdateTag(ctx context.Context, nodeName, groupName string, def *model.TagDef) error
	DelTag(ctx context.Context, nodeName, groupName, tagName string) error
	GetTag(nodeName, groupName, tagName string) (*model.Tag, error)

	ReadGroup(nodeName, groupName string) (*model.TransData, error)
	WriteTag(ctx context.Context, nodeName, reqID, groupName, tagName string, value interface{}) error
	WriteTags(ctx context.Context, nodeName, reqID, groupName string, values map[string]interface{}) (map[string]error, error)

	Subscribe(ctx context.Context, driver, group, app string, params json.RawMessage, staticTags []subscription.StaticTag) error
	Unsubscribe(ctx context.Context, driver, group, app string) error
	UpdateSubscribeGroup(ctx context.Context, driver, group, app string, params json.RawMessage, staticTags []subscription.StaticTag) error
	GetSubscribeGroups(app string) []subscription.Entry
	GetSubscribeGroup(driver, group string) []string

	AddTemplate(pluginName, name string) error
	DelTemplate(name string) error
	GetTemplates() []*model.Template
	GetTemplate(name string) (*model.Template, bool)
	AddTemplateGroup(name string, group *model.GroupDef) error
	UpdateTemplateGroup(name, groupName string, intervalMillis int64) error
	DelTemplateGroup(name, groupName string) error
	AddTemplateTag(ctx context.Context, name, groupName string, def *model.TagDef) error
	UpdateTemplateTag(ctx context.Context, name, groupName string, def *model.TagDef) error
	DelTemplateTag(name, groupName, tagName string) error
	InstTemplate(ctx context.Context, templateName, newNodeName string) error

	HealthStatus() string
	HealthDetails() map[string]any
}

// api holds the dependencies every handler closes over.
type api struct {
	mgr    Manager
	logger *logging.Logger
}

// NewRouter builds the gateway's HTTP surface: liveness/health, Prometheus
// metrics, and REST CRUD over nodes/groups/tags/subscriptions/templates.
func NewRouter(mgr Manager, logger *logging.Logger) *mux.Router {
	a := &api{mgr: mgr, logger: logger}
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(a.loggingMiddleware)

	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	nodes := r.PathPrefix("/api/v1/nodes").Subrouter()
	nodes.HandleFunc("", a.handleListNodes).Methods(http.MethodGet)
	nodes.HandleFunc("", a.handleAddNode).Methods(http.MethodPost)
	nodes.HandleFunc("/{node}", a.handleGetNode).Methods(http.MethodGet)
	nodes.HandleFunc("/{node}", a.handleDeleteNode).Methods(http.MethodDelete)
	nodes.HandleFunc("/{node}/rename", a.handleRenameNode).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/setting", a.handleNodeSetting).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/setting", a.handleGetNodeSetting).Methods(http.MethodGet)
	nodes.HandleFunc("/{node}/ctl", a.handleNodeCtl).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/state", a.handleGetNodeState).Methods(http.MethodGet)

	nodes.HandleFunc("/{node}/groups", a.handleListGroups).Methods(http.MethodGet)
	nodes.HandleFunc("/{node}/groups", a.handleCreateGroup).Methods(http.MethodPost)
	nodes.HandleFunc("/{node}/groups/{group}", a.handleGetGroup).Methods(http.MethodGet)
	nodes.HandleFunc("/{node}/groups/{group}", a.handleUpdateGroup).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/groups/{group}", a.handleDeleteGroup).Methods(http.MethodDelete)
	nodes.HandleFunc("/{node}/groups/{group}/read", a.handleReadGroup).Methods(http.MethodGet)

	nodes.HandleFunc("/{node}/groups/{group}/tags", a.handleAddTag).Methods(http.MethodPost)
	nodes.HandleFunc("/{node}/groups/{group}/tags/{tag}", a.handleGetTag).Methods(http.MethodGet)
	nodes.HandleFunc("/{node}/groups/{group}/tags/{tag}", a.handleUpdateTag).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/groups/{group}/tags/{tag}", a.handleDeleteTag).Methods(http.MethodDelete)
	nodes.HandleFunc("/{node}/groups/{group}/tags/{tag}/write", a.handleWriteTag).Methods(http.MethodPut)
	nodes.HandleFunc("/{node}/groups/{group}/write", a.handleWriteTags).Methods(http.MethodPut)

	subs := r.PathPrefix("/api/v1/subscriptions").Subrouter()
	subs.HandleFunc("", a.handleSubscribe).Methods(http.MethodPost)
	subs.HandleFunc("", a.handleUnsubscribe).Methods(http.MethodDelete)
	subs.HandleFunc("", a.handleUpdateSubscription).Methods(http.MethodPut)
	subs.HandleFunc("/{app}", a.handleListSubscriptions).Methods(http.MethodGet)

	tmpl := r.PathPrefix("/api/v1/templates").Subrouter()
	tmpl.HandleFunc("", a.handleListTemplates).Methods(http.MethodGet)
	tmpl.HandleFunc("", a.handleAddTemplate).Methods(http.MethodPost)
	tmpl.HandleFunc("/{template}", a.handleGetTemplate).Methods(http.MethodGet)
	tmpl.HandleFunc("/{template}", a.handleDeleteTemplate).Methods(http.MethodDelete)
	tmpl.HandleFunc("/{template}/instantiate", a.handleInstantiateTemplate).Methods(http.MethodPost)
	tmpl.HandleFunc("/{template}/groups", a.handleAddTemplateGroup).Methods(http.MethodPost)
	tmpl.HandleFunc("/{template}/groups/{group}", a.handleUpdateTemplateGroup).Methods(http.MethodPut)
	tmpl.HandleFunc("/{template}/groups/{group}", a.handleDeleteTemplateGroup).Methods(http.MethodDelete)
	tmpl.HandleFunc("/{template}/groups/{group}/tags", a.handleAddTemplateTag).Methods(http.MethodPost)
	tmpl.HandleFunc("/{template}/groups/{group}/tags/{tag}", a.handleUpdateTemplateTag).Methods(http.MethodPut)
	tmpl.HandleFunc("/{template}/groups/{group}/tags/{tag}", a.handleDeleteTemplateTag).Methods(http.MethodDelete)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := logging.NewTraceID()
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// fail writes a domain error as the response and, for the internal-error
// case only, logs it with the request's trace ID — every other GatewayError
// kind is an expected, caller-caused outcome and not worth a log line.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	gerr := gwerrors.As(err)
	if gerr == nil || statusFor(gerr) == http.StatusInternalServerError {
		a.logger.WithContext(r.Context()).WithError(err).Warn("internal error handling request")
	}
	writeError(w, err)
}
